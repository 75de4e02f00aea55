package service

import (
	"context"
	"testing"

	"ConsorcioSync/internal/etlerr"
	"ConsorcioSync/internal/lock"
	"ConsorcioSync/internal/model"
	"ConsorcioSync/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const septemberCSV = "Grupo;Prazo;Valor do Bem;Vagas;Data Assembleia;Lance Medio\n" +
	"164;80;50.000,00;3;15/09/2026;35,5\n" +
	"164;80;50.000,00;3;15/09/2026;35,5\n"

func TestPipelineEndToEndSingleGroup(t *testing.T) {
	f := newFixture(t)
	f.files.put("gmac/grupos_20260930.csv", septemberCSV)

	report, err := f.pipeline.Run(context.Background(), JobRequest{Job: JobRun, Administrator: "gmac", Key: "gmac/grupos_20260930.csv"})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSucceeded, report.Status)
	assert.Equal(t, 2, report.Records)
	require.NotNil(t, report.Extract)
	assert.True(t, report.Extract.Moved)
	assert.Equal(t, []string{"gmac/grupos_20260930.csv"}, f.files.moved)
	assert.Equal(t, 1, report.Reconcile.Batches, "both rows are committed in one batch")

	var groups []model.Group
	require.NoError(t, f.db.Find(&groups).Error)
	require.Len(t, groups, 1)
	assert.Equal(t, "00164", groups[0].Code)
	assert.Equal(t, 80, groups[0].DeadlineMonths)

	var assets []model.Asset
	require.NoError(t, f.db.Find(&assets).Error)
	require.Len(t, assets, 1)
	assert.True(t, assets[0].Value.Equal(decimal.NewFromInt(50000)))
	assert.Nil(t, assets[0].ValidTo)

	var bids []model.Bid
	require.NoError(t, f.db.Find(&bids).Error)
	require.Len(t, bids, 1)
	assert.True(t, bids[0].Value.Equal(decimal.RequireFromString("35.5")))

	assert.EqualValues(t, 1, f.count(t, &model.GroupVacancies{}))
	assert.EqualValues(t, 0, f.pending(t))

	details := f.publisher.details(t)
	require.Len(t, details, 1)
	assert.Equal(t, report.RunID, details[0].RunID)
	assert.Equal(t, model.JobStatusSucceeded, details[0].Status)
	assert.Equal(t, 2, details[0].Records)
	assert.Equal(t, []uint64{groups[0].ID}, details[0].GroupIDs)
	assert.Equal(t, "quota_ingestion_gmac_pos", f.publisher.sent[0].DetailType)
	assert.Equal(t, "consorcio-bus", f.publisher.sent[0].EventBusName)

	run, err := repository.NewJobRunRepository(f.db).Get(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSucceeded, run.Status)
	assert.Equal(t, 2, run.Records)
}

func TestPipelineReplayIsNoop(t *testing.T) {
	f := newFixture(t)
	f.files.put("gmac/grupos_20260930.csv", septemberCSV)
	_, err := f.pipeline.Run(context.Background(), JobRequest{Job: JobRun, Administrator: "gmac", Key: "gmac/grupos_20260930.csv"})
	require.NoError(t, err)

	report, err := f.pipeline.Run(context.Background(), JobRequest{Job: JobReconcile, Administrator: "gmac"})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Records)
	assert.EqualValues(t, 1, f.count(t, &model.Group{}))
	assert.EqualValues(t, 1, f.count(t, &model.Asset{}))
	assert.EqualValues(t, 1, f.count(t, &model.Bid{}))
	assert.EqualValues(t, 1, f.count(t, &model.GroupVacancies{}))
}

func TestPipelineNewerExtractSupersedes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.files.put("gmac/grupos_20260930.csv", septemberCSV)
	f.files.put("gmac/grupos_20261031.csv", "Grupo;Prazo;Valor do Bem;Vagas;Data Assembleia;Lance Medio\n"+
		"00164;80;52.000,00;2;15/10/2026;38,25\n")

	_, err := f.pipeline.Run(ctx, JobRequest{Job: JobRun, Administrator: "gmac", Key: "gmac/grupos_20260930.csv"})
	require.NoError(t, err)
	report, err := f.pipeline.Run(ctx, JobRequest{Job: JobRun, Administrator: "gmac", Key: "gmac/grupos_20261031.csv"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Reconcile.Assets["replace"])
	assert.Equal(t, 1, report.Reconcile.Vacancies["replace"])

	assert.EqualValues(t, 1, f.count(t, &model.Group{}))
	assert.EqualValues(t, 2, f.count(t, &model.Asset{}))
	assert.EqualValues(t, 1, f.count(t, &model.Asset{}, "valid_to IS NULL"))
	assert.EqualValues(t, 1, f.count(t, &model.GroupVacancies{}, "valid_to IS NULL"))
	assert.EqualValues(t, 2, f.count(t, &model.Bid{}))

	var current model.Asset
	require.NoError(t, f.db.Where("valid_to IS NULL").First(&current).Error)
	assert.True(t, current.Value.Equal(decimal.NewFromInt(52000)))
}

func TestPipelinePublishFailureKeepsData(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errBroker
	f.files.put("gmac/grupos_20260930.csv", septemberCSV)

	report, err := f.pipeline.Run(context.Background(), JobRequest{Job: JobRun, Administrator: "gmac", Key: "gmac/grupos_20260930.csv"})
	require.NoError(t, err, "publish failures do not fail the job")
	assert.Equal(t, model.JobStatusSucceeded, report.Status)
	assert.Contains(t, report.PublishError, "broker unavailable")
	assert.EqualValues(t, 1, f.count(t, &model.Group{}))

	run, err := repository.NewJobRunRepository(f.db).Get(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Contains(t, string(run.Detail), "broker unavailable")
}

func TestPipelineFileMoveFailureDoesNotFailJob(t *testing.T) {
	f := newFixture(t)
	f.files.moveErr = errBroker
	f.files.put("gmac/grupos_20260930.csv", septemberCSV)

	report, err := f.pipeline.Run(context.Background(), JobRequest{Job: JobExtract, Administrator: "gmac", Key: "gmac/grupos_20260930.csv"})
	require.NoError(t, err)
	assert.False(t, report.Extract.Moved)
	assert.EqualValues(t, 2, f.pending(t))
}

func TestPipelineFailures(t *testing.T) {
	t.Run("missing file fails the job and reports it", func(t *testing.T) {
		f := newFixture(t)
		report, err := f.pipeline.Run(context.Background(), JobRequest{Job: JobRun, Administrator: "gmac", Key: "gmac/none.csv"})
		require.ErrorIs(t, err, etlerr.ErrNotFound)
		assert.Equal(t, model.JobStatusFailed, report.Status)
		details := f.publisher.details(t)
		require.Len(t, details, 1)
		assert.Equal(t, model.JobStatusFailed, details[0].Status)
		assert.NotEmpty(t, details[0].Error)
	})

	t.Run("unparseable row aborts before staging insert", func(t *testing.T) {
		f := newFixture(t)
		f.files.put("gmac/grupos_20260930.csv", "Grupo;Data Assembleia;Lance Medio\n164;15/09/2026;35,5\n165;31/02/2026;20\n")
		_, err := f.pipeline.Run(context.Background(), JobRequest{Job: JobRun, Administrator: "gmac", Key: "gmac/grupos_20260930.csv"})
		var de *etlerr.DateFormatError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "assembly_date", de.Column)
		assert.Empty(t, f.files.moved, "file stays in received")
		assert.EqualValues(t, 0, f.count(t, &model.Group{}))
	})

	t.Run("unknown administrator", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.pipeline.Run(context.Background(), JobRequest{Job: JobRun, Administrator: "bradesco"})
		assert.Error(t, err)
	})

	t.Run("unknown job", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.pipeline.Run(context.Background(), JobRequest{Job: "sync", Administrator: "gmac"})
		assert.Error(t, err)
	})

	t.Run("extract without key", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.pipeline.Run(context.Background(), JobRequest{Job: JobExtract, Administrator: "gmac"})
		assert.Error(t, err)
	})
}

func TestPipelineHonorsJobLock(t *testing.T) {
	f := newFixture(t)
	locker := lock.NewLocalLocker()
	release, err := locker.Acquire(context.Background(), "gmac", 0)
	require.NoError(t, err)
	defer func() { _ = release(context.Background()) }()
	f.pipeline.locker = locker

	_, err = f.pipeline.Run(context.Background(), JobRequest{Job: JobReconcile, Administrator: "gmac"})
	require.ErrorIs(t, err, lock.ErrLocked)
	assert.Empty(t, f.publisher.sent)
}
