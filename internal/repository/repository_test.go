package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"ConsorcioSync/internal/etlerr"
	"ConsorcioSync/internal/interfaces"
	"ConsorcioSync/internal/model"
	"ConsorcioSync/internal/rules"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testTable = "tb_grupos_test"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	ctx := context.Background()
	require.NoError(t, AutoMigrate(ctx, db))
	require.NoError(t, NewStagingRepository(db).EnsureTable(ctx, testTable))
	return db
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func stagingRows(n int) []*model.StagingRow {
	rows := make([]*model.StagingRow, n)
	for i := range rows {
		rows[i] = &model.StagingRow{GroupCode: fmt.Sprint(160 + i), AssetValue: "1000", DataInfo: day("2026-09-30")}
	}
	return rows
}

func TestEnsureTableIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewStagingRepository(db)
	require.NoError(t, repo.EnsureTable(context.Background(), testTable))
	require.NoError(t, repo.EnsureTable(context.Background(), "tb_lances_other_pre"))
	assert.Error(t, repo.EnsureTable(context.Background(), "tb; drop table pl_group"))
}

func TestStagingClaimLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewStagingRepository(db)
	now := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Insert(ctx, testTable, stagingRows(5), 2))
	pending, err := repo.CountPending(ctx, testTable)
	require.NoError(t, err)
	assert.EqualValues(t, 5, pending)

	first, err := repo.Claim(ctx, testTable, "run-a", 3, time.Minute, now)
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, "run-a", *first[0].ClaimedBy)

	// 另一个运行只能领取剩余的行
	second, err := repo.Claim(ctx, testTable, "run-b", 10, time.Minute, now)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Greater(t, second[0].ID, first[2].ID)

	ids := []uint64{first[0].ID, first[1].ID, first[2].ID}
	require.NoError(t, repo.MarkProcessed(ctx, testTable, ids, now))
	err = repo.MarkProcessed(ctx, testTable, ids, now)
	assert.ErrorIs(t, err, etlerr.ErrConflict, "rows cannot be processed twice")

	// run-b 回滚后释放，其他运行可以重新领取
	require.NoError(t, repo.Release(ctx, testTable, "run-b"))
	third, err := repo.Claim(ctx, testTable, "run-c", 10, time.Minute, now)
	require.NoError(t, err)
	assert.Len(t, third, 2)

	none, err := repo.Claim(ctx, testTable, "run-d", 10, time.Minute, now)
	require.NoError(t, err)
	assert.Empty(t, none)

	// 领取超时后可被重新领取
	stale, err := repo.Claim(ctx, testTable, "run-d", 10, time.Minute, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Len(t, stale, 2)
}

func TestReferenceRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewReferenceRepository(db)

	_, err := repo.GetAdministratorByCode(ctx, "gmac")
	assert.ErrorIs(t, err, etlerr.ErrNotFound)

	require.NoError(t, repo.EnsureAdministrator(ctx, "gmac", "GMAC"))
	require.NoError(t, repo.EnsureAdministrator(ctx, "gmac", "GMAC"))
	adm, err := repo.GetAdministratorByCode(ctx, "gmac")
	require.NoError(t, err)

	require.NoError(t, repo.SeedReferenceTypes(ctx))
	types, err := repo.ListBidTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, types, len(model.BidTypeCodes))
	values, err := repo.ListBidValueTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, values, len(model.BidValueTypeCodes))
	assetTypes, err := repo.ListAssetTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, assetTypes, len(model.AssetTypeCodes))

	canon := NewCanonicalRepository(db)
	g := &model.Group{Code: "00164", AdministratorID: adm.ID}
	require.NoError(t, canon.CreateGroup(ctx, g))
	require.NoError(t, canon.CreateGroup(ctx, &model.Group{Code: "00165", AdministratorID: adm.ID, Deleted: true}))
	err = canon.CreateGroup(ctx, &model.Group{Code: "00164", AdministratorID: adm.ID})
	assert.ErrorIs(t, err, etlerr.ErrConflict)

	groups, err := repo.ListGroups(ctx, adm.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1, "soft-deleted groups are not loaded")

	_, err = canon.SupersedeAsset(ctx, rules.SupersedeOlder{}, nil, &model.Asset{GroupID: g.ID, Value: decimal.NewFromInt(100), InfoDate: day("2026-08-31")}, time.Now())
	require.NoError(t, err)
	assets, err := repo.ListCurrentAssets(ctx, adm.ID)
	require.NoError(t, err)
	assert.Len(t, assets, 1)
	vac, err := repo.ListCurrentVacancies(ctx, adm.ID)
	require.NoError(t, err)
	assert.Empty(t, vac)
}

func countCurrent(t *testing.T, db *gorm.DB, m any, groupID uint64) int64 {
	var n int64
	require.NoError(t, db.Model(m).Where("group_id = ? AND valid_to IS NULL", groupID).Count(&n).Error)
	return n
}

func TestAssetSupersessionKeepsOneCurrent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	canon := NewCanonicalRepository(db)
	g := &model.Group{Code: "00164", AdministratorID: 1}
	require.NoError(t, canon.CreateGroup(ctx, g))
	now := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)

	asset := func(info string, v int64) *model.Asset {
		return &model.Asset{GroupID: g.ID, Value: decimal.NewFromInt(v), InfoDate: day(info)}
	}

	var current *model.Asset
	steps := []struct {
		policy interfaces.SupersessionPolicy
		in     *model.Asset
		want   interfaces.SupersessionAction
	}{
		{rules.SupersedeOlder{}, asset("2026-07-31", 100), interfaces.SupersedeInsert},
		{rules.SupersedeOlder{}, asset("2026-08-31", 110), interfaces.SupersedeReplace},
		{rules.SupersedeOlder{}, asset("2026-08-31", 110), interfaces.SupersedeSkip},
		{rules.SupersedeOnChange{}, asset("2026-08-31", 120), interfaces.SupersedeReplace},
		{rules.BackfillHistory{}, asset("2026-06-30", 90), interfaces.SupersedeInsertHistorical},
	}
	for i, s := range steps {
		action, err := canon.SupersedeAsset(ctx, s.policy, current, s.in, now)
		require.NoError(t, err, "step %d", i)
		assert.Equal(t, s.want, action, "step %d", i)
		if action == interfaces.SupersedeInsert || action == interfaces.SupersedeReplace {
			current = s.in
		}
		assert.EqualValues(t, 1, countCurrent(t, db, &model.Asset{}, g.ID), "step %d", i)
	}

	var all []model.Asset
	require.NoError(t, db.Where("group_id = ?", g.ID).Order("id").Find(&all).Error)
	require.Len(t, all, 4)
	require.NotNil(t, all[0].ValidTo)
	assert.True(t, all[0].ValidTo.Equal(now), "superseded rows are closed at run time")
	assert.Equal(t, day("2026-08-31"), all[2].ValidFrom.UTC())
	require.NotNil(t, all[3].ValidTo, "backfilled history is inserted closed")
	assert.True(t, all[3].ValidTo.Equal(day("2026-07-31")), "closed at the next newer version's valid_from")

	// 过期的内存快照：当前版本已被关闭时返回冲突
	stale := all[0]
	_, err := canon.SupersedeAsset(ctx, rules.SupersedeOlder{}, &stale, asset("2026-09-30", 130), now)
	assert.ErrorIs(t, err, etlerr.ErrConflict)
}

func TestBackfillHistoryReplayIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	canon := NewCanonicalRepository(db)
	g := &model.Group{Code: "00170", AdministratorID: 1}
	require.NoError(t, canon.CreateGroup(ctx, g))
	now := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)

	asset := func(info string, v int64) *model.Asset {
		return &model.Asset{GroupID: g.ID, Value: decimal.NewFromInt(v), InfoDate: day(info)}
	}
	current := asset("2026-09-30", 130)
	action, err := canon.SupersedeAsset(ctx, rules.BackfillHistory{}, nil, current, now)
	require.NoError(t, err)
	require.Equal(t, interfaces.SupersedeInsert, action)

	for i := 0; i < 3; i++ {
		action, err = canon.SupersedeAsset(ctx, rules.BackfillHistory{}, current, asset("2026-06-30", 90), now)
		require.NoError(t, err, "replay %d", i)
		if i == 0 {
			assert.Equal(t, interfaces.SupersedeInsertHistorical, action)
		} else {
			assert.Equal(t, interfaces.SupersedeSkip, action, "replay %d", i)
		}
	}

	// 中间日期的历史版本：关闭于下一个更新版本的 valid_from
	action, err = canon.SupersedeAsset(ctx, rules.BackfillHistory{}, current, asset("2026-04-30", 70), now)
	require.NoError(t, err)
	require.Equal(t, interfaces.SupersedeInsertHistorical, action)

	var all []model.Asset
	require.NoError(t, db.Where("group_id = ?", g.ID).Order("valid_from").Find(&all).Error)
	require.Len(t, all, 3)
	assert.Equal(t, day("2026-04-30"), all[0].ValidFrom.UTC())
	require.NotNil(t, all[0].ValidTo)
	assert.True(t, all[0].ValidTo.Equal(day("2026-06-30")))
	require.NotNil(t, all[1].ValidTo)
	assert.True(t, all[1].ValidTo.Equal(day("2026-09-30")))
	assert.Nil(t, all[2].ValidTo)
	assert.EqualValues(t, 1, countCurrent(t, db, &model.Asset{}, g.ID))
}

func TestBidsAreAppendOnly(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	canon := NewCanonicalRepository(db)

	bid := func(v string) *model.Bid {
		return &model.Bid{GroupID: 7, Value: decimal.RequireFromString(v), AssemblyDate: day("2026-09-15"), InfoDate: day("2026-09-30"), BidTypeID: 1, BidValueTypeID: 2}
	}
	inserted, err := canon.InsertBid(ctx, bid("35.5"))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = canon.InsertBid(ctx, bid("99"))
	require.NoError(t, err)
	assert.False(t, inserted, "an existing observation is never overwritten")

	var stored []model.Bid
	require.NoError(t, db.Find(&stored).Error)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].Value.Equal(decimal.RequireFromString("35.5")))

	zero := bid("0")
	zero.BidValueTypeID = 3
	_, err = canon.InsertBid(ctx, zero)
	require.NoError(t, err)
	bids, err := canon.ListBidsSince(ctx, 7, day("2026-03-15"))
	require.NoError(t, err)
	assert.Len(t, bids, 1, "zero bids are ignored")
	bids, err = canon.ListBidsSince(ctx, 7, day("2026-09-15"))
	require.NoError(t, err)
	assert.Empty(t, bids, "cutoff is exclusive")
}

func TestBidSelectionUpdateAndClear(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	canon := NewCanonicalRepository(db)
	g := &model.Group{Code: "00164", AdministratorID: 1}
	require.NoError(t, canon.CreateGroup(ctx, g))

	pct := 30.0
	require.NoError(t, canon.SaveBidSelection(ctx, g.ID, BidSelectionUpdate{ChosenBid: 41.5, MaxBidOccurrencePct: 50, EmbeddedBidPct: &pct, CalculatedAt: day("2026-10-16")}))
	var got model.Group
	require.NoError(t, db.First(&got, g.ID).Error)
	require.NotNil(t, got.ChosenBid)
	assert.Equal(t, 41.5, *got.ChosenBid)
	require.NotNil(t, got.EmbeddedBidPct)

	require.NoError(t, canon.ClearBidSelection(ctx, g.ID))
	got = model.Group{}
	require.NoError(t, db.First(&got, g.ID).Error)
	assert.Nil(t, got.ChosenBid)
	assert.Nil(t, got.MaxBidOccurrencePct)
	assert.Nil(t, got.BidCalculationDate)
}

func TestQuotaRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewQuotaRepository(db)

	bad := &model.Quota{GroupID: 1, AdministratorID: 1, Number: "0001", Owners: []model.QuotaOwner{
		{Document: "1", OwnershipPercent: decimal.RequireFromString("0.7")},
		{Document: "2", OwnershipPercent: decimal.RequireFromString("0.4")},
	}}
	assert.Error(t, repo.CreateQuota(ctx, bad))

	q := &model.Quota{GroupID: 1, AdministratorID: 1, Number: "0001", Owners: []model.QuotaOwner{
		{Document: "1", OwnershipPercent: decimal.RequireFromString("0.5")},
		{Document: "2", OwnershipPercent: decimal.RequireFromString("0.5")},
	}}
	require.NoError(t, repo.CreateQuota(ctx, q))
	loaded, err := repo.GetQuota(ctx, q.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Owners, 2)

	_, err = repo.GetQuota(ctx, 999)
	assert.ErrorIs(t, err, etlerr.ErrNotFound)

	now := day("2026-10-16")
	detail := func(info string, paid string) *model.QuotaHistoryDetail {
		return &model.QuotaHistoryDetail{QuotaID: q.ID, PaidPercent: decimal.RequireFromString(paid), InfoDate: day(info)}
	}
	action, err := repo.SaveHistoryDetail(ctx, rules.SupersedeOlder{}, detail("2026-08-31", "10"), now)
	require.NoError(t, err)
	assert.Equal(t, interfaces.SupersedeInsert, action)
	action, err = repo.SaveHistoryDetail(ctx, rules.SupersedeOlder{}, detail("2026-09-30", "12"), now)
	require.NoError(t, err)
	assert.Equal(t, interfaces.SupersedeReplace, action)
	action, err = repo.SaveHistoryDetail(ctx, rules.SupersedeOlder{}, detail("2026-07-31", "8"), now)
	require.NoError(t, err)
	assert.Equal(t, interfaces.SupersedeSkip, action)

	cur, err := repo.CurrentHistoryDetail(ctx, q.ID)
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.True(t, cur.PaidPercent.Equal(decimal.NewFromInt(12)))
}

func TestJobRunRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewJobRunRepository(db)

	run := &model.JobRun{RunID: "r1", Job: "run", Administrator: "gmac", StartedAt: day("2026-10-16")}
	require.NoError(t, repo.Start(ctx, run))
	require.NoError(t, repo.Start(ctx, &model.JobRun{RunID: "r2", Job: "run", Administrator: "itau", StartedAt: day("2026-10-17")}))

	require.NoError(t, repo.Finish(ctx, "r1", JobRunResult{
		Status:     model.JobStatusSucceeded,
		Records:    2,
		Detail:     map[string]any{"publish_error": "broker down"},
		FinishedAt: day("2026-10-16").Add(time.Minute),
	}))
	got, err := repo.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSucceeded, got.Status)
	assert.Equal(t, 2, got.Records)
	assert.Contains(t, string(got.Detail), "broker down")
	require.NotNil(t, got.FinishedAt)

	list, err := repo.List(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "r2", list[0].RunID)

	list, err = repo.List(ctx, "gmac", 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, etlerr.ErrNotFound)
}
