package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ConsorcioSync/internal/etlerr"
	"ConsorcioSync/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// JobRunRepository 作业运行记录
type JobRunRepository interface {
	Start(ctx context.Context, run *model.JobRun) error
	Finish(ctx context.Context, runID string, result JobRunResult) error
	Get(ctx context.Context, runID string) (*model.JobRun, error)
	List(ctx context.Context, administrator string, limit int) ([]*model.JobRun, error)
}

// JobRunResult 作业结束时写入的结果
type JobRunResult struct {
	Status     string
	Records    int
	Error      string
	Detail     any
	FinishedAt time.Time
}

type jobRunRepository struct {
	db *gorm.DB
}

func NewJobRunRepository(db *gorm.DB) JobRunRepository {
	return &jobRunRepository{db: db}
}

func (r *jobRunRepository) Start(ctx context.Context, run *model.JobRun) error {
	if run.Status == "" {
		run.Status = model.JobStatusRunning
	}
	return etlerr.Classify("记录作业开始", r.db.WithContext(ctx).Create(run).Error)
}

func (r *jobRunRepository) Finish(ctx context.Context, runID string, result JobRunResult) error {
	updates := map[string]any{
		"status":      result.Status,
		"records":     result.Records,
		"finished_at": result.FinishedAt,
	}
	if result.Error != "" {
		updates["error"] = result.Error
	}
	if result.Detail != nil {
		raw, err := json.Marshal(result.Detail)
		if err != nil {
			return err
		}
		updates["detail"] = datatypes.JSON(raw)
	}
	err := r.db.WithContext(ctx).Model(&model.JobRun{}).Where("run_id = ?", runID).Updates(updates).Error
	return etlerr.Classify("记录作业结束", err)
}

func (r *jobRunRepository) Get(ctx context.Context, runID string) (*model.JobRun, error) {
	var run model.JobRun
	if err := r.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, etlerr.NotFound("作业", runID)
		}
		return nil, etlerr.Classify("查询作业", err)
	}
	return &run, nil
}

// List 最近的运行记录，administrator 为空时不过滤
func (r *jobRunRepository) List(ctx context.Context, administrator string, limit int) ([]*model.JobRun, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Order("started_at DESC, id DESC").Limit(limit)
	if administrator != "" {
		q = q.Where("administrator = ?", administrator)
	}
	var out []*model.JobRun
	if err := q.Find(&out).Error; err != nil {
		return nil, etlerr.Classify("查询作业列表", err)
	}
	return out, nil
}
