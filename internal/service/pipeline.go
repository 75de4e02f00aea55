package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ConsorcioSync/internal/adapter"
	"ConsorcioSync/internal/config"
	"ConsorcioSync/internal/interfaces"
	"ConsorcioSync/internal/metrics"
	"ConsorcioSync/internal/model"
	"ConsorcioSync/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// 作业类型
const (
	JobExtract   = "extract"
	JobReconcile = "reconcile"
	JobBidCalc   = "bidcalc"
	JobRun       = "run"
)

// JobRequest 一次作业调用的参数；数值参数为0时使用配置值
type JobRequest struct {
	Job            string
	Administrator  string
	Key            string // 源文件对象key（api数据源可为空）
	EventBus       string
	BatchSize      int
	LookbackMonths int
	MinAssemblies  int
	MaxAssemblies  int
}

// JobReport 作业结果，写入 JobRun.detail
type JobReport struct {
	RunID        string           `json:"run_id"`
	Job          string           `json:"job"`
	Status       string           `json:"status"`
	Records      int              `json:"records"`
	GroupIDs     []uint64         `json:"group_ids,omitempty"`
	Extract      *ExtractResult   `json:"extract,omitempty"`
	Reconcile    *ReconcileResult `json:"reconcile,omitempty"`
	BidCalc      *BidCalcResult   `json:"bidcalc,omitempty"`
	Error        string           `json:"error,omitempty"`
	PublishError string           `json:"publish_error,omitempty"`
}

// PipelineDeps 构建 Pipeline 所需的依赖
type PipelineDeps struct {
	DB        *gorm.DB
	Config    *config.Config
	Registry  *adapter.Registry
	Files     interfaces.FileStore
	Publisher interfaces.Publisher
	Locker    interfaces.JobLocker
	Metrics   *metrics.Collector
	Logger    *logrus.Logger
	Now       func() time.Time
}

// Pipeline 串联 extract → lookup → reconcile → bidcalc → 完成事件
type Pipeline struct {
	cfg       *config.Config
	registry  *adapter.Registry
	locker    interfaces.JobLocker
	jobRuns   repository.JobRunRepository
	extract   *ExtractService
	lookup    *LookupService
	reconcile *ReconcileService
	bidCalc   *BidCalcService
	notifier  *Notifier
	metrics   *metrics.Collector
	logger    *logrus.Logger
	now       func() time.Time
}

func NewPipeline(d PipelineDeps) *Pipeline {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		cfg:       d.Config,
		registry:  d.Registry,
		locker:    d.Locker,
		jobRuns:   repository.NewJobRunRepository(d.DB),
		extract:   NewExtractService(d.DB, d.Files, d.Metrics, d.Logger),
		lookup:    NewLookupService(d.DB, d.Logger),
		reconcile: NewReconcileService(d.DB, d.Metrics, d.Logger),
		bidCalc:   NewBidCalcService(d.DB, d.Metrics, d.Logger),
		notifier:  NewNotifier(d.Publisher, d.Config.Events, d.Logger),
		metrics:   d.Metrics,
		logger:    d.Logger,
		now:       now,
	}
}

// Run 执行一次作业。返回的错误即作业失败原因；完成事件发布失败不算作业失败，记录在 JobReport.PublishError。
func (p *Pipeline) Run(ctx context.Context, req JobRequest) (*JobReport, error) {
	switch req.Job {
	case JobExtract, JobReconcile, JobBidCalc, JobRun:
	default:
		return nil, fmt.Errorf("未知作业类型: %q", req.Job)
	}
	adm, err := p.registry.Get(req.Administrator)
	if err != nil {
		return nil, err
	}

	release, err := p.locker.Acquire(ctx, adm.Code, p.cfg.Lock.TTL)
	if err != nil {
		return nil, fmt.Errorf("获取%s作业锁失败: %w", adm.Code, err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			p.logger.WithError(err).WithField("administrator", adm.Code).Warn("释放作业锁失败")
		}
	}()

	started := p.now()
	report := &JobReport{RunID: uuid.New().String(), Job: req.Job, Status: model.JobStatusRunning}
	log := p.logger.WithFields(logrus.Fields{"run_id": report.RunID, "job": req.Job, "administrator": adm.Code})
	if err := p.jobRuns.Start(ctx, &model.JobRun{
		RunID:         report.RunID,
		Job:           req.Job,
		Administrator: adm.Code,
		StartedAt:     started,
	}); err != nil {
		return nil, err
	}
	log.Info("作业开始")

	runErr := p.runSteps(ctx, adm, req, report, started)
	report.Status = model.JobStatusSucceeded
	if runErr != nil {
		report.Status = model.JobStatusFailed
		report.Error = runErr.Error()
		log.WithError(runErr).Error("作业失败")
	}

	finishCtx := context.WithoutCancel(ctx)
	if err := p.notifier.Completed(finishCtx, adm.DetailType(), req.EventBus, model.CompletionDetail{
		RunID:         report.RunID,
		Job:           req.Job,
		Administrator: adm.Code,
		Status:        report.Status,
		Records:       report.Records,
		GroupIDs:      report.GroupIDs,
		Error:         report.Error,
	}, p.now()); err != nil {
		report.PublishError = err.Error()
		log.WithError(err).Error("完成事件发布失败，数据已提交不回滚")
		if p.metrics != nil {
			p.metrics.PublishFailed(adm.Code)
		}
	}

	finished := p.now()
	if err := p.jobRuns.Finish(finishCtx, report.RunID, repository.JobRunResult{
		Status:     report.Status,
		Records:    report.Records,
		Error:      report.Error,
		Detail:     report,
		FinishedAt: finished,
	}); err != nil {
		log.WithError(err).Error("记录作业结果失败")
		runErr = errors.Join(runErr, err)
	}

	if p.metrics != nil {
		p.metrics.JobFinished(req.Job, adm.Code, report.Status, finished.Sub(started))
		if err := p.metrics.Push(p.cfg.Metrics.PushgatewayURL, adm.Code); err != nil {
			log.WithError(err).Warn("推送指标失败")
		}
	}
	log.WithFields(logrus.Fields{"status": report.Status, "records": report.Records}).Info("作业结束")
	return report, runErr
}

func (p *Pipeline) runSteps(ctx context.Context, adm *adapter.Administrator, req JobRequest, report *JobReport, started time.Time) error {
	jobs := p.cfg.Jobs
	batchSize := firstPositive(req.BatchSize, jobs.BatchSize)

	if req.Job == JobExtract || req.Job == JobRun {
		if req.Key != "" || adm.Config.Source == "api" {
			res, err := p.extract.Run(ctx, adm, req.Key, started, batchSize)
			if err != nil {
				return err
			}
			report.Extract = res
			report.Records = res.Rows
		} else if req.Job == JobExtract {
			return fmt.Errorf("%s的extract需要指定文件key", adm.Code)
		}
	}
	if req.Job == JobExtract {
		return nil
	}

	arena, err := p.lookup.Load(ctx, adm.Code)
	if err != nil {
		return err
	}

	if req.Job == JobReconcile || req.Job == JobRun {
		res, err := p.reconcile.Run(ctx, arena, adm.Rules, adm.Layout.StagingTable, ReconcileOptions{
			RunID:     report.RunID,
			BatchSize: batchSize,
			ClaimTTL:  jobs.ClaimTTL,
			Now:       p.now,
		})
		report.Reconcile = res
		report.GroupIDs = arena.TouchedGroupIDs()
		if err != nil {
			return err
		}
		report.Records = res.Rows
	}

	if req.Job == JobBidCalc || req.Job == JobRun {
		res, err := p.bidCalc.Run(ctx, arena, adm.Rules, BidCalcOptions{
			Now:            p.now(),
			LookbackMonths: firstPositive(req.LookbackMonths, jobs.LookbackMonths),
			MinAssemblies:  firstPositive(req.MinAssemblies, jobs.MinAssemblies),
			MaxAssemblies:  firstPositive(req.MaxAssemblies, jobs.MaxAssemblies),
		})
		report.BidCalc = res
		if err != nil {
			return err
		}
		if req.Job == JobBidCalc {
			report.Records = res.Computed
		}
	}
	return nil
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
