package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"ConsorcioSync/internal/etlerr"
	"ConsorcioSync/internal/interfaces"
	"ConsorcioSync/internal/metrics"
	"ConsorcioSync/internal/model"
	"ConsorcioSync/internal/repository"
	"ConsorcioSync/internal/utils/brformat"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultBatchSize = 1000

// ReconcileOptions 批处理参数；RunID 同时作为staging行的领取标记
type ReconcileOptions struct {
	RunID     string
	BatchSize int
	ClaimTTL  time.Duration
	Now       func() time.Time
}

// ReconcileResult 写入统计
type ReconcileResult struct {
	Rows          int            `json:"rows"`
	Batches       int            `json:"batches"`
	GroupsCreated int            `json:"groups_created"`
	GroupsUpdated int            `json:"groups_updated"`
	Assets        map[string]int `json:"assets"`
	Vacancies     map[string]int `json:"vacancies"`
	BidsInserted  int            `json:"bids_inserted"`
	BidsExisting  int            `json:"bids_existing"`
}

func newReconcileResult() *ReconcileResult {
	return &ReconcileResult{Assets: make(map[string]int), Vacancies: make(map[string]int)}
}

func (r *ReconcileResult) add(o *ReconcileResult) {
	r.Rows += o.Rows
	r.Batches += o.Batches
	r.GroupsCreated += o.GroupsCreated
	r.GroupsUpdated += o.GroupsUpdated
	r.BidsInserted += o.BidsInserted
	r.BidsExisting += o.BidsExisting
	for k, v := range o.Assets {
		r.Assets[k] += v
	}
	for k, v := range o.Vacancies {
		r.Vacancies[k] += v
	}
}

// ReconcileService 将staging行写入canonical模型：grupo、bem、空缺数与lance
type ReconcileService struct {
	db      *gorm.DB
	staging repository.StagingRepository
	canon   repository.CanonicalRepository
	metrics *metrics.Collector
	logger  *logrus.Logger
}

func NewReconcileService(db *gorm.DB, collector *metrics.Collector, logger *logrus.Logger) *ReconcileService {
	return &ReconcileService{
		db:      db,
		staging: repository.NewStagingRepository(db),
		canon:   repository.NewCanonicalRepository(db),
		metrics: collector,
		logger:  logger,
	}
}

// Run 循环领取未处理的staging行，每批一个事务：全部写入并标记已处理后提交。
// 任意一行失败时整批回滚、释放领取并返回错误，作业失败。
func (s *ReconcileService) Run(ctx context.Context, arena *Arena, rules interfaces.AdministratorRules, table string, opts ReconcileOptions) (*ReconcileResult, error) {
	if opts.RunID == "" {
		return nil, fmt.Errorf("reconcile需要run_id")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	adm := rules.Code()
	log := s.logger.WithFields(logrus.Fields{
		"run_id":        opts.RunID,
		"administrator": adm,
		"staging_table": table,
	})

	total := newReconcileResult()
	for {
		rows, err := s.staging.Claim(ctx, table, opts.RunID, opts.BatchSize, opts.ClaimTTL, opts.Now())
		if err != nil {
			return total, err
		}
		if len(rows) == 0 {
			break
		}

		batch := arena.begin()
		stats := newReconcileResult()
		now := opts.Now()
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			w := &rowWriter{
				canon:  s.canon.WithTx(tx),
				arena:  arena,
				batch:  batch,
				rules:  rules,
				stats:  stats,
				now:    now,
				logger: log,
			}
			ids := make([]uint64, 0, len(rows))
			for _, row := range rows {
				if err := w.write(ctx, row); err != nil {
					return fmt.Errorf("staging行 id=%d（%s）: %w", row.ID, row.SourceFile, err)
				}
				ids = append(ids, row.ID)
			}
			return s.staging.WithTx(tx).MarkProcessed(ctx, table, ids, now)
		})
		if err != nil {
			// ctx 可能已取消，释放仍需执行
			if relErr := s.staging.Release(context.WithoutCancel(ctx), table, opts.RunID); relErr != nil {
				log.WithError(relErr).Error("释放staging批次失败，将在领取超时后被重新领取")
			}
			log.WithError(err).WithField("batch", total.Batches+1).Error("批次回滚")
			return total, err
		}

		batch.commit()
		stats.Rows = len(rows)
		stats.Batches = 1
		total.add(stats)
		s.record(adm, stats)
		log.WithFields(logrus.Fields{
			"batch":          total.Batches,
			"rows":           len(rows),
			"groups_created": stats.GroupsCreated,
			"bids_inserted":  stats.BidsInserted,
		}).Info("批次已提交")
	}

	log.WithFields(logrus.Fields{"rows": total.Rows, "batches": total.Batches}).Info("reconcile完成")
	return total, nil
}

func (s *ReconcileService) record(adm string, stats *ReconcileResult) {
	if s.metrics == nil {
		return
	}
	s.metrics.Rows(adm, "reconciled", stats.Rows)
	s.metrics.CanonicalWrite(adm, "group", "insert", stats.GroupsCreated)
	s.metrics.CanonicalWrite(adm, "group", "update", stats.GroupsUpdated)
	for action, n := range stats.Assets {
		s.metrics.CanonicalWrite(adm, "asset", action, n)
	}
	for action, n := range stats.Vacancies {
		s.metrics.CanonicalWrite(adm, "vacancies", action, n)
	}
	s.metrics.CanonicalWrite(adm, "bid", "insert", stats.BidsInserted)
	s.metrics.CanonicalWrite(adm, "bid", "skip", stats.BidsExisting)
}

// rowWriter 批次事务内的单行写入
type rowWriter struct {
	canon  repository.CanonicalRepository
	arena  *Arena
	batch  *arenaBatch
	rules  interfaces.AdministratorRules
	stats  *ReconcileResult
	now    time.Time
	logger *logrus.Entry
}

func (w *rowWriter) write(ctx context.Context, row *model.StagingRow) error {
	code, err := w.rules.CanonicalizeCode(row.GroupCode)
	if err != nil {
		return err
	}
	info, err := parseGroupInfo(row)
	if err != nil {
		return err
	}
	group, err := w.resolveGroup(ctx, code, info)
	if err != nil {
		return err
	}

	if row.HasAsset() {
		if err := w.writeAsset(ctx, group, row); err != nil {
			return err
		}
	}
	if row.HasVacancies() {
		if err := w.writeVacancies(ctx, group, row); err != nil {
			return err
		}
	}
	if row.HasBids() {
		if err := w.writeBids(ctx, group, row); err != nil {
			return err
		}
	}
	return nil
}

type groupInfo struct {
	deadline    int
	hasDeadline bool
	start       *time.Time
	closing     *time.Time
}

func parseGroupInfo(row *model.StagingRow) (groupInfo, error) {
	var info groupInfo
	if row.DeadlineMonths != "" {
		n, err := strconv.Atoi(row.DeadlineMonths)
		if err != nil {
			return info, &etlerr.NumberFormatError{Column: "deadline_months", Value: row.DeadlineMonths}
		}
		info.deadline, info.hasDeadline = n, true
	}
	var err error
	if info.start, err = optionalDate(row.StartDate, "start_date"); err != nil {
		return info, err
	}
	if info.closing, err = optionalDate(row.ClosingDate, "closing_date"); err != nil {
		return info, err
	}
	return info, nil
}

func optionalDate(raw, column string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := brformat.ParseStagingDate(raw)
	if err != nil {
		return nil, etlerr.WithColumn(err, column)
	}
	return &t, nil
}

func parseDecimal(raw, column string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &etlerr.NumberFormatError{Column: column, Value: raw}
	}
	return d, nil
}

// resolveGroup 按 (administradora, code) 查找grupo，不存在则创建；已有grupo的prazo/日期有变化时更新
func (w *rowWriter) resolveGroup(ctx context.Context, code string, info groupInfo) (*model.Group, error) {
	g := w.batch.group(code)
	if g == nil {
		g = &model.Group{
			Code:            code,
			AdministratorID: w.arena.Administrator.ID,
			DeadlineMonths:  info.deadline,
			StartDate:       info.start,
			ClosingDate:     info.closing,
		}
		if err := w.canon.CreateGroup(ctx, g); err != nil {
			return nil, err
		}
		w.batch.groups[code] = g
		w.batch.touched[g.ID] = struct{}{}
		w.stats.GroupsCreated++
		w.logger.WithField("group_code", code).Debug("新建grupo")
		return g, nil
	}

	updated := *g
	changed := false
	if info.hasDeadline && info.deadline != g.DeadlineMonths {
		updated.DeadlineMonths, changed = info.deadline, true
	}
	if info.start != nil && !sameDate(info.start, g.StartDate) {
		updated.StartDate, changed = info.start, true
	}
	if info.closing != nil && !sameDate(info.closing, g.ClosingDate) {
		updated.ClosingDate, changed = info.closing, true
	}
	if changed {
		if err := w.canon.UpdateGroupInfo(ctx, &updated); err != nil {
			return nil, err
		}
		w.batch.groups[code] = &updated
		w.stats.GroupsUpdated++
		g = &updated
	}
	w.batch.touched[g.ID] = struct{}{}
	return g, nil
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Format(brformat.StagingDateLayout) == b.Format(brformat.StagingDateLayout)
}

func (w *rowWriter) writeAsset(ctx context.Context, g *model.Group, row *model.StagingRow) error {
	value := decimal.Zero
	if row.AssetValue != "" {
		v, err := parseDecimal(row.AssetValue, "asset_value")
		if err != nil {
			return err
		}
		value = v
	}
	incoming := &model.Asset{
		GroupID:     g.ID,
		Description: row.AssetDescription,
		AdmCode:     row.AssetAdmCode,
		Value:       value,
		InfoDate:    row.DataInfo,
	}
	if row.AssetType != "" {
		typeID, err := w.arena.AssetTypeID(row.AssetType)
		if err != nil {
			return err
		}
		incoming.TypeID = &typeID
	}
	action, err := w.canon.SupersedeAsset(ctx, w.rules.AssetSupersessionPolicy(), w.batch.asset(g.ID), incoming, w.now)
	if err != nil {
		return err
	}
	if action == interfaces.SupersedeInsert || action == interfaces.SupersedeReplace {
		w.batch.assets[g.ID] = incoming
	}
	w.stats.Assets[action.String()]++
	return nil
}

func (w *rowWriter) writeVacancies(ctx context.Context, g *model.Group, row *model.StagingRow) error {
	n, err := strconv.Atoi(row.Vacancies)
	if err != nil {
		return &etlerr.NumberFormatError{Column: "vacancies", Value: row.Vacancies}
	}
	incoming := &model.GroupVacancies{GroupID: g.ID, Vacancies: n, InfoDate: row.DataInfo}
	action, err := w.canon.SupersedeVacancies(ctx, w.rules.VacancySupersessionPolicy(), w.batch.vacancy(g.ID), incoming, w.now)
	if err != nil {
		return err
	}
	if action == interfaces.SupersedeInsert || action == interfaces.SupersedeReplace {
		w.batch.vacancies[g.ID] = incoming
	}
	w.stats.Vacancies[action.String()]++
	return nil
}

// writeBids 一行最多三条lance（minimo/medio/maximo），只追加
func (w *rowWriter) writeBids(ctx context.Context, g *model.Group, row *model.StagingRow) error {
	assembly, err := brformat.ParseStagingDate(row.AssemblyDate)
	if err != nil {
		return etlerr.WithColumn(err, "assembly_date")
	}
	bidType := row.BidType
	if bidType == "" {
		bidType = model.BidTypeFree
	}
	typeID, err := w.arena.BidTypeID(bidType)
	if err != nil {
		return err
	}

	observed := []struct {
		raw, column, valueType string
	}{
		{row.BidMin, "bid_min", model.BidValueMin},
		{row.BidAvg, "bid_avg", model.BidValueAvg},
		{row.BidMax, "bid_max", model.BidValueMax},
	}
	for _, o := range observed {
		if o.raw == "" {
			continue
		}
		value, err := parseDecimal(o.raw, o.column)
		if err != nil {
			return err
		}
		valueTypeID, err := w.arena.BidValueTypeID(o.valueType)
		if err != nil {
			return err
		}
		inserted, err := w.canon.InsertBid(ctx, &model.Bid{
			GroupID:        g.ID,
			Value:          value,
			AssemblyDate:   assembly,
			InfoDate:       row.DataInfo,
			BidTypeID:      typeID,
			BidValueTypeID: valueTypeID,
		})
		if err != nil {
			return err
		}
		if inserted {
			w.stats.BidsInserted++
		} else {
			w.stats.BidsExisting++
		}
	}
	return nil
}
