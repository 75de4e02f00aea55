package repository

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"ConsorcioSync/internal/etlerr"
	"ConsorcioSync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultClaimTTL 未配置时的领取超时
const DefaultClaimTTL = 30 * time.Minute

var tableName = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// StagingRepository pre-staging表读写；表名由administradora布局决定
type StagingRepository interface {
	WithTx(tx *gorm.DB) StagingRepository
	EnsureTable(ctx context.Context, table string) error
	Insert(ctx context.Context, table string, rows []*model.StagingRow, batchSize int) error
	Claim(ctx context.Context, table, owner string, limit int, ttl time.Duration, now time.Time) ([]*model.StagingRow, error)
	Release(ctx context.Context, table, owner string) error
	MarkProcessed(ctx context.Context, table string, ids []uint64, now time.Time) error
	CountPending(ctx context.Context, table string) (int64, error)
}

type stagingRepository struct {
	db *gorm.DB
}

func NewStagingRepository(db *gorm.DB) StagingRepository {
	return &stagingRepository{db: db}
}

func (r *stagingRepository) WithTx(tx *gorm.DB) StagingRepository {
	return &stagingRepository{db: tx}
}

func checkTable(table string) error {
	if !tableName.MatchString(table) {
		return fmt.Errorf("无效的staging表名: %q", table)
	}
	return nil
}

// EnsureTable 创建/迁移staging表；索引名带表名前缀，避免多张表共用结构时重名
func (r *stagingRepository) EnsureTable(ctx context.Context, table string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	db := r.db.WithContext(ctx)
	if err := db.Table(table).AutoMigrate(&model.StagingRow{}); err != nil {
		return fmt.Errorf("迁移staging表%s失败: %w", table, err)
	}
	stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_pending ON %s (is_processed, claimed_by)", table, table)
	if err := db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("创建staging索引失败: %w", err)
	}
	return nil
}

// Insert 单个事务内分批写入，任何一批失败整体回滚
func (r *stagingRepository) Insert(ctx context.Context, table string, rows []*model.StagingRow, batchSize int) error {
	if err := checkTable(table); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Table(table).CreateInBatches(rows, batchSize).Error
	})
	return etlerr.Classify("写入staging", err)
}

// Claim 领取最多 limit 条未处理的行：claimed_by=owner, claimed_at=now。
// 未被领取或领取已超时（claimed_at < now-ttl）的行可被领取；PostgreSQL 下候选行加 FOR UPDATE SKIP LOCKED。
func (r *stagingRepository) Claim(ctx context.Context, table, owner string, limit int, ttl time.Duration, now time.Time) ([]*model.StagingRow, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultClaimTTL
	}
	staleBefore := now.Add(-ttl)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint64
		q := tx.Table(table).
			Where("is_processed = ?", false).
			Where("(claimed_by IS NULL OR claimed_at < ?)", staleBefore).
			Order("id").
			Limit(limit)
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		if err := q.Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Table(table).
			Where("id IN ?", ids).
			Where("is_processed = ?", false).
			Where("(claimed_by IS NULL OR claimed_at < ?)", staleBefore).
			Updates(map[string]any{"claimed_by": owner, "claimed_at": now}).Error
	})
	if err != nil {
		return nil, etlerr.Classify("领取staging批次", err)
	}

	var rows []*model.StagingRow
	if err := r.db.WithContext(ctx).Table(table).
		Where("claimed_by = ? AND is_processed = ?", owner, false).
		Order("id").
		Find(&rows).Error; err != nil {
		return nil, etlerr.Classify("读取已领取批次", err)
	}
	return rows, nil
}

// Release 释放 owner 持有但未处理完的行（批次回滚后调用）
func (r *stagingRepository) Release(ctx context.Context, table, owner string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).Table(table).
		Where("claimed_by = ? AND is_processed = ?", owner, false).
		Updates(map[string]any{"claimed_by": nil, "claimed_at": nil}).Error
	return etlerr.Classify("释放staging批次", err)
}

// MarkProcessed 标记已处理；应在与canonical写入相同的事务中调用
func (r *stagingRepository) MarkProcessed(ctx context.Context, table string, ids []uint64, now time.Time) error {
	if err := checkTable(table); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Table(table).
		Where("id IN ? AND is_processed = ?", ids, false).
		Updates(map[string]any{"is_processed": true, "processed_at": now})
	if res.Error != nil {
		return etlerr.Classify("标记staging已处理", res.Error)
	}
	if res.RowsAffected != int64(len(ids)) {
		return etlerr.Conflict(fmt.Errorf("标记已处理时%d行中只有%d行仍未处理", len(ids), res.RowsAffected))
	}
	return nil
}

func (r *stagingRepository) CountPending(ctx context.Context, table string) (int64, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	var n int64
	if err := r.db.WithContext(ctx).Table(table).Where("is_processed = ?", false).Count(&n).Error; err != nil {
		return 0, etlerr.Classify("统计staging", err)
	}
	return n, nil
}
