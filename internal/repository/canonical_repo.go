package repository

import (
	"context"
	"time"

	"ConsorcioSync/internal/etlerr"
	"ConsorcioSync/internal/interfaces"
	"ConsorcioSync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CanonicalRepository grupo/bem/lance/空缺数的写入
type CanonicalRepository interface {
	WithTx(tx *gorm.DB) CanonicalRepository
	CreateGroup(ctx context.Context, g *model.Group) error
	UpdateGroupInfo(ctx context.Context, g *model.Group) error
	SaveBidSelection(ctx context.Context, groupID uint64, sel BidSelectionUpdate) error
	ClearBidSelection(ctx context.Context, groupID uint64) error
	SupersedeAsset(ctx context.Context, policy interfaces.SupersessionPolicy, current, incoming *model.Asset, now time.Time) (interfaces.SupersessionAction, error)
	SupersedeVacancies(ctx context.Context, policy interfaces.SupersessionPolicy, current, incoming *model.GroupVacancies, now time.Time) (interfaces.SupersessionAction, error)
	InsertBid(ctx context.Context, b *model.Bid) (bool, error)
	ListBidsSince(ctx context.Context, groupID uint64, cutoff time.Time) ([]*model.Bid, error)
}

// BidSelectionUpdate 写回grupo的chosen bid字段
type BidSelectionUpdate struct {
	ChosenBid           float64
	MaxBidOccurrencePct float64
	EmbeddedBidPct      *float64
	CalculatedAt        time.Time
}

type canonicalRepository struct {
	db *gorm.DB
}

func NewCanonicalRepository(db *gorm.DB) CanonicalRepository {
	return &canonicalRepository{db: db}
}

func (r *canonicalRepository) WithTx(tx *gorm.DB) CanonicalRepository {
	return &canonicalRepository{db: tx}
}

// CreateGroup (administrator_id, code) 冲突时返回 Conflict
func (r *canonicalRepository) CreateGroup(ctx context.Context, g *model.Group) error {
	return etlerr.Classify("创建grupo", r.db.WithContext(ctx).Create(g).Error)
}

// UpdateGroupInfo 更新prazo与日期（来自更新的合作方数据）
func (r *canonicalRepository) UpdateGroupInfo(ctx context.Context, g *model.Group) error {
	err := r.db.WithContext(ctx).Model(&model.Group{}).
		Where("id = ?", g.ID).
		Updates(map[string]any{
			"deadline_months": g.DeadlineMonths,
			"start_date":      g.StartDate,
			"closing_date":    g.ClosingDate,
			"updated_at":      time.Now(),
		}).Error
	return etlerr.Classify("更新grupo", err)
}

func (r *canonicalRepository) SaveBidSelection(ctx context.Context, groupID uint64, sel BidSelectionUpdate) error {
	err := r.db.WithContext(ctx).Model(&model.Group{}).
		Where("id = ?", groupID).
		Updates(map[string]any{
			"chosen_bid":             sel.ChosenBid,
			"max_bid_occurrence_pct": sel.MaxBidOccurrencePct,
			"embedded_bid_pct":       sel.EmbeddedBidPct,
			"bid_calculation_date":   sel.CalculatedAt,
		}).Error
	return etlerr.Classify("保存chosen bid", err)
}

// ClearBidSelection assembleia数量不足时清空，避免保留过期的chosen bid
func (r *canonicalRepository) ClearBidSelection(ctx context.Context, groupID uint64) error {
	err := r.db.WithContext(ctx).Model(&model.Group{}).
		Where("id = ?", groupID).
		Updates(map[string]any{
			"chosen_bid":             nil,
			"max_bid_occurrence_pct": nil,
			"embedded_bid_pct":       nil,
			"bid_calculation_date":   nil,
		}).Error
	return etlerr.Classify("清空chosen bid", err)
}

func (r *canonicalRepository) SupersedeAsset(ctx context.Context, policy interfaces.SupersessionPolicy, current, incoming *model.Asset, now time.Time) (interfaces.SupersessionAction, error) {
	action, err := applySupersession[model.Asset](ctx, r.db, policy, current, incoming, now)
	return action, etlerr.Classify("写入bem", err)
}

func (r *canonicalRepository) SupersedeVacancies(ctx context.Context, policy interfaces.SupersessionPolicy, current, incoming *model.GroupVacancies, now time.Time) (interfaces.SupersessionAction, error) {
	action, err := applySupersession[model.GroupVacancies](ctx, r.db, policy, current, incoming, now)
	return action, etlerr.Classify("写入空缺数", err)
}

// InsertBid 只追加：相同观测值（唯一索引 uq_bid_observation）已存在时不写入也不修改，返回 false
func (r *canonicalRepository) InsertBid(ctx context.Context, b *model.Bid) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(b)
	if res.Error != nil {
		return false, etlerr.Classify("写入lance", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListBidsSince assembly_date 晚于 cutoff 的非零lance
func (r *canonicalRepository) ListBidsSince(ctx context.Context, groupID uint64, cutoff time.Time) ([]*model.Bid, error) {
	var out []*model.Bid
	if err := r.db.WithContext(ctx).
		Where("group_id = ? AND assembly_date > ? AND value <> 0", groupID, cutoff).
		Order("assembly_date, id").
		Find(&out).Error; err != nil {
		return nil, etlerr.Classify("查询lance", err)
	}
	return out, nil
}
