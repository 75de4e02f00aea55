package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"ConsorcioSync/internal/etlerr"
	"ConsorcioSync/internal/interfaces"
	"ConsorcioSync/internal/model"

	"gorm.io/gorm"
)

// QuotaRepository cota与持有人；快照历史沿用bem的有效期替换规则
type QuotaRepository interface {
	CreateQuota(ctx context.Context, q *model.Quota) error
	GetQuota(ctx context.Context, id uint64) (*model.Quota, error)
	SaveHistoryDetail(ctx context.Context, policy interfaces.SupersessionPolicy, detail *model.QuotaHistoryDetail, now time.Time) (interfaces.SupersessionAction, error)
	CurrentHistoryDetail(ctx context.Context, quotaID uint64) (*model.QuotaHistoryDetail, error)
}

type quotaRepository struct {
	db *gorm.DB
}

func NewQuotaRepository(db *gorm.DB) QuotaRepository {
	return &quotaRepository{db: db}
}

// CreateQuota 校验持有人比例后与持有人一起写入
func (r *quotaRepository) CreateQuota(ctx context.Context, q *model.Quota) error {
	if err := model.ValidateOwnership(q.Owners); err != nil {
		return err
	}
	return etlerr.Classify("创建cota", r.db.WithContext(ctx).Create(q).Error)
}

func (r *quotaRepository) GetQuota(ctx context.Context, id uint64) (*model.Quota, error) {
	var q model.Quota
	if err := r.db.WithContext(ctx).Preload("Owners").First(&q, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, etlerr.NotFound("cota", strconv.FormatUint(id, 10))
		}
		return nil, etlerr.Classify("查询cota", err)
	}
	return &q, nil
}

func (r *quotaRepository) CurrentHistoryDetail(ctx context.Context, quotaID uint64) (*model.QuotaHistoryDetail, error) {
	var d model.QuotaHistoryDetail
	err := r.db.WithContext(ctx).Where("quota_id = ? AND valid_to IS NULL", quotaID).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, etlerr.Classify("查询cota快照", err)
	}
	return &d, nil
}

// SaveHistoryDetail 在一个事务中读取当前快照并按策略写入
func (r *quotaRepository) SaveHistoryDetail(ctx context.Context, policy interfaces.SupersessionPolicy, detail *model.QuotaHistoryDetail, now time.Time) (interfaces.SupersessionAction, error) {
	var action interfaces.SupersessionAction
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := (&quotaRepository{db: tx}).CurrentHistoryDetail(ctx, detail.QuotaID)
		if err != nil {
			return err
		}
		action, err = applySupersession[model.QuotaHistoryDetail](ctx, tx, policy, current, detail, now)
		return err
	})
	return action, etlerr.Classify("写入cota快照", err)
}
