package repository

import (
	"context"
	"errors"

	"ConsorcioSync/internal/etlerr"
	"ConsorcioSync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReferenceRepository 引用数据与每次运行开始时加载的grupo快照
type ReferenceRepository interface {
	GetAdministratorByCode(ctx context.Context, code string) (*model.Administrator, error)
	EnsureAdministrator(ctx context.Context, code, description string) error
	SeedReferenceTypes(ctx context.Context) error
	ListBidTypes(ctx context.Context) ([]*model.BidType, error)
	ListBidValueTypes(ctx context.Context) ([]*model.BidValueType, error)
	ListAssetTypes(ctx context.Context) ([]*model.AssetType, error)
	ListGroups(ctx context.Context, administratorID uint64) ([]*model.Group, error)
	ListCurrentAssets(ctx context.Context, administratorID uint64) ([]*model.Asset, error)
	ListCurrentVacancies(ctx context.Context, administratorID uint64) ([]*model.GroupVacancies, error)
}

type referenceRepository struct {
	db *gorm.DB
}

func NewReferenceRepository(db *gorm.DB) ReferenceRepository {
	return &referenceRepository{db: db}
}

// GetAdministratorByCode 不存在时返回 NotFound（作业不自动创建administradora）
func (r *referenceRepository) GetAdministratorByCode(ctx context.Context, code string) (*model.Administrator, error) {
	var adm model.Administrator
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&adm).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, etlerr.NotFound("administradora", code)
		}
		return nil, etlerr.Classify("查询administradora", err)
	}
	return &adm, nil
}

// EnsureAdministrator migrate 时写入administradora（已存在则不修改）
func (r *referenceRepository) EnsureAdministrator(ctx context.Context, code, description string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoNothing: true,
	}).Create(&model.Administrator{Code: code, Description: description}).Error
}

// SeedReferenceTypes 写入固定的出价类型、取值类型与bem类型（幂等）
func (r *referenceRepository) SeedReferenceTypes(ctx context.Context) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		onConflict := clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}
		for _, code := range model.BidTypeCodes {
			if err := tx.Clauses(onConflict).Create(&model.BidType{Code: code}).Error; err != nil {
				return err
			}
		}
		for _, code := range model.BidValueTypeCodes {
			if err := tx.Clauses(onConflict).Create(&model.BidValueType{Code: code}).Error; err != nil {
				return err
			}
		}
		for _, code := range model.AssetTypeCodes {
			if err := tx.Clauses(onConflict).Create(&model.AssetType{Code: code}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *referenceRepository) ListBidTypes(ctx context.Context) ([]*model.BidType, error) {
	var out []*model.BidType
	if err := r.db.WithContext(ctx).Order("id").Find(&out).Error; err != nil {
		return nil, etlerr.Classify("查询出价类型", err)
	}
	return out, nil
}

func (r *referenceRepository) ListBidValueTypes(ctx context.Context) ([]*model.BidValueType, error) {
	var out []*model.BidValueType
	if err := r.db.WithContext(ctx).Order("id").Find(&out).Error; err != nil {
		return nil, etlerr.Classify("查询出价取值类型", err)
	}
	return out, nil
}

func (r *referenceRepository) ListAssetTypes(ctx context.Context) ([]*model.AssetType, error) {
	var out []*model.AssetType
	if err := r.db.WithContext(ctx).Order("id").Find(&out).Error; err != nil {
		return nil, etlerr.Classify("查询bem类型", err)
	}
	return out, nil
}

// ListGroups administradora下未删除的grupo
func (r *referenceRepository) ListGroups(ctx context.Context, administratorID uint64) ([]*model.Group, error) {
	var out []*model.Group
	if err := r.db.WithContext(ctx).
		Where("administrator_id = ? AND deleted = ?", administratorID, false).
		Order("code").
		Find(&out).Error; err != nil {
		return nil, etlerr.Classify("查询grupo", err)
	}
	return out, nil
}

func (r *referenceRepository) groupIDs(administratorID uint64) *gorm.DB {
	return r.db.Model(&model.Group{}).Select("id").Where("administrator_id = ?", administratorID)
}

// ListCurrentAssets administradora下所有grupo的当前bem（valid_to IS NULL）
func (r *referenceRepository) ListCurrentAssets(ctx context.Context, administratorID uint64) ([]*model.Asset, error) {
	var out []*model.Asset
	if err := r.db.WithContext(ctx).
		Where("group_id IN (?) AND valid_to IS NULL", r.groupIDs(administratorID)).
		Find(&out).Error; err != nil {
		return nil, etlerr.Classify("查询当前bem", err)
	}
	return out, nil
}

// ListCurrentVacancies administradora下所有grupo的当前空缺数
func (r *referenceRepository) ListCurrentVacancies(ctx context.Context, administratorID uint64) ([]*model.GroupVacancies, error) {
	var out []*model.GroupVacancies
	if err := r.db.WithContext(ctx).
		Where("group_id IN (?) AND valid_to IS NULL", r.groupIDs(administratorID)).
		Find(&out).Error; err != nil {
		return nil, etlerr.Classify("查询当前空缺数", err)
	}
	return out, nil
}
