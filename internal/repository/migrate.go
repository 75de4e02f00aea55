package repository

import (
	"context"
	"fmt"

	"ConsorcioSync/internal/model"

	"gorm.io/gorm"
)

// AutoMigrate 迁移canonical表、引用表与作业表，并写入固定的出价类型与bem类型
func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(model.Tables()...); err != nil {
		return fmt.Errorf("数据库表结构迁移失败: %w", err)
	}
	if err := NewReferenceRepository(db).SeedReferenceTypes(ctx); err != nil {
		return fmt.Errorf("写入引用类型失败: %w", err)
	}
	return nil
}
