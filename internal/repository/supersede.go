package repository

import (
	"context"
	"fmt"
	"time"

	"ConsorcioSync/internal/etlerr"
	"ConsorcioSync/internal/interfaces"
	"ConsorcioSync/internal/model"

	"gorm.io/gorm"
)

// Versioned 带 valid_from/valid_to 的有效期实体
type Versioned interface {
	AsVersion() model.Version
	Owner() (column string, id uint64)
	SetValidity(from time.Time, to *time.Time)
}

// applySupersession 按策略处理新版本：
// Insert/Replace 插入为当前版本（Replace 先关闭旧版本，valid_to=now）；
// InsertHistorical 插入已关闭的历史版本，valid_to 取紧随其后的版本的 valid_from；
// 同一 info_date 的历史版本已存在时跳过，重放旧文件不会产生重复行。
func applySupersession[T any, PT interface {
	*T
	Versioned
}](ctx context.Context, db *gorm.DB, policy interfaces.SupersessionPolicy, current, incoming PT, now time.Time) (interfaces.SupersessionAction, error) {
	var cur *model.Version
	if current != nil {
		v := current.AsVersion()
		cur = &v
	}
	inc := incoming.AsVersion()
	action := policy.Decide(cur, inc)

	switch action {
	case interfaces.SupersedeInsert:
		incoming.SetValidity(inc.InfoDate, nil)
	case interfaces.SupersedeReplace:
		res := db.WithContext(ctx).Model(new(T)).
			Where("id = ? AND valid_to IS NULL", cur.ID).
			Update("valid_to", now)
		if res.Error != nil {
			return action, res.Error
		}
		if res.RowsAffected != 1 {
			return action, etlerr.Conflict(fmt.Errorf("当前版本 id=%d 已被其他运行关闭", cur.ID))
		}
		closedAt := now
		current.SetValidity(cur.ValidFrom, &closedAt)
		incoming.SetValidity(inc.InfoDate, nil)
	case interfaces.SupersedeInsertHistorical:
		validTo, skip, err := historicalValidTo[T](ctx, db, incoming, inc, cur.ValidFrom)
		if err != nil {
			return action, err
		}
		if skip {
			return interfaces.SupersedeSkip, nil
		}
		incoming.SetValidity(inc.InfoDate, &validTo)
	default:
		return action, nil
	}
	if err := db.WithContext(ctx).Create(incoming).Error; err != nil {
		return action, err
	}
	return action, nil
}

// historicalValidTo 查找历史版本的关闭时间：同 info_date 已有版本则 skip；
// 否则取 valid_from 晚于 incoming 的最早版本，找不到时用当前版本的 valid_from。
func historicalValidTo[T any](ctx context.Context, db *gorm.DB, incoming Versioned, inc model.Version, fallback time.Time) (time.Time, bool, error) {
	col, id := incoming.Owner()
	var existing int64
	if err := db.WithContext(ctx).Model(new(T)).
		Where(col+" = ? AND info_date = ?", id, inc.InfoDate).
		Count(&existing).Error; err != nil {
		return time.Time{}, false, err
	}
	if existing > 0 {
		return time.Time{}, true, nil
	}

	var next []time.Time
	if err := db.WithContext(ctx).Model(new(T)).
		Where(col+" = ? AND valid_from > ?", id, inc.InfoDate).
		Order("valid_from ASC").Limit(1).
		Pluck("valid_from", &next).Error; err != nil {
		return time.Time{}, false, err
	}
	if len(next) == 1 && next[0].Before(fallback) {
		return next[0], false, nil
	}
	return fallback, false, nil
}
