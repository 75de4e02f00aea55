// Package rules 实现各administradora可复用的业务规则：
// 有效期版本替换策略、chosen bid 选择策略与embutido比例规则表。
package rules

import (
	"ConsorcioSync/internal/interfaces"
	"ConsorcioSync/internal/model"
)

// SupersedeOlder 只接受更新的报告日期；同日或更旧的数据不写入
type SupersedeOlder struct{}

func (SupersedeOlder) Name() string { return "supersede_older" }

func (SupersedeOlder) Decide(current *model.Version, incoming model.Version) interfaces.SupersessionAction {
	if current == nil {
		return interfaces.SupersedeInsert
	}
	if incoming.InfoDate.After(current.InfoDate) {
		return interfaces.SupersedeReplace
	}
	return interfaces.SupersedeSkip
}

// SupersedeOnChange 在 SupersedeOlder 基础上，同日期且内容变化时视为更正并替换
type SupersedeOnChange struct{}

func (SupersedeOnChange) Name() string { return "supersede_on_change" }

func (SupersedeOnChange) Decide(current *model.Version, incoming model.Version) interfaces.SupersessionAction {
	if current == nil {
		return interfaces.SupersedeInsert
	}
	switch {
	case incoming.InfoDate.After(current.InfoDate):
		return interfaces.SupersedeReplace
	case incoming.InfoDate.Equal(current.InfoDate) && incoming.Value != current.Value:
		return interfaces.SupersedeReplace
	default:
		return interfaces.SupersedeSkip
	}
}

// BackfillHistory 在 SupersedeOlder 基础上，更旧的数据作为已关闭的历史版本补录
type BackfillHistory struct{}

func (BackfillHistory) Name() string { return "backfill_history" }

func (BackfillHistory) Decide(current *model.Version, incoming model.Version) interfaces.SupersessionAction {
	if current == nil {
		return interfaces.SupersedeInsert
	}
	switch {
	case incoming.InfoDate.After(current.InfoDate):
		return interfaces.SupersedeReplace
	case incoming.InfoDate.Before(current.InfoDate):
		return interfaces.SupersedeInsertHistorical
	default:
		return interfaces.SupersedeSkip
	}
}

// PolicyByName 按名称获取策略（配置覆盖用），未知名称返回 false
func PolicyByName(name string) (interfaces.SupersessionPolicy, bool) {
	switch name {
	case SupersedeOlder{}.Name():
		return SupersedeOlder{}, true
	case SupersedeOnChange{}.Name():
		return SupersedeOnChange{}, true
	case BackfillHistory{}.Name():
		return BackfillHistory{}, true
	}
	return nil, false
}
