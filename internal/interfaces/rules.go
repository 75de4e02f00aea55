package interfaces

import (
	"time"

	"ConsorcioSync/internal/model"
)

// SupersessionAction 有效期版本（Asset/GroupVacancies/QuotaHistoryDetail）的处理动作
type SupersessionAction int

const (
	// SupersedeSkip 保持当前版本，不写入
	SupersedeSkip SupersessionAction = iota
	// SupersedeInsert 没有当前版本，直接插入
	SupersedeInsert
	// SupersedeReplace 关闭当前版本（valid_to=now）并插入新版本
	SupersedeReplace
	// SupersedeInsertHistorical 插入已关闭的历史版本，当前版本不变
	SupersedeInsertHistorical
)

func (a SupersessionAction) String() string {
	switch a {
	case SupersedeInsert:
		return "insert"
	case SupersedeReplace:
		return "replace"
	case SupersedeInsertHistorical:
		return "insert_historical"
	default:
		return "skip"
	}
}

// SupersessionPolicy 决定新到版本与当前版本的关系
type SupersessionPolicy interface {
	Name() string
	// Decide current 为 nil 表示该grupo尚无当前版本
	Decide(current *model.Version, incoming model.Version) SupersessionAction
}

// BidObservation 单条lance观测值（百分比）
type BidObservation struct {
	AssemblyDate time.Time
	Value        float64
}

// BidSelectionInput chosen bid 计算输入；Bids 已按回看窗口过滤
type BidSelectionInput struct {
	GroupCode      string
	DeadlineMonths int
	ClosingDate    *time.Time
	Bids           []BidObservation
	Now            time.Time
	MinAssemblies  int
	MaxAssemblies  int // 0 使用策略自身的截断值
}

// BidSelection 计算结果；Computed=false 时grupo的chosen字段需要清空
type BidSelection struct {
	Computed            bool
	Assemblies          int
	ChosenBid           float64
	MaxBidOccurrencePct float64
	MaxBidPercentage    float64
	EmbeddedBidPct      *float64
}

// BidSelector chosen bid 选择策略
type BidSelector interface {
	Name() string
	Select(in BidSelectionInput) BidSelection
}

// AdministratorRules administradora特有的业务规则
type AdministratorRules interface {
	Code() string
	CanonicalizeCode(raw string) (string, error)
	AssetSupersessionPolicy() SupersessionPolicy
	VacancySupersessionPolicy() SupersessionPolicy
	BidSelectionStrategy() BidSelector
}
