package rules

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"ConsorcioSync/internal/interfaces"
	"ConsorcioSync/internal/utils/brformat"
)

// MaxBidPercentage 剩余月数占prazo的百分比；没有encerramento日期或prazo为0时返回0
func MaxBidPercentage(closingDate *time.Time, deadlineMonths int, now time.Time) float64 {
	if closingDate == nil || deadlineMonths <= 0 {
		return 0
	}
	remaining := brformat.MonthsBetween(now, *closingDate)
	return float64(remaining) / float64(deadlineMonths) * 100
}

// AssemblyAverage 单个assembleia的平均lance
type AssemblyAverage struct {
	AssemblyDate time.Time
	Average      float64
}

// AveragesPerAssembly 按assembleia日期聚合非零lance并求平均，结果按日期升序
func AveragesPerAssembly(bids []interfaces.BidObservation) []AssemblyAverage {
	type acc struct {
		sum   float64
		count int
	}
	byDate := make(map[time.Time]*acc)
	for _, b := range bids {
		if b.Value == 0 {
			continue
		}
		d := b.AssemblyDate.UTC()
		a, ok := byDate[d]
		if !ok {
			a = &acc{}
			byDate[d] = a
		}
		a.sum += b.Value
		a.count++
	}
	out := make([]AssemblyAverage, 0, len(byDate))
	for d, a := range byDate {
		out = append(out, AssemblyAverage{AssemblyDate: d, Average: a.sum / float64(a.count)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssemblyDate.Before(out[j].AssemblyDate) })
	return out
}

// SelectFromAverages 根据每个assembleia的平均值计算chosen bid与达标占比。
// occurrence 以全部assembleia为分母；truncateTo>0 且数量超出时，只取日期最早的 truncateTo 个求最大值。
func SelectFromAverages(avgs []AssemblyAverage, maxBidPct float64, minAssemblies, truncateTo int) interfaces.BidSelection {
	sel := interfaces.BidSelection{Assemblies: len(avgs), MaxBidPercentage: maxBidPct}
	if len(avgs) == 0 || len(avgs) < minAssemblies {
		return sel
	}
	reached := 0
	for _, a := range avgs {
		if a.Average >= maxBidPct {
			reached++
		}
	}
	considered := avgs
	if truncateTo > 0 && len(considered) > truncateTo {
		considered = considered[:truncateTo]
	}
	chosen := considered[0].Average
	for _, a := range considered[1:] {
		chosen = math.Max(chosen, a.Average)
	}
	sel.Computed = true
	sel.ChosenBid = round(chosen, 4)
	sel.MaxBidOccurrencePct = round(float64(reached)/float64(len(avgs))*100, 2)
	return sel
}

// AveragePerAssembly 默认策略：每个assembleia取平均，再取最大值
type AveragePerAssembly struct {
	TruncateTo int // 0 不截断
}

func (s AveragePerAssembly) Name() string { return "average_per_assembly" }

func (s AveragePerAssembly) Select(in interfaces.BidSelectionInput) interfaces.BidSelection {
	truncate := s.TruncateTo
	if in.MaxAssemblies > 0 {
		truncate = in.MaxAssemblies
	}
	maxPct := MaxBidPercentage(in.ClosingDate, in.DeadlineMonths, in.Now)
	return SelectFromAverages(AveragesPerAssembly(in.Bids), maxPct, in.MinAssemblies, truncate)
}

// EmbeddedBidRule embutido比例规则。字段为零值表示不限制该条件：
// CodePrefix 匹配grupo代码前缀；SuffixMin/SuffixMax 约束前缀之后的数值部分；
// DeadlineMonths 要求prazo相等。
type EmbeddedBidRule struct {
	CodePrefix     string
	SuffixMin      int
	SuffixMax      int
	DeadlineMonths int
	Pct            float64
}

// Match grupo是否满足该规则
func (r EmbeddedBidRule) Match(code string, deadlineMonths int) bool {
	if !strings.HasPrefix(code, r.CodePrefix) {
		return false
	}
	if r.DeadlineMonths > 0 && r.DeadlineMonths != deadlineMonths {
		return false
	}
	if r.SuffixMin == 0 && r.SuffixMax == 0 {
		return true
	}
	suffix, err := strconv.Atoi(code[len(r.CodePrefix):])
	if err != nil {
		return false
	}
	if r.SuffixMin > 0 && suffix < r.SuffixMin {
		return false
	}
	if r.SuffixMax > 0 && suffix > r.SuffixMax {
		return false
	}
	return true
}

// EmbeddedBidPct 按顺序匹配规则表，第一条命中的规则生效；无命中返回 nil
func EmbeddedBidPct(table []EmbeddedBidRule, code string, deadlineMonths int) *float64 {
	for _, r := range table {
		if r.Match(code, deadlineMonths) {
			pct := r.Pct
			return &pct
		}
	}
	return nil
}

// HighestBid 直接取回看窗口内最高的单个非零lance，并按规则表给出embutido比例
type HighestBid struct {
	EmbeddedRules []EmbeddedBidRule
}

func (s HighestBid) Name() string { return "highest_bid" }

func (s HighestBid) Select(in interfaces.BidSelectionInput) interfaces.BidSelection {
	maxPct := MaxBidPercentage(in.ClosingDate, in.DeadlineMonths, in.Now)
	// 每个assembleia取最高值，用于计数与达标占比
	highest := make(map[time.Time]float64)
	for _, b := range in.Bids {
		if b.Value == 0 {
			continue
		}
		d := b.AssemblyDate.UTC()
		if b.Value > highest[d] {
			highest[d] = b.Value
		}
	}
	sel := interfaces.BidSelection{Assemblies: len(highest), MaxBidPercentage: maxPct}
	if len(highest) == 0 || len(highest) < in.MinAssemblies {
		return sel
	}
	chosen, reached := 0.0, 0
	for _, v := range highest {
		chosen = math.Max(chosen, v)
		if v >= maxPct {
			reached++
		}
	}
	sel.Computed = true
	sel.ChosenBid = round(chosen, 4)
	sel.MaxBidOccurrencePct = round(float64(reached)/float64(len(highest))*100, 2)
	sel.EmbeddedBidPct = EmbeddedBidPct(s.EmbeddedRules, in.GroupCode, in.DeadlineMonths)
	return sel
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
