package service

import (
	"context"
	"time"

	"ConsorcioSync/internal/interfaces"
	"ConsorcioSync/internal/metrics"
	"ConsorcioSync/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultLookbackMonths = 6

// BidCalcOptions MaxAssemblies 为0时使用administradora策略自身的截断值
type BidCalcOptions struct {
	Now            time.Time
	LookbackMonths int
	MinAssemblies  int
	MaxAssemblies  int
}

// BidCalcResult 每个grupo的计算结果统计
type BidCalcResult struct {
	Groups    int `json:"groups"`
	Computed  int `json:"computed"`
	Reset     int `json:"reset"`
	Unchanged int `json:"unchanged"`
}

// BidCalcService chosen bid 计算：按回看窗口内的lance为每个grupo计算并写回
type BidCalcService struct {
	canon   repository.CanonicalRepository
	metrics *metrics.Collector
	logger  *logrus.Logger
}

func NewBidCalcService(db *gorm.DB, collector *metrics.Collector, logger *logrus.Logger) *BidCalcService {
	return &BidCalcService{canon: repository.NewCanonicalRepository(db), metrics: collector, logger: logger}
}

// Run 遍历arena中的grupo；assembleia不足时清空已有的chosen字段
func (s *BidCalcService) Run(ctx context.Context, arena *Arena, rules interfaces.AdministratorRules, opts BidCalcOptions) (*BidCalcResult, error) {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.LookbackMonths <= 0 {
		opts.LookbackMonths = defaultLookbackMonths
	}
	cutoff := opts.Now.AddDate(0, -opts.LookbackMonths, 0)
	selector := rules.BidSelectionStrategy()
	adm := rules.Code()
	result := &BidCalcResult{}

	for _, g := range arena.SortedGroups() {
		bids, err := s.canon.ListBidsSince(ctx, g.ID, cutoff)
		if err != nil {
			return result, err
		}
		obs := make([]interfaces.BidObservation, 0, len(bids))
		for _, b := range bids {
			obs = append(obs, interfaces.BidObservation{AssemblyDate: b.AssemblyDate, Value: b.Value.InexactFloat64()})
		}
		sel := selector.Select(interfaces.BidSelectionInput{
			GroupCode:      g.Code,
			DeadlineMonths: g.DeadlineMonths,
			ClosingDate:    g.ClosingDate,
			Bids:           obs,
			Now:            opts.Now,
			MinAssemblies:  opts.MinAssemblies,
			MaxAssemblies:  opts.MaxAssemblies,
		})
		result.Groups++

		outcome := "computed"
		switch {
		case sel.Computed:
			if err := s.canon.SaveBidSelection(ctx, g.ID, repository.BidSelectionUpdate{
				ChosenBid:           sel.ChosenBid,
				MaxBidOccurrencePct: sel.MaxBidOccurrencePct,
				EmbeddedBidPct:      sel.EmbeddedBidPct,
				CalculatedAt:        opts.Now,
			}); err != nil {
				return result, err
			}
			chosen, pct, calc := sel.ChosenBid, sel.MaxBidOccurrencePct, opts.Now
			g.ChosenBid, g.MaxBidOccurrencePct, g.BidCalculationDate, g.EmbeddedBidPct = &chosen, &pct, &calc, sel.EmbeddedBidPct
			result.Computed++
		case g.ChosenBid != nil || g.MaxBidOccurrencePct != nil || g.EmbeddedBidPct != nil:
			if err := s.canon.ClearBidSelection(ctx, g.ID); err != nil {
				return result, err
			}
			g.ChosenBid, g.MaxBidOccurrencePct, g.BidCalculationDate, g.EmbeddedBidPct = nil, nil, nil, nil
			outcome = "reset"
			result.Reset++
		default:
			outcome = "unchanged"
			result.Unchanged++
		}
		if s.metrics != nil {
			s.metrics.BidSelection(adm, outcome)
		}
		s.logger.WithFields(logrus.Fields{
			"administrator": adm,
			"group_code":    g.Code,
			"assemblies":    sel.Assemblies,
			"outcome":       outcome,
			"chosen_bid":    sel.ChosenBid,
		}).Debug("chosen bid")
	}

	s.logger.WithFields(logrus.Fields{
		"administrator": adm,
		"strategy":      selector.Name(),
		"groups":        result.Groups,
		"computed":      result.Computed,
		"reset":         result.Reset,
	}).Info("chosen bid计算完成")
	return result, nil
}
