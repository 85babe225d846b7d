package s2_signals

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/momentum/internal/contracts"
	"github.com/wonny/momentum/internal/strategyconfig"
	"github.com/wonny/momentum/pkg/logger"
)

// ScorerConfig parameterises one momentum horizon
type ScorerConfig struct {
	Horizon int // k, formation months
	Skip    int // s, months between formation end and rebalance
	Bounds  *strategyconfig.ScoreBounds
	Workers int // per-date fan-out, <=1 runs sequentially
}

// MomentumScorer computes M(i,t) = P(i,t-s) / P(i,t-s-k) - 1
// ⭐ SSOT: 모멘텀 시그널 계산은 여기서만
//
// t, t-s and t-s-k are panel date positions. Prices at or after t are never read.
type MomentumScorer struct {
	cfg    ScorerConfig
	logger *logger.Logger
}

// NewMomentumScorer creates a new momentum scorer
func NewMomentumScorer(cfg ScorerConfig, log *logger.Logger) (*MomentumScorer, error) {
	if cfg.Horizon < 1 {
		return nil, fmt.Errorf("momentum horizon must be >= 1, got %d", cfg.Horizon)
	}
	if cfg.Skip < 0 {
		return nil, fmt.Errorf("momentum skip must be >= 0, got %d", cfg.Skip)
	}
	if cfg.Bounds != nil && cfg.Bounds.Min >= cfg.Bounds.Max {
		return nil, fmt.Errorf("momentum bounds: min %v >= max %v", cfg.Bounds.Min, cfg.Bounds.Max)
	}
	return &MomentumScorer{cfg: cfg, logger: log}, nil
}

// Horizon returns k
func (s *MomentumScorer) Horizon() int {
	return s.cfg.Horizon
}

// FirstScorable returns the first date position with enough history
func (s *MomentumScorer) FirstScorable() int {
	return s.cfg.Skip + s.cfg.Horizon
}

// ScoreAt scores every panel instrument at date position t.
// Instruments are returned in panel order (sorted by ID).
func (s *MomentumScorer) ScoreAt(panel *contracts.PricePanel, t int) (*contracts.ScoreSet, error) {
	if t < 0 || t >= panel.NumDates() {
		return nil, fmt.Errorf("date position %d out of range [0, %d)", t, panel.NumDates())
	}

	date := panel.Date(t)
	ids := panel.Instruments()
	set := &contracts.ScoreSet{
		Date:    date,
		Horizon: s.cfg.Horizon,
		Scores:  make([]contracts.Score, len(ids)),
	}

	invalid := 0
	for i, id := range ids {
		sc := s.score(panel, id, t)
		if sc.Status == contracts.ScoreInvalidPrice {
			invalid++
			s.logger.WithFields(map[string]interface{}{
				"instrument": id,
				"date":       date.Format("2006-01-02"),
				"horizon":    s.cfg.Horizon,
			}).WithError(sc.Err).Warn("Invalid price in momentum window")
		}
		set.Scores[i] = sc
	}

	counts := set.CountByStatus()
	s.logger.WithFields(map[string]interface{}{
		"date":          date.Format("2006-01-02"),
		"horizon":       s.cfg.Horizon,
		"defined":       counts[contracts.ScoreDefined],
		"data_gap":      counts[contracts.ScoreDataGap],
		"invalid_price": invalid,
	}).Debug("Scored momentum")

	return set, nil
}

// score computes one cell
func (s *MomentumScorer) score(panel *contracts.PricePanel, id string, t int) contracts.Score {
	date := panel.Date(t)
	sc := contracts.Score{Instrument: id, Date: date, Horizon: s.cfg.Horizon}

	end := t - s.cfg.Skip        // most recent formation price
	start := end - s.cfg.Horizon // k months earlier

	if start < 0 {
		sc.Status = contracts.ScoreDataGap
		sc.Err = &contracts.DataGapError{Instrument: id, Date: date}
		return sc
	}

	// 두 가격 모두 존재해야 함 (갭은 0 이 아님)
	pEnd, okEnd := panel.Price(id, end)
	pStart, okStart := panel.Price(id, start)
	switch {
	case !okStart:
		sc.Status = contracts.ScoreDataGap
		sc.Err = &contracts.DataGapError{Instrument: id, Date: date, Missing: panel.Date(start)}
		return sc
	case !okEnd:
		sc.Status = contracts.ScoreDataGap
		sc.Err = &contracts.DataGapError{Instrument: id, Date: date, Missing: panel.Date(end)}
		return sc
	}

	if !contracts.ValidPrice(pStart) {
		sc.Status = contracts.ScoreInvalidPrice
		sc.Err = &contracts.InvalidPriceError{Instrument: id, Date: panel.Date(start), Price: pStart}
		return sc
	}
	if !contracts.ValidPrice(pEnd) {
		sc.Status = contracts.ScoreInvalidPrice
		sc.Err = &contracts.InvalidPriceError{Instrument: id, Date: panel.Date(end), Price: pEnd}
		return sc
	}

	sc.Value = pEnd/pStart - 1.0

	if b := s.cfg.Bounds; b != nil && (sc.Value < b.Min || sc.Value > b.Max) {
		sc.Status = contracts.ScoreOutOfBounds
		sc.Err = fmt.Errorf("momentum %.4f outside [%v, %v]", sc.Value, b.Min, b.Max)
		return sc
	}

	sc.Status = contracts.ScoreDefined
	return sc
}

// ScoreAll scores every date position of the panel. Each date is independent,
// so dates fan out over Workers goroutines.
func (s *MomentumScorer) ScoreAll(ctx context.Context, panel *contracts.PricePanel) (*contracts.ScoreGrid, error) {
	grid := &contracts.ScoreGrid{
		Horizon: s.cfg.Horizon,
		Skip:    s.cfg.Skip,
		Sets:    make([]*contracts.ScoreSet, panel.NumDates()),
	}

	g, ctx := errgroup.WithContext(ctx)
	if s.cfg.Workers > 1 {
		g.SetLimit(s.cfg.Workers)
	} else {
		g.SetLimit(1)
	}

	for t := 0; t < panel.NumDates(); t++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			set, err := s.ScoreAt(panel, t)
			if err != nil {
				return err
			}
			grid.Sets[t] = set // 각 goroutine 은 자기 슬롯만 씀
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("score horizon %d: %w", s.cfg.Horizon, err)
	}

	defined, invalid := 0, 0
	for _, set := range grid.Sets {
		counts := set.CountByStatus()
		defined += counts[contracts.ScoreDefined]
		invalid += counts[contracts.ScoreInvalidPrice]
	}
	s.logger.WithFields(map[string]interface{}{
		"horizon":       s.cfg.Horizon,
		"skip":          s.cfg.Skip,
		"dates":         panel.NumDates(),
		"instruments":   panel.NumInstruments(),
		"defined":       defined,
		"invalid_price": invalid,
	}).Info("Momentum scores computed")

	return grid, nil
}
