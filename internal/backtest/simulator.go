package backtest

import (
	"fmt"
	"time"

	"github.com/wonny/momentum/internal/contracts"
	"github.com/wonny/momentum/internal/strategyconfig"
	"github.com/wonny/momentum/pkg/logger"
)

// Simulator realizes one rebalance over its holding period
// ⭐ SSOT: 상장폐지/결측 처리 규칙은 여기서만
//
// Policies for a constituent without a usable holding-period return:
//   - renormalize: drop it and rescale the rest to sum to 1
//   - zero: keep its weight and realize 0
//   - last_known: value it from its last valid price on or before the
//     formation date; 0 when the holding-date price is missing
type Simulator struct {
	policy string
	logger *logger.Logger
}

// Period is the realized outcome of one rebalance
type Period struct {
	FormationDate time.Time `json:"formation_date"`
	HoldingDate   time.Time `json:"holding_date"`
	Return        float64   `json:"return"`
	Constituents  int       `json:"constituents"`
	Realized      int       `json:"realized"`          // constituents with a regular return
	Missing       []string  `json:"missing,omitempty"` // handled by the delisting policy
	Cash          bool      `json:"cash"`              // nothing invested, realized 0
	Degraded      bool      `json:"degraded"`
}

// NewSimulator creates a simulator for the given delisting policy
func NewSimulator(policy string, log *logger.Logger) (*Simulator, error) {
	switch policy {
	case strategyconfig.DelistRenormalize, strategyconfig.DelistZero, strategyconfig.DelistLastKnown:
	case "":
		policy = strategyconfig.DelistRenormalize
	default:
		return nil, fmt.Errorf("unknown delisting policy %q", policy)
	}
	return &Simulator{policy: policy, logger: log}, nil
}

// Policy returns the active delisting policy
func (s *Simulator) Policy() string {
	return s.policy
}

// Realize computes the portfolio return over r.HoldingDate using the
// weights fixed at r.FormationDate.
func (s *Simulator) Realize(panel *contracts.PricePanel, r *contracts.Rebalance) (Period, error) {
	p := Period{
		FormationDate: r.FormationDate,
		HoldingDate:   r.HoldingDate,
		Constituents:  r.Count(),
		Degraded:      r.Degraded,
	}

	t0 := panel.DateIndex(r.FormationDate)
	t1 := panel.DateIndex(r.HoldingDate)
	if t0 < 0 || t1 != t0+1 {
		return p, fmt.Errorf("rebalance %s → %s is not a single panel period",
			r.FormationDate.Format("2006-01-02"), r.HoldingDate.Format("2006-01-02"))
	}

	if r.Count() == 0 {
		p.Cash = true
		p.Degraded = true
		return p, nil
	}

	invested := 0.0
	total := 0.0
	for _, id := range r.Holdings() { // 정렬 순서로 합산 → 결정적
		w := r.Weights[id]
		ret, err := InstrumentReturn(panel, id, t1)
		if err == nil {
			p.Realized++
			invested += w
			total += w * ret
			continue
		}

		p.Missing = append(p.Missing, id)
		s.logMissing(id, r.HoldingDate, err)

		switch s.policy {
		case strategyconfig.DelistZero:
			invested += w
		case strategyconfig.DelistLastKnown:
			invested += w
			total += w * s.lastKnownReturn(panel, id, t0, t1)
		}
	}

	switch {
	case invested == 0:
		// 전 종목 결측 → 현금
		p.Cash = true
		p.Degraded = true
		p.Return = 0
	case s.policy == strategyconfig.DelistRenormalize:
		p.Return = total / invested
	default:
		p.Return = total
	}
	if len(p.Missing) > 0 {
		p.Degraded = true
	}

	return p, nil
}

// lastKnownReturn values a constituent from its last valid price at or before
// t0 to its price at t1. Without a holding-date price the position is held at
// its last value (0 return).
func (s *Simulator) lastKnownReturn(panel *contracts.PricePanel, id string, t0, t1 int) float64 {
	end, ok := panel.Price(id, t1)
	if !ok || !contracts.ValidPrice(end) {
		return 0
	}
	for t := t0; t >= 0; t-- {
		if base, ok := panel.Price(id, t); ok && contracts.ValidPrice(base) {
			return end/base - 1.0
		}
	}
	return 0
}

func (s *Simulator) logMissing(id string, holding time.Time, err error) {
	entry := s.logger.WithFields(map[string]interface{}{
		"instrument": id,
		"holding":    holding.Format("2006-01-02"),
		"policy":     s.policy,
	}).WithError(err)

	// 무효 가격은 일반 결측과 구분해서 경고
	if _, invalid := err.(*contracts.InvalidPriceError); invalid {
		entry.Warn("Invalid price in holding period")
		return
	}
	entry.Debug("Constituent missing in holding period")
}

// InstrumentReturn is the simple return P(t)/P(t-1) - 1 of one instrument
func InstrumentReturn(panel *contracts.PricePanel, id string, t int) (float64, error) {
	if t < 1 {
		return 0, &contracts.DataGapError{Instrument: id, Date: panel.Date(max(t, 0))}
	}
	date := panel.Date(t)
	prev, ok := panel.Price(id, t-1)
	if !ok {
		return 0, &contracts.DataGapError{Instrument: id, Date: date, Missing: panel.Date(t - 1)}
	}
	cur, ok := panel.Price(id, t)
	if !ok {
		return 0, &contracts.DataGapError{Instrument: id, Date: date, Missing: date}
	}
	if !contracts.ValidPrice(prev) {
		return 0, &contracts.InvalidPriceError{Instrument: id, Date: panel.Date(t - 1), Price: prev}
	}
	if !contracts.ValidPrice(cur) {
		return 0, &contracts.InvalidPriceError{Instrument: id, Date: date, Price: cur}
	}
	return cur/prev - 1.0, nil
}
