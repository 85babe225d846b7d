package backtest

import (
	"fmt"
	"time"

	"github.com/wonny/momentum/internal/contracts"
	"github.com/wonny/momentum/pkg/logger"
)

// Engine turns weight schedules into return series
// ⭐ SSOT: S6 수익률 계산은 여기서만
type Engine struct {
	simulator *Simulator
	logger    *logger.Logger
}

// Result is the realized return history of one weight schedule
type Result struct {
	Schedule *contracts.WeightSchedule `json:"-"`
	Series   *contracts.ReturnSeries   `json:"series"`
	Periods  []Period                  `json:"periods"`
}

// CashPeriods counts periods that realized 0 because nothing was invested
func (r *Result) CashPeriods() int {
	n := 0
	for _, p := range r.Periods {
		if p.Cash {
			n++
		}
	}
	return n
}

// DegradedPeriods counts degraded selections or periods with missing constituents
func (r *Result) DegradedPeriods() int {
	n := 0
	for _, p := range r.Periods {
		if p.Degraded {
			n++
		}
	}
	return n
}

// NewEngine creates a new backtest engine
func NewEngine(simulator *Simulator, logger *logger.Logger) *Engine {
	return &Engine{
		simulator: simulator,
		logger:    logger,
	}
}

// Run realizes every rebalance of schedule. The return of the rebalance
// formed at t is recorded at its holding date t+1.
func (e *Engine) Run(panel *contracts.PricePanel, schedule *contracts.WeightSchedule, name string) (*Result, error) {
	result := &Result{
		Schedule: schedule,
		Periods:  make([]Period, 0, len(schedule.Events)),
	}

	dates := make([]time.Time, 0, len(schedule.Events))
	values := make([]float64, 0, len(schedule.Events))
	missing := 0

	for i := range schedule.Events {
		p, err := e.simulator.Realize(panel, &schedule.Events[i])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		result.Periods = append(result.Periods, p)
		dates = append(dates, p.HoldingDate)
		values = append(values, p.Return)
		missing += len(p.Missing)
	}

	series, err := contracts.NewReturnSeries(name, dates, values)
	if err != nil {
		return nil, err
	}
	result.Series = series

	e.logger.WithFields(map[string]interface{}{
		"series":   name,
		"leg":      schedule.Leg,
		"horizon":  schedule.Horizon,
		"size":     schedule.Size,
		"periods":  series.Len(),
		"cash":     result.CashPeriods(),
		"degraded": result.DegradedPeriods(),
		"missing":  missing,
		"policy":   e.simulator.Policy(),
	}).Debug("Portfolio returns computed")

	return result, nil
}

// BenchmarkReturns computes simple returns between consecutive observations
// of the benchmark's own price series. No weighting is applied.
// A non-positive or non-finite benchmark price is fatal.
func (e *Engine) BenchmarkReturns(series *contracts.PriceSeries) (*contracts.ReturnSeries, error) {
	n := series.Len()
	if n < 2 {
		return nil, fmt.Errorf("benchmark %s: need at least 2 prices, got %d", series.ID, n)
	}

	dates := make([]time.Time, 0, n-1)
	values := make([]float64, 0, n-1)
	prevDate, prev := series.At(0)
	if !contracts.ValidPrice(prev) {
		return nil, &contracts.InvalidPriceError{Instrument: series.ID, Date: prevDate, Price: prev}
	}
	for i := 1; i < n; i++ {
		d, p := series.At(i)
		if !contracts.ValidPrice(p) {
			return nil, &contracts.InvalidPriceError{Instrument: series.ID, Date: d, Price: p}
		}
		dates = append(dates, d)
		values = append(values, p/prev-1.0)
		prev = p
	}

	e.logger.WithFields(map[string]interface{}{
		"benchmark": series.ID,
		"periods":   len(values),
		"start":     dates[0].Format("2006-01-02"),
		"end":       dates[len(dates)-1].Format("2006-01-02"),
	}).Debug("Benchmark returns computed")

	return contracts.NewReturnSeries(series.ID, dates, values)
}

// WinnersMinusLosers returns the long-short series. Both legs must cover
// identical dates.
func (e *Engine) WinnersMinusLosers(winners, losers *contracts.ReturnSeries, name string) (*contracts.ReturnSeries, error) {
	wml, err := winners.Excess(losers)
	if err != nil {
		return nil, err
	}
	wml.Name = name
	return wml, nil
}
