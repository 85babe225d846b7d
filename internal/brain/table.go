package brain

import (
	"fmt"
	"sort"
	"time"

	"github.com/wonny/momentum/internal/backtest"
	"github.com/wonny/momentum/internal/contracts"
)

// Key identifies one (horizon, size) combination
type Key struct {
	Horizon int `json:"horizon"`
	Size    int `json:"size"`
}

func (k Key) String() string {
	return fmt.Sprintf("H%d_N%d", k.Horizon, k.Size)
}

// LegResult is the outcome of one portfolio leg of a combination
type LegResult struct {
	Leg      contracts.Leg             `json:"leg"`
	Schedule *contracts.WeightSchedule `json:"schedule,omitempty"` // nil for WML
	Returns  *contracts.ReturnSeries   `json:"returns"`
	Periods  []backtest.Period         `json:"periods,omitempty"`
	Report   *contracts.MetricsReport  `json:"report"`
	Relative []float64                 `json:"relative,omitempty"` // cumulative vs benchmark, nil for WML
}

// Cell holds every output of one combination, or the reason it failed
type Cell struct {
	Key             Key               `json:"key"`
	Winners         *LegResult        `json:"winners,omitempty"`
	Losers          *LegResult        `json:"losers,omitempty"`
	WML             *LegResult        `json:"wml,omitempty"`
	CompletedStages []contracts.Stage `json:"completed_stages"`
	Err             string            `json:"error,omitempty"`
	Duration        time.Duration     `json:"duration"`
}

// OK reports whether the combination completed
func (c *Cell) OK() bool {
	return c.Err == "" && c.Winners != nil
}

// ComparisonTable aggregates every combination keyed by (horizon, size)
// ⭐ SSOT: S7 비교 테이블
type ComparisonTable struct {
	StrategyID  string    `json:"strategy_id"`
	ConfigHash  string    `json:"config_hash,omitempty"`
	PanelID     string    `json:"panel_id,omitempty"`
	Horizons    []int     `json:"horizons"`
	Sizes       []int     `json:"sizes"`
	CommonStart bool      `json:"common_start"`
	Start       time.Time `json:"start"` // evaluation window
	End         time.Time `json:"end"`

	Benchmark        *contracts.MetricsReport `json:"benchmark"`
	BenchmarkReturns *contracts.ReturnSeries  `json:"benchmark_returns"`

	Cells     []*Cell   `json:"cells"` // sorted by horizon, size
	CreatedAt time.Time `json:"created_at"`
}

// Get returns the cell of a combination
func (t *ComparisonTable) Get(horizon, size int) (*Cell, bool) {
	i := sort.Search(len(t.Cells), func(i int) bool {
		k := t.Cells[i].Key
		return k.Horizon > horizon || (k.Horizon == horizon && k.Size >= size)
	})
	if i < len(t.Cells) && t.Cells[i].Key == (Key{horizon, size}) {
		return t.Cells[i], true
	}
	return nil, false
}

// Failed returns the combinations that did not complete
func (t *ComparisonTable) Failed() []*Cell {
	var out []*Cell
	for _, c := range t.Cells {
		if !c.OK() {
			out = append(out, c)
		}
	}
	return out
}

// BestByHorizon returns, per horizon, the size whose winners portfolio has
// the highest defined Sharpe ratio. Ties go to the smaller size. Horizons
// without any defined Sharpe are omitted.
func (t *ComparisonTable) BestByHorizon() map[int]Key {
	best := make(map[int]Key)
	bestSharpe := make(map[int]float64)
	for _, c := range t.Cells {
		if !c.OK() || !c.Winners.Report.Sharpe.IsDefined() {
			continue
		}
		s := c.Winners.Report.Sharpe.Value
		h := c.Key.Horizon
		if prev, ok := bestSharpe[h]; !ok || s > prev || (s == prev && c.Key.Size < best[h].Size) {
			best[h] = c.Key
			bestSharpe[h] = s
		}
	}
	return best
}

// Metric names accepted by Matrix
const (
	MetricCAGR        = "cagr"
	MetricVolatility  = "volatility"
	MetricSharpe      = "sharpe"
	MetricSortino     = "sortino"
	MetricMaxDrawdown = "max_drawdown"
	MetricTotalReturn = "total_return"
	MetricHACPValue   = "hac_p_value"
	MetricNaivePValue = "naive_p_value"
	MetricMeanExcess  = "mean_excess"
)

// Matrix returns a wide view of one winners metric: rows = sizes, columns =
// horizons, both in table order. Failed cells hold an undefined metric with
// the failure reason.
func (t *ComparisonTable) Matrix(metric string) ([][]contracts.Metric, error) {
	if _, err := pick(&contracts.MetricsReport{}, metric); err != nil {
		return nil, err
	}
	out := make([][]contracts.Metric, len(t.Sizes))
	for i, n := range t.Sizes {
		out[i] = make([]contracts.Metric, len(t.Horizons))
		for j, h := range t.Horizons {
			c, ok := t.Get(h, n)
			switch {
			case !ok:
				out[i][j] = contracts.Undefined("not computed")
			case !c.OK():
				out[i][j] = contracts.Undefined(c.Err)
			default:
				out[i][j], _ = pick(c.Winners.Report, metric)
			}
		}
	}
	return out, nil
}

// Reports flattens every leg report (benchmark first) for persistence
func (t *ComparisonTable) Reports() []*contracts.MetricsReport {
	var out []*contracts.MetricsReport
	if t.Benchmark != nil {
		out = append(out, t.Benchmark)
	}
	for _, c := range t.Cells {
		for _, leg := range []*LegResult{c.Winners, c.Losers, c.WML} {
			if leg != nil && leg.Report != nil {
				out = append(out, leg.Report)
			}
		}
	}
	return out
}

func pick(r *contracts.MetricsReport, metric string) (contracts.Metric, error) {
	sig := func(f func(*contracts.Significance) contracts.Metric) contracts.Metric {
		if r.Significance == nil {
			return contracts.Undefined("no significance test")
		}
		return f(r.Significance)
	}
	switch metric {
	case MetricCAGR:
		return r.CAGR, nil
	case MetricVolatility:
		return r.Volatility, nil
	case MetricSharpe:
		return r.Sharpe, nil
	case MetricSortino:
		return r.Sortino, nil
	case MetricMaxDrawdown:
		return r.MaxDrawdown, nil
	case MetricTotalReturn:
		return r.TotalReturn, nil
	case MetricHACPValue:
		return sig(func(s *contracts.Significance) contracts.Metric { return s.HACPValue }), nil
	case MetricNaivePValue:
		return sig(func(s *contracts.Significance) contracts.Metric { return s.NaivePValue }), nil
	case MetricMeanExcess:
		return sig(func(s *contracts.Significance) contracts.Metric { return s.MeanExcess }), nil
	}
	return contracts.Metric{}, fmt.Errorf("unknown metric %q", metric)
}
