package brain

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/momentum/internal/audit"
	"github.com/wonny/momentum/internal/contracts"
	"github.com/wonny/momentum/internal/s0_data/quality"
	"github.com/wonny/momentum/internal/strategyconfig"
	"github.com/wonny/momentum/pkg/logger"
)

const numMonths = 10

func monthEnd(i int) time.Time {
	return time.Date(2020, time.Month(2+i), 0, 0, 0, 0, 0, time.UTC)
}

// A 의 월 수익률 (항상 1위)
var aReturns = []float64{0.10, 0.12, 0.08, 0.11, 0.09, 0.13, 0.10, 0.07, 0.12}

// path compounds monthly returns from 100
func path(returns []float64) []float64 {
	out := []float64{100}
	for _, r := range returns {
		out = append(out, out[len(out)-1]*(1+r))
	}
	return out
}

func constant(r float64) []float64 {
	out := make([]float64, numMonths-1)
	for i := range out {
		out[i] = r
	}
	return out
}

func scenario(t *testing.T) (*contracts.PricePanel, *contracts.PriceSeries) {
	t.Helper()
	rows := map[string][]float64{
		"A": path(aReturns),
		"B": path(constant(0.05)),
		"C": path(constant(0)),
		"D": path(constant(-0.05)),
	}
	b := contracts.NewPanelBuilder()
	for id, prices := range rows {
		for i, p := range prices {
			b.Set(id, monthEnd(i), p)
		}
	}
	panel, err := b.Build()
	require.NoError(t, err)
	return panel, benchmarkSeries(t, path(constant(0.02)), -1)
}

// benchmarkSeries builds the benchmark, dropping index skip (-1 = none)
func benchmarkSeries(t *testing.T, prices []float64, skip int) *contracts.PriceSeries {
	t.Helper()
	var dates []time.Time
	var values []float64
	for i, p := range prices {
		if i == skip {
			continue
		}
		dates = append(dates, monthEnd(i))
		values = append(values, p)
	}
	s, err := contracts.NewPriceSeries("KOSPI", dates, values)
	require.NoError(t, err)
	return s
}

func baseConfig() Config {
	return Config{
		StrategyID:   "test",
		Horizons:     []int{3, 1},
		Sizes:        []int{2, 1},
		Skip:         1,
		Losers:       true,
		Significance: audit.SignificanceConfig{},
		CommonStart:  true,
		Workers:      2,
		Quality:      quality.DefaultConfig(),
	}
}

func run(t *testing.T, cfg Config, panel *contracts.PricePanel, bench *contracts.PriceSeries) *ComparisonTable {
	t.Helper()
	c, err := NewComparator(cfg, logger.Nop())
	require.NoError(t, err)
	table, err := c.Run(context.Background(), panel, bench)
	require.NoError(t, err)
	return table
}

func TestComparator_Run_Scenario(t *testing.T) {
	panel, bench := scenario(t)
	table := run(t, baseConfig(), panel, bench)

	require.Len(t, table.Cells, 4)
	assert.Equal(t, []int{1, 3}, table.Horizons)
	assert.Equal(t, []int{1, 2}, table.Sizes)
	assert.Empty(t, table.Failed())
	assert.Equal(t, panel.Fingerprint(), table.PanelID)

	var keys []string
	for _, c := range table.Cells {
		keys = append(keys, c.Key.String())
	}
	assert.Equal(t, []string{"H1_N1", "H1_N2", "H3_N1", "H3_N2"}, keys)

	// skip 1 + max horizon 3 → 첫 형성 4, 첫 보유 5
	assert.Equal(t, monthEnd(5), table.Start)
	assert.Equal(t, monthEnd(9), table.End)
	assert.Equal(t, 5, table.Benchmark.Periods)
	assert.Equal(t, "KOSPI", table.Benchmark.Name)

	for _, c := range table.Cells {
		assert.Equal(t, []contracts.Stage{contracts.StageUniverse, contracts.StageRanker, contracts.StagePortfolio, contracts.StageReturns, contracts.StageAudit}, c.CompletedStages)
		assert.Equal(t, 5, c.Winners.Returns.Len(), c.Key.String())
		assert.Equal(t, monthEnd(5), c.Winners.Returns.Start())
		require.NotNil(t, c.Winners.Report.Significance)
		assert.True(t, c.Winners.Report.Significance.HACPValue.IsDefined())
		assert.Len(t, c.Winners.Relative, 6)
		require.NotNil(t, c.WML)
		assert.Nil(t, c.WML.Relative)
	}

	h1n1, ok := table.Get(1, 1)
	require.True(t, ok)
	assert.InDeltaSlice(t, aReturns[4:], h1n1.Winners.Returns.Values, 1e-12)
	assert.InDeltaSlice(t, constant(-0.05)[:5], h1n1.Losers.Returns.Values, 1e-12)
	for i, r := range h1n1.WML.Returns.Values {
		assert.InDelta(t, aReturns[4+i]+0.05, r, 1e-12)
	}
	assert.Equal(t, "H1_N1_WINNERS", h1n1.Winners.Report.Name)
	assert.Equal(t, contracts.LegWinnersMinus, h1n1.WML.Report.Leg)

	h3n2, ok := table.Get(3, 2)
	require.True(t, ok)
	for i, r := range h3n2.Winners.Returns.Values {
		assert.InDelta(t, (aReturns[4+i]+0.05)/2, r, 1e-12)
	}
	// losers = 풀 − winners = C, D
	assert.InDeltaSlice(t, constant(-0.025)[:5], h3n2.Losers.Returns.Values, 1e-12)

	// benchmark + 4 cells × 3 legs
	assert.Len(t, table.Reports(), 13)
}

func TestComparator_Run_DeterministicAcrossWorkers(t *testing.T) {
	panel, bench := scenario(t)

	cfg := baseConfig()
	cfg.Workers = 1
	seq := run(t, cfg, panel, bench)
	cfg.Workers = 8
	par := run(t, cfg, panel, bench)

	require.Len(t, par.Cells, len(seq.Cells))
	for i := range seq.Cells {
		a, b := seq.Cells[i], par.Cells[i]
		assert.Equal(t, a.Key, b.Key)
		for _, pair := range [][2]*LegResult{{a.Winners, b.Winners}, {a.Losers, b.Losers}, {a.WML, b.WML}} {
			assert.Equal(t, pair[0].Returns, pair[1].Returns)
			assert.Equal(t, pair[0].Report, pair[1].Report)
		}
		assert.Equal(t, a.Winners.Schedule, b.Winners.Schedule)
	}
	assert.Equal(t, seq.Benchmark, par.Benchmark)
}

func TestComparator_Run_WithoutCommonStart(t *testing.T) {
	panel, bench := scenario(t)
	cfg := baseConfig()
	cfg.CommonStart = false
	table := run(t, cfg, panel, bench)

	h1, _ := table.Get(1, 1)
	h3, _ := table.Get(3, 1)
	// 각 horizon 자체 시작점: skip+h
	assert.Equal(t, 7, h1.Winners.Returns.Len())
	assert.Equal(t, monthEnd(3), h1.Winners.Returns.Start())
	assert.Equal(t, 5, h3.Winners.Returns.Len())
	assert.Equal(t, monthEnd(3), table.Start)
	assert.Equal(t, 7, table.Benchmark.Periods)
	assert.False(t, table.CommonStart)
}

func TestComparator_Run_BenchmarkGapFailsCells(t *testing.T) {
	panel, _ := scenario(t)
	bench := benchmarkSeries(t, path(constant(0.02)), 7)

	table := run(t, baseConfig(), panel, bench)

	require.Len(t, table.Failed(), 4)
	for _, c := range table.Cells {
		assert.False(t, c.OK())
		assert.Contains(t, c.Err, "range mismatch")
		assert.Equal(t, []contracts.Stage{contracts.StageUniverse, contracts.StageRanker, contracts.StagePortfolio, contracts.StageReturns}, c.CompletedStages)
		assert.Nil(t, c.Winners)
	}

	m, err := table.Matrix(MetricSharpe)
	require.NoError(t, err)
	assert.False(t, m[0][0].IsDefined())
	assert.Contains(t, m[0][0].Reason, "range mismatch")
}

func TestComparator_Run_PortfolioEqualsBenchmark(t *testing.T) {
	prices := path(aReturns)
	b := contracts.NewPanelBuilder()
	for i, p := range prices {
		b.Set("A", monthEnd(i), p)
	}
	panel, err := b.Build()
	require.NoError(t, err)
	bench := benchmarkSeries(t, prices, -1)

	cfg := baseConfig()
	cfg.Losers = false
	cfg.Sizes = []int{1}
	table := run(t, cfg, panel, bench)

	c, ok := table.Get(3, 1)
	require.True(t, ok)
	require.True(t, c.OK())
	assert.Nil(t, c.Losers)
	assert.Nil(t, c.WML)

	assert.Equal(t, table.Benchmark.Sharpe, c.Winners.Report.Sharpe)
	assert.Equal(t, table.Benchmark.CAGR, c.Winners.Report.CAGR)
	for _, r := range c.Winners.Relative {
		assert.InDelta(t, 1.0, r, 1e-12)
	}

	sig := c.Winners.Report.Significance
	require.NotNil(t, sig)
	assert.InDelta(t, 0, sig.MeanExcess.Value, 1e-15)
	assert.False(t, sig.HACPValue.IsDefined())
	assert.False(t, sig.NaivePValue.IsDefined())
}

type recorder struct {
	mu       sync.Mutex
	done     []Key
	degraded map[string]int
}

func (r *recorder) CombinationDone(horizon, size int, _ time.Duration, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = append(r.done, Key{Horizon: horizon, Size: size})
}

func (r *recorder) DegradedRebalances(horizon, size int, leg string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.degraded[Key{Horizon: horizon, Size: size}.String()+"_"+leg] = count
}

func TestComparator_Run_InsufficientUniverse(t *testing.T) {
	panel, bench := scenario(t)
	cfg := baseConfig()
	cfg.Horizons = []int{1}
	cfg.Sizes = []int{3}

	rec := &recorder{degraded: map[string]int{}}
	c, err := NewComparator(cfg, logger.Nop())
	require.NoError(t, err)
	table, err := c.WithObserver(rec).Run(context.Background(), panel, bench)
	require.NoError(t, err)

	cell, ok := table.Get(1, 3)
	require.True(t, ok)
	require.True(t, cell.OK())

	// 4종목, N=3 → winners 는 3/3 정상, losers 는 남은 D 하나로 degraded
	// horizon 1 단독 → 형성 2..8, 7 회 리밸런스
	assert.Equal(t, 0, cell.Winners.Report.DegradedRebalances)
	assert.Equal(t, 7, cell.Losers.Report.DegradedRebalances)
	assert.Equal(t, 7, cell.WML.Report.DegradedRebalances)
	assert.InDeltaSlice(t, constant(-0.05)[:7], cell.Losers.Returns.Values, 1e-12)
	for _, e := range cell.Winners.Schedule.Events {
		assert.Equal(t, 3, e.Count())
		assert.False(t, e.Degraded)
		assert.Empty(t, e.Reason)
	}

	assert.Equal(t, []Key{{Horizon: 1, Size: 3}}, rec.done)
	assert.Equal(t, 0, rec.degraded["H1_N3_WINNERS"])
	assert.Equal(t, 7, rec.degraded["H1_N3_LOSERS"])
}

func TestComparator_ScorerWorkers(t *testing.T) {
	tests := []struct {
		name     string
		workers  int
		horizons []int
		want     int
	}{
		{"budget split across horizons", 8, []int{1, 3, 6, 12}, 2},
		{"single horizon gets the whole budget", 8, []int{6}, 8},
		{"more horizons than workers", 2, []int{1, 3, 6, 12}, 1},
		{"uneven split rounds down", 5, []int{3, 6}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			cfg.Workers = tt.workers
			cfg.Horizons = tt.horizons
			c, err := NewComparator(cfg, logger.Nop())
			require.NoError(t, err)

			got := c.scorerWorkers()
			assert.Equal(t, tt.want, got)
			// 동시 horizon 수 × horizon 당 worker ≤ 전체 예산
			assert.LessOrEqual(t, min(tt.workers, len(tt.horizons))*got, tt.workers)
		})
	}
}

func TestComparator_Run_Errors(t *testing.T) {
	panel, bench := scenario(t)

	t.Run("horizon longer than panel", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Horizons = []int{12}
		c, err := NewComparator(cfg, logger.Nop())
		require.NoError(t, err)
		_, err = c.Run(context.Background(), panel, bench)
		assert.Error(t, err)
	})

	t.Run("cancelled", func(t *testing.T) {
		c, err := NewComparator(baseConfig(), logger.Nop())
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = c.Run(ctx, panel, bench)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("quality gate", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Quality.MinInstruments = 10
		c, err := NewComparator(cfg, logger.Nop())
		require.NoError(t, err)
		_, err = c.Run(context.Background(), panel, bench)
		assert.ErrorContains(t, err, "quality gate failed")
	})
}

func TestNewComparator_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  func(*Config)
	}{
		{"no horizons", func(c *Config) { c.Horizons = nil }},
		{"no sizes", func(c *Config) { c.Sizes = nil }},
		{"zero horizon", func(c *Config) { c.Horizons = []int{0, 3} }},
		{"negative size", func(c *Config) { c.Sizes = []int{-1} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.cfg(&cfg)
			_, err := NewComparator(cfg, logger.Nop())
			assert.Error(t, err)
		})
	}
}

func TestConfigFrom(t *testing.T) {
	sc := strategyconfig.Default()

	cfg := ConfigFrom(sc, 3)
	assert.Equal(t, sc.Signals.Horizons, cfg.Horizons)
	assert.Equal(t, sc.Portfolio.Sizes, cfg.Sizes)
	assert.Equal(t, 3, cfg.Workers)
	assert.True(t, cfg.CommonStart)

	sc.Evaluation.Workers = 6
	assert.Equal(t, 6, ConfigFrom(sc, 3).Workers)
}
