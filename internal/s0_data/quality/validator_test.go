package quality

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/momentum/internal/contracts"
	"github.com/wonny/momentum/pkg/logger"
)

func monthEnd(i int) time.Time {
	return time.Date(2020, time.Month(2+i), 0, 0, 0, 0, 0, time.UTC)
}

func buildPanel(t *testing.T) *contracts.PricePanel {
	t.Helper()
	b := contracts.NewPanelBuilder()
	// A: full, B: listed at 1, hole at 2, delisted after 3, C: invalid at 0
	rows := map[string][]float64{
		"A": {10, 11, 12, 13, 14},
		"B": {math.NaN(), 20, math.NaN(), 22, math.NaN()},
		"C": {0, 31, 32, 33, 34},
	}
	for id, prices := range rows {
		for i, p := range prices {
			b.AddDate(monthEnd(i))
			if math.IsNaN(p) {
				continue
			}
			b.Set(id, monthEnd(i), p)
			if id == "A" {
				b.SetMarketCap(id, monthEnd(i), 1e9)
			}
		}
	}
	panel, err := b.Build()
	require.NoError(t, err)
	return panel
}

func TestQualityGate_Check(t *testing.T) {
	panel := buildPanel(t)
	gate := NewQualityGate(DefaultConfig(), logger.Nop())

	snap, err := gate.Check(panel, nil)
	require.NoError(t, err)

	assert.Equal(t, 5, snap.Dates)
	assert.Equal(t, 3, snap.Instruments)
	assert.Equal(t, 12, snap.Observations)
	// only the hole inside B's listing span counts
	assert.Equal(t, 1, snap.InteriorGaps)
	assert.Equal(t, 1, snap.InvalidPrices)
	assert.InDelta(t, 12.0/13.0, snap.PriceCoverage, 1e-12)
	assert.InDelta(t, 5.0/12.0, snap.MarketCapCoverage, 1e-12)
	assert.True(t, snap.Passed)
	assert.Equal(t, monthEnd(0), snap.Start)
	assert.Equal(t, monthEnd(4), snap.End)
}

func TestQualityGate_Thresholds(t *testing.T) {
	panel := buildPanel(t)

	tests := []struct {
		name   string
		config Config
		pass   bool
	}{
		{"default", DefaultConfig(), true},
		{"too few dates", Config{MinDates: 10}, false},
		{"too few instruments", Config{MinInstruments: 4}, false},
		{"coverage", Config{MinPriceCoverage: 0.99}, false},
		{"coverage ok", Config{MinPriceCoverage: 0.9}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := NewQualityGate(tt.config, logger.Nop()).Check(panel, nil)
			require.NotNil(t, snap)
			assert.Equal(t, tt.pass, snap.Passed)
			if tt.pass {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.NotEmpty(t, snap.Issues)
			}
		})
	}
}

func TestQualityGate_Benchmark(t *testing.T) {
	panel := buildPanel(t)

	bench, err := contracts.NewPriceSeries("BM",
		[]time.Time{monthEnd(0), monthEnd(1), monthEnd(3), monthEnd(4)},
		[]float64{100, 101, 102, 103})
	require.NoError(t, err)

	snap, err := NewQualityGate(DefaultConfig(), logger.Nop()).Check(panel, bench)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{monthEnd(2)}, snap.BenchmarkMissing)

	bad, err := contracts.NewPriceSeries("BM",
		[]time.Time{monthEnd(0), monthEnd(1)}, []float64{100, -1})
	require.NoError(t, err)
	snap, err = NewQualityGate(DefaultConfig(), logger.Nop()).Check(panel, bad)
	assert.Error(t, err)
	assert.Equal(t, 1, snap.BenchmarkInvalid)
}
