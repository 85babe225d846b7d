package portfolio

import (
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

func testPanel(t *testing.T, dates int) *contracts.PricePanel {
	t.Helper()
	b := contracts.NewPanelBuilder()
	for i := 0; i < dates; i++ {
		b.Set("A", monthEnd(i), 100)
	}
	panel, err := b.Build()
	require.NoError(t, err)
	return panel
}

func ranked(ids ...string) []contracts.RankedInstrument {
	out := make([]contracts.RankedInstrument, len(ids))
	for i, id := range ids {
		out[i] = contracts.RankedInstrument{Instrument: id, Rank: i + 1}
	}
	return out
}

func TestConstructor_EqualWeights(t *testing.T) {
	c := NewConstructor(DefaultConstraints(), logger.Nop())

	for _, n := range []int{1, 3, 7, 10, 50} {
		ids := make([]string, n)
		for i := range ids {
			ids[i] = string(rune('A'+i%26)) + string(rune('a'+i/26))
		}
		sel := &contracts.Selection{Date: monthEnd(0), Target: n, Available: n, Winners: ranked(ids...)}

		r, err := c.Construct(sel, contracts.LegWinners, monthEnd(1))
		require.NoError(t, err)

		assert.Equal(t, n, r.Count())
		assert.InDelta(t, 1.0, r.TotalWeight(), 1e-12)
		for _, w := range r.Weights {
			assert.InDelta(t, 1.0/float64(n), w, 1e-15)
		}
		assert.Equal(t, monthEnd(1), r.HoldingDate)
		assert.False(t, r.Degraded)
	}
}

func TestConstructor_LosersLeg(t *testing.T) {
	sel := &contracts.Selection{
		Date:    monthEnd(0),
		Winners: ranked("W1", "W2"),
		Losers:  ranked("L1", "L2"),
	}
	r, err := NewConstructor(DefaultConstraints(), logger.Nop()).Construct(sel, contracts.LegLosers, monthEnd(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"L1", "L2"}, r.Holdings())
}

func TestConstructor_EmptyAndDegraded(t *testing.T) {
	c := NewConstructor(DefaultConstraints(), logger.Nop())

	empty := &contracts.Selection{
		Date:            monthEnd(0),
		Target:          5,
		Degraded:        true,
		WinnersShortage: &contracts.InsufficientUniverseError{Date: monthEnd(0), Available: 0, Required: 5},
	}
	r, err := c.Construct(empty, contracts.LegWinners, monthEnd(1))
	require.NoError(t, err)
	assert.Equal(t, 0, r.Count())
	assert.True(t, r.Degraded)
	assert.Contains(t, r.Reason, "insufficient universe")

	partial := &contracts.Selection{
		Date:            monthEnd(0),
		Target:          5,
		Winners:         ranked("A", "B"),
		Degraded:        true,
		WinnersShortage: &contracts.InsufficientUniverseError{Date: monthEnd(0), Available: 2, Required: 5},
	}
	r, err = c.Construct(partial, contracts.LegWinners, monthEnd(1))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, r.Weights["A"], 1e-15)
	assert.True(t, r.Degraded)
}

func TestConstructor_DegradedPerLeg(t *testing.T) {
	c := NewConstructor(DefaultConstraints(), logger.Nop())

	// winners 2/2, losers 1/2
	sel := &contracts.Selection{
		Date:           monthEnd(0),
		Target:         2,
		Winners:        ranked("W1", "W2"),
		Losers:         ranked("L1"),
		Degraded:       true,
		LosersShortage: &contracts.InsufficientUniverseError{Date: monthEnd(0), Available: 1, Required: 2},
	}

	tests := []struct {
		leg      contracts.Leg
		count    int
		degraded bool
		reason   string
	}{
		{leg: contracts.LegWinners, count: 2, degraded: false},
		{leg: contracts.LegLosers, count: 1, degraded: true, reason: "insufficient universe"},
	}
	for _, tt := range tests {
		t.Run(string(tt.leg), func(t *testing.T) {
			r, err := c.Construct(sel, tt.leg, monthEnd(1))
			require.NoError(t, err)
			assert.Equal(t, tt.count, r.Count())
			assert.Equal(t, tt.degraded, r.Degraded)
			if tt.reason == "" {
				assert.Empty(t, r.Reason)
			} else {
				assert.Contains(t, r.Reason, tt.reason)
			}
		})
	}
}

func TestConstructor_BuildSchedule(t *testing.T) {
	panel := testPanel(t, 4)
	c := NewConstructor(DefaultConstraints(), logger.Nop())

	sels := []*contracts.Selection{
		{Date: monthEnd(1), Winners: ranked("A")},
		{Date: monthEnd(2), Winners: ranked("A", "B"), Degraded: true,
			WinnersShortage: &contracts.InsufficientUniverseError{Date: monthEnd(2), Available: 2, Required: 10}},
	}
	schedule, err := c.BuildSchedule(panel, contracts.LegWinners, 6, 10, sels)
	require.NoError(t, err)

	require.Len(t, schedule.Events, 2)
	assert.Equal(t, monthEnd(2), schedule.Events[0].HoldingDate)
	assert.Equal(t, monthEnd(3), schedule.Events[1].HoldingDate)
	assert.Equal(t, 1, schedule.DegradedCount())
	assert.Equal(t, 6, schedule.Horizon)
	assert.Equal(t, 10, schedule.Size)

	// 마지막 날짜에는 보유 기간이 없음
	_, err = c.BuildSchedule(panel, contracts.LegWinners, 6, 10, []*contracts.Selection{{Date: monthEnd(3)}})
	assert.Error(t, err)

	_, err = c.BuildSchedule(panel, contracts.LegWinners, 6, 10, []*contracts.Selection{sels[1], sels[0]})
	assert.Error(t, err)
}

func TestConstraints_Check(t *testing.T) {
	c := DefaultConstraints()

	tests := []struct {
		name    string
		weights map[string]float64
		wantErr bool
	}{
		{"empty", map[string]float64{}, false},
		{"equal", map[string]float64{"A": 0.25, "B": 0.25, "C": 0.25, "D": 0.25}, false},
		{"not invested", map[string]float64{"A": 0.25, "B": 0.25}, true},
		{"unequal", map[string]float64{"A": 0.6, "B": 0.4}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Check(&contracts.Rebalance{Weights: tt.weights})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
