package contracts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRebalance_TotalWeightAndHoldings(t *testing.T) {
	r := &Rebalance{
		FormationDate: month(2020, 1),
		HoldingDate:   month(2020, 2),
		Weights:       map[string]float64{"CCC": 1.0 / 3, "AAA": 1.0 / 3, "BBB": 1.0 / 3},
	}

	assert.InDelta(t, 1.0, r.TotalWeight(), 1e-12)
	assert.Equal(t, 3, r.Count())
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, r.Holdings())
}

func TestWeightSchedule_DegradedCount(t *testing.T) {
	s := &WeightSchedule{
		Leg: LegWinners,
		Events: []Rebalance{
			{FormationDate: time.Now(), Degraded: true},
			{FormationDate: time.Now()},
			{FormationDate: time.Now(), Degraded: true},
		},
	}
	assert.Equal(t, 2, s.DegradedCount())
}
