package portfolio

import (
	"fmt"
	"time"

	"github.com/wonny/momentum/internal/contracts"
	"github.com/wonny/momentum/pkg/logger"
)

// Constructor implements S5: equal-weight portfolio construction
// ⭐ SSOT: S5 포트폴리오 구성 로직은 여기서만
type Constructor struct {
	constraints Constraints
	logger      *logger.Logger
}

// NewConstructor creates a new portfolio constructor
func NewConstructor(constraints Constraints, logger *logger.Logger) *Constructor {
	return &Constructor{
		constraints: constraints,
		logger:      logger,
	}
}

// Construct turns one leg of a selection into a rebalance held over the
// period ending at holdingDate. Weights are 1/|selected| and never drift.
func (c *Constructor) Construct(sel *contracts.Selection, leg contracts.Leg, holdingDate time.Time) (contracts.Rebalance, error) {
	members := sel.Leg(leg)

	r := contracts.Rebalance{
		FormationDate: sel.Date,
		HoldingDate:   holdingDate,
		Weights:       make(map[string]float64, len(members)),
	}
	// 해당 leg 의 부족분만 반영
	if shortage := sel.Shortage(leg); shortage != nil {
		r.Degraded = true
		r.Reason = shortage.Error()
	}

	if len(members) == 0 {
		// 빈 포트폴리오 → 현금
		r.Degraded = true
		if r.Reason == "" {
			r.Reason = "empty selection"
		}
		return r, nil
	}

	w := 1.0 / float64(len(members))
	for _, m := range members {
		r.Weights[m.Instrument] = w
	}

	if err := c.constraints.Check(&r); err != nil {
		return contracts.Rebalance{}, err
	}
	return r, nil
}

// BuildSchedule builds the weight schedule of one leg. selections must be in
// date order and every selection date must be a panel date with a following
// panel date, which becomes the holding date.
func (c *Constructor) BuildSchedule(
	panel *contracts.PricePanel,
	leg contracts.Leg,
	horizon, size int,
	selections []*contracts.Selection,
) (*contracts.WeightSchedule, error) {
	schedule := &contracts.WeightSchedule{
		Leg:     leg,
		Horizon: horizon,
		Size:    size,
		Events:  make([]contracts.Rebalance, 0, len(selections)),
	}

	for i, sel := range selections {
		t := panel.DateIndex(sel.Date)
		if t < 0 || t+1 >= panel.NumDates() {
			return nil, fmt.Errorf("selection %s has no holding period in panel", sel.Date.Format("2006-01-02"))
		}
		if i > 0 && !sel.Date.After(selections[i-1].Date) {
			return nil, fmt.Errorf("selections out of order at %s", sel.Date.Format("2006-01-02"))
		}

		r, err := c.Construct(sel, leg, panel.Date(t+1))
		if err != nil {
			return nil, err
		}
		schedule.Events = append(schedule.Events, r)
	}

	c.logger.WithFields(map[string]interface{}{
		"leg":       leg,
		"horizon":   horizon,
		"size":      size,
		"rebalance": len(schedule.Events),
		"degraded":  schedule.DegradedCount(),
	}).Debug("Weight schedule built")

	return schedule, nil
}
