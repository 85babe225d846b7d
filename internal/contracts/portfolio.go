package contracts

import (
	"sort"
	"time"
)

// Rebalance is one weight vector fixed at FormationDate and held until HoldingDate
// ⭐ 계약: 가중치는 리밸런싱 시점에 고정, 다음 기간 수익률을 실현
type Rebalance struct {
	FormationDate time.Time          `json:"formation_date"`
	HoldingDate   time.Time          `json:"holding_date"`
	Weights       map[string]float64 `json:"weights"` // unselected = implicit 0
	Degraded      bool               `json:"degraded"`
	Reason        string             `json:"reason,omitempty"`
}

// TotalWeight returns the sum of all weights
func (r *Rebalance) TotalWeight() float64 {
	total := 0.0
	for _, w := range r.Weights {
		total += w
	}
	return total
}

// Count returns the number of held instruments
func (r *Rebalance) Count() int {
	return len(r.Weights)
}

// Holdings returns held instrument IDs in lexicographic order
func (r *Rebalance) Holdings() []string {
	ids := make([]string, 0, len(r.Weights))
	for id := range r.Weights {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// WeightSchedule is the ordered sequence of rebalances for one portfolio
// ⭐ SSOT: S5 → S6 목표 비중 스케줄
type WeightSchedule struct {
	Leg     Leg         `json:"leg"`
	Horizon int         `json:"horizon"`
	Size    int         `json:"size"`
	Events  []Rebalance `json:"events"`
}

// DegradedCount returns how many rebalances were degraded
func (s *WeightSchedule) DegradedCount() int {
	n := 0
	for _, e := range s.Events {
		if e.Degraded {
			n++
		}
	}
	return n
}
