package portfolio

import (
	"fmt"
	"math"

	"github.com/wonny/momentum/internal/contracts"
)

// Constraints defines the weight invariants every rebalance must satisfy
// ⭐ SSOT: 포트폴리오 제약조건은 여기서만
type Constraints struct {
	Tolerance float64 // 부동소수 허용 오차
}

// DefaultConstraints returns default constraint configuration
func DefaultConstraints() Constraints {
	return Constraints{Tolerance: 1e-9}
}

// Check verifies that a non-empty rebalance is fully invested with pairwise
// equal weights, and that an empty one holds nothing.
func (c Constraints) Check(r *contracts.Rebalance) error {
	if r.Count() == 0 {
		return nil
	}
	if total := r.TotalWeight(); math.Abs(total-1.0) > c.Tolerance {
		return fmt.Errorf("rebalance %s: weights sum to %.12f", r.FormationDate.Format("2006-01-02"), total)
	}
	expected := 1.0 / float64(r.Count())
	for id, w := range r.Weights {
		if w < 0 || math.Abs(w-expected) > c.Tolerance {
			return fmt.Errorf("rebalance %s: %s weight %.12f, expected %.12f",
				r.FormationDate.Format("2006-01-02"), id, w, expected)
		}
	}
	return nil
}
