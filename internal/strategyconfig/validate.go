package strategyconfig

import (
	"fmt"
	"math"
	"sort"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}

	// === Universe ===
	if cfg.Universe.MinMarketCap < 0 || math.IsNaN(cfg.Universe.MinMarketCap) {
		return ValidationError{"universe.min_market_cap", "must be >= 0"}
	}

	// === Signals ===
	if err := validatePositiveUnique(cfg.Signals.Horizons); err != nil {
		return ValidationError{"signals.horizons", err.Error()}
	}
	if cfg.Signals.Skip < 0 {
		return ValidationError{"signals.skip", "must be >= 0"}
	}
	if b := cfg.Signals.ScoreBounds; b != nil {
		if math.IsNaN(b.Min) || math.IsNaN(b.Max) || b.Min >= b.Max {
			return ValidationError{"signals.score_bounds", "min must be < max"}
		}
	}

	// === Portfolio ===
	if err := validatePositiveUnique(cfg.Portfolio.Sizes); err != nil {
		return ValidationError{"portfolio.sizes", err.Error()}
	}
	switch cfg.Portfolio.DelistingPolicy {
	case DelistRenormalize, DelistZero, DelistLastKnown:
	default:
		return ValidationError{"portfolio.delisting_policy",
			fmt.Sprintf("must be one of %s|%s|%s", DelistRenormalize, DelistZero, DelistLastKnown)}
	}

	// === Significance ===
	switch cfg.Significance.LagRule {
	case LagAuto, LagHorizon:
	case LagFixed:
		if cfg.Significance.Lag < 0 {
			return ValidationError{"significance.lag", "must be >= 0"}
		}
	default:
		return ValidationError{"significance.lag_rule",
			fmt.Sprintf("must be one of %s|%s|%s", LagAuto, LagFixed, LagHorizon)}
	}
	switch cfg.Significance.Distribution {
	case DistStudentT, DistNormal:
	default:
		return ValidationError{"significance.distribution", "must be t or normal"}
	}

	// === Evaluation ===
	if cfg.Evaluation.Workers < 0 {
		return ValidationError{"evaluation.workers", "must be >= 0"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	// skip=0 이면 단기 반전 효과가 섞임
	if cfg.Signals.Skip == 0 {
		warnings = append(warnings, Warning{
			Code:    "NO_SKIP",
			Message: "skip = 0: 단기 반전 효과가 점수에 포함됨",
		})
	}

	for _, n := range cfg.Portfolio.Sizes {
		if n < 5 {
			warnings = append(warnings, Warning{
				Code:    "SMALL_PORTFOLIO",
				Message: fmt.Sprintf("portfolio size %d: 종목 리스크 집중", n),
			})
			break
		}
	}

	if !cfg.Evaluation.CommonStart && len(cfg.Signals.Horizons) > 1 {
		warnings = append(warnings, Warning{
			Code:    "UNEQUAL_WINDOWS",
			Message: "common_start = false: horizon별 평가 구간이 달라 직접 비교 불가",
		})
	}

	if cfg.Significance.LagRule == LagFixed && cfg.Significance.Lag == 0 {
		warnings = append(warnings, Warning{
			Code:    "ZERO_LAG",
			Message: "lag = 0: HAC 보정 없음 (iid 분산과 동일)",
		})
	}

	return warnings
}

// === Helper Functions ===

func validatePositiveUnique(values []int) error {
	if len(values) == 0 {
		return fmt.Errorf("must not be empty")
	}
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	if sorted[0] <= 0 {
		return fmt.Errorf("must be > 0, got %d", sorted[0])
	}
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return fmt.Errorf("duplicate value %d", sorted[i])
		}
	}
	return nil
}
