package strategyconfig

import "time"

// Config는 모멘텀 백테스트 전략의 전체 설정
type Config struct {
	Meta         Meta         `yaml:"meta" json:"meta"`
	Universe     Universe     `yaml:"universe" json:"universe"`
	Signals      Signals      `yaml:"signals" json:"signals"`
	Portfolio    Portfolio    `yaml:"portfolio" json:"portfolio"`
	Significance Significance `yaml:"significance" json:"significance"`
	Evaluation   Evaluation   `yaml:"evaluation" json:"evaluation"`
}

// Meta 메타 정보
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Version    string `yaml:"version" json:"version"`
}

// Universe S1: 투자 가능 풀
type Universe struct {
	// MinMarketCap drops instruments whose market cap at the formation date
	// is below the threshold. 0 disables the filter.
	MinMarketCap float64 `yaml:"min_market_cap" json:"min_market_cap"`
	// RequireMarketCap excludes instruments without a market cap observation
	// when the filter is active.
	RequireMarketCap bool `yaml:"require_market_cap" json:"require_market_cap"`
}

// Signals S2: 모멘텀 점수
type Signals struct {
	Horizons    []int        `yaml:"horizons" json:"horizons"` // months
	Skip        int          `yaml:"skip" json:"skip"`
	ScoreBounds *ScoreBounds `yaml:"score_bounds,omitempty" json:"score_bounds,omitempty"`
}

// ScoreBounds marks scores outside [Min, Max] as OUT_OF_BOUNDS
type ScoreBounds struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Delisting policies for constituents without a holding-period price
const (
	DelistRenormalize = "renormalize"
	DelistZero        = "zero"
	DelistLastKnown   = "last_known"
)

// Portfolio S5
type Portfolio struct {
	Sizes           []int  `yaml:"sizes" json:"sizes"`
	Losers          bool   `yaml:"losers" json:"losers"`
	DelistingPolicy string `yaml:"delisting_policy" json:"delisting_policy"`
}

// Lag rules and distributions for the HAC test
const (
	LagAuto    = "auto"
	LagFixed   = "fixed"
	LagHorizon = "horizon"

	DistStudentT = "t"
	DistNormal   = "normal"
)

// Significance S7: Newey-West 검정
type Significance struct {
	LagRule      string `yaml:"lag_rule" json:"lag_rule"`
	Lag          int    `yaml:"lag" json:"lag"` // used when lag_rule = fixed
	Distribution string `yaml:"distribution" json:"distribution"`
}

// Evaluation 비교 실행 설정
type Evaluation struct {
	CommonStart bool `yaml:"common_start" json:"common_start"`
	Workers     int  `yaml:"workers" json:"workers"` // 0 = use app config
}

// Default returns the configuration of the reference study:
// horizons 1/3/6/12 months, portfolio sizes 10..50, one-month skip.
func Default() *Config {
	return &Config{
		Meta: Meta{StrategyID: "momentum_default", Version: "1"},
		Signals: Signals{
			Horizons: []int{1, 3, 6, 12},
			Skip:     1,
		},
		Portfolio: Portfolio{
			Sizes:           []int{10, 20, 30, 40, 50},
			DelistingPolicy: DelistRenormalize,
		},
		Significance: Significance{
			LagRule:      LagAuto,
			Distribution: DistStudentT,
		},
		Evaluation: Evaluation{CommonStart: true},
	}
}

// DecisionSnapshot 의사결정 스냅샷 (재현성용)
type DecisionSnapshot struct {
	ConfigHash     string    `json:"config_hash"`
	ConfigYAML     string    `json:"config_yaml"`
	StrategyID     string    `json:"strategy_id"`
	GitCommit      string    `json:"git_commit"`
	DataSnapshotID string    `json:"data_snapshot_id"`
	CreatedAt      time.Time `json:"created_at"`
}
