package s1_universe

import (
	"fmt"

	"github.com/wonny/momentum/internal/contracts"
	"github.com/wonny/momentum/internal/strategyconfig"
	"github.com/wonny/momentum/pkg/logger"
)

// Config holds universe filter criteria
type Config struct {
	MinMarketCap     float64 `yaml:"min_market_cap"`     // 0 = 필터 없음
	RequireMarketCap bool    `yaml:"require_market_cap"` // 시가총액 없는 종목 제외
}

// ConfigFrom maps the strategy universe section
func ConfigFrom(u strategyconfig.Universe) Config {
	return Config{MinMarketCap: u.MinMarketCap, RequireMarketCap: u.RequireMarketCap}
}

// Active reports whether the filter removes anything
func (c Config) Active() bool {
	return c.MinMarketCap > 0 || c.RequireMarketCap
}

// Builder restricts the ranking pool to the investable universe
type Builder struct {
	config Config
	logger *logger.Logger
}

// NewBuilder creates a new Universe Builder
func NewBuilder(config Config, log *logger.Logger) *Builder {
	return &Builder{
		config: config,
		logger: log,
	}
}

// Apply marks defined scores of ineligible instruments as EXCLUDED.
// Eligibility uses the market cap observed at the formation date of the set.
// ⭐ SSOT: S1 유니버스 필터 (랭킹 풀 구성)
func (b *Builder) Apply(panel *contracts.PricePanel, set *contracts.ScoreSet) (*contracts.ScoreSet, error) {
	if !b.config.Active() {
		return set, nil
	}

	t := panel.DateIndex(set.Date)
	if t < 0 {
		return nil, fmt.Errorf("universe: date %s not in panel", set.Date.Format("2006-01-02"))
	}

	out := &contracts.ScoreSet{
		Date:    set.Date,
		Horizon: set.Horizon,
		Scores:  make([]contracts.Score, len(set.Scores)),
	}

	excluded := 0
	for i, sc := range set.Scores {
		out.Scores[i] = sc
		if !sc.Defined() {
			continue
		}
		if reason := b.exclusion(panel, sc.Instrument, t); reason != "" {
			out.Scores[i].Status = contracts.ScoreExcluded
			out.Scores[i].Err = fmt.Errorf("universe: %s", reason)
			excluded++
		}
	}

	b.logger.WithFields(map[string]interface{}{
		"date":           set.Date.Format("2006-01-02"),
		"horizon":        set.Horizon,
		"excluded":       excluded,
		"min_market_cap": b.config.MinMarketCap,
	}).Debug("Applied universe filter")

	return out, nil
}

func (b *Builder) exclusion(panel *contracts.PricePanel, id string, t int) string {
	mc, ok := panel.MarketCap(id, t)
	if !ok {
		// 필터가 켜져 있으면 시가총액 없는 종목은 판단 불가 → 제외
		return "no market cap"
	}
	if mc < b.config.MinMarketCap {
		return fmt.Sprintf("market cap %.0f below %.0f", mc, b.config.MinMarketCap)
	}
	return ""
}
