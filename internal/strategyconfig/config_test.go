package strategyconfig

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := "../../config/strategy/momentum.yaml"

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("config file not found")
	}

	cfg, yamlData, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "momentum_monthly", cfg.Meta.StrategyID)
	assert.Equal(t, []int{1, 3, 6, 12}, cfg.Signals.Horizons)
	assert.Equal(t, []int{10, 20, 30, 40, 50}, cfg.Portfolio.Sizes)
	assert.Equal(t, LagHorizon, cfg.Significance.LagRule)
	assert.True(t, cfg.Portfolio.Losers)

	// 해시 생성
	hash, err := Hash(cfg)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	// 동일 설정 → 동일 해시
	hash2, _ := Hash(cfg)
	assert.Equal(t, hash, hash2, "hash not deterministic")

	t.Logf("config hash: %s", hash)
	t.Logf("yaml size: %d bytes", len(yamlData))
}

func TestParse_DefaultsFillMissingFields(t *testing.T) {
	cfg, err := Parse([]byte("meta:\n  strategy_id: x\nsignals:\n  horizons: [6]\n"))
	require.NoError(t, err)

	assert.Equal(t, []int{6}, cfg.Signals.Horizons)
	assert.Equal(t, 1, cfg.Signals.Skip)
	assert.Equal(t, []int{10, 20, 30, 40, 50}, cfg.Portfolio.Sizes)
	assert.Equal(t, DelistRenormalize, cfg.Portfolio.DelistingPolicy)
	assert.True(t, cfg.Evaluation.CommonStart)
}

func TestParse_EmptyDocumentIsDefault(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_UnknownFieldFails(t *testing.T) {
	_, err := Parse([]byte("signals:\n  horizon: [6]\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"default ok", func(*Config) {}, ""},
		{"missing id", func(c *Config) { c.Meta.StrategyID = "" }, "meta.strategy_id"},
		{"no horizons", func(c *Config) { c.Signals.Horizons = nil }, "signals.horizons"},
		{"zero horizon", func(c *Config) { c.Signals.Horizons = []int{0, 3} }, "signals.horizons"},
		{"duplicate horizon", func(c *Config) { c.Signals.Horizons = []int{3, 3} }, "signals.horizons"},
		{"negative skip", func(c *Config) { c.Signals.Skip = -1 }, "signals.skip"},
		{"bad bounds", func(c *Config) { c.Signals.ScoreBounds = &ScoreBounds{Min: 1, Max: -1} }, "signals.score_bounds"},
		{"negative size", func(c *Config) { c.Portfolio.Sizes = []int{-5} }, "portfolio.sizes"},
		{"bad policy", func(c *Config) { c.Portfolio.DelistingPolicy = "drop" }, "portfolio.delisting_policy"},
		{"bad lag rule", func(c *Config) { c.Significance.LagRule = "andrews" }, "significance.lag_rule"},
		{"negative fixed lag", func(c *Config) {
			c.Significance.LagRule = LagFixed
			c.Significance.Lag = -2
		}, "significance.lag"},
		{"bad distribution", func(c *Config) { c.Significance.Distribution = "cauchy" }, "significance.distribution"},
		{"negative min cap", func(c *Config) { c.Universe.MinMarketCap = -1 }, "universe.min_market_cap"},
		{"negative workers", func(c *Config) { c.Evaluation.Workers = -1 }, "evaluation.workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestWarn(t *testing.T) {
	cfg := Default()
	assert.Empty(t, Warn(cfg))

	cfg.Signals.Skip = 0
	cfg.Portfolio.Sizes = []int{3}
	cfg.Evaluation.CommonStart = false

	codes := map[string]bool{}
	for _, w := range Warn(cfg) {
		codes[w.Code] = true
	}
	assert.True(t, codes["NO_SKIP"])
	assert.True(t, codes["SMALL_PORTFOLIO"])
	assert.True(t, codes["UNEQUAL_WINDOWS"])
}

func TestHash_ChangesWithConfig(t *testing.T) {
	a, err := Hash(Default())
	require.NoError(t, err)

	cfg := Default()
	cfg.Signals.Skip = 0
	b, err := Hash(cfg)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestNewDecisionSnapshot(t *testing.T) {
	cfg := Default()
	snap, err := NewDecisionSnapshot(cfg, []byte("meta: {}"), "abc123", "panel-fp")
	require.NoError(t, err)

	assert.Equal(t, cfg.Meta.StrategyID, snap.StrategyID)
	assert.Equal(t, "panel-fp", snap.DataSnapshotID)
	assert.Len(t, snap.ConfigHash, 64)
	assert.False(t, snap.CreatedAt.IsZero())
}
