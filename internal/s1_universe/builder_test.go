package s1_universe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/momentum/internal/contracts"
	"github.com/wonny/momentum/pkg/logger"
)

func TestBuilder_Apply(t *testing.T) {
	d := time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC)

	pb := contracts.NewPanelBuilder()
	pb.Set("BIG", d, 10).SetMarketCap("BIG", d, 20e9)
	pb.Set("SMALL", d, 10).SetMarketCap("SMALL", d, 1e9)
	pb.Set("NOCAP", d, 10)
	pb.Set("GAP", d, 10).SetMarketCap("GAP", d, 50e9)
	panel, err := pb.Build()
	require.NoError(t, err)

	set := &contracts.ScoreSet{Date: d, Horizon: 6, Scores: []contracts.Score{
		{Instrument: "BIG", Value: 0.1, Status: contracts.ScoreDefined},
		{Instrument: "GAP", Status: contracts.ScoreDataGap},
		{Instrument: "NOCAP", Value: 0.3, Status: contracts.ScoreDefined},
		{Instrument: "SMALL", Value: 0.2, Status: contracts.ScoreDefined},
	}}

	tests := []struct {
		name     string
		config   Config
		expected map[string]contracts.ScoreStatus
	}{
		{
			name:   "inactive filter passes through",
			config: Config{},
			expected: map[string]contracts.ScoreStatus{
				"BIG": contracts.ScoreDefined, "GAP": contracts.ScoreDataGap,
				"NOCAP": contracts.ScoreDefined, "SMALL": contracts.ScoreDefined,
			},
		},
		{
			name:   "large cap only",
			config: Config{MinMarketCap: 10e9},
			expected: map[string]contracts.ScoreStatus{
				"BIG": contracts.ScoreDefined, "GAP": contracts.ScoreDataGap,
				"NOCAP": contracts.ScoreExcluded, "SMALL": contracts.ScoreExcluded,
			},
		},
		{
			name:   "require market cap",
			config: Config{RequireMarketCap: true},
			expected: map[string]contracts.ScoreStatus{
				"BIG": contracts.ScoreDefined, "GAP": contracts.ScoreDataGap,
				"NOCAP": contracts.ScoreExcluded, "SMALL": contracts.ScoreDefined,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := NewBuilder(tt.config, logger.Nop()).Apply(panel, set)
			require.NoError(t, err)
			for id, status := range tt.expected {
				sc, ok := out.Get(id)
				require.True(t, ok)
				assert.Equal(t, status, sc.Status, id)
			}
		})
	}

	// 입력은 변경되지 않음
	assert.Equal(t, contracts.ScoreDefined, set.Scores[3].Status)
}

func TestBuilder_Apply_UnknownDate(t *testing.T) {
	pb := contracts.NewPanelBuilder()
	pb.Set("A", time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC), 1)
	panel, err := pb.Build()
	require.NoError(t, err)

	set := &contracts.ScoreSet{Date: time.Date(2021, 1, 31, 0, 0, 0, 0, time.UTC)}
	_, err = NewBuilder(Config{MinMarketCap: 1}, logger.Nop()).Apply(panel, set)
	assert.Error(t, err)
}
