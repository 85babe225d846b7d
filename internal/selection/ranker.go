package selection

import (
	"sort"

	"github.com/wonny/momentum/internal/contracts"
	"github.com/wonny/momentum/pkg/logger"
)

// Config controls how many instruments each leg selects
type Config struct {
	Size   int  // N
	Losers bool // also select the bottom N
}

// Ranker implements S4: cross-sectional ranking by momentum score
// ⭐ SSOT: S4 랭킹 로직은 여기서만
type Ranker struct {
	config Config
	logger *logger.Logger
}

// NewRanker creates a new ranker
func NewRanker(config Config, logger *logger.Logger) *Ranker {
	return &Ranker{
		config: config,
		logger: logger,
	}
}

// Rank selects winners (top N) and optionally losers (bottom N) from the
// defined scores of set. Undefined scores never enter the pool.
//
// Ties are broken by instrument ID ascending on both legs so the result does
// not depend on input order. Losers are drawn from the pool minus winners.
func (r *Ranker) Rank(set *contracts.ScoreSet) *contracts.Selection {
	pool := set.DefinedScores()
	n := r.config.Size

	sel := &contracts.Selection{
		Date:      set.Date,
		Target:    n,
		Available: len(pool),
	}

	// 점수 내림차순, 동점은 ID 오름차순
	desc := make([]contracts.Score, len(pool))
	copy(desc, pool)
	sort.Slice(desc, func(i, j int) bool {
		if desc[i].Value != desc[j].Value {
			return desc[i].Value > desc[j].Value
		}
		return desc[i].Instrument < desc[j].Instrument
	})

	nw := min(n, len(desc))
	sel.Winners = toRanked(desc[:nw])
	if len(desc) < n {
		sel.WinnersShortage = r.shortage(set, contracts.LegWinners, len(desc), n)
	}

	if r.config.Losers {
		rest := make([]contracts.Score, len(desc)-nw)
		copy(rest, desc[nw:])
		sort.Slice(rest, func(i, j int) bool {
			if rest[i].Value != rest[j].Value {
				return rest[i].Value < rest[j].Value
			}
			return rest[i].Instrument < rest[j].Instrument
		})
		sel.Losers = toRanked(rest[:min(n, len(rest))])
		// losers 는 winners 를 뺀 나머지에서만 선택
		if len(rest) < n {
			sel.LosersShortage = r.shortage(set, contracts.LegLosers, len(rest), n)
		}
	}
	sel.Degraded = sel.WinnersShortage != nil || sel.LosersShortage != nil

	fields := map[string]interface{}{
		"date":    set.Date.Format("2006-01-02"),
		"horizon": set.Horizon,
		"pool":    len(pool),
		"winners": len(sel.Winners),
		"losers":  len(sel.Losers),
	}
	if len(sel.Winners) > 0 {
		fields["top_code"] = sel.Winners[0].Instrument
		fields["top_score"] = sel.Winners[0].Score
	}
	r.logger.WithFields(fields).Debug("Ranking completed")

	return sel
}

func (r *Ranker) shortage(set *contracts.ScoreSet, leg contracts.Leg, available, required int) *contracts.InsufficientUniverseError {
	r.logger.WithFields(map[string]interface{}{
		"date":      set.Date.Format("2006-01-02"),
		"horizon":   set.Horizon,
		"leg":       leg,
		"available": available,
		"required":  required,
	}).Warn("Degraded selection: insufficient universe")

	return &contracts.InsufficientUniverseError{
		Date:      set.Date,
		Available: available,
		Required:  required,
	}
}

func toRanked(scores []contracts.Score) []contracts.RankedInstrument {
	out := make([]contracts.RankedInstrument, len(scores))
	for i, sc := range scores {
		out[i] = contracts.RankedInstrument{
			Instrument: sc.Instrument,
			Rank:       i + 1,
			Score:      sc.Value,
		}
	}
	return out
}
