package contracts

import "time"

// Leg identifies which side of the ranking a portfolio holds
type Leg string

const (
	LegWinners      Leg = "WINNERS"
	LegLosers       Leg = "LOSERS"
	LegWinnersMinus Leg = "WML" // winners minus losers
)

// RankedInstrument is one selected instrument with its score and 1-based rank
type RankedInstrument struct {
	Instrument string  `json:"instrument"`
	Rank       int     `json:"rank"`
	Score      float64 `json:"score"`
}

// Selection is the ranking outcome at one rebalance date
// ⭐ SSOT: S4 → S5 랭킹 결과 전달
type Selection struct {
	Date      time.Time          `json:"date"`
	Target    int                `json:"target"`    // configured N
	Available int                `json:"available"` // defined scores in the pool
	Winners   []RankedInstrument `json:"winners"`
	Losers    []RankedInstrument `json:"losers,omitempty"`

	// Degraded is set when either leg holds fewer than Target instruments.
	// The shortage is tracked per leg: a short losers leg leaves winners intact.
	Degraded        bool                       `json:"degraded"`
	WinnersShortage *InsufficientUniverseError `json:"-"`
	LosersShortage  *InsufficientUniverseError `json:"-"`
}

// Leg returns the selected instruments of one side
func (s *Selection) Leg(leg Leg) []RankedInstrument {
	if leg == LegLosers {
		return s.Losers
	}
	return s.Winners
}

// Shortage returns the shortage of one side, nil when the leg is full
func (s *Selection) Shortage(leg Leg) *InsufficientUniverseError {
	if leg == LegLosers {
		return s.LosersShortage
	}
	return s.WinnersShortage
}

// IDs returns the instrument IDs of a ranked list
func IDs(list []RankedInstrument) []string {
	out := make([]string, len(list))
	for i, r := range list {
		out[i] = r.Instrument
	}
	return out
}
