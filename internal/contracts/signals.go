package contracts

import (
	"sort"
	"time"
)

// ScoreStatus tags whether a momentum score exists and, if not, why
type ScoreStatus string

const (
	ScoreDefined      ScoreStatus = "DEFINED"
	ScoreDataGap      ScoreStatus = "DATA_GAP"
	ScoreInvalidPrice ScoreStatus = "INVALID_PRICE"
	ScoreOutOfBounds  ScoreStatus = "OUT_OF_BOUNDS"
	ScoreExcluded     ScoreStatus = "EXCLUDED" // universe filter
)

// Score is a tagged optional momentum score for (instrument, date, horizon)
// ⭐ SSOT: S2 → S4 시그널 전달. "모멘텀 0" 과 "모멘텀 없음" 을 절대 혼동하지 않음
type Score struct {
	Instrument string      `json:"instrument"`
	Date       time.Time   `json:"date"`
	Horizon    int         `json:"horizon"`
	Value      float64     `json:"value"` // meaningful only when Status == ScoreDefined
	Status     ScoreStatus `json:"status"`
	Err        error       `json:"-"`
}

// Defined reports whether the score can be ranked
func (s Score) Defined() bool {
	return s.Status == ScoreDefined
}

// Reason returns the undefined reason, empty when defined
func (s Score) Reason() string {
	if s.Defined() {
		return ""
	}
	if s.Err != nil {
		return s.Err.Error()
	}
	return string(s.Status)
}

// ScoreSet holds every instrument's score at one date
type ScoreSet struct {
	Date    time.Time `json:"date"`
	Horizon int       `json:"horizon"`
	Scores  []Score   `json:"scores"` // instrument order
}

// DefinedScores returns only the rankable scores
func (s *ScoreSet) DefinedScores() []Score {
	out := make([]Score, 0, len(s.Scores))
	for _, sc := range s.Scores {
		if sc.Defined() {
			out = append(out, sc)
		}
	}
	return out
}

// Get returns the score of one instrument
func (s *ScoreSet) Get(id string) (Score, bool) {
	i := sort.Search(len(s.Scores), func(i int) bool { return s.Scores[i].Instrument >= id })
	if i < len(s.Scores) && s.Scores[i].Instrument == id {
		return s.Scores[i], true
	}
	return Score{}, false
}

// CountByStatus tallies scores per status
func (s *ScoreSet) CountByStatus() map[ScoreStatus]int {
	counts := make(map[ScoreStatus]int)
	for _, sc := range s.Scores {
		counts[sc.Status]++
	}
	return counts
}

// ScoreGrid holds one ScoreSet per panel date index for a single horizon
type ScoreGrid struct {
	Horizon int         `json:"horizon"`
	Skip    int         `json:"skip"`
	Sets    []*ScoreSet `json:"sets"`
}

// At returns the score set at panel date index t (nil when out of range)
func (g *ScoreGrid) At(t int) *ScoreSet {
	if t < 0 || t >= len(g.Sets) {
		return nil
	}
	return g.Sets[t]
}
