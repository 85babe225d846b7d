package contracts

import (
	"fmt"
	"time"
)

// ReturnSeries is an ordered sequence of (date, simple return).
// ⭐ SSOT: S6 → S7 수익률 시계열. 한 번 생성 후 읽기 전용
type ReturnSeries struct {
	Name   string      `json:"name"`
	Dates  []time.Time `json:"dates"`
	Values []float64   `json:"values"`
}

// NewReturnSeries copies dates and values into a new series
func NewReturnSeries(name string, dates []time.Time, values []float64) (*ReturnSeries, error) {
	if len(dates) != len(values) {
		return nil, fmt.Errorf("return series %s: %d dates vs %d values", name, len(dates), len(values))
	}
	for i := 1; i < len(dates); i++ {
		if !dates[i].After(dates[i-1]) {
			return nil, fmt.Errorf("return series %s: dates not strictly increasing at %d", name, i)
		}
	}
	s := &ReturnSeries{
		Name:   name,
		Dates:  make([]time.Time, len(dates)),
		Values: make([]float64, len(values)),
	}
	copy(s.Dates, dates)
	copy(s.Values, values)
	return s, nil
}

// Len returns the number of periods
func (s *ReturnSeries) Len() int {
	return len(s.Values)
}

// Start returns the first date (zero for an empty series)
func (s *ReturnSeries) Start() time.Time {
	if len(s.Dates) == 0 {
		return time.Time{}
	}
	return s.Dates[0]
}

// End returns the last date (zero for an empty series)
func (s *ReturnSeries) End() time.Time {
	if len(s.Dates) == 0 {
		return time.Time{}
	}
	return s.Dates[len(s.Dates)-1]
}

// Window returns the sub-series with from <= date <= to. This is the only
// way to shorten a series and callers use it explicitly.
func (s *ReturnSeries) Window(from, to time.Time) *ReturnSeries {
	out := &ReturnSeries{Name: s.Name}
	for i, d := range s.Dates {
		if d.Before(from) || d.After(to) {
			continue
		}
		out.Dates = append(out.Dates, d)
		out.Values = append(out.Values, s.Values[i])
	}
	return out
}

// CheckAligned fails with RangeMismatchError unless both series cover
// exactly the same dates.
func CheckAligned(a, b *ReturnSeries) error {
	mismatch := len(a.Dates) != len(b.Dates)
	if !mismatch {
		for i := range a.Dates {
			if !a.Dates[i].Equal(b.Dates[i]) {
				mismatch = true
				break
			}
		}
	}
	if !mismatch {
		return nil
	}
	return &RangeMismatchError{
		Left: a.Name, LeftStart: a.Start(), LeftEnd: a.End(), LeftLen: a.Len(),
		Right: b.Name, RightStart: b.Start(), RightEnd: b.End(), RightLen: b.Len(),
	}
}

// Excess returns s − other period by period
func (s *ReturnSeries) Excess(other *ReturnSeries) (*ReturnSeries, error) {
	if err := CheckAligned(s, other); err != nil {
		return nil, err
	}
	values := make([]float64, len(s.Values))
	for i := range s.Values {
		values[i] = s.Values[i] - other.Values[i]
	}
	return NewReturnSeries(s.Name+"-"+other.Name, s.Dates, values)
}

// Cumulative returns the compounded wealth index anchored at 1.0 before the
// first period; len = Len()+1.
func (s *ReturnSeries) Cumulative() []float64 {
	out := make([]float64, len(s.Values)+1)
	out[0] = 1.0
	for i, r := range s.Values {
		out[i+1] = out[i] * (1.0 + r)
	}
	return out
}

// Relative returns the ratio of cumulative indices s / other (>1 = outperformance)
func (s *ReturnSeries) Relative(other *ReturnSeries) ([]float64, error) {
	if err := CheckAligned(s, other); err != nil {
		return nil, err
	}
	cs, co := s.Cumulative(), other.Cumulative()
	out := make([]float64, len(cs))
	for i := range cs {
		out[i] = cs[i] / co[i]
	}
	return out, nil
}
