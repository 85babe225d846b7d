package contracts

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(t *testing.T, name string, start time.Month, values ...float64) *ReturnSeries {
	t.Helper()
	dates := make([]time.Time, len(values))
	for i := range values {
		dates[i] = month(2020, start+time.Month(i))
	}
	s, err := NewReturnSeries(name, dates, values)
	require.NoError(t, err)
	return s
}

func TestNewReturnSeries_RejectsUnordered(t *testing.T) {
	_, err := NewReturnSeries("x", []time.Time{month(2020, 2), month(2020, 1)}, []float64{0, 0})
	assert.Error(t, err)
}

func TestReturnSeries_Excess(t *testing.T) {
	p := series(t, "P", 1, 0.05, -0.01, 0.02)
	b := series(t, "B", 1, 0.01, -0.02, 0.02)

	ex, err := p.Excess(b)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.04, 0.01, 0.0}, ex.Values, 1e-12)
	assert.Equal(t, p.Dates, ex.Dates)
}

func TestReturnSeries_RangeMismatch(t *testing.T) {
	p := series(t, "P", 1, 0.05, -0.01, 0.02)
	b := series(t, "B", 2, -0.02, 0.02, 0.01)

	_, err := p.Excess(b)
	require.Error(t, err)

	var rm *RangeMismatchError
	assert.True(t, errors.As(err, &rm))
	assert.Equal(t, "P", rm.Left)
	assert.Equal(t, "B", rm.Right)

	short := series(t, "S", 1, 0.05, -0.01)
	assert.Error(t, CheckAligned(p, short))
}

func TestReturnSeries_Window(t *testing.T) {
	s := series(t, "S", 1, 0.1, 0.2, 0.3, 0.4)
	w := s.Window(month(2020, 2), month(2020, 3))

	assert.Equal(t, []float64{0.2, 0.3}, w.Values)
	assert.Equal(t, month(2020, 2), w.Start())
	assert.Equal(t, month(2020, 3), w.End())
	assert.Equal(t, 4, s.Len(), "window must not mutate the source")
}

func TestReturnSeries_CumulativeAndRelative(t *testing.T) {
	p := series(t, "P", 1, 0.10, 0.10)
	b := series(t, "B", 1, 0.0, 0.0)

	assert.InDeltaSlice(t, []float64{1.0, 1.1, 1.21}, p.Cumulative(), 1e-12)

	rel, err := p.Relative(b)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1.0, 1.1, 1.21}, rel, 1e-12)
}
