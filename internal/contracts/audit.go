package contracts

import (
	"encoding/json"
	"math"
	"time"
)

// Metric is a statistic that is either a number or explicitly undefined.
// Undefined values hold NaN and a reason; they are never coerced to 0 or ±Inf.
type Metric struct {
	Value  float64
	Reason string
}

// Defined wraps a finite value
func Defined(v float64) Metric {
	return Metric{Value: v}
}

// Undefined builds an undefined metric with a reason
func Undefined(reason string) Metric {
	return Metric{Value: math.NaN(), Reason: reason}
}

// IsDefined reports whether the metric carries a number
func (m Metric) IsDefined() bool {
	return m.Reason == "" && !math.IsNaN(m.Value)
}

type metricJSON struct {
	Value  *float64 `json:"value"`
	Reason string   `json:"reason,omitempty"`
}

// MarshalJSON encodes undefined metrics as {"value":null,"reason":...}
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.IsDefined() {
		reason := m.Reason
		if reason == "" {
			reason = "not a number"
		}
		return json.Marshal(metricJSON{Reason: reason})
	}
	v := m.Value
	return json.Marshal(metricJSON{Value: &v})
}

// UnmarshalJSON is the inverse of MarshalJSON
func (m *Metric) UnmarshalJSON(data []byte) error {
	var raw metricJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Value == nil {
		*m = Undefined(raw.Reason)
		return nil
	}
	*m = Metric{Value: *raw.Value}
	return nil
}

// Significance holds the mean-excess-return test versus the benchmark
type Significance struct {
	Observations int    `json:"observations"`
	Lag          int    `json:"lag"`
	Distribution string `json:"distribution"` // t | normal
	MeanExcess   Metric `json:"mean_excess"`
	HACStdError  Metric `json:"hac_std_error"`
	HACTStat     Metric `json:"hac_t_stat"`
	HACPValue    Metric `json:"hac_p_value"`
	NaivePValue  Metric `json:"naive_p_value"` // iid paired t-test
}

// MetricsReport is the immutable outcome of one (horizon, size, leg) evaluation
// ⭐ SSOT: S7 성과 리포트
type MetricsReport struct {
	Name        string    `json:"name"`
	Horizon     int       `json:"horizon"`
	Size        int       `json:"size"`
	Leg         Leg       `json:"leg"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Periods     int       `json:"periods"`
	TotalReturn Metric    `json:"total_return"`
	CAGR        Metric    `json:"cagr"`
	Volatility  Metric    `json:"volatility"`
	Sharpe      Metric    `json:"sharpe"`
	Sortino     Metric    `json:"sortino"`
	MaxDrawdown Metric    `json:"max_drawdown"`

	// Nil for the benchmark's own report
	Significance *Significance `json:"significance,omitempty"`

	DegradedRebalances int `json:"degraded_rebalances"`
}
