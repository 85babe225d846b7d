package audit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/wonny/momentum/internal/contracts"
	"github.com/wonny/momentum/internal/strategyconfig"
	"github.com/wonny/momentum/pkg/logger"
)

// minObservations is the smallest sample the excess-return test accepts
const minObservations = 3

// SignificanceConfig selects the HAC lag truncation and the reference distribution
type SignificanceConfig struct {
	LagRule      string // auto | fixed | horizon
	Lag          int    // fixed lag
	Distribution string // t | normal
}

// ConfigFrom maps the strategy significance section
func ConfigFrom(s strategyconfig.Significance) SignificanceConfig {
	return SignificanceConfig{LagRule: s.LagRule, Lag: s.Lag, Distribution: s.Distribution}
}

// SignificanceTester tests H0: mean excess return = 0 with a Newey-West
// standard error. Overlapping formation windows make monthly excess returns
// serially correlated, so the iid standard error overstates significance.
// ⭐ SSOT: S7 유의성 검정은 여기서만
type SignificanceTester struct {
	config SignificanceConfig
	logger *logger.Logger
}

// NewSignificanceTester creates a tester
func NewSignificanceTester(config SignificanceConfig, log *logger.Logger) (*SignificanceTester, error) {
	if config.LagRule == "" {
		config.LagRule = strategyconfig.LagAuto
	}
	if config.Distribution == "" {
		config.Distribution = strategyconfig.DistStudentT
	}
	switch config.LagRule {
	case strategyconfig.LagAuto, strategyconfig.LagHorizon:
	case strategyconfig.LagFixed:
		if config.Lag < 0 {
			return nil, fmt.Errorf("fixed lag must be >= 0, got %d", config.Lag)
		}
	default:
		return nil, fmt.Errorf("unknown lag rule %q", config.LagRule)
	}
	if config.Distribution != strategyconfig.DistStudentT && config.Distribution != strategyconfig.DistNormal {
		return nil, fmt.Errorf("unknown distribution %q", config.Distribution)
	}
	return &SignificanceTester{config: config, logger: log}, nil
}

// AutoLag is the Newey-West (1994) plug-in rule floor(4 (T/100)^(2/9))
func AutoLag(observations int) int {
	if observations <= 0 {
		return 0
	}
	return int(math.Floor(4.0 * math.Pow(float64(observations)/100.0, 2.0/9.0)))
}

// Lag returns the truncation lag for a sample of size T and a formation
// horizon k. The lag never exceeds T-1.
func (s *SignificanceTester) Lag(observations, horizon int) int {
	var lag int
	switch s.config.LagRule {
	case strategyconfig.LagFixed:
		lag = s.config.Lag
	case strategyconfig.LagHorizon:
		// k 개월 겹치는 윈도우 → k-1 차 자기상관
		lag = max(AutoLag(observations), horizon-1)
	default:
		lag = AutoLag(observations)
	}
	return max(0, min(lag, observations-1))
}

// NeweyWest returns the HAC variance of the sample mean, S/T, where S is the
// Bartlett-weighted long-run variance with autocovariances divided by T.
func NeweyWest(x []float64, lag int) (float64, error) {
	n := len(x)
	if n < minObservations {
		return math.NaN(), &contracts.DegenerateStatisticError{
			Statistic: "hac_std_error",
			Reason:    fmt.Sprintf("%d observations, need %d", n, minObservations),
		}
	}
	if lag < 0 || lag >= n {
		return math.NaN(), fmt.Errorf("lag %d out of range [0, %d)", lag, n)
	}

	mean := stat.Mean(x, nil)
	d := make([]float64, n)
	for i, v := range x {
		d[i] = v - mean
	}

	gamma := func(l int) float64 {
		sum := 0.0
		for t := l; t < n; t++ {
			sum += d[t] * d[t-l]
		}
		return sum / float64(n)
	}

	lrv := gamma(0)
	for l := 1; l <= lag; l++ {
		w := 1.0 - float64(l)/float64(lag+1) // Bartlett
		lrv += 2.0 * w * gamma(l)
	}

	if lrv <= zeroTol*zeroTol {
		return math.NaN(), &contracts.DegenerateStatisticError{
			Statistic: "hac_std_error",
			Reason:    "non-positive long-run variance",
		}
	}
	return lrv / float64(n), nil
}

// Test runs the HAC test on an excess-return series
func (s *SignificanceTester) Test(excess *contracts.ReturnSeries, horizon int) *contracts.Significance {
	x := excess.Values
	n := len(x)
	lag := s.Lag(n, horizon)

	sig := &contracts.Significance{
		Observations: n,
		Lag:          lag,
		Distribution: s.config.Distribution,
	}
	if n == 0 {
		none := degenerate("mean_excess", "no observations")
		sig.MeanExcess, sig.HACStdError, sig.HACTStat, sig.HACPValue, sig.NaivePValue = none, none, none, none, none
		return sig
	}

	mean := stat.Mean(x, nil)
	sig.MeanExcess = contracts.Defined(mean)
	sig.NaivePValue = s.naivePValue(x)

	varMean, err := NeweyWest(x, lag)
	if err != nil {
		reason := contracts.Undefined(err.Error())
		sig.HACStdError, sig.HACTStat, sig.HACPValue = reason, reason, reason
		s.logger.WithFields(map[string]interface{}{
			"series":       excess.Name,
			"observations": n,
			"lag":          lag,
		}).WithError(err).Debug("HAC test degenerate")
		return sig
	}

	se := math.Sqrt(varMean)
	tstat := mean / se
	sig.HACStdError = contracts.Defined(se)
	sig.HACTStat = contracts.Defined(tstat)
	sig.HACPValue = contracts.Defined(s.twoSided(tstat, n-1))

	s.logger.WithFields(map[string]interface{}{
		"series":       excess.Name,
		"observations": n,
		"lag":          lag,
		"mean_excess":  mean,
		"hac_t":        tstat,
		"hac_p":        sig.HACPValue.Value,
	}).Debug("Significance test completed")

	return sig
}

// TestAgainst builds portfolio - benchmark and tests it. The two series
// must cover identical dates.
func (s *SignificanceTester) TestAgainst(portfolio, benchmark *contracts.ReturnSeries, horizon int) (*contracts.Significance, error) {
	excess, err := portfolio.Excess(benchmark)
	if err != nil {
		return nil, err
	}
	return s.Test(excess, horizon), nil
}

// naivePValue is the iid paired t-test on the differences
func (s *SignificanceTester) naivePValue(x []float64) contracts.Metric {
	n := len(x)
	if n < minObservations {
		return degenerate("naive_p_value", fmt.Sprintf("%d observations, need %d", n, minObservations))
	}
	mean, std := stat.MeanStdDev(x, nil)
	if std <= zeroTol {
		return degenerate("naive_p_value", "zero variance")
	}
	tstat := mean / (std / math.Sqrt(float64(n)))
	return contracts.Defined(studentTwoSided(tstat, n-1))
}

// twoSided returns P(|Z| > |t|) under the configured distribution
func (s *SignificanceTester) twoSided(tstat float64, dof int) float64 {
	if s.config.Distribution == strategyconfig.DistNormal {
		return normalTwoSided(tstat)
	}
	return studentTwoSided(tstat, dof)
}

func studentTwoSided(tstat float64, dof int) float64 {
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(dof)}
	return 2.0 * (1.0 - dist.CDF(math.Abs(tstat)))
}

func normalTwoSided(z float64) float64 {
	dist := distuv.Normal{Mu: 0, Sigma: 1}
	return 2.0 * (1.0 - dist.CDF(math.Abs(z)))
}

// Stars marks significance: *** p<0.001, ** p<0.01, * p<0.05
func Stars(p contracts.Metric) string {
	if !p.IsDefined() {
		return ""
	}
	switch {
	case p.Value < 0.001:
		return "***"
	case p.Value < 0.01:
		return "**"
	case p.Value < 0.05:
		return "*"
	}
	return ""
}
