package audit

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/momentum/internal/contracts"
	"github.com/wonny/momentum/pkg/logger"
)

// PeriodsPerYear is the sampling frequency of every return series (monthly)
const PeriodsPerYear = 12

// zeroTol treats a dispersion below this as zero (rounding of identical values)
const zeroTol = 1e-12

// Analyzer implements S7: Performance analysis
// ⭐ SSOT: S7 성과 분석 로직은 여기서만
type Analyzer struct {
	logger *logger.Logger
}

// NewAnalyzer creates a new performance analyzer
func NewAnalyzer(logger *logger.Logger) *Analyzer {
	return &Analyzer{
		logger: logger,
	}
}

// Analyze computes the standalone metrics of one return series.
// Undefined statistics carry a reason instead of 0 or ±Inf.
func (a *Analyzer) Analyze(series *contracts.ReturnSeries) *contracts.MetricsReport {
	r := series.Values
	report := &contracts.MetricsReport{
		Name:    series.Name,
		Start:   series.Start(),
		End:     series.End(),
		Periods: len(r),
	}

	if len(r) == 0 {
		none := contracts.Undefined("no periods")
		report.TotalReturn, report.CAGR, report.Volatility = none, none, none
		report.Sharpe, report.Sortino, report.MaxDrawdown = none, none, none
		return report
	}

	// 수익률
	report.TotalReturn = contracts.Defined(totalReturn(r))
	report.CAGR = cagr(r)

	// 리스크 지표
	report.Volatility = volatility(r)
	report.Sharpe = sharpe(r)
	report.Sortino = sortino(r)
	report.MaxDrawdown = contracts.Defined(maxDrawdown(r))

	a.logger.WithFields(map[string]interface{}{
		"series":       series.Name,
		"periods":      report.Periods,
		"cagr":         report.CAGR.Value,
		"sharpe":       report.Sharpe.Value,
		"max_drawdown": report.MaxDrawdown.Value,
	}).Debug("Performance analysis completed")

	return report
}

// Compare analyzes a portfolio and its benchmark over the same date range.
// Differing ranges fail with RangeMismatchError; nothing is truncated here.
func (a *Analyzer) Compare(portfolio, benchmark *contracts.ReturnSeries) (*contracts.MetricsReport, *contracts.MetricsReport, error) {
	if err := contracts.CheckAligned(portfolio, benchmark); err != nil {
		return nil, nil, err
	}
	return a.Analyze(portfolio), a.Analyze(benchmark), nil
}

// totalReturn calculates cumulative return
func totalReturn(r []float64) float64 {
	wealth := 1.0
	for _, x := range r {
		wealth *= 1.0 + x
	}
	return wealth - 1.0
}

// cagr annualizes the compounded return over len(r) months
func cagr(r []float64) contracts.Metric {
	wealth := 1.0 + totalReturn(r)
	if wealth <= 0 {
		// 전액 손실
		return contracts.Defined(-1.0)
	}
	years := float64(len(r)) / PeriodsPerYear
	return contracts.Defined(math.Pow(wealth, 1.0/years) - 1.0)
}

// volatility is the annualized sample standard deviation
func volatility(r []float64) contracts.Metric {
	if len(r) < 2 {
		return degenerate("volatility", "fewer than 2 periods")
	}
	return contracts.Defined(stat.StdDev(r, nil) * math.Sqrt(PeriodsPerYear))
}

// sharpe = mean / std, annualized, risk-free rate 0
func sharpe(r []float64) contracts.Metric {
	if len(r) < 2 {
		return degenerate("sharpe", "fewer than 2 periods")
	}
	mean, std := stat.MeanStdDev(r, nil)
	if std <= zeroTol {
		return degenerate("sharpe", "zero volatility")
	}
	return contracts.Defined(mean / std * math.Sqrt(PeriodsPerYear))
}

// sortino = mean / downside deviation, annualized. The downside deviation is
// the sample standard deviation of the negative periods only.
func sortino(r []float64) contracts.Metric {
	var neg []float64
	for _, x := range r {
		if x < 0 {
			neg = append(neg, x)
		}
	}
	switch {
	case len(neg) == 0:
		return degenerate("sortino", "no negative periods")
	case len(neg) < 2:
		return degenerate("sortino", "fewer than 2 negative periods")
	}
	down := stat.StdDev(neg, nil)
	if down <= zeroTol {
		return degenerate("sortino", "zero downside deviation")
	}
	return contracts.Defined(stat.Mean(r, nil) / down * math.Sqrt(PeriodsPerYear))
}

// maxDrawdown is the worst peak-to-trough decline of the wealth index
// anchored at 1.0, reported as a value <= 0.
func maxDrawdown(r []float64) float64 {
	peak := 1.0
	wealth := 1.0
	worst := 0.0
	for _, x := range r {
		wealth *= 1.0 + x
		if wealth > peak {
			peak = wealth
		}
		if dd := wealth/peak - 1.0; dd < worst {
			worst = dd
		}
	}
	return worst
}

func degenerate(statistic, reason string) contracts.Metric {
	err := &contracts.DegenerateStatisticError{Statistic: statistic, Reason: reason}
	return contracts.Undefined(err.Error())
}
