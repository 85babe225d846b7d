package quality

import (
	"fmt"
	"time"

	"github.com/wonny/momentum/internal/contracts"
	"github.com/wonny/momentum/pkg/logger"
)

// QualityGate validates a price panel before it enters the pipeline
type QualityGate struct {
	config Config
	logger *logger.Logger
}

// Config holds quality gate thresholds
type Config struct {
	MinDates         int     `yaml:"min_dates"`          // 최소 기간 수
	MinInstruments   int     `yaml:"min_instruments"`    // 최소 종목 수
	MinPriceCoverage float64 `yaml:"min_price_coverage"` // 상장 구간 내 가격 커버리지, 0 = 검사 안 함
}

// DefaultConfig is permissive: only an empty panel fails
func DefaultConfig() Config {
	return Config{MinDates: 2, MinInstruments: 1}
}

// Snapshot summarises panel quality
type Snapshot struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Dates       int       `json:"dates"`
	Instruments int       `json:"instruments"`

	Observations  int `json:"observations"`
	InteriorGaps  int `json:"interior_gaps"`  // 첫 관측과 마지막 관측 사이의 결측
	InvalidPrices int `json:"invalid_prices"` // <= 0 또는 NaN/Inf

	// PriceCoverage = observations / (observations + interior gaps)
	PriceCoverage     float64 `json:"price_coverage"`
	MarketCapCoverage float64 `json:"market_cap_coverage"`

	BenchmarkMissing []time.Time `json:"benchmark_missing,omitempty"`
	BenchmarkInvalid int         `json:"benchmark_invalid"`

	Issues []string `json:"issues,omitempty"`
	Passed bool     `json:"passed"`
}

// NewQualityGate creates a new QualityGate instance
func NewQualityGate(config Config, log *logger.Logger) *QualityGate {
	return &QualityGate{
		config: config,
		logger: log,
	}
}

// Check validates the panel and, when given, the benchmark series.
// A failed gate returns the snapshot together with an error.
// ⭐ SSOT: S0 → S1 품질 검증
func (g *QualityGate) Check(panel *contracts.PricePanel, benchmark *contracts.PriceSeries) (*Snapshot, error) {
	snap := &Snapshot{
		Dates:       panel.NumDates(),
		Instruments: panel.NumInstruments(),
	}
	if snap.Dates > 0 {
		snap.Start = panel.Date(0)
		snap.End = panel.Date(snap.Dates - 1)
	}

	withCap := 0
	for _, id := range panel.Instruments() {
		first, last := -1, -1
		for t := 0; t < snap.Dates; t++ {
			if _, ok := panel.Price(id, t); ok {
				if first < 0 {
					first = t
				}
				last = t
			}
		}
		for t := first; first >= 0 && t <= last; t++ {
			q, ok := panel.Quote(id, t)
			if !ok {
				snap.InteriorGaps++
				continue
			}
			snap.Observations++
			if !contracts.ValidPrice(q.Price) {
				snap.InvalidPrices++
			}
			if q.HasMarketCap {
				withCap++
			}
		}
	}

	if total := snap.Observations + snap.InteriorGaps; total > 0 {
		snap.PriceCoverage = float64(snap.Observations) / float64(total)
	}
	if snap.Observations > 0 {
		snap.MarketCapCoverage = float64(withCap) / float64(snap.Observations)
	}

	if benchmark != nil {
		for t := 0; t < snap.Dates; t++ {
			p, ok := benchmark.PriceOn(panel.Date(t))
			if !ok {
				snap.BenchmarkMissing = append(snap.BenchmarkMissing, panel.Date(t))
				continue
			}
			if !contracts.ValidPrice(p) {
				snap.BenchmarkInvalid++
			}
		}
	}

	g.evaluate(snap)

	g.logger.WithFields(map[string]interface{}{
		"dates":          snap.Dates,
		"instruments":    snap.Instruments,
		"observations":   snap.Observations,
		"interior_gaps":  snap.InteriorGaps,
		"invalid_prices": snap.InvalidPrices,
		"price_coverage": snap.PriceCoverage,
		"passed":         snap.Passed,
	}).Info("Panel quality checked")

	if !snap.Passed {
		return snap, fmt.Errorf("quality gate failed: %v", snap.Issues)
	}
	return snap, nil
}

func (g *QualityGate) evaluate(snap *Snapshot) {
	if snap.Dates < g.config.MinDates {
		snap.Issues = append(snap.Issues, fmt.Sprintf("%d dates < %d", snap.Dates, g.config.MinDates))
	}
	if snap.Instruments < g.config.MinInstruments {
		snap.Issues = append(snap.Issues, fmt.Sprintf("%d instruments < %d", snap.Instruments, g.config.MinInstruments))
	}
	if g.config.MinPriceCoverage > 0 && snap.PriceCoverage < g.config.MinPriceCoverage {
		snap.Issues = append(snap.Issues, fmt.Sprintf("price coverage %.4f < %.4f", snap.PriceCoverage, g.config.MinPriceCoverage))
	}
	if snap.BenchmarkInvalid > 0 {
		snap.Issues = append(snap.Issues, fmt.Sprintf("benchmark has %d invalid prices", snap.BenchmarkInvalid))
	}
	snap.Passed = len(snap.Issues) == 0
}
