package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "momentum"

// Registry holds the backtest run metrics
// ⭐ SSOT: Prometheus 메트릭 정의는 여기서만
type Registry struct {
	registry *prometheus.Registry

	CombinationDuration *prometheus.HistogramVec
	Combinations        *prometheus.CounterVec
	Degraded            *prometheus.GaugeVec
	Runs                *prometheus.CounterVec
	CacheLookups        *prometheus.CounterVec
	HTTPRequests        *prometheus.CounterVec
}

// NewRegistry creates the collectors on a private registry (plus Go and
// process collectors) so tests can build as many as they like
func NewRegistry() *Registry {
	m := &Registry{
		registry: prometheus.NewRegistry(),

		CombinationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "combination_duration_seconds",
				Help:      "Duration of one (horizon, size) combination in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"horizon"},
		),

		Combinations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "combinations_total",
				Help:      "Completed combinations by result",
			},
			[]string{"horizon", "size", "result"},
		),

		Degraded: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "degraded_rebalances",
				Help:      "Degraded rebalances of the latest run per combination and leg",
			},
			[]string{"horizon", "size", "leg"},
		),

		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Comparison runs by source (computed or cache)",
			},
			[]string{"source"},
		),

		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Result cache lookups by outcome",
			},
			[]string{"outcome"},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "API requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.CombinationDuration,
		m.Combinations,
		m.Degraded,
		m.Runs,
		m.CacheLookups,
		m.HTTPRequests,
	)
	return m
}

// CombinationDone records one finished combination
func (m *Registry) CombinationDone(horizon, size int, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	h := strconv.Itoa(horizon)
	m.CombinationDuration.WithLabelValues(h).Observe(elapsed.Seconds())
	m.Combinations.WithLabelValues(h, strconv.Itoa(size), result).Inc()
}

// DegradedRebalances records the degraded rebalance count of one leg
func (m *Registry) DegradedRebalances(horizon, size int, leg string, count int) {
	m.Degraded.WithLabelValues(strconv.Itoa(horizon), strconv.Itoa(size), leg).Set(float64(count))
}

// RecordRun counts a served comparison ("computed" or "cache")
func (m *Registry) RecordRun(source string) {
	m.Runs.WithLabelValues(source).Inc()
}

// RecordCache counts a cache lookup ("hit", "miss" or "error")
func (m *Registry) RecordCache(outcome string) {
	m.CacheLookups.WithLabelValues(outcome).Inc()
}

// RecordRequest counts an API request
func (m *Registry) RecordRequest(route string, code int) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Gatherer exposes the underlying registry
func (m *Registry) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
