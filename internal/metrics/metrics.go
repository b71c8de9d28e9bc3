// Package metrics exposes Prometheus instrumentation for the refresh cycle.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests and one-shot CLI commands.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "inteldash"

// Fetch outcome label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds the collectors for feed fetches and refresh cycles.
type Metrics struct {
	// FetchesTotal counts per-name feed fetches. Labels: status (ok, error).
	FetchesTotal *prometheus.CounterVec

	// FetchDuration measures a single feed fetch, including parsing.
	FetchDuration prometheus.Histogram

	// RecordsTotal counts normalized records per assigned category.
	RecordsTotal *prometheus.CounterVec

	// UndatedTotal counts records whose published timestamp did not parse.
	UndatedTotal prometheus.Counter

	// CycleDuration measures one full aggregate+filter+group cycle.
	CycleDuration prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FetchesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "feed",
				Name:      "fetches_total",
				Help:      "Feed fetches by outcome",
			},
			[]string{"status"},
		),
		FetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a single feed fetch in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		RecordsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_total",
				Help:      "Normalized records by assigned category",
			},
			[]string{"category"},
		),
		UndatedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_undated_total",
			Help:      "Records whose published timestamp could not be parsed",
		}),
		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a full refresh cycle in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}

// ObserveFetch records one fetch outcome.
func (m *Metrics) ObserveFetch(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(status).Inc()
	m.FetchDuration.Observe(d.Seconds())
}

// ObserveRecord records the categories of one normalized record.
func (m *Metrics) ObserveRecord(categories []string, dated bool) {
	if m == nil {
		return
	}
	for _, c := range categories {
		m.RecordsTotal.WithLabelValues(c).Inc()
	}
	if !dated {
		m.UndatedTotal.Inc()
	}
}

// ObserveCycle records the duration of a refresh cycle.
func (m *Metrics) ObserveCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.CycleDuration.Observe(d.Seconds())
}
