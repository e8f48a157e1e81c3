// Package observability wires structured logging, Prometheus metrics, and
// OpenTelemetry tracing around the engine's Verify/Decide calls, carried
// forward from the teacher's internal/adapter/inbound/http metrics even
// though this module has no HTTP surface of its own (SPEC_FULL.md A4).
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments the router records against.
type Metrics struct {
	DecisionsTotal  *prometheus.CounterVec
	CheckDuration   prometheus.Histogram
	RepairsTotal    prometheus.Counter
	AdapterFailures *prometheus.CounterVec
}

// NewMetrics registers the engine's metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		DecisionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "policyforge",
				Name:      "decisions_total",
				Help:      "Total number of decisions returned by the router, by decision and mode",
			},
			[]string{"decision", "mode"},
		),
		CheckDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "policyforge",
				Name:      "check_duration_seconds",
				Help:      "Duration of a single verifier Check call",
				Buckets:   prometheus.DefBuckets,
			},
		),
		RepairsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "policyforge",
				Name:      "repairs_total",
				Help:      "Total number of soft-mode repair round-trips invoked",
			},
		),
		AdapterFailures: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "policyforge",
				Name:      "adapter_failures_total",
				Help:      "Total proposer/repair adapter failures, by adapter name",
			},
			[]string{"adapter"},
		),
	}
}
