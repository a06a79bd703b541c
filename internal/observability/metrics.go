// Package observability provides Prometheus metrics and OpenTelemetry tracing
// helpers for the fact-check pipeline.
//
// Metrics are registered on an explicit registry so tests can use a fresh one.
// All Metrics methods are safe on a nil receiver, which disables recording.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "verity"

// Metrics holds the pipeline's Prometheus collectors
type Metrics struct {
	// ChecksTotal counts completed checks.
	// Labels: status (success, partial, no_results, error)
	ChecksTotal *prometheus.CounterVec

	// CheckDurationSeconds measures end-to-end check latency.
	// Labels: status
	CheckDurationSeconds *prometheus.HistogramVec

	// SearchCallsTotal counts search collaborator calls.
	// Labels: pass (tier, general, shortfall), outcome (ok, error)
	SearchCallsTotal *prometheus.CounterVec

	// GenerationAttemptsTotal counts provider calls made by the cascade.
	// Labels: stage, provider, outcome (success, rate_limited, error, empty)
	GenerationAttemptsTotal *prometheus.CounterVec

	// GenerationDurationSeconds measures single provider calls.
	// Labels: provider
	GenerationDurationSeconds *prometheus.HistogramVec

	// QuotaRejectionsTotal counts requests rejected by the quota window
	QuotaRejectionsTotal prometheus.Counter

	// AuthFailuresTotal counts rejected keys.
	// Labels: reason (missing, not_found, revoked, not_assigned)
	AuthFailuresTotal *prometheus.CounterVec

	// GeographyFallbacksTotal counts classifier failures replaced by the fallback label
	GeographyFallbacksTotal prometheus.Counter

	// VerdictsTotal counts derived verdicts.
	// Labels: verdict
	VerdictsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on reg.
// Registering twice on the same registry panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		ChecksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "pipeline",
				Name:      "checks_total",
				Help:      "Total fact-check requests by outcome status",
			},
			[]string{"status"},
		),

		CheckDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "pipeline",
				Name:      "check_duration_seconds",
				Help:      "End-to-end fact-check duration in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
			},
			[]string{"status"},
		),

		SearchCallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "retrieval",
				Name:      "search_calls_total",
				Help:      "Search collaborator calls by retrieval pass and outcome",
			},
			[]string{"pass", "outcome"},
		),

		GenerationAttemptsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "generation",
				Name:      "attempts_total",
				Help:      "Generation provider attempts by stage, provider and outcome",
			},
			[]string{"stage", "provider", "outcome"},
		),

		GenerationDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "generation",
				Name:      "attempt_duration_seconds",
				Help:      "Duration of single generation provider calls in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 45, 90},
			},
			[]string{"provider"},
		),

		QuotaRejectionsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "auth",
				Name:      "quota_rejections_total",
				Help:      "Requests rejected because the key's quota window was exhausted",
			},
		),

		AuthFailuresTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "auth",
				Name:      "failures_total",
				Help:      "Rejected access keys by reason",
			},
			[]string{"reason"},
		),

		GeographyFallbacksTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "geography",
				Name:      "fallbacks_total",
				Help:      "Geography classifications replaced by the fallback label",
			},
		),

		VerdictsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "pipeline",
				Name:      "verdicts_total",
				Help:      "Derived verdicts by label",
			},
			[]string{"verdict"},
		),
	}
}

// ObserveCheck records one finished check
func (m *Metrics) ObserveCheck(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ChecksTotal.WithLabelValues(status).Inc()
	m.CheckDurationSeconds.WithLabelValues(status).Observe(elapsed.Seconds())
}

// ObserveSearch records one search call
func (m *Metrics) ObserveSearch(pass string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.SearchCallsTotal.WithLabelValues(pass, outcome).Inc()
}

// ObserveGeneration records one provider attempt. It satisfies llm.Observer.
func (m *Metrics) ObserveGeneration(stage int, provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.GenerationAttemptsTotal.WithLabelValues(stageLabel(stage), provider, outcome).Inc()
	m.GenerationDurationSeconds.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// QuotaRejected records a quota rejection
func (m *Metrics) QuotaRejected() {
	if m == nil {
		return
	}
	m.QuotaRejectionsTotal.Inc()
}

// AuthFailed records a rejected key
func (m *Metrics) AuthFailed(reason string) {
	if m == nil {
		return
	}
	m.AuthFailuresTotal.WithLabelValues(reason).Inc()
}

// GeographyFallback records a fallback classification
func (m *Metrics) GeographyFallback() {
	if m == nil {
		return
	}
	m.GeographyFallbacksTotal.Inc()
}

// ObserveVerdict records a derived verdict
func (m *Metrics) ObserveVerdict(verdict string) {
	if m == nil {
		return
	}
	m.VerdictsTotal.WithLabelValues(verdict).Inc()
}

func stageLabel(stage int) string {
	switch stage {
	case 1:
		return "primary"
	case 2:
		return "secondary"
	case 3:
		return "tertiary"
	default:
		return "extra"
	}
}
