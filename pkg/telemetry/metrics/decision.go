package metrics

import (
	"time"

	"mercator-hq/callisto/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// DecisionMetrics tracks redirect decisions.
//
// Metrics:
//   - callisto_engine_decisions_total: decisions by outcome and reason
//   - callisto_engine_decision_duration_seconds: decision latency histogram
type DecisionMetrics struct {
	decisionsTotal   *prometheus.CounterVec
	decisionDuration prometheus.Histogram
}

// NewDecisionMetrics creates and registers decision metrics with the provided registry.
func NewDecisionMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *DecisionMetrics {
	dm := &DecisionMetrics{
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "decisions_total",
				Help:      "Total number of redirect decisions",
			},
			[]string{"outcome", "reason"},
		),

		decisionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "decision_duration_seconds",
				Help:      "Duration of redirect decisions in seconds",
				Buckets:   cfg.DecisionDurationBuckets,
			},
		),
	}

	registry.MustRegister(
		dm.decisionsTotal,
		dm.decisionDuration,
	)

	return dm
}

// RecordDecision records a single decision.
func (dm *DecisionMetrics) RecordDecision(outcome, reason string, duration time.Duration) {
	dm.decisionsTotal.WithLabelValues(outcome, reason).Inc()
	dm.decisionDuration.Observe(duration.Seconds())
}
