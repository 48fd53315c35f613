package metrics

import (
	"mercator-hq/callisto/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// DetectionMetrics tracks detector invocations and host probes.
//
// Metrics:
//   - callisto_engine_detections_total: detector runs by detector and result
//   - callisto_engine_probes_total: host probes by result
type DetectionMetrics struct {
	detectionsTotal *prometheus.CounterVec
	probesTotal     *prometheus.CounterVec
}

// NewDetectionMetrics creates and registers detection metrics with the provided registry.
func NewDetectionMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *DetectionMetrics {
	dm := &DetectionMetrics{
		detectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "detections_total",
				Help:      "Total number of detector invocations",
			},
			[]string{"detector", "result"},
		),

		probesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "probes_total",
				Help:      "Total number of host probes by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		dm.detectionsTotal,
		dm.probesTotal,
	)

	return dm
}

// RecordDetection records a detector run.
func (dm *DetectionMetrics) RecordDetection(detector, result string) {
	dm.detectionsTotal.WithLabelValues(detector, result).Inc()
}

// RecordProbe records a probe outcome.
func (dm *DetectionMetrics) RecordProbe(result string) {
	dm.probesTotal.WithLabelValues(result).Inc()
}
