package metrics

import (
	"mercator-hq/callisto/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// LearningMetrics tracks the background learning worker and the registry it
// mutates.
//
// Metrics:
//   - callisto_engine_learning_queue_dropped_total: exchanges dropped on a full queue
//   - callisto_engine_associations_total: host association attempts by result
//   - callisto_engine_registry_proxies: number of known proxies
//   - callisto_engine_registry_hosts: number of indexed canonical hosts
type LearningMetrics struct {
	droppedTotal      prometheus.Counter
	associationsTotal *prometheus.CounterVec
	proxies           prometheus.Gauge
	hosts             prometheus.Gauge
}

// NewLearningMetrics creates and registers learning metrics with the provided registry.
func NewLearningMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *LearningMetrics {
	lm := &LearningMetrics{
		droppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "learning_queue_dropped_total",
				Help:      "Total number of exchanges dropped because the learning queue was full",
			},
		),

		associationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "associations_total",
				Help:      "Total number of host association attempts",
			},
			[]string{"result"},
		),

		proxies: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "registry_proxies",
				Help:      "Number of proxies in the registry",
			},
		),

		hosts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "registry_hosts",
				Help:      "Number of canonical hosts associated with a proxy",
			},
		),
	}

	registry.MustRegister(
		lm.droppedTotal,
		lm.associationsTotal,
		lm.proxies,
		lm.hosts,
	)

	return lm
}

// RecordDrop records a dropped exchange.
func (lm *LearningMetrics) RecordDrop() {
	lm.droppedTotal.Inc()
}

// RecordAssociation records an association attempt.
func (lm *LearningMetrics) RecordAssociation(result string) {
	lm.associationsTotal.WithLabelValues(result).Inc()
}

// UpdateRegistrySize sets the registry gauges.
func (lm *LearningMetrics) UpdateRegistrySize(proxies, hosts int) {
	lm.proxies.Set(float64(proxies))
	lm.hosts.Set(float64(hosts))
}
