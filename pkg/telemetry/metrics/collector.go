package metrics

import (
	"time"

	"mercator-hq/callisto/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector is the main orchestrator for all Prometheus metrics in Callisto.
// It manages metric registration and provides a single recording surface for
// the engine, the detectors and the host probe.
//
// A nil *Collector is valid and records nothing, so components can be built
// without metrics in tests.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	// Redirect decision metrics
	decisionMetrics *DecisionMetrics

	// Detector and probe metrics
	detectionMetrics *DetectionMetrics

	// Learning queue, association and registry size metrics
	learningMetrics *LearningMetrics
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a fresh registry is created.
//
// Example:
//
//	cfg := &config.MetricsConfig{
//		Enabled:   true,
//		Namespace: "callisto",
//		Subsystem: "engine",
//	}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.DecisionDurationBuckets) == 0 {
		cfg.DecisionDurationBuckets = append([]float64(nil), config.DefaultDecisionDurationBuckets...)
	}

	c := &Collector{
		config:   cfg,
		registry: registry,
	}

	c.decisionMetrics = NewDecisionMetrics(cfg, registry)
	c.detectionMetrics = NewDetectionMetrics(cfg, registry)
	c.learningMetrics = NewLearningMetrics(cfg, registry)

	return c
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// RecordDecision records the outcome of one redirect decision.
//
// Parameters:
//   - outcome: "redirect" or "pass"
//   - reason: the decider reason (e.g. "referrer_same_host")
//   - duration: time spent deciding
func (c *Collector) RecordDecision(outcome, reason string, duration time.Duration) {
	if !c.enabled() {
		return
	}

	c.decisionMetrics.RecordDecision(outcome, reason, duration)
}

// RecordDetection records one detector invocation.
//
// Parameters:
//   - detector: detector name (e.g. "ezproxy", "vpn-gateway")
//   - result: "match", "decline" or "error"
func (c *Collector) RecordDetection(detector, result string) {
	if !c.enabled() {
		return
	}

	c.detectionMetrics.RecordDetection(detector, result)
}

// RecordProbe records the outcome of a host probe.
func (c *Collector) RecordProbe(result string) {
	if !c.enabled() {
		return
	}

	c.detectionMetrics.RecordProbe(result)
}

// RecordQueueDrop records an exchange that was not learned from because the
// learning queue was full.
func (c *Collector) RecordQueueDrop() {
	if !c.enabled() {
		return
	}

	c.learningMetrics.RecordDrop()
}

// RecordAssociation records a host association attempt.
//
// Parameters:
//   - result: "added", "known", "blacklisted", "confirm" or "error"
func (c *Collector) RecordAssociation(result string) {
	if !c.enabled() {
		return
	}

	c.learningMetrics.RecordAssociation(result)
}

// UpdateRegistrySize sets the proxy and host gauges.
func (c *Collector) UpdateRegistrySize(proxies, hosts int) {
	if !c.enabled() {
		return
	}

	c.learningMetrics.UpdateRegistrySize(proxies, hosts)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
