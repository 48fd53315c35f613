// Package metrics provides Prometheus metrics collection for Callisto.
//
// # Metrics Categories
//
//   - Decision Metrics: redirect decisions by outcome and reason, decision latency
//   - Detection Metrics: detector invocations by result, host probe outcomes
//   - Learning Metrics: learning queue drops, host associations, registry size
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
//	collector.RecordDecision("redirect", "redirect", elapsed)
//
// All metric names are prefixed with the configured namespace and subsystem,
// "callisto_engine_" by default.
package metrics
