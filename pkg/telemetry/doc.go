// Package telemetry groups Callisto's observability packages.
//
//   - logging: structured slog loggers with request context and header redaction
//   - metrics: Prometheus collectors for decisions, detections, probes and the registry
//   - tracing: OpenTelemetry spans for exchange handling and learning
//   - health: liveness, readiness and version endpoints
//
// Each package is usable on its own; cmd/callisto wires them together from
// the telemetry section of the configuration file.
package telemetry
