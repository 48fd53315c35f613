// Package tracing provides OpenTelemetry tracing for Callisto.
//
// Every exchange event handled by the engine becomes an "engine.handle" span
// carrying the request id, stage, host and verdict; background learning runs
// as "engine.learn" spans carrying the detector and learned template. API
// requests are wrapped in server spans whose parent is taken from an incoming
// W3C traceparent header, so a transport that traces its own requests sees
// Callisto's decision inside the same trace.
//
// # Configuration
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    sampler: ratio        # always, never, ratio
//	    sample_ratio: 0.1
//	    endpoint: localhost:4317
//	    insecure: true
//
// Spans are exported over OTLP/gRPC. A disabled or nil *Tracer hands out
// no-op spans, so callers never check whether tracing is on.
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, "engine.handle")
//	defer span.End()
package tracing
