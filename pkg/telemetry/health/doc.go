// Package health provides liveness, readiness and version endpoints for the
// Callisto API.
//
// # Endpoints
//
//   - /health: liveness, the process is running
//   - /ready: readiness; "ready", "degraded" when an advisory check fails,
//     or "unavailable" (503) when a critical check fails
//   - /version: build information
//
// # Usage
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("storage", func(ctx context.Context) error {
//	    _, err := store.Load(ctx)
//	    return err
//	})
//	checker.RegisterAdvisory("engine", func(context.Context) error {
//	    if eng.Pending() >= queueSize {
//	        return errors.New("learning queue is full")
//	    }
//	    return nil
//	})
//	health.Register(mux, checker, health.BuildInfo{Version: version})
package health
