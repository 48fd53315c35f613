package health

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Readiness states.
const (
	StatusReady       = "ready"
	StatusDegraded    = "degraded"
	StatusUnavailable = "unavailable"
)

// CheckFunc probes one component and returns nil when it is usable.
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of one check.
type CheckResult struct {
	Status     string `json:"status"` // "ok" or "failing"
	Critical   bool   `json:"critical"`
	Message    string `json:"message,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// HealthStatus is the body of /health and /ready.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

type check struct {
	fn       CheckFunc
	critical bool
}

// Checker runs the registered component checks. A failing critical check
// makes the process unavailable; a failing advisory check only degrades it,
// since redirects keep working while, for example, learning is backed up.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]check
	timeout time.Duration
}

// New creates a Checker. Each check is bounded by timeout, 5s if zero.
func New(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{checks: make(map[string]check), timeout: timeout}
}

// RegisterCheck registers a critical check, replacing any check of the same
// name.
func (c *Checker) RegisterCheck(name string, fn CheckFunc) {
	c.register(name, check{fn: fn, critical: true})
}

// RegisterAdvisory registers a check whose failure degrades readiness
// without failing it.
func (c *Checker) RegisterAdvisory(name string, fn CheckFunc) {
	c.register(name, check{fn: fn})
}

func (c *Checker) register(name string, ch check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = ch
}

// ListChecks returns the registered check names in order.
func (c *Checker) ListChecks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// CheckLiveness reports that the process is up.
func (c *Checker) CheckLiveness(context.Context) HealthStatus {
	return HealthStatus{Status: "ok", Timestamp: time.Now()}
}

// CheckReadiness runs all checks concurrently.
func (c *Checker) CheckReadiness(ctx context.Context) HealthStatus {
	c.mu.RLock()
	checks := make(map[string]check, len(c.checks))
	for name, ch := range c.checks {
		checks[name] = ch
	}
	c.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]CheckResult, len(checks))
	)
	for name, ch := range checks {
		wg.Go(func() {
			res := c.run(ctx, ch)
			mu.Lock()
			results[name] = res
			mu.Unlock()
		})
	}
	wg.Wait()

	status := StatusReady
	for _, res := range results {
		if res.Status == "ok" {
			continue
		}
		if res.Critical {
			status = StatusUnavailable
			break
		}
		status = StatusDegraded
	}
	return HealthStatus{Status: status, Checks: results, Timestamp: time.Now()}
}

func (c *Checker) run(ctx context.Context, ch check) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	errc := make(chan error, 1)
	go func() { errc <- ch.fn(ctx) }()

	res := CheckResult{Status: "ok", Critical: ch.critical}
	select {
	case err := <-errc:
		if err != nil {
			res.Status, res.Message = "failing", err.Error()
		}
	case <-ctx.Done():
		res.Status, res.Message = "failing", "check timed out"
	}
	res.DurationMS = time.Since(start).Milliseconds()
	return res
}
