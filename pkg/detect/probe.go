package detect

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"mercator-hq/callisto/pkg/exchange"
	"mercator-hq/callisto/pkg/telemetry/tracing"
)

// Probe results reported to the result observer.
const (
	ProbeObserved  = "observed"
	ProbeFailed    = "error"
	ProbeThrottled = "throttled"
	ProbeDuplicate = "duplicate"
	ProbeStopped   = "stopped"
)

// maxProbeBody bounds how much of a probe response body is drained.
const maxProbeBody = 64 << 10

// ProberConfig configures a Prober.
type ProberConfig struct {
	// Timeout bounds a single probe request.
	Timeout time.Duration

	// RatePerSecond and Burst throttle probe starts. A non-positive rate
	// disables throttling.
	RatePerSecond float64
	Burst         int

	UserAgent string
}

// Prober sends unauthenticated requests to proxy hosts so that they answer
// with their login redirect. Each probe fires once: it removes itself from the
// pending set before delivering its observation or error.
type Prober struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	observe   func(*exchange.Exchange)
	result    func(string)
	tracer    *tracing.Tracer
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[string]*Probe
	closed  bool
}

// Probe is a single in-flight host probe.
type Probe struct {
	ID     string
	Target string

	prober *Prober
	cancel context.CancelFunc
}

// NewProber creates a Prober delivering captured responses to observe.
func NewProber(cfg ProberConfig, observe func(*exchange.Exchange), logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Prober{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		limiter:   rate.NewLimiter(limit, cfg.Burst),
		userAgent: cfg.UserAgent,
		observe:   observe,
		result:    func(string) {},
		logger:    logger.With("component", "probe"),
		ctx:       ctx,
		cancel:    cancel,
		pending:   make(map[string]*Probe),
	}
}

// SetResultObserver installs a callback receiving every probe result.
func (p *Prober) SetResultObserver(fn func(result string)) {
	if fn != nil {
		p.result = fn
	}
}

// SetTracer traces every probe request as a client span and propagates its
// trace context to the probed host.
func (p *Prober) SetTracer(t *tracing.Tracer) {
	p.tracer = t
}

// Start launches a probe of target in the background. It returns false when a
// probe of target is already pending, the start rate is exceeded or the
// prober is closed.
func (p *Prober) Start(target string) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	if _, ok := p.pending[target]; ok {
		p.mu.Unlock()
		p.result(ProbeDuplicate)
		return false
	}
	if !p.limiter.Allow() {
		p.mu.Unlock()
		p.result(ProbeThrottled)
		p.logger.Debug("probe throttled", "target", target)
		return false
	}

	ctx, cancel := context.WithCancel(p.ctx)
	probe := &Probe{
		ID:     uuid.NewString(),
		Target: target,
		prober: p,
		cancel: cancel,
	}
	p.pending[target] = probe
	p.wg.Add(1)
	p.mu.Unlock()

	p.logger.Debug("probe started", "probe_id", probe.ID, "target", target)
	go probe.run(ctx)
	return true
}

// Pending returns the number of probes in flight.
func (p *Prober) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Close stops all pending probes and waits for them to exit.
func (p *Prober) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}

// Stop cancels the probe. A stopped probe never delivers an observation.
func (pr *Probe) Stop() {
	pr.deregister()
	pr.cancel()
}

// deregister removes the probe from the pending set and reports whether it
// was still registered.
func (pr *Probe) deregister() bool {
	p := pr.prober
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending[pr.Target] != pr {
		return false
	}
	delete(p.pending, pr.Target)
	return true
}

func (pr *Probe) run(ctx context.Context) {
	p := pr.prober
	defer p.wg.Done()
	defer pr.cancel()

	ex, err := p.fetch(ctx, pr)
	if !pr.deregister() {
		p.result(ProbeStopped)
		return
	}
	if err != nil {
		perr := &ProbeError{ProbeID: pr.ID, Target: pr.Target, Err: err}
		p.result(ProbeFailed)
		p.logger.Warn("probe failed", "error", perr)
		return
	}

	p.result(ProbeObserved)
	p.logger.Debug("probe observed response",
		"probe_id", pr.ID,
		"target", pr.Target,
		"status", ex.StatusCode,
	)
	if p.observe != nil {
		p.observe(ex)
	}
}

// fetch performs the cookie-less request without following redirects.
func (p *Prober) fetch(ctx context.Context, pr *Probe) (_ *exchange.Exchange, err error) {
	ctx, span := p.tracer.Start(ctx, "detect.probe",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("callisto.probe.id", pr.ID)),
	)
	defer func() {
		tracing.SetError(span, err)
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pr.Target, nil)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String(tracing.AttrHost, req.URL.Hostname()))
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	tracing.Inject(ctx, req.Header)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int(tracing.AttrStatusCode, resp.StatusCode))
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxProbeBody))

	headers := make(exchange.Headers, len(resp.Header))
	for name, values := range resp.Header {
		if len(values) > 0 {
			headers[strings.ToLower(name)] = values[0]
		}
	}

	return &exchange.Exchange{
		RequestID:       "probe-" + pr.ID,
		URL:             pr.Target,
		StatusCode:      resp.StatusCode,
		RequestHeaders:  exchange.Headers{"user-agent": p.userAgent},
		ResponseHeaders: headers,
		Stage:           exchange.StageHeadersReceived,
	}, nil
}
