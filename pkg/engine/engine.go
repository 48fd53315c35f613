// Package engine observes intercepted exchanges. It answers every exchange
// with a verdict synchronously and hands learnable exchanges to a single
// background worker that runs the detectors and mutates the registry.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"mercator-hq/callisto/pkg/decider"
	"mercator-hq/callisto/pkg/detect"
	"mercator-hq/callisto/pkg/exchange"
	"mercator-hq/callisto/pkg/hostgate"
	"mercator-hq/callisto/pkg/model"
	"mercator-hq/callisto/pkg/notify"
	"mercator-hq/callisto/pkg/telemetry/logging"
	"mercator-hq/callisto/pkg/telemetry/metrics"
	"mercator-hq/callisto/pkg/telemetry/tracing"
)

// Pass-through reasons decided by the engine itself.
const (
	ReasonAlreadyRedirected decider.Reason = "already_redirected"
	ReasonNetworkDisabled   decider.Reason = "network_disabled"
)

// Association results reported to metrics.
const (
	AssociationAdded       = "added"
	AssociationKnown       = "known"
	AssociationBlacklisted = "blacklisted"
	AssociationConfirm     = "confirm"
	AssociationError       = "error"
)

// DefaultQueueSize is used when Config.QueueSize is not positive.
const DefaultQueueSize = 256

// Registry is the subset of *registry.Registry the engine uses.
type Registry interface {
	ToCanonical(rawURL string, strict bool) (string, *model.Proxy, error)
	OwnerOf(host string) *model.Proxy
	FindTemplate(template string, multiHost bool) *model.Proxy
	Add(ctx context.Context, p *model.Proxy) error
	Associate(ctx context.Context, p *model.Proxy, host string) (bool, error)
	Stats() (proxies, hosts int)
}

// Network reports whether redirection is disabled for the current network.
// *netid.Monitor implements it.
type Network interface {
	Disabled() bool
}

// Config holds the session switches.
type Config struct {
	Transparent     bool
	PassiveLearning bool
	QueueSize       int
}

// Deps are the collaborators of an Engine. Registry and Decider are required.
type Deps struct {
	Registry Registry
	Decider  *decider.Decider
	Pipeline *detect.Pipeline
	Gate     *hostgate.Gate
	Notifier notify.Notifier
	Network  Network
	Metrics  *metrics.Collector
	Tracer   *tracing.Tracer
	Logger   *slog.Logger
}

// Engine turns exchanges into verdicts and learns proxies in the background.
type Engine struct {
	cfg      Config
	registry Registry
	decider  *decider.Decider
	pipeline *detect.Pipeline
	gate     *hostgate.Gate
	notifier notify.Notifier
	network  Network
	metrics  *metrics.Collector
	tracer   *tracing.Tracer
	logger   *slog.Logger

	// redirected holds request ids that already received a redirect.
	redirected sync.Map
	// confirmations holds hosts the user was already asked about.
	confirmations sync.Map

	queue     chan *exchange.Exchange
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates an Engine and starts its learning worker.
func New(cfg Config, deps Deps) *Engine {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Gate == nil {
		deps.Gate = hostgate.Default()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop
	}
	if deps.Pipeline == nil {
		deps.Pipeline = detect.NewPipeline(deps.Logger)
	}
	deps.Pipeline.SetObserver(deps.Metrics.RecordDetection)

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:      cfg,
		registry: deps.Registry,
		decider:  deps.Decider,
		pipeline: deps.Pipeline,
		gate:     deps.Gate,
		notifier: deps.Notifier,
		network:  deps.Network,
		metrics:  deps.Metrics,
		tracer:   deps.Tracer,
		logger:   deps.Logger.With("component", "engine"),
		queue:    make(chan *exchange.Exchange, cfg.QueueSize),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	e.RefreshStats()

	e.wg.Add(1)
	go e.worker()

	e.logger.Info("engine started",
		"transparent", cfg.Transparent,
		"passive_learning", cfg.PassiveLearning,
		"queue_size", cfg.QueueSize,
		"detectors", e.pipeline.Detectors(),
	)
	return e
}

// Handle returns the verdict for ex. It never blocks on learning work.
func (e *Engine) Handle(ctx context.Context, ex *exchange.Exchange) exchange.Verdict {
	if ex.RequestID != "" {
		ctx = logging.WithRequestID(ctx, ex.RequestID)
	}
	ctx = logging.WithStage(ctx, string(ex.Stage))
	ctx, span := e.tracer.Start(ctx, "engine.handle", trace.WithAttributes(tracing.ExchangeAttributes(ex)...))
	defer span.End()

	switch ex.Stage {
	case exchange.StageBeforeRequest:
		return e.decide(ctx, ex)
	case exchange.StageHeadersReceived:
		verdict := e.decide(ctx, ex)
		if e.cfg.PassiveLearning && !ex.Failed() {
			e.Observe(ex)
		}
		return verdict
	case exchange.StageCompleted, exchange.StageError:
		if ex.RequestID != "" {
			e.redirected.Delete(ex.RequestID)
		}
	}
	return exchange.Verdict{}
}

// Guarded returns the number of request ids currently remembered as
// redirected.
func (e *Engine) Guarded() int {
	n := 0
	e.redirected.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}

// Observe queues ex for learning. It reports false when the queue is full or
// the engine is closed; the exchange is then not learned from.
func (e *Engine) Observe(ex *exchange.Exchange) bool {
	select {
	case <-e.done:
		return false
	default:
	}

	select {
	case e.queue <- ex:
		return true
	default:
		e.metrics.RecordQueueDrop()
		e.logger.Warn("learning queue full, dropping exchange",
			"request_id", ex.RequestID,
			"capacity", cap(e.queue),
		)
		return false
	}
}

// Pending returns the number of queued exchanges.
func (e *Engine) Pending() int {
	return len(e.queue)
}

// RefreshStats publishes the registry size to metrics.
func (e *Engine) RefreshStats() {
	proxies, hosts := e.registry.Stats()
	e.metrics.UpdateRegistrySize(proxies, hosts)
}

// Close stops accepting exchanges, drains the queue and stops the worker.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.logger.Info("shutting down engine", "pending", len(e.queue), "guarded", e.Guarded())
		close(e.done)
		e.wg.Wait()
		e.cancel()
	})
	return nil
}

func (e *Engine) decide(ctx context.Context, ex *exchange.Exchange) exchange.Verdict {
	if !e.cfg.Transparent {
		return exchange.Verdict{}
	}

	start := time.Now()
	d := e.decision(ex)
	outcome := "pass"
	if d.Redirect() {
		outcome = "redirect"
	}
	e.metrics.RecordDecision(outcome, string(d.Reason), time.Since(start))
	trace.SpanFromContext(ctx).SetAttributes(tracing.DecisionAttributes(d.Verdict, string(d.Reason))...)

	if d.Redirect() {
		e.logger.InfoContext(ctx, "redirecting", "url", ex.URL, "to", d.Verdict.RedirectTo)
	}
	return d.Verdict
}

func (e *Engine) decision(ex *exchange.Exchange) decider.Decision {
	if e.network != nil && e.network.Disabled() {
		return decider.Decision{Reason: ReasonNetworkDisabled}
	}
	if _, seen := e.redirected.Load(ex.RequestID); seen && ex.RequestID != "" {
		return decider.Decision{Reason: ReasonAlreadyRedirected}
	}

	d := e.decider.Decide(ex)
	if d.Redirect() && ex.RequestID != "" {
		if _, seen := e.redirected.LoadOrStore(ex.RequestID, struct{}{}); seen {
			return decider.Decision{Reason: ReasonAlreadyRedirected}
		}
	}
	return d
}

// worker is the background goroutine that drains the learning queue.
func (e *Engine) worker() {
	defer e.wg.Done()

	for {
		select {
		case ex := <-e.queue:
			e.learn(e.ctx, ex)

		case <-e.done:
			for {
				select {
				case ex := <-e.queue:
					e.learn(e.ctx, ex)
				default:
					return
				}
			}
		}
	}
}
