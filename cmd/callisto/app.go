package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/decider"
	"mercator-hq/callisto/pkg/detect"
	"mercator-hq/callisto/pkg/engine"
	"mercator-hq/callisto/pkg/exchange"
	"mercator-hq/callisto/pkg/hostgate"
	"mercator-hq/callisto/pkg/netid"
	"mercator-hq/callisto/pkg/notify"
	"mercator-hq/callisto/pkg/registry"
	"mercator-hq/callisto/pkg/server"
	"mercator-hq/callisto/pkg/storage"
	"mercator-hq/callisto/pkg/telemetry/health"
	"mercator-hq/callisto/pkg/telemetry/metrics"
	"mercator-hq/callisto/pkg/telemetry/tracing"
)

// networkCheckTimeout bounds one local hostname lookup.
const networkCheckTimeout = 5 * time.Second

// app is a fully wired Callisto process.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    storage.Backend
	registry *registry.Registry
	prober   *detect.Prober
	monitor  *netid.Monitor
	engine   *engine.Engine
	metrics  *metrics.Collector
	tracer   *tracing.Tracer
	health   *health.Checker
	server   *server.Server
}

// openRegistry opens the configured store and loads the proxy list from it.
func openRegistry(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Backend, *registry.Registry, error) {
	store, err := storage.Open(cfg.Storage, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Backend, err)
	}
	gate := hostgate.New(cfg.Detection.Blacklist, cfg.Detection.Whitelist)
	reg := registry.New(store, gate, logger)
	if _, err := reg.Load(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, reg, nil
}

// newApp wires every component. Background work (network checks, probes,
// learning) runs until close.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	var err error
	a.store, a.registry, err = openRegistry(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a.tracer, err = tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		a.store.Close()
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	if a.tracer.Enabled() {
		logger.Info("tracing enabled",
			"endpoint", cfg.Telemetry.Tracing.Endpoint,
			"sampler", cfg.Telemetry.Tracing.Sampler,
		)
	}

	if cfg.Telemetry.Metrics.Enabled {
		promReg := prometheus.NewRegistry()
		promReg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.metrics = metrics.NewCollector(&cfg.Telemetry.Metrics, promReg)
	}

	gate := hostgate.New(cfg.Detection.Blacklist, cfg.Detection.Whitelist)
	notifier := notify.NewLogNotifier(logger)

	// Probe observations are learned from like any other exchange. The
	// engine is assigned before the first probe can start.
	var starter detect.ProbeStarter
	if cfg.Detection.Probe.Enabled {
		a.prober = detect.NewProber(detect.ProberConfig{
			Timeout:       cfg.Detection.Probe.Timeout,
			RatePerSecond: cfg.Detection.Probe.RatePerSecond,
			Burst:         cfg.Detection.Probe.Burst,
			UserAgent:     cfg.Detection.Probe.UserAgent,
		}, func(ex *exchange.Exchange) { a.engine.Observe(ex) }, logger)
		a.prober.SetResultObserver(a.metrics.RecordProbe)
		a.prober.SetTracer(a.tracer)
		starter = a.prober
	}

	pipeline := detect.NewPipeline(logger,
		detect.NewEZproxy(a.registry, starter),
		detect.NewVPN(a.registry),
	)

	decOpts := []decider.Option{decider.WithLogger(logger)}
	if cfg.Engine.NotifyRedirects {
		decOpts = append(decOpts, decider.WithNotifier(notifier))
	}

	deps := engine.Deps{
		Registry: a.registry,
		Decider:  decider.New(a.registry, decOpts...),
		Pipeline: pipeline,
		Gate:     gate,
		Notifier: notifier,
		Metrics:  a.metrics,
		Tracer:   a.tracer,
		Logger:   logger,
	}

	if cfg.Network.DisableOnDomain {
		a.monitor = netid.NewMonitor(netid.Config{
			Enabled:  true,
			Filter:   cfg.Network.DomainFilter,
			Schedule: cfg.Network.CheckSchedule,
			Timeout:  networkCheckTimeout,
		}, netid.SystemResolver{}, logger)
		if err := a.monitor.Start(ctx); err != nil {
			a.tracer.Shutdown(context.Background())
			a.store.Close()
			return nil, fmt.Errorf("failed to start network monitor: %w", err)
		}
		deps.Network = a.monitor
	}

	a.engine = engine.New(engine.Config{
		Transparent:     cfg.Engine.Transparent,
		PassiveLearning: cfg.Engine.PassiveLearning,
		QueueSize:       cfg.Engine.QueueSize,
	}, deps)

	a.health = health.New(2 * time.Second)
	a.health.RegisterCheck("storage", func(ctx context.Context) error {
		_, err := a.store.Load(ctx)
		return err
	})
	queueSize := cfg.Engine.QueueSize
	if queueSize <= 0 {
		queueSize = engine.DefaultQueueSize
	}
	a.health.RegisterAdvisory("engine", func(context.Context) error {
		if a.engine.Pending() >= queueSize {
			return errors.New("learning queue is full")
		}
		return nil
	})

	a.server = server.NewServer(&cfg.Server, server.Deps{
		Engine:      a.engine,
		Registry:    a.registry,
		Metrics:     a.metrics,
		MetricsPath: cfg.Telemetry.Metrics.Path,
		Health:      a.health,
		BuildInfo:   buildInfo(),
		Tracer:      a.tracer,
		Logger:      logger,
	})

	if ys, ok := a.store.(*storage.YAMLStore); ok && cfg.Storage.YAML.Watch {
		go a.watch(ctx, ys)
	}

	return a, nil
}

// watch reloads the registry when the YAML proxy list is edited by hand.
func (a *app) watch(ctx context.Context, ys *storage.YAMLStore) {
	err := ys.Watch(ctx, func(ctx context.Context) error {
		if _, err := a.registry.Load(ctx); err != nil {
			return err
		}
		a.engine.RefreshStats()
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("proxy list watch stopped", "path", ys.Path(), "error", err)
	}
}

// close stops background work in dependency order.
func (a *app) close() {
	if a.monitor != nil {
		a.monitor.Stop()
	}
	if a.prober != nil {
		a.prober.Close()
	}
	a.engine.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close storage", "error", err)
	}

	timeout := a.cfg.Telemetry.Tracing.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Error("failed to flush traces", "error", err)
	}
}
