package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/exchange"
	"mercator-hq/callisto/pkg/model"
	"mercator-hq/callisto/pkg/server/middleware"
	"mercator-hq/callisto/pkg/telemetry/health"
	"mercator-hq/callisto/pkg/telemetry/metrics"
	"mercator-hq/callisto/pkg/telemetry/tracing"
)

// Engine answers exchange events. *engine.Engine implements it.
type Engine interface {
	Handle(ctx context.Context, ex *exchange.Exchange) exchange.Verdict
}

// Registry is the proxy list surface of the API. *registry.Registry
// implements it.
type Registry interface {
	Records() []model.Record
	At(i int) (*model.Proxy, bool)
	Add(ctx context.Context, p *model.Proxy) error
	Edit(ctx context.Context, p *model.Proxy, fn func(*model.Proxy)) error
	Remove(ctx context.Context, p *model.Proxy) error
	ToCanonical(rawURL string, strict bool) (string, *model.Proxy, error)
	ToProxied(rawURL string, strict bool) (string, *model.Proxy, error)
}

// Deps are the collaborators served by the API. Engine and Registry are
// required; Metrics and Health are mounted when set. A nil Tracer records
// nothing.
type Deps struct {
	Engine      Engine
	Registry    Registry
	Metrics     *metrics.Collector
	MetricsPath string
	Health      *health.Checker
	BuildInfo   health.BuildInfo
	Tracer      *tracing.Tracer
	Logger      *slog.Logger
}

// Server is the Callisto HTTP API server.
type Server struct {
	config       *config.ServerConfig
	deps         Deps
	logger       *slog.Logger
	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
	addr         net.Addr
}

// NewServer creates a new API server.
func NewServer(cfg *config.ServerConfig, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Server{
		config: cfg,
		deps:   deps,
		logger: deps.Logger.With("component", "server"),
	}
}

// Start listens on the configured address and serves until ctx is cancelled
// or the server fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	var tlsConfig *tls.Config
	if s.config.TLS.Enabled {
		var err error
		tlsConfig, err = newTLSConfig(&s.config.TLS, s.logger)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	if tlsConfig != nil {
		ln = tls.NewListener(ln, tlsConfig)
	}
	s.httpServer = &http.Server{
		Handler:        s.Handler(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}
	s.addr = ln.Addr()
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", "address", ln.Addr().String(), "tls", tlsConfig != nil)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return err
	}
}

// Addr returns the listener address once the server is running.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx := ctx
		if s.config.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
			defer cancel()
		}

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("API server stopped")
	})

	return shutdownErr
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/exchanges/{stage}", s.handleExchange)
	api.HandleFunc("GET /v1/proxies", s.handleListProxies)
	api.HandleFunc("POST /v1/proxies", s.handleAddProxy)
	api.HandleFunc("PUT /v1/proxies/{index}", s.handleEditProxy)
	api.HandleFunc("DELETE /v1/proxies/{index}", s.handleRemoveProxy)
	api.HandleFunc("GET /v1/convert", s.handleConvert)

	var apiHandler http.Handler = api
	if s.config.Auth.Enabled {
		validator := middleware.NewKeyValidator(s.config.Auth.APIKeys)
		apiHandler = middleware.APIKeyMiddleware(validator, s.deps.Logger)(api)
	}

	mux := http.NewServeMux()
	mux.Handle("/v1/", apiHandler)

	if s.deps.Health != nil {
		health.Register(mux, s.deps.Health, s.deps.BuildInfo)
	}
	if s.deps.Metrics != nil {
		path := s.deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, s.deps.Metrics.Handler())
	}

	var handler http.Handler = mux
	handler = middleware.RequestIDMiddleware(handler)
	handler = tracing.HTTPMiddleware(s.deps.Tracer)(handler)
	handler = middleware.LoggingMiddleware(s.deps.Logger)(handler)
	handler = middleware.RecoveryMiddleware(s.deps.Logger)(handler)
	return handler
}
