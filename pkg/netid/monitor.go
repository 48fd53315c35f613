package netid

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule refreshes the local hostnames every 15 minutes.
const DefaultSchedule = "@every 15m"

// Config configures a Monitor.
type Config struct {
	// Enabled turns the domain check on. A disabled Monitor never reports
	// Disabled.
	Enabled bool

	// Filter is matched as a substring against each local hostname.
	Filter string

	// Schedule is a cron spec for refreshing the hostnames.
	Schedule string

	// Timeout bounds a single lookup.
	Timeout time.Duration
}

// Monitor keeps the last known answer to "is redirection disabled on this
// network". Disabled never blocks; between refreshes it returns the stale
// value.
type Monitor struct {
	cfg      Config
	resolver Resolver
	cron     *cron.Cron
	logger   *slog.Logger

	disabled  atomic.Bool
	lastCheck atomic.Int64

	mu      sync.Mutex
	running bool
}

// NewMonitor creates a Monitor.
func NewMonitor(cfg Config, resolver Resolver, logger *slog.Logger) *Monitor {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if resolver == nil {
		resolver = SystemResolver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		cfg:      cfg,
		resolver: resolver,
		cron:     cron.New(),
		logger:   logger.With("component", "netid"),
	}
}

// Disabled reports whether redirection is disabled on the current network.
func (m *Monitor) Disabled() bool {
	return m.disabled.Load()
}

// LastCheck returns when the hostnames were last refreshed, or the zero time.
func (m *Monitor) LastCheck() time.Time {
	ns := m.lastCheck.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Check refreshes the hostnames now. On lookup failure the previous answer
// is kept.
func (m *Monitor) Check(ctx context.Context) error {
	if !m.cfg.Enabled || m.cfg.Filter == "" {
		m.disabled.Store(false)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	names, err := m.resolver.LocalHostnames(ctx)
	if err != nil {
		m.logger.Warn("local hostname lookup failed, keeping previous state",
			"disabled", m.disabled.Load(),
			"error", err,
		)
		return fmt.Errorf("failed to look up local hostnames: %w", err)
	}

	filter := strings.ToLower(m.cfg.Filter)
	disabled := false
	for _, n := range names {
		if strings.Contains(strings.ToLower(n), filter) {
			disabled = true
			break
		}
	}
	m.lastCheck.Store(time.Now().UnixNano())

	if m.disabled.Swap(disabled) != disabled {
		m.logger.Info("network redirect state changed",
			"disabled", disabled,
			"filter", m.cfg.Filter,
			"hostnames", names,
		)
	}
	return nil
}

// Start checks once and then refreshes on the configured schedule until ctx
// is cancelled or Stop is called. A disabled Monitor does not schedule
// anything.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.cfg.Enabled {
		m.logger.Debug("domain check disabled, skipping scheduler")
		return nil
	}
	if m.running {
		return nil
	}

	if _, err := cron.ParseStandard(m.cfg.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", m.cfg.Schedule, err)
	}
	if _, err := m.cron.AddFunc(m.cfg.Schedule, func() {
		_ = m.Check(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule network check: %w", err)
	}

	// The first check runs in the background so startup never waits on DNS.
	go func() { _ = m.Check(ctx) }()

	m.cron.Start()
	m.running = true

	m.logger.Info("network monitor started",
		"schedule", m.cfg.Schedule,
		"filter", m.cfg.Filter,
	)

	go func() {
		<-ctx.Done()
		m.Stop()
	}()
	return nil
}

// Stop stops the scheduler and waits for a running check to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		<-m.cron.Stop().Done()
		m.running = false
		m.logger.Info("network monitor stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// NextRun returns the next scheduled check, or nil when not scheduled.
func (m *Monitor) NextRun() *time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
