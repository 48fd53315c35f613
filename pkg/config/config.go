package config

import "time"

// Config is the root configuration structure for Callisto.
// It contains the HTTP API server settings, the engine switches, the
// network-based disable feature, detection tuning, proxy list storage and
// telemetry.
type Config struct {
	// Server contains HTTP API server configuration including listen address,
	// timeouts and header limits.
	Server ServerConfig `yaml:"server"`

	// Engine contains the session switches for transparent redirection,
	// passive learning and redirect notifications.
	Engine EngineConfig `yaml:"engine"`

	// Network contains configuration for disabling redirection on
	// specific networks.
	Network NetworkConfig `yaml:"network"`

	// Detection contains configuration for proxy detection, host probing
	// and the auto-association host gate.
	Detection DetectionConfig `yaml:"detection"`

	// Storage contains configuration for persisting the proxy list.
	Storage StorageConfig `yaml:"storage"`

	// Telemetry contains configuration for logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP API server.
type ServerConfig struct {
	// ListenAddress is the address and port for the API to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8480").
	// Default: "127.0.0.1:8480"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// TLS serves the API over HTTPS.
	TLS TLSConfig `yaml:"tls"`

	// Auth requires an API key on the /v1 routes.
	Auth AuthConfig `yaml:"auth"`
}

// TLSConfig configures HTTPS for the API. Certificate files are reread when
// they change on disk, so renewal needs no restart.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// MinVersion is "1.2" or "1.3".
	// Default: "1.3"
	MinVersion string `yaml:"min_version"`
}

// AuthConfig configures API key authentication. Health, readiness, version
// and metrics endpoints stay open.
type AuthConfig struct {
	Enabled bool           `yaml:"enabled"`
	APIKeys []APIKeyConfig `yaml:"api_keys"`
}

// APIKeyConfig is one accepted key. Name identifies the caller in logs; the
// key itself is never logged.
type APIKeyConfig struct {
	Name     string `yaml:"name"`
	Key      string `yaml:"key"`
	Disabled bool   `yaml:"disabled"`
}

// EngineConfig contains the engine switches. They are read once at startup
// and stay fixed for the session.
type EngineConfig struct {
	// Transparent enables automatic redirection of requests for known hosts
	// through their proxy.
	// Default: true
	Transparent bool `yaml:"transparent"`

	// PassiveLearning enables proxy detection and host auto-association from
	// observed traffic.
	// Default: true
	PassiveLearning bool `yaml:"passive_learning"`

	// NotifyRedirects emits a notification for every redirect.
	// Default: true
	NotifyRedirects bool `yaml:"notify_redirects"`

	// QueueSize is the capacity of the background learning queue. Exchanges
	// arriving while the queue is full are not learned from.
	// Default: 256
	QueueSize int `yaml:"queue_size"`
}

// NetworkConfig contains configuration for the disable-by-network feature.
type NetworkConfig struct {
	// DisableOnDomain turns redirection off while a local hostname contains
	// DomainFilter, e.g. when the machine is on the campus network.
	// Default: false
	DisableOnDomain bool `yaml:"disable_on_domain"`

	// DomainFilter is the substring matched against local hostnames.
	DomainFilter string `yaml:"domain_filter"`

	// CheckSchedule is the cron spec for refreshing local hostnames.
	// Default: "@every 15m"
	CheckSchedule string `yaml:"check_schedule"`
}

// DetectionConfig contains proxy detection configuration.
type DetectionConfig struct {
	// Probe configures the cookie-less host probe used for chained proxies.
	Probe ProbeConfig `yaml:"probe"`

	// Blacklist lists extra host patterns that are never auto-associated.
	// A leading dot matches subdomains only (".example.net").
	Blacklist []string `yaml:"blacklist"`

	// Whitelist lists extra host patterns that override the blacklist.
	Whitelist []string `yaml:"whitelist"`
}

// ProbeConfig contains host probe configuration.
type ProbeConfig struct {
	// Enabled allows probing of chained proxies.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Timeout bounds a single probe request.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// RatePerSecond limits how often probes start.
	// Default: 1
	RatePerSecond float64 `yaml:"rate_per_second"`

	// Burst is the number of probes that may start at once.
	// Default: 3
	Burst int `yaml:"burst"`

	// UserAgent is sent with every probe.
	// Default: "callisto-probe/1.0"
	UserAgent string `yaml:"user_agent"`
}

// StorageConfig contains proxy list storage configuration.
type StorageConfig struct {
	// Backend selects the storage implementation.
	// Options: "sqlite", "yaml", "memory"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite-specific configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// YAML contains YAML file configuration.
	YAML YAMLConfig `yaml:"yaml"`
}

// SQLiteConfig contains SQLite storage configuration.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/callisto.db"
	Path string `yaml:"path"`

	// Driver selects the database/sql driver.
	// Options: "sqlite" (pure Go), "sqlite3" (cgo)
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// BusyTimeout is how long to wait for a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// YAMLConfig contains YAML file storage configuration.
type YAMLConfig struct {
	// Path is the proxy list file.
	// Default: "proxies.yaml"
	Path string `yaml:"path"`

	// Watch reloads the proxy list when the file is edited externally.
	// Default: false
	Watch bool `yaml:"watch"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains OpenTelemetry tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactHeaders replaces credential-bearing header values in log entries.
	// Default: true
	RedactHeaders bool `yaml:"redact_headers"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "callisto"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "engine"
	Subsystem string `yaml:"subsystem"`

	// DecisionDurationBuckets defines histogram buckets for redirect
	// decision latency (seconds).
	// Default: [0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01]
	DecisionDurationBuckets []float64 `yaml:"decision_duration_buckets"`
}

// TracingConfig contains OpenTelemetry tracing configuration. Spans are
// exported over OTLP/gRPC.
type TracingConfig struct {
	// Enabled controls whether spans are recorded and exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler is the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "always"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces sampled by the "ratio" sampler.
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP/gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is reported as the service.name resource attribute.
	// Default: "callisto"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS towards the collector.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout bounds a single export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}
