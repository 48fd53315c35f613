package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8480"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB
	DefaultTLSMinVersion   = "1.3"

	// Engine defaults
	DefaultTransparent     = true
	DefaultPassiveLearning = true
	DefaultNotifyRedirects = true
	DefaultQueueSize       = 256

	// Network defaults
	DefaultDisableOnDomain = false
	DefaultCheckSchedule   = "@every 15m"

	// Detection defaults
	DefaultProbeEnabled       = true
	DefaultProbeTimeout       = 10 * time.Second
	DefaultProbeRatePerSecond = 1.0
	DefaultProbeBurst         = 3
	DefaultProbeUserAgent     = "callisto-probe/1.0"

	// Storage defaults
	DefaultStorageBackend    = "sqlite"
	DefaultSQLitePath        = "data/callisto.db"
	DefaultSQLiteDriver      = "sqlite"
	DefaultSQLiteBusyTimeout = 5 * time.Second
	DefaultYAMLPath          = "proxies.yaml"

	// Telemetry defaults
	DefaultLoggingLevel         = "info"
	DefaultLoggingFormat        = "json"
	DefaultLoggingRedactHeaders = true
	DefaultMetricsEnabled       = true
	DefaultMetricsPath          = "/metrics"
	DefaultMetricsNamespace     = "callisto"
	DefaultMetricsSubsystem     = "engine"
	DefaultTracingSampler       = "always"
	DefaultTracingSampleRatio   = 1.0
	DefaultTracingEndpoint      = "localhost:4317"
	DefaultTracingServiceName   = "callisto"
	DefaultTracingTimeout       = 10 * time.Second
)

// DefaultDecisionDurationBuckets are tuned for in-memory decisions
// (10µs - 10ms).
var DefaultDecisionDurationBuckets = []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01}

// Default returns a configuration with every field set to its default.
// LoadConfig decodes YAML on top of it so that booleans omitted from the
// file keep their defaults.
func Default() *Config {
	cfg := &Config{
		Engine: EngineConfig{
			Transparent:     DefaultTransparent,
			PassiveLearning: DefaultPassiveLearning,
			NotifyRedirects: DefaultNotifyRedirects,
		},
		Network: NetworkConfig{
			DisableOnDomain: DefaultDisableOnDomain,
		},
		Detection: DetectionConfig{
			Probe: ProbeConfig{Enabled: DefaultProbeEnabled},
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{RedactHeaders: DefaultLoggingRedactHeaders},
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values. Booleans are left
// alone because false is a meaningful setting; use Default for those.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Server.TLS.MinVersion == "" {
		cfg.Server.TLS.MinVersion = DefaultTLSMinVersion
	}

	// Engine defaults
	if cfg.Engine.QueueSize == 0 {
		cfg.Engine.QueueSize = DefaultQueueSize
	}

	// Network defaults
	if cfg.Network.CheckSchedule == "" {
		cfg.Network.CheckSchedule = DefaultCheckSchedule
	}

	// Detection defaults
	if cfg.Detection.Probe.Timeout == 0 {
		cfg.Detection.Probe.Timeout = DefaultProbeTimeout
	}
	if cfg.Detection.Probe.RatePerSecond == 0 {
		cfg.Detection.Probe.RatePerSecond = DefaultProbeRatePerSecond
	}
	if cfg.Detection.Probe.Burst == 0 {
		cfg.Detection.Probe.Burst = DefaultProbeBurst
	}
	if cfg.Detection.Probe.UserAgent == "" {
		cfg.Detection.Probe.UserAgent = DefaultProbeUserAgent
	}

	// Storage defaults
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Storage.SQLite.Driver == "" {
		cfg.Storage.SQLite.Driver = DefaultSQLiteDriver
	}
	if cfg.Storage.SQLite.BusyTimeout == 0 {
		cfg.Storage.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Storage.YAML.Path == "" {
		cfg.Storage.YAML.Path = DefaultYAMLPath
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
	if len(cfg.Telemetry.Metrics.DecisionDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.DecisionDurationBuckets = append([]float64(nil), DefaultDecisionDurationBuckets...)
	}
}
