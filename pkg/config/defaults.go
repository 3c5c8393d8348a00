package config

import (
	"runtime"
	"time"
)

// Default values for configuration fields.
const (
	// Packs defaults
	DefaultPacksBuiltins      = true
	DefaultPacksWatchDebounce = 200 * time.Millisecond
	DefaultPacksMaxFileSize   = int64(1024 * 1024)
	DefaultGitBranch          = "main"
	DefaultGitAuthType        = "none"
	DefaultGitPollEnabled     = true
	DefaultGitPollInterval    = time.Minute
	DefaultGitPollTimeout     = 30 * time.Second
	DefaultGitCloneDepth      = 1

	// Engine defaults
	DefaultEngineQueueSize        = 256
	DefaultEscalationAfterMinutes = 60
	DefaultEvidenceEnabled        = true
	DefaultEvidenceBackend        = "sqlite"
	DefaultSQLitePath             = "data/evidence.db"
	DefaultSQLiteDriver           = "sqlite"
	DefaultSQLiteMaxOpenConns     = 10
	DefaultSQLiteMaxIdleConns     = 5
	DefaultSQLiteWALMode          = true
	DefaultSQLiteBusyTimeout      = 5 * time.Second
	DefaultPostgresPort           = 5432
	DefaultPostgresSSLMode        = "require"
	DefaultPostgresMaxOpenConns   = 10
	DefaultRecorderAsyncBuffer    = 1000
	DefaultRecorderWriteTimeout   = 5 * time.Second
	DefaultRetentionDays          = 2555
	DefaultRetentionPruneSchedule = "0 3 * * *"
	DefaultQueryDefaultLimit      = 100
	DefaultQueryMaxLimit          = 10000
	DefaultServerListenAddress    = "127.0.0.1:8090"
	DefaultServerReadTimeout      = 15 * time.Second
	DefaultServerWriteTimeout     = 30 * time.Second
	DefaultServerIdleTimeout      = 120 * time.Second
	DefaultServerShutdownTimeout  = 15 * time.Second
	DefaultServerMaxBodyBytes     = int64(4 * 1024 * 1024)
	DefaultServerTLSMinVersion    = "1.3"
	DefaultServerTLSReload        = true
	DefaultLoggingLevel           = "info"
	DefaultLoggingFormat          = "json"
	DefaultLoggingRedactPII       = true
	DefaultMetricsEnabled         = true
	DefaultMetricsPath            = "/metrics"
	DefaultMetricsNamespace       = "compliance"
	DefaultTracingSampler         = "ratio"
	DefaultTracingSampleRatio     = 0.1
	DefaultTracingEndpoint        = "localhost:4317"
	DefaultTracingServiceName     = "compliance-engine"
	DefaultTracingOTLPInsecure    = true
	DefaultTracingOTLPTimeout     = 10 * time.Second
)

// DefaultLatticeLevels is the built-in classification order.
var DefaultLatticeLevels = []string{"NONE", "PUBLIC", "PII", "PHI", "PCI"}

// DefaultDurationBuckets are histogram buckets for evaluation latency.
var DefaultDurationBuckets = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25}

// Default returns a configuration with every default applied. Boolean
// options that default to true are set here, before the YAML file is
// decoded on top, so that an explicit "false" in the file wins.
func Default() *Config {
	cfg := &Config{
		Packs: PacksConfig{
			Builtins: DefaultPacksBuiltins,
			Git: GitConfig{
				Poll: GitPollConfig{Enabled: DefaultGitPollEnabled},
			},
		},
		Server: ServerConfig{
			TLS: TLSConfig{ReloadOnChange: DefaultServerTLSReload},
		},
		Evidence: EvidenceConfig{
			Enabled: DefaultEvidenceEnabled,
			SQLite:  SQLiteConfig{WALMode: DefaultSQLiteWALMode},
			Retention: RetentionConfig{
				Days: DefaultRetentionDays,
			},
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{RedactPII: DefaultLoggingRedactPII},
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
			Tracing: TracingConfig{OTLP: OTLPConfig{Insecure: DefaultTracingOTLPInsecure}},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults. It is
// idempotent.
func ApplyDefaults(cfg *Config) {
	if len(cfg.Lattice.Levels) == 0 {
		cfg.Lattice.Levels = append([]string(nil), DefaultLatticeLevels...)
	}

	// Packs
	if cfg.Packs.WatchDebounce == 0 {
		cfg.Packs.WatchDebounce = DefaultPacksWatchDebounce
	}
	if cfg.Packs.MaxFileSize == 0 {
		cfg.Packs.MaxFileSize = DefaultPacksMaxFileSize
	}
	if cfg.Packs.Git.Branch == "" {
		cfg.Packs.Git.Branch = DefaultGitBranch
	}
	if cfg.Packs.Git.Auth.Type == "" {
		cfg.Packs.Git.Auth.Type = DefaultGitAuthType
	}
	if cfg.Packs.Git.Poll.Interval == 0 {
		cfg.Packs.Git.Poll.Interval = DefaultGitPollInterval
	}
	if cfg.Packs.Git.Poll.Timeout == 0 {
		cfg.Packs.Git.Poll.Timeout = DefaultGitPollTimeout
	}
	if cfg.Packs.Git.Clone.Depth == 0 {
		cfg.Packs.Git.Clone.Depth = DefaultGitCloneDepth
	}

	// Engine
	if cfg.Engine.Workers == 0 {
		cfg.Engine.Workers = runtime.NumCPU()
	}
	if cfg.Engine.QueueSize == 0 {
		cfg.Engine.QueueSize = DefaultEngineQueueSize
	}
	if cfg.Engine.DefaultEscalationMinutes == 0 {
		cfg.Engine.DefaultEscalationMinutes = DefaultEscalationAfterMinutes
	}

	// Evidence
	if cfg.Evidence.Backend == "" {
		cfg.Evidence.Backend = DefaultEvidenceBackend
	}
	if cfg.Evidence.SQLite.Path == "" {
		cfg.Evidence.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Evidence.SQLite.Driver == "" {
		cfg.Evidence.SQLite.Driver = DefaultSQLiteDriver
	}
	if cfg.Evidence.SQLite.MaxOpenConns == 0 {
		cfg.Evidence.SQLite.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if cfg.Evidence.SQLite.MaxIdleConns == 0 {
		cfg.Evidence.SQLite.MaxIdleConns = DefaultSQLiteMaxIdleConns
	}
	if cfg.Evidence.SQLite.BusyTimeout == 0 {
		cfg.Evidence.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Evidence.Postgres.Port == 0 {
		cfg.Evidence.Postgres.Port = DefaultPostgresPort
	}
	if cfg.Evidence.Postgres.SSLMode == "" {
		cfg.Evidence.Postgres.SSLMode = DefaultPostgresSSLMode
	}
	if cfg.Evidence.Postgres.MaxOpenConns == 0 {
		cfg.Evidence.Postgres.MaxOpenConns = DefaultPostgresMaxOpenConns
	}
	if cfg.Evidence.Recorder.AsyncBuffer == 0 {
		cfg.Evidence.Recorder.AsyncBuffer = DefaultRecorderAsyncBuffer
	}
	if cfg.Evidence.Recorder.WriteTimeout == 0 {
		cfg.Evidence.Recorder.WriteTimeout = DefaultRecorderWriteTimeout
	}
	if cfg.Evidence.Retention.PruneSchedule == "" {
		cfg.Evidence.Retention.PruneSchedule = DefaultRetentionPruneSchedule
	}
	if cfg.Evidence.Query.DefaultLimit == 0 {
		cfg.Evidence.Query.DefaultLimit = DefaultQueryDefaultLimit
	}
	if cfg.Evidence.Query.MaxLimit == 0 {
		cfg.Evidence.Query.MaxLimit = DefaultQueryMaxLimit
	}

	// Server
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultServerListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultServerIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultServerShutdownTimeout
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultServerMaxBodyBytes
	}
	if cfg.Server.TLS.MinVersion == "" {
		cfg.Server.TLS.MinVersion = DefaultServerTLSMinVersion
	}
	if cfg.Server.RateLimit.RequestsPerSecond > 0 && cfg.Server.RateLimit.Burst == 0 {
		cfg.Server.RateLimit.Burst = max(1, int(2*cfg.Server.RateLimit.RequestsPerSecond))
	}

	// Telemetry
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
	if len(cfg.Telemetry.Metrics.DurationBuckets) == 0 {
		cfg.Telemetry.Metrics.DurationBuckets = append([]float64(nil), DefaultDurationBuckets...)
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
	if cfg.Telemetry.Tracing.OTLP.Timeout == 0 {
		cfg.Telemetry.Tracing.OTLP.Timeout = DefaultTracingOTLPTimeout
	}
}
