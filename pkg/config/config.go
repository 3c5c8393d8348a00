package config

import "time"

// Config is the root configuration structure.
type Config struct {
	// Lattice declares the classification order for this deployment.
	Lattice LatticeConfig `yaml:"lattice"`

	// Packs configures where policy packs come from.
	Packs PacksConfig `yaml:"packs"`

	// Tenants binds tenant ids to pinned pack references.
	Tenants map[string]TenantConfig `yaml:"tenants"`

	// Engine configures the evaluation worker pool.
	Engine EngineConfig `yaml:"engine"`

	// Evidence configures storage of compliance records.
	Evidence EvidenceConfig `yaml:"evidence"`

	// Server configures the HTTP API.
	Server ServerConfig `yaml:"server"`

	// Telemetry configures logging, metrics and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// LatticeConfig declares the classification lattice.
type LatticeConfig struct {
	// Levels lists classifications from least to most sensitive.
	// Default: [NONE, PUBLIC, PII, PHI, PCI]
	Levels []string `yaml:"levels"`
}

// PacksConfig configures pack sources.
type PacksConfig struct {
	// Builtins enables the embedded standard packs.
	// Default: true
	Builtins bool `yaml:"builtins"`

	// BuiltinNames restricts which built-in packs are loaded.
	// Empty means all of them.
	BuiltinNames []string `yaml:"builtin_names"`

	// Directory holds tenant pack files (*.yaml, *.yml).
	// Empty disables directory loading.
	Directory string `yaml:"directory"`

	// Watch registers new pack files as they appear in Directory.
	// Default: false
	Watch bool `yaml:"watch"`

	// WatchDebounce is the quiet period before a changed file is read.
	// Default: 200ms
	WatchDebounce time.Duration `yaml:"watch_debounce"`

	// MaxFileSize is the largest pack file accepted, in bytes.
	// Default: 1MB
	MaxFileSize int64 `yaml:"max_file_size"`

	// Git configures a Git repository as an additional pack source.
	Git GitConfig `yaml:"git"`
}

// GitConfig configures Git-based pack loading.
type GitConfig struct {
	// Enabled determines if the Git source is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Repository URL (HTTPS or SSH).
	Repository string `yaml:"repository"`

	// Branch to track.
	// Default: "main"
	Branch string `yaml:"branch"`

	// Path within the repository that holds pack files.
	// Default: "" (repository root)
	Path string `yaml:"path"`

	// Auth configures Git authentication.
	Auth GitAuthConfig `yaml:"auth"`

	// Poll configures change detection.
	Poll GitPollConfig `yaml:"poll"`

	// Clone configures repository cloning.
	Clone GitCloneConfig `yaml:"clone"`
}

// GitAuthConfig configures Git authentication.
type GitAuthConfig struct {
	// Type: "token", "ssh" or "none".
	// Default: "none"
	Type string `yaml:"type"`

	// Token for HTTPS authentication.
	Token string `yaml:"token"`

	// SSHKeyPath for SSH authentication.
	SSHKeyPath string `yaml:"ssh_key_path"`

	// SSHKeyPassphrase for encrypted SSH keys.
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase"`
}

// GitPollConfig configures change detection.
type GitPollConfig struct {
	// Enabled determines if polling is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Interval between polls.
	// Default: 1m
	Interval time.Duration `yaml:"interval"`

	// Timeout for Git operations.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`
}

// GitCloneConfig configures repository cloning.
type GitCloneConfig struct {
	// Depth for shallow clones (0 = full clone).
	// Default: 1
	Depth int `yaml:"depth"`

	// LocalPath where the repository is cloned.
	// Default: system temp directory
	LocalPath string `yaml:"local_path"`

	// CleanOnStart removes the local clone before cloning.
	CleanOnStart bool `yaml:"clean_on_start"`
}

// TenantConfig pins the packs a tenant is evaluated against.
type TenantConfig struct {
	// Packs holds "id@version" references.
	Packs []string `yaml:"packs"`
}

// EngineConfig configures evaluation.
type EngineConfig struct {
	// Workers is the number of evaluation goroutines.
	// Default: 0 (one per CPU)
	Workers int `yaml:"workers"`

	// QueueSize is the number of evaluations that may wait for a worker.
	// Default: 256
	QueueSize int `yaml:"queue_size"`

	// DefaultEscalationMinutes applies when no pack sets an escalation.
	// Default: 60
	DefaultEscalationMinutes int `yaml:"default_escalation_minutes"`
}

// EvidenceConfig configures compliance record storage.
type EvidenceConfig struct {
	// Enabled controls whether evaluations are recorded.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend: "sqlite", "postgres" or "memory".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
	Recorder RecorderConfig `yaml:"recorder"`

	// Retention controls pruning of old records.
	Retention RetentionConfig `yaml:"retention"`

	// Query bounds evidence queries.
	Query QueryConfig `yaml:"query"`
}

// SQLiteConfig contains SQLite-specific configuration.
type SQLiteConfig struct {
	// Path is the database file.
	// Default: "data/evidence.db"
	Path string `yaml:"path"`

	// Driver selects the database/sql driver: "sqlite" (pure Go) or
	// "sqlite3" (cgo).
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// PostgresConfig contains PostgreSQL-specific configuration.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	// SSLMode: "disable", "require", "verify-ca" or "verify-full".
	// Default: "require"
	SSLMode string `yaml:"ssl_mode"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`
}

// RecorderConfig configures the asynchronous evidence writer.
type RecorderConfig struct {
	// AsyncBuffer is the size of the write queue.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds a single storage write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RetentionConfig configures evidence pruning.
type RetentionConfig struct {
	// Days is how long records are kept. 0 keeps them forever.
	// Default: 2555 (seven years)
	Days int `yaml:"days"`

	// PruneSchedule is a cron expression.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}

// QueryConfig bounds evidence queries.
type QueryConfig struct {
	// DefaultLimit applies when a query sets no limit.
	// Default: 100
	DefaultLimit int `yaml:"default_limit"`

	// MaxLimit caps any query.
	// Default: 10000
	MaxLimit int `yaml:"max_limit"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// ListenAddress is the host:port to bind.
	// Default: "127.0.0.1:8090"
	ListenAddress string `yaml:"listen_address"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes caps request bodies.
	// Default: 4MB
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	TLS       TLSConfig       `yaml:"tls"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// TLSConfig enables HTTPS on the API listener.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// MinVersion is "1.2" or "1.3".
	// Default: "1.3"
	MinVersion string `yaml:"min_version"`

	// ClientCAFile turns on client certificate verification.
	ClientCAFile string `yaml:"client_ca_file"`

	// ReloadOnChange re-reads the key pair when either file changes.
	// Default: true
	ReloadOnChange bool `yaml:"reload_on_change"`
}

// RateLimitConfig throttles evaluation requests per tenant. Requests that
// pin packs without a tenant share one bucket.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate. Zero disables the limit.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the bucket capacity.
	// Default: twice RequestsPerSecond, at least 1
	Burst int `yaml:"burst"`

	// MaxConcurrent caps in-flight evaluations per tenant. Zero is unlimited.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level: "debug", "info", "warn" or "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format: "json", "text" or "console".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line in log entries.
	AddSource bool `yaml:"add_source"`

	// RedactPII masks secrets and personal data in log attributes.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`
}

// MetricsConfig contains metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "compliance"
	Namespace string `yaml:"namespace"`

	// DurationBuckets are histogram buckets for evaluation latency (seconds).
	DurationBuckets []float64 `yaml:"duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler: "always", "never" or "ratio".
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is used when Sampler is "ratio".
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is reported on every span.
	// Default: "compliance-engine"
	ServiceName string `yaml:"service_name"`

	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	// Insecure disables TLS towards the collector.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout for exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}
