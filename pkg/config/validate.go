package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"skuldbot/compliance/pkg/lattice"
	"skuldbot/compliance/pkg/pack"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field.
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError holds every field error found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate checks the whole configuration and returns a ValidationError
// listing every problem, or nil.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateLattice(&cfg.Lattice)...)
	errs = append(errs, validatePacks(&cfg.Packs)...)
	errs = append(errs, validateTenants(cfg.Tenants)...)
	errs = append(errs, validateEngine(&cfg.Engine)...)
	errs = append(errs, validateEvidence(&cfg.Evidence)...)
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

// ClassificationLevels converts the configured levels for lattice.New.
func (c LatticeConfig) ClassificationLevels() []lattice.Classification {
	levels := make([]lattice.Classification, len(c.Levels))
	for i, l := range c.Levels {
		levels[i] = lattice.Classification(strings.ToUpper(strings.TrimSpace(l)))
	}
	return levels
}

func validateLattice(cfg *LatticeConfig) []FieldError {
	if _, err := lattice.New(cfg.ClassificationLevels()...); err != nil {
		return []FieldError{{Field: "lattice.levels", Message: err.Error()}}
	}
	return nil
}

func validatePacks(cfg *PacksConfig) []FieldError {
	var errs []FieldError

	if cfg.Watch && cfg.Directory == "" {
		errs = append(errs, FieldError{
			Field:   "packs.watch",
			Message: "watch requires packs.directory",
		})
	}
	if cfg.MaxFileSize < 0 {
		errs = append(errs, FieldError{
			Field:   "packs.max_file_size",
			Message: "must be positive",
		})
	}

	if cfg.Git.Enabled {
		if cfg.Git.Repository == "" {
			errs = append(errs, FieldError{
				Field:   "packs.git.repository",
				Message: "repository is required when git is enabled",
			})
		}
		switch cfg.Git.Auth.Type {
		case "none":
		case "token":
			if cfg.Git.Auth.Token == "" {
				errs = append(errs, FieldError{
					Field:   "packs.git.auth.token",
					Message: "token is required for token auth",
				})
			}
		case "ssh":
			if cfg.Git.Auth.SSHKeyPath == "" {
				errs = append(errs, FieldError{
					Field:   "packs.git.auth.ssh_key_path",
					Message: "key path is required for ssh auth",
				})
			}
		default:
			errs = append(errs, FieldError{
				Field:   "packs.git.auth.type",
				Message: fmt.Sprintf("unsupported auth type %q (want token, ssh or none)", cfg.Git.Auth.Type),
			})
		}
		if cfg.Git.Poll.Enabled && cfg.Git.Poll.Interval <= 0 {
			errs = append(errs, FieldError{
				Field:   "packs.git.poll.interval",
				Message: "must be positive",
			})
		}
	}

	return errs
}

func validateTenants(tenants map[string]TenantConfig) []FieldError {
	var errs []FieldError
	for id, t := range tenants {
		if strings.TrimSpace(id) == "" {
			errs = append(errs, FieldError{Field: "tenants", Message: "tenant id must not be empty"})
		}
		for i, ref := range t.Packs {
			if _, err := pack.ParseRef(ref); err != nil {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("tenants.%s.packs[%d]", id, i),
					Message: err.Error(),
				})
			}
		}
	}
	return errs
}

func validateEngine(cfg *EngineConfig) []FieldError {
	var errs []FieldError
	if cfg.Workers < 0 {
		errs = append(errs, FieldError{Field: "engine.workers", Message: "must not be negative"})
	}
	if cfg.QueueSize < 0 {
		errs = append(errs, FieldError{Field: "engine.queue_size", Message: "must not be negative"})
	}
	if cfg.DefaultEscalationMinutes < 0 {
		errs = append(errs, FieldError{Field: "engine.default_escalation_minutes", Message: "must not be negative"})
	}
	return errs
}

func validateEvidence(cfg *EvidenceConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "evidence.sqlite.path", Message: "path is required"})
		}
		if cfg.SQLite.Driver != "sqlite" && cfg.SQLite.Driver != "sqlite3" {
			errs = append(errs, FieldError{
				Field:   "evidence.sqlite.driver",
				Message: fmt.Sprintf("unsupported driver %q (want sqlite or sqlite3)", cfg.SQLite.Driver),
			})
		}
	case "postgres":
		if cfg.Postgres.Host == "" {
			errs = append(errs, FieldError{Field: "evidence.postgres.host", Message: "host is required"})
		}
		if cfg.Postgres.Database == "" {
			errs = append(errs, FieldError{Field: "evidence.postgres.database", Message: "database is required"})
		}
		if cfg.Postgres.Port <= 0 || cfg.Postgres.Port > 65535 {
			errs = append(errs, FieldError{Field: "evidence.postgres.port", Message: "must be between 1 and 65535"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "evidence.backend",
			Message: fmt.Sprintf("unsupported backend %q (want sqlite, postgres or memory)", cfg.Backend),
		})
	}

	if cfg.Retention.Days < 0 {
		errs = append(errs, FieldError{Field: "evidence.retention.days", Message: "must not be negative"})
	}
	if cfg.Retention.Days > 0 {
		if _, err := cron.ParseStandard(cfg.Retention.PruneSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "evidence.retention.prune_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}
	if cfg.Recorder.AsyncBuffer < 0 {
		errs = append(errs, FieldError{Field: "evidence.recorder.async_buffer", Message: "must not be negative"})
	}
	if cfg.Query.MaxLimit < cfg.Query.DefaultLimit {
		errs = append(errs, FieldError{Field: "evidence.query.max_limit", Message: "must be at least default_limit"})
	}

	return errs
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError
	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: "listen address is required"})
	}
	if cfg.ReadTimeout < 0 || cfg.WriteTimeout < 0 || cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{Field: "server", Message: "timeouts must not be negative"})
	}
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_body_bytes", Message: "must not be negative"})
	}
	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
			errs = append(errs, FieldError{Field: "server.tls", Message: "cert_file and key_file are required when TLS is enabled"})
		}
		if cfg.TLS.MinVersion != "1.2" && cfg.TLS.MinVersion != "1.3" {
			errs = append(errs, FieldError{Field: "server.tls.min_version", Message: fmt.Sprintf("unsupported version %q (want 1.2 or 1.3)", cfg.TLS.MinVersion)})
		}
	}
	if cfg.RateLimit.RequestsPerSecond < 0 || cfg.RateLimit.Burst < 0 || cfg.RateLimit.MaxConcurrent < 0 {
		errs = append(errs, FieldError{Field: "server.rate_limit", Message: "limits must not be negative"})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unsupported level %q", cfg.Logging.Level),
		})
	}
	switch cfg.Logging.Format {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unsupported format %q", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "must start with /"})
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Sampler {
		case "always", "never", "ratio":
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("unsupported sampler %q", cfg.Tracing.Sampler),
			})
		}
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "must be between 0 and 1"})
		}
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "endpoint is required"})
		}
	}

	return errs
}
