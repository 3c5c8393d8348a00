package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "COMPLIANCE_"

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none
// are given) into the process environment. Variables that are already set
// are not overwritten and missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %q: %w", p, err)
		}
	}
	return nil
}

// LoadConfig loads configuration from the YAML file at path, on top of the
// defaults, and validates it. ${VAR} references in the file are expanded
// from the environment. An empty path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}

		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads .env, then the YAML file, then applies
// COMPLIANCE_* overrides and validates the result.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

func envString(name string, dst *string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*dst = val
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func envFloat(name string, dst *float64) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func envList(name string, dst *[]string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		var out []string
		for _, part := range strings.Split(val, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*dst = out
	}
}

// applyEnvOverrides applies COMPLIANCE_SECTION_FIELD variables.
func applyEnvOverrides(cfg *Config) {
	envList("LATTICE_LEVELS", &cfg.Lattice.Levels)

	// Packs
	envBool("PACKS_BUILTINS", &cfg.Packs.Builtins)
	envList("PACKS_BUILTIN_NAMES", &cfg.Packs.BuiltinNames)
	envString("PACKS_DIRECTORY", &cfg.Packs.Directory)
	envBool("PACKS_WATCH", &cfg.Packs.Watch)
	envDuration("PACKS_WATCH_DEBOUNCE", &cfg.Packs.WatchDebounce)
	envBool("PACKS_GIT_ENABLED", &cfg.Packs.Git.Enabled)
	envString("PACKS_GIT_REPOSITORY", &cfg.Packs.Git.Repository)
	envString("PACKS_GIT_BRANCH", &cfg.Packs.Git.Branch)
	envString("PACKS_GIT_PATH", &cfg.Packs.Git.Path)
	envString("PACKS_GIT_AUTH_TYPE", &cfg.Packs.Git.Auth.Type)
	envString("PACKS_GIT_AUTH_TOKEN", &cfg.Packs.Git.Auth.Token)
	envString("PACKS_GIT_AUTH_SSH_KEY_PATH", &cfg.Packs.Git.Auth.SSHKeyPath)
	envString("PACKS_GIT_AUTH_SSH_KEY_PASSPHRASE", &cfg.Packs.Git.Auth.SSHKeyPassphrase)
	envDuration("PACKS_GIT_POLL_INTERVAL", &cfg.Packs.Git.Poll.Interval)

	// Engine
	envInt("ENGINE_WORKERS", &cfg.Engine.Workers)
	envInt("ENGINE_QUEUE_SIZE", &cfg.Engine.QueueSize)
	envInt("ENGINE_DEFAULT_ESCALATION_MINUTES", &cfg.Engine.DefaultEscalationMinutes)

	// Evidence
	envBool("EVIDENCE_ENABLED", &cfg.Evidence.Enabled)
	envString("EVIDENCE_BACKEND", &cfg.Evidence.Backend)
	envString("EVIDENCE_SQLITE_PATH", &cfg.Evidence.SQLite.Path)
	envString("EVIDENCE_SQLITE_DRIVER", &cfg.Evidence.SQLite.Driver)
	envString("EVIDENCE_POSTGRES_HOST", &cfg.Evidence.Postgres.Host)
	envInt("EVIDENCE_POSTGRES_PORT", &cfg.Evidence.Postgres.Port)
	envString("EVIDENCE_POSTGRES_DATABASE", &cfg.Evidence.Postgres.Database)
	envString("EVIDENCE_POSTGRES_USER", &cfg.Evidence.Postgres.User)
	envString("EVIDENCE_POSTGRES_PASSWORD", &cfg.Evidence.Postgres.Password)
	envString("EVIDENCE_POSTGRES_SSL_MODE", &cfg.Evidence.Postgres.SSLMode)
	envInt("EVIDENCE_RETENTION_DAYS", &cfg.Evidence.Retention.Days)
	envString("EVIDENCE_RETENTION_PRUNE_SCHEDULE", &cfg.Evidence.Retention.PruneSchedule)

	// Server
	envString("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envBool("SERVER_TLS_ENABLED", &cfg.Server.TLS.Enabled)
	envString("SERVER_TLS_CERT_FILE", &cfg.Server.TLS.CertFile)
	envString("SERVER_TLS_KEY_FILE", &cfg.Server.TLS.KeyFile)
	envFloat("SERVER_RATE_LIMIT_RPS", &cfg.Server.RateLimit.RequestsPerSecond)

	// Telemetry
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_LOGGING_REDACT_PII", &cfg.Telemetry.Logging.RedactPII)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envFloat("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)
}
