package storage

import (
	"fmt"
	"log/slog"

	"skuldbot/compliance/pkg/config"
	"skuldbot/compliance/pkg/evidence"
)

// Backend names accepted in evidence.backend.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// New opens the backend selected by cfg.Backend.
func New(cfg *config.EvidenceConfig, logger *slog.Logger) (evidence.Storage, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryStorage(), nil
	case BackendSQLite, "":
		return NewSQLiteStorage(&cfg.SQLite, logger)
	case BackendPostgres:
		return NewPostgresStorage(&cfg.Postgres, logger)
	default:
		return nil, evidence.NewStorageError(cfg.Backend, "open", fmt.Errorf("unsupported backend %q", cfg.Backend))
	}
}
