package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/lib/pq"

	"skuldbot/compliance/pkg/config"
	"skuldbot/compliance/pkg/evidence"
)

// pqUniqueViolation is the SQLSTATE for unique_violation.
const pqUniqueViolation = "23505"

const postgresSchema = `
CREATE TABLE IF NOT EXISTS evidence (
    id TEXT PRIMARY KEY,
    evaluation_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL DEFAULT '',
    bot_id TEXT NOT NULL DEFAULT '',
    phase TEXT NOT NULL,
    packs TEXT NOT NULL DEFAULT '',
    passed BOOLEAN NOT NULL,
    blocks INTEGER NOT NULL DEFAULT 0,
    warnings INTEGER NOT NULL DEFAULT 0,
    section JSONB NOT NULL,
    hash TEXT NOT NULL,
    evaluated_at BIGINT NOT NULL,
    recorded_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_evidence_recorded_at ON evidence(recorded_at);
CREATE INDEX IF NOT EXISTS idx_evidence_tenant_bot ON evidence(tenant_id, bot_id);
CREATE INDEX IF NOT EXISTS idx_evidence_evaluation_id ON evidence(evaluation_id);
`

const postgresInsertSchemaVersion = `INSERT INTO schema_version (version) VALUES ($1) ON CONFLICT (version) DO NOTHING`

// PostgresStorage stores evidence in PostgreSQL.
type PostgresStorage struct {
	*sqlStore
}

// DSN renders a lib/pq connection URL for cfg.
func DSN(cfg *config.PostgresConfig) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Path:   "/" + cfg.Database,
	}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	q := url.Values{}
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// NewPostgresStorage connects to PostgreSQL and creates the schema.
func NewPostgresStorage(cfg *config.PostgresConfig, logger *slog.Logger) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, evidence.NewStorageError("postgres", "open", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns / 2)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, evidence.NewStorageError("postgres", "ping", err)
	}

	s, err := NewPostgresStorageFromDB(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.logger.Info("PostgreSQL storage initialized",
		"host", cfg.Host,
		"database", cfg.Database,
		"ssl_mode", cfg.SSLMode,
	)
	return s, nil
}

// NewPostgresStorageFromDB wraps an open connection pool and creates the
// schema.
func NewPostgresStorageFromDB(db *sql.DB, logger *slog.Logger) (*PostgresStorage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &PostgresStorage{sqlStore: &sqlStore{
		db: db,
		dialect: dialect{
			name:        "postgres",
			placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
			noLimit:     "ALL",
			isDuplicate: func(err error) bool {
				var pqErr *pq.Error
				return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
			},
		},
		logger: logger.With("component", "evidence.storage.postgres"),
	}}

	if _, err := db.Exec(postgresSchema); err != nil {
		return nil, evidence.NewStorageError("postgres", "create_schema", err)
	}
	if _, err := db.Exec(postgresInsertSchemaVersion, SchemaVersion); err != nil {
		return nil, evidence.NewStorageError("postgres", "insert_schema_version", err)
	}
	if err := verifySchemaVersion(s.sqlStore); err != nil {
		return nil, err
	}
	return s, nil
}
