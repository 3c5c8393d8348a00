package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"skuldbot/compliance/pkg/config"
	"skuldbot/compliance/pkg/evidence"
)

// SQLite driver names registered with database/sql.
const (
	DriverModernc = "sqlite"  // modernc.org/sqlite, pure Go
	DriverMattn   = "sqlite3" // github.com/mattn/go-sqlite3, cgo
)

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *config.SQLiteConfig {
	return &config.SQLiteConfig{
		Path:         config.DefaultSQLitePath,
		Driver:       DriverModernc,
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage stores evidence in a SQLite database file.
type SQLiteStorage struct {
	*sqlStore
	config *config.SQLiteConfig
}

// NewSQLiteStorage opens the database, applies pragmas and creates the
// schema. A nil config uses DefaultSQLiteConfig.
func NewSQLiteStorage(cfg *config.SQLiteConfig, logger *slog.Logger) (*SQLiteStorage, error) {
	if cfg == nil {
		cfg = DefaultSQLiteConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	driver := cfg.Driver
	if driver == "" {
		driver = DriverModernc
	}
	if driver != DriverModernc && driver != DriverMattn {
		return nil, evidence.NewStorageError("sqlite", "open", fmt.Errorf("unsupported driver %q", driver))
	}

	db, err := sql.Open(driver, cfg.Path)
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "open", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	s := &SQLiteStorage{
		sqlStore: &sqlStore{
			db: db,
			dialect: dialect{
				name:        "sqlite",
				placeholder: func(int) string { return "?" },
				noLimit:     "-1",
				isDuplicate: func(err error) bool {
					return strings.Contains(err.Error(), "UNIQUE constraint failed")
				},
			},
			logger: logger.With("component", "evidence.storage.sqlite"),
		},
		config: cfg,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("SQLite storage initialized",
		"path", cfg.Path,
		"driver", driver,
		"wal_mode", cfg.WALMode,
		"max_open_conns", cfg.MaxOpenConns,
	)
	return s, nil
}

func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return evidence.NewStorageError("sqlite", "enable_wal", err)
		}
	}
	if s.config.BusyTimeout > 0 {
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
			return evidence.NewStorageError("sqlite", "set_busy_timeout", err)
		}
	}

	if _, err := s.db.Exec(sqliteSchema); err != nil {
		return evidence.NewStorageError("sqlite", "create_schema", err)
	}
	if _, err := s.db.Exec(sqliteInsertSchemaVersion, SchemaVersion); err != nil {
		return evidence.NewStorageError("sqlite", "insert_schema_version", err)
	}
	return verifySchemaVersion(s.sqlStore)
}

func verifySchemaVersion(s *sqlStore) error {
	var version int
	if err := s.db.QueryRow(getSchemaVersion).Scan(&version); err != nil {
		return evidence.NewStorageError(s.dialect.name, "get_schema_version", err)
	}
	if version != SchemaVersion {
		return evidence.NewStorageError(s.dialect.name, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	return nil
}
