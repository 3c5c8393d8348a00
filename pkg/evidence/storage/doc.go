// Package storage provides evidence.Storage backends.
//
//   - SQLite: single-node deployments. The driver is selectable:
//     "sqlite" (modernc.org/sqlite, pure Go, the default) or "sqlite3"
//     (github.com/mattn/go-sqlite3, cgo). WAL mode and a busy timeout are
//     applied on open.
//   - PostgreSQL: shared deployments, through github.com/lib/pq.
//   - Memory: tests and ephemeral CLI runs.
//
// The SQL backends share one implementation; only placeholders, the
// unlimited LIMIT keyword and duplicate key detection differ. Timestamps
// are stored as Unix nanoseconds.
//
//	store, err := storage.New(&cfg.Evidence, logger)
//	if err != nil {
//		return err
//	}
//	defer store.Close()
package storage
