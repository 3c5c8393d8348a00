package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skuldbot/compliance/pkg/config"
)

func newSQLite(t *testing.T, driver string) *SQLiteStorage {
	t.Helper()
	cfg := DefaultSQLiteConfig()
	cfg.Path = filepath.Join(t.TempDir(), "evidence.db")
	cfg.Driver = driver
	cfg.BusyTimeout = time.Second

	s, err := NewSQLiteStorage(cfg, discardLogger())
	if err != nil && driver == DriverMattn && strings.Contains(err.Error(), "cgo") {
		t.Skip("go-sqlite3 requires cgo")
	}
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStorage(t *testing.T) {
	runStorageSuite(t, newSQLite(t, DriverModernc))
}

func TestSQLiteStorage_Mattn(t *testing.T) {
	runStorageSuite(t, newSQLite(t, DriverMattn))
}

func TestSQLiteStorage_Reopen(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultSQLiteConfig()
	cfg.Path = filepath.Join(t.TempDir(), "evidence.db")

	s, err := NewSQLiteStorage(cfg, discardLogger())
	require.NoError(t, err)
	require.NoError(t, s.Store(ctx, newRecord(1, "acme", true, "hipaa@1.0.0")))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStorage(cfg, discardLogger())
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "rec-001")
	require.NoError(t, err)
	assert.Equal(t, []string{"hipaa@1.0.0"}, got.Packs)
}

func TestSQLiteStorage_UnsupportedDriver(t *testing.T) {
	_, err := NewSQLiteStorage(&config.SQLiteConfig{Path: ":memory:", Driver: "sqlite4"}, nil)
	assert.ErrorContains(t, err, "unsupported driver")
}
