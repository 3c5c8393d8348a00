package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skuldbot/compliance/pkg/config"
	"skuldbot/compliance/pkg/evidence"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRecord(i int, tenant string, passed bool, packs ...string) *evidence.Record {
	result := evidence.ResultFail
	if passed {
		result = evidence.ResultPass
	}
	return &evidence.Record{
		ID:           fmt.Sprintf("rec-%03d", i),
		EvaluationID: fmt.Sprintf("eval-%03d", i),
		TenantID:     tenant,
		BotID:        "bot-1",
		Phase:        "compile",
		Packs:        packs,
		Passed:       passed,
		Blocks:       boolToInt(!passed),
		Section: &evidence.ComplianceSection{
			Packs:            packs,
			EvaluationResult: result,
		},
		Hash:        "sha256:abc",
		EvaluatedAt: base.Add(time.Duration(i) * time.Minute),
		RecordedAt:  base.Add(time.Duration(i) * time.Minute),
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// runStorageSuite exercises the evidence.Storage contract.
func runStorageSuite(t *testing.T, s evidence.Storage) {
	ctx := context.Background()

	records := []*evidence.Record{
		newRecord(1, "acme", true, "hipaa@1.0.0"),
		newRecord(2, "acme", false, "hipaa@1.0.0", "soc2@2.0.0"),
		newRecord(3, "globex", true, "soc2@2.0.0"),
		newRecord(4, "acme", true, "pci_dss@1.0.0"),
		newRecord(5, "acme", true, "hipaaX@1.0.0"),
	}
	for _, r := range records {
		require.NoError(t, s.Store(ctx, r))
	}
	require.NoError(t, s.Ping(ctx))

	t.Run("get", func(t *testing.T) {
		got, err := s.Get(ctx, "rec-002")
		require.NoError(t, err)
		assert.Equal(t, "eval-002", got.EvaluationID)
		assert.Equal(t, []string{"hipaa@1.0.0", "soc2@2.0.0"}, got.Packs)
		assert.False(t, got.Passed)
		assert.Equal(t, 1, got.Blocks)
		assert.True(t, got.RecordedAt.Equal(base.Add(2*time.Minute)))
		require.NotNil(t, got.Section)
		assert.Equal(t, evidence.ResultFail, got.Section.EvaluationResult)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := s.Get(ctx, "nope")
		assert.ErrorIs(t, err, evidence.ErrNotFound)
	})

	t.Run("duplicate", func(t *testing.T) {
		err := s.Store(ctx, newRecord(1, "acme", true))
		assert.ErrorIs(t, err, evidence.ErrDuplicateRecord)
	})

	passed := true
	start := base.Add(2 * time.Minute)
	end := base.Add(4 * time.Minute)
	tests := []struct {
		name  string
		query evidence.Query
		want  []string
	}{
		{"all newest first", evidence.Query{}, []string{"rec-005", "rec-004", "rec-003", "rec-002", "rec-001"}},
		{"ascending", evidence.Query{SortOrder: "asc"}, []string{"rec-001", "rec-002", "rec-003", "rec-004", "rec-005"}},
		{"tenant", evidence.Query{TenantID: "globex"}, []string{"rec-003"}},
		{"passed", evidence.Query{TenantID: "acme", Passed: &passed}, []string{"rec-005", "rec-004", "rec-001"}},
		{"pack id", evidence.Query{PackID: "hipaa"}, []string{"rec-002", "rec-001"}},
		{"pack id with wildcard chars", evidence.Query{PackID: "pci_dss"}, []string{"rec-004"}},
		{"pack id percent is literal", evidence.Query{PackID: "pci%dss"}, nil},
		{"time range", evidence.Query{StartTime: &start, EndTime: &end, SortOrder: "asc"}, []string{"rec-002", "rec-003", "rec-004"}},
		{"evaluation id", evidence.Query{EvaluationID: "eval-003"}, []string{"rec-003"}},
		{"limit", evidence.Query{Limit: 2}, []string{"rec-005", "rec-004"}},
		{"offset", evidence.Query{Offset: 3}, []string{"rec-002", "rec-001"}},
		{"limit and offset", evidence.Query{Limit: 2, Offset: 1, SortOrder: "asc"}, []string{"rec-002", "rec-003"}},
		{"offset past end", evidence.Query{Offset: 10}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Query(ctx, &tt.query)
			require.NoError(t, err)
			require.NotNil(t, got)
			ids := []string{}
			for _, r := range got {
				ids = append(ids, r.ID)
			}
			if tt.want == nil {
				tt.want = []string{}
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	t.Run("count ignores pagination", func(t *testing.T) {
		n, err := s.Count(ctx, &evidence.Query{TenantID: "acme", Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
	})

	t.Run("delete", func(t *testing.T) {
		cutoff := base.Add(2 * time.Minute)
		n, err := s.Delete(ctx, &evidence.Query{EndTime: &cutoff})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		total, err := s.Count(ctx, &evidence.Query{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
	})
}

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage()
	defer s.Close()
	runStorageSuite(t, s)
}

func TestMemoryStorage_CopiesRecords(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	r := newRecord(1, "acme", true)
	require.NoError(t, s.Store(ctx, r))
	r.TenantID = "mutated"

	got, err := s.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", got.TenantID)

	got.TenantID = "mutated"
	again, err := s.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", again.TenantID)
}

func TestNew(t *testing.T) {
	s, err := New(&config.EvidenceConfig{Backend: BackendMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, s)

	s, err = New(&config.EvidenceConfig{
		Backend: BackendSQLite,
		SQLite:  config.SQLiteConfig{Path: t.TempDir() + "/evidence.db", Driver: DriverModernc},
	}, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStorage{}, s)
	require.NoError(t, s.Close())

	_, err = New(&config.EvidenceConfig{Backend: "mongodb"}, nil)
	var storageErr *evidence.StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, "mongodb", storageErr.Backend)
}
