package storage

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"skuldbot/compliance/pkg/evidence"
)

// MemoryStorage keeps records in a map. It is used in tests and by the CLI
// when no persistent backend is configured.
type MemoryStorage struct {
	records map[string]*evidence.Record
	mu      sync.RWMutex
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{records: make(map[string]*evidence.Record)}
}

func (s *MemoryStorage) Store(_ context.Context, record *evidence.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[record.ID]; ok {
		return evidence.NewStorageError("memory", "store", fmt.Errorf("%w: %s", evidence.ErrDuplicateRecord, record.ID))
	}
	cp := *record
	s.records[record.ID] = &cp
	return nil
}

func (s *MemoryStorage) Get(_ context.Context, id string) (*evidence.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", evidence.ErrNotFound, id)
	}
	cp := *record
	return &cp, nil
}

func (s *MemoryStorage) Query(_ context.Context, q *evidence.Query) ([]*evidence.Record, error) {
	matched := s.matching(q)

	desc := !strings.EqualFold(q.SortOrder, "asc")
	slices.SortFunc(matched, func(a, b *evidence.Record) int {
		c := a.RecordedAt.Compare(b.RecordedAt)
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		if desc {
			return -c
		}
		return c
	})

	if q.Offset >= len(matched) {
		return []*evidence.Record{}, nil
	}
	matched = matched[q.Offset:]
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}

	out := make([]*evidence.Record, len(matched))
	for i, r := range matched {
		cp := *r
		out[i] = &cp
	}
	return out, nil
}

func (s *MemoryStorage) Count(_ context.Context, q *evidence.Query) (int64, error) {
	return int64(len(s.matching(q))), nil
}

func (s *MemoryStorage) Delete(_ context.Context, q *evidence.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, record := range s.records {
		if matches(record, q) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStorage) Ping(context.Context) error { return nil }

func (s *MemoryStorage) Close() error { return nil }

func (s *MemoryStorage) matching(q *evidence.Query) []*evidence.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*evidence.Record
	for _, record := range s.records {
		if matches(record, q) {
			out = append(out, record)
		}
	}
	return out
}

func matches(r *evidence.Record, q *evidence.Query) bool {
	switch {
	case q.StartTime != nil && r.RecordedAt.Before(*q.StartTime):
		return false
	case q.EndTime != nil && r.RecordedAt.After(*q.EndTime):
		return false
	case q.TenantID != "" && r.TenantID != q.TenantID:
		return false
	case q.BotID != "" && r.BotID != q.BotID:
		return false
	case q.EvaluationID != "" && r.EvaluationID != q.EvaluationID:
		return false
	case q.Phase != "" && r.Phase != q.Phase:
		return false
	case q.Passed != nil && r.Passed != *q.Passed:
		return false
	case q.PackID != "" && !hasPack(r.Packs, q.PackID):
		return false
	}
	return true
}

func hasPack(refs []string, id string) bool {
	for _, ref := range refs {
		if strings.HasPrefix(ref, id+"@") {
			return true
		}
	}
	return false
}
