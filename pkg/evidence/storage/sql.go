package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"skuldbot/compliance/pkg/evidence"
)

const columns = "id, evaluation_id, tenant_id, bot_id, phase, packs, passed, blocks, warnings, section, hash, evaluated_at, recorded_at"

// dialect captures what differs between the SQL backends.
type dialect struct {
	name string

	// placeholder renders the n-th (1-based) bind parameter.
	placeholder func(n int) string

	// noLimit is the LIMIT value meaning "all rows", used with OFFSET.
	noLimit string

	// isDuplicate reports a primary key violation.
	isDuplicate func(err error) bool
}

// sqlStore implements evidence.Storage over database/sql. Timestamps are
// stored as Unix nanoseconds so range filters compare integers on every
// backend and driver.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
}

func (s *sqlStore) Store(ctx context.Context, record *evidence.Record) error {
	section, err := json.Marshal(record.Section)
	if err != nil {
		return evidence.NewStorageError(s.dialect.name, "store", err)
	}

	ph := make([]string, 13)
	for i := range ph {
		ph[i] = s.dialect.placeholder(i + 1)
	}
	query := fmt.Sprintf("INSERT INTO evidence (%s) VALUES (%s)", columns, strings.Join(ph, ", "))

	_, err = s.db.ExecContext(ctx, query,
		record.ID, record.EvaluationID, record.TenantID, record.BotID, record.Phase,
		encodePacks(record.Packs), record.Passed, record.Blocks, record.Warnings,
		string(section), record.Hash,
		record.EvaluatedAt.UnixNano(), record.RecordedAt.UnixNano(),
	)
	if err != nil {
		if s.dialect.isDuplicate(err) {
			err = fmt.Errorf("%w: %s", evidence.ErrDuplicateRecord, record.ID)
		}
		return evidence.NewStorageError(s.dialect.name, "store", err)
	}
	return nil
}

func (s *sqlStore) Get(ctx context.Context, id string) (*evidence.Record, error) {
	query := fmt.Sprintf("SELECT %s FROM evidence WHERE id = %s", columns, s.dialect.placeholder(1))
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", evidence.ErrNotFound, id)
	}
	if err != nil {
		return nil, evidence.NewStorageError(s.dialect.name, "get", err)
	}
	return record, nil
}

func (s *sqlStore) Query(ctx context.Context, q *evidence.Query) ([]*evidence.Record, error) {
	where, args := s.where(q)

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM evidence%s ORDER BY recorded_at %s, id %[3]s", columns, where, sortOrder(q))
	switch {
	case q.Limit > 0:
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	case q.Offset > 0:
		fmt.Fprintf(&b, " LIMIT %s", s.dialect.noLimit)
	}
	if q.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, evidence.NewStorageError(s.dialect.name, "query", err)
	}
	defer rows.Close()

	records := []*evidence.Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, evidence.NewStorageError(s.dialect.name, "scan", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, evidence.NewStorageError(s.dialect.name, "query", err)
	}
	return records, nil
}

func (s *sqlStore) Count(ctx context.Context, q *evidence.Query) (int64, error) {
	where, args := s.where(q)

	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM evidence"+where, args...).Scan(&count); err != nil {
		return 0, evidence.NewStorageError(s.dialect.name, "count", err)
	}
	return count, nil
}

func (s *sqlStore) Delete(ctx context.Context, q *evidence.Query) (int64, error) {
	where, args := s.where(q)

	result, err := s.db.ExecContext(ctx, "DELETE FROM evidence"+where, args...)
	if err != nil {
		return 0, evidence.NewStorageError(s.dialect.name, "delete", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, evidence.NewStorageError(s.dialect.name, "delete", err)
	}
	return n, nil
}

func (s *sqlStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return evidence.NewStorageError(s.dialect.name, "ping", err)
	}
	return nil
}

func (s *sqlStore) Close() error {
	if err := s.db.Close(); err != nil {
		return evidence.NewStorageError(s.dialect.name, "close", err)
	}
	s.logger.Info("evidence storage closed")
	return nil
}

// where builds " WHERE ..." (or "") and its arguments. Pagination and
// ordering are not part of it.
func (s *sqlStore) where(q *evidence.Query) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, s.dialect.placeholder(len(args))))
	}

	if q.StartTime != nil {
		add("recorded_at >= %s", q.StartTime.UnixNano())
	}
	if q.EndTime != nil {
		add("recorded_at <= %s", q.EndTime.UnixNano())
	}
	if q.TenantID != "" {
		add("tenant_id = %s", q.TenantID)
	}
	if q.BotID != "" {
		add("bot_id = %s", q.BotID)
	}
	if q.EvaluationID != "" {
		add("evaluation_id = %s", q.EvaluationID)
	}
	if q.Phase != "" {
		add("phase = %s", q.Phase)
	}
	if q.PackID != "" {
		add(`packs LIKE %s ESCAPE '\'`, "%,"+escapeLike(q.PackID)+"@%")
	}
	if q.Passed != nil {
		add("passed = %s", *q.Passed)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*evidence.Record, error) {
	var (
		record                  evidence.Record
		packs, section          string
		evaluatedAt, recordedAt int64
	)
	err := row.Scan(
		&record.ID, &record.EvaluationID, &record.TenantID, &record.BotID, &record.Phase,
		&packs, &record.Passed, &record.Blocks, &record.Warnings,
		&section, &record.Hash, &evaluatedAt, &recordedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Packs = decodePacks(packs)
	record.EvaluatedAt = time.Unix(0, evaluatedAt).UTC()
	record.RecordedAt = time.Unix(0, recordedAt).UTC()
	if section != "" && section != "null" {
		record.Section = &evidence.ComplianceSection{}
		if err := json.Unmarshal([]byte(section), record.Section); err != nil {
			return nil, fmt.Errorf("decode section of %s: %w", record.ID, err)
		}
	}
	return &record, nil
}

// encodePacks stores refs as ",a@1,b@2," so a pack id can be matched with
// LIKE '%,id@%'.
func encodePacks(packs []string) string {
	if len(packs) == 0 {
		return ""
	}
	return "," + strings.Join(packs, ",") + ","
}

func decodePacks(s string) []string {
	s = strings.Trim(s, ",")
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func sortOrder(q *evidence.Query) string {
	if strings.EqualFold(q.SortOrder, "asc") {
		return "ASC"
	}
	return "DESC"
}
