package query

import (
	"errors"
	"fmt"
	"strings"

	"skuldbot/compliance/pkg/config"
	"skuldbot/compliance/pkg/evidence"
	"skuldbot/compliance/pkg/policy/engine"
)

const (
	// DefaultLimit is the number of records returned when a query sets none.
	DefaultLimit = 100

	// MaxLimit is the largest page a query may request.
	MaxLimit = 10000
)

// Limits bounds query pagination.
type Limits struct {
	Default int
	Max     int
}

// DefaultLimits returns DefaultLimit and MaxLimit.
func DefaultLimits() Limits {
	return Limits{Default: DefaultLimit, Max: MaxLimit}
}

// LimitsFromConfig reads the evidence query section, falling back to the
// defaults for unset values.
func LimitsFromConfig(cfg *config.QueryConfig) Limits {
	l := DefaultLimits()
	if cfg == nil {
		return l
	}
	if cfg.DefaultLimit > 0 {
		l.Default = cfg.DefaultLimit
	}
	if cfg.MaxLimit > 0 {
		l.Max = cfg.MaxLimit
	}
	return l
}

var validSortOrders = map[string]bool{
	"asc":  true,
	"desc": true,
}

var validPhases = map[string]bool{
	string(engine.PhaseCompile): true,
	string(engine.PhaseRuntime): true,
}

// Validate checks q against l and returns a *evidence.QueryError for the
// first invalid parameter.
func (l Limits) Validate(q *evidence.Query) error {
	if q.Limit < 0 {
		return evidence.NewQueryError(q, fmt.Errorf("limit must be >= 0, got %d", q.Limit))
	}
	if q.Limit > l.Max {
		return evidence.NewQueryError(q, fmt.Errorf("limit must be <= %d, got %d", l.Max, q.Limit))
	}
	if q.Offset < 0 {
		return evidence.NewQueryError(q, fmt.Errorf("offset must be >= 0, got %d", q.Offset))
	}
	if q.SortOrder != "" && !validSortOrders[strings.ToLower(q.SortOrder)] {
		return evidence.NewQueryError(q, fmt.Errorf("invalid sort order: %s (must be 'asc' or 'desc')", q.SortOrder))
	}
	if q.Phase != "" && !validPhases[q.Phase] {
		return evidence.NewQueryError(q, fmt.Errorf("invalid phase: %s (must be 'compile' or 'runtime')", q.Phase))
	}
	if q.StartTime != nil && q.EndTime != nil && q.StartTime.After(*q.EndTime) {
		return evidence.NewQueryError(q, errors.New("start_time must be before end_time"))
	}
	return nil
}

// ApplyDefaults fills in the page size and sort order.
func (l Limits) ApplyDefaults(q *evidence.Query) {
	if q.Limit == 0 {
		q.Limit = l.Default
	}
	if q.SortOrder == "" {
		q.SortOrder = "desc"
	}
	q.SortOrder = strings.ToLower(q.SortOrder)
}

// Validate checks q against the default limits.
func Validate(q *evidence.Query) error {
	return DefaultLimits().Validate(q)
}

// ApplyDefaults applies the default limits to q.
func ApplyDefaults(q *evidence.Query) {
	DefaultLimits().ApplyDefaults(q)
}
