package query

import (
	"errors"
	"testing"
	"time"

	"skuldbot/compliance/pkg/config"
	"skuldbot/compliance/pkg/evidence"
)

func TestValidate(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-time.Hour)

	tests := []struct {
		name    string
		query   evidence.Query
		wantErr bool
	}{
		{"empty", evidence.Query{}, false},
		{"full", evidence.Query{Limit: 50, Offset: 10, SortOrder: "ASC", Phase: "runtime", StartTime: &earlier, EndTime: &now}, false},
		{"max limit", evidence.Query{Limit: MaxLimit}, false},
		{"negative limit", evidence.Query{Limit: -1}, true},
		{"limit too large", evidence.Query{Limit: MaxLimit + 1}, true},
		{"negative offset", evidence.Query{Offset: -5}, true},
		{"bad sort order", evidence.Query{SortOrder: "sideways"}, true},
		{"bad phase", evidence.Query{Phase: "deploy"}, true},
		{"inverted range", evidence.Query{StartTime: &now, EndTime: &earlier}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.query)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var qe *evidence.QueryError
				if !errors.As(err, &qe) {
					t.Errorf("expected *evidence.QueryError, got %T", err)
				}
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	q := &evidence.Query{}
	ApplyDefaults(q)
	if q.Limit != DefaultLimit {
		t.Errorf("Limit = %d, want %d", q.Limit, DefaultLimit)
	}
	if q.SortOrder != "desc" {
		t.Errorf("SortOrder = %q, want desc", q.SortOrder)
	}

	q = &evidence.Query{Limit: 5, SortOrder: "ASC"}
	ApplyDefaults(q)
	if q.Limit != 5 || q.SortOrder != "asc" {
		t.Errorf("explicit values changed: %+v", q)
	}
}

func TestLimitsFromConfig(t *testing.T) {
	l := LimitsFromConfig(&config.QueryConfig{DefaultLimit: 20, MaxLimit: 200})
	if l.Default != 20 || l.Max != 200 {
		t.Fatalf("LimitsFromConfig() = %+v", l)
	}
	if err := l.Validate(&evidence.Query{Limit: 201}); err == nil {
		t.Error("expected limit above configured max to fail")
	}

	if got := LimitsFromConfig(nil); got != DefaultLimits() {
		t.Errorf("LimitsFromConfig(nil) = %+v, want defaults", got)
	}
	if got := LimitsFromConfig(&config.QueryConfig{}); got != DefaultLimits() {
		t.Errorf("LimitsFromConfig(zero) = %+v, want defaults", got)
	}
}
