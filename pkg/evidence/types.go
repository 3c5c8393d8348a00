package evidence

import (
	"context"
	"io"
	"time"

	"skuldbot/compliance/pkg/lattice"
	"skuldbot/compliance/pkg/pack"
	"skuldbot/compliance/pkg/policy/engine"
)

// Evaluation results as written to the manifest.
const (
	ResultPass = "PASS"
	ResultFail = "FAIL"
)

// ComplianceSection is the "compliance" section of an evidence pack
// manifest. Field names are camelCase to match the manifest format.
type ComplianceSection struct {
	// PolicyPackID and PolicyPackVersion name the primary pack, the lowest
	// ref of the evaluated composite.
	PolicyPackID      string `json:"policyPackId"`
	PolicyPackVersion string `json:"policyPackVersion"`

	// Packs lists every constituent pack as "id@version".
	Packs []string `json:"packs"`

	// EvaluationResult is PASS or FAIL.
	EvaluationResult string `json:"evaluationResult"`

	Violations        []engine.Violation            `json:"violations"`
	Warnings          []engine.Violation            `json:"warnings"`
	InjectedControls  map[string][]pack.ControlType `json:"injectedControls"`
	RequiredApprovals []engine.ApprovalRequest      `json:"requiredApprovals"`

	// ClassificationsDetected are the distinct classifications seen on the
	// evaluated nodes, types only.
	ClassificationsDetected []lattice.Classification `json:"classificationsDetected"`
}

// Passed reports whether the section records a passing evaluation.
func (s *ComplianceSection) Passed() bool {
	return s.EvaluationResult == ResultPass
}

// Record is one stored evaluation. Records are immutable once written;
// Hash is the SHA-256 of the canonical JSON encoding of Section.
type Record struct {
	ID           string `json:"id"`
	EvaluationID string `json:"evaluation_id"`
	TenantID     string `json:"tenant_id"`
	BotID        string `json:"bot_id"`
	Phase        string `json:"phase"`

	// Packs are the composite refs as "id@version".
	Packs []string `json:"packs"`

	Passed   bool `json:"passed"`
	Blocks   int  `json:"blocks"`
	Warnings int  `json:"warnings"`

	Section *ComplianceSection `json:"section"`
	Hash    string             `json:"hash"`

	EvaluatedAt time.Time `json:"evaluated_at"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// Query filters stored records. Zero fields do not filter.
type Query struct {
	// StartTime and EndTime bound RecordedAt, both inclusive.
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	TenantID     string `json:"tenant_id,omitempty"`
	BotID        string `json:"bot_id,omitempty"`
	EvaluationID string `json:"evaluation_id,omitempty"`
	Phase        string `json:"phase,omitempty"`

	// PackID matches records whose composite contains any version of the pack.
	PackID string `json:"pack_id,omitempty"`

	Passed *bool `json:"passed,omitempty"`

	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	// SortOrder orders by RecordedAt: "asc" or "desc" (default).
	SortOrder string `json:"sort_order,omitempty"`
}

// Storage is implemented by evidence backends. Implementations must be safe
// for concurrent use.
type Storage interface {
	// Store persists a record. Storing an existing ID is an error.
	Store(ctx context.Context, record *Record) error

	// Get returns the record with id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// Query returns the records matching q. It never returns nil on success.
	Query(ctx context.Context, q *Query) ([]*Record, error)

	// Count returns the number of records matching q, ignoring pagination.
	Count(ctx context.Context, q *Query) (int64, error)

	// Delete removes the records matching q and returns how many were removed.
	Delete(ctx context.Context, q *Query) (int64, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the backend.
	Close() error
}

// Exporter writes records in an export format.
type Exporter interface {
	Export(ctx context.Context, records []*Record, w io.Writer) error
}
