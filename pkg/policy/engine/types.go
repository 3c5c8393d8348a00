package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"skuldbot/compliance/pkg/lattice"
	"skuldbot/compliance/pkg/pack"
)

// NodeContext is the evaluator's view of one compiled bot node. It is
// built by the compiler and treated as read-only input.
type NodeContext struct {
	// NodeID uniquely identifies the node within the bot.
	NodeID string `json:"nodeId" yaml:"nodeId"`

	// NodeCategory is the node family, e.g. "email" or "ai".
	NodeCategory string `json:"nodeCategory" yaml:"nodeCategory"`

	// NodeType is the concrete operation, e.g. "claims.adjudicate". It
	// doubles as the operation id for approvals.
	NodeType string `json:"nodeType" yaml:"nodeType"`

	// DataClassifications are the classifications of data the node touches.
	DataClassifications []lattice.Classification `json:"dataClassifications" yaml:"dataClassifications"`

	// Egress is the widest boundary the node sends data across.
	Egress lattice.EgressScope `json:"egress" yaml:"egress"`

	// Amount is the node's monetary amount or threshold, if any.
	Amount *decimal.Decimal `json:"amountOrThreshold,omitempty" yaml:"amountOrThreshold"`

	// RetentionDays is how long the node keeps data, if it stores any.
	RetentionDays *int `json:"retentionDays,omitempty" yaml:"retentionDays"`
}

// HasClassification reports whether c is among the node's classifications.
func (n NodeContext) HasClassification(c lattice.Classification) bool {
	for _, have := range n.DataClassifications {
		if have == c {
			return true
		}
	}
	return false
}

// ViolationKind tells where a violation came from.
type ViolationKind string

const (
	KindRule      ViolationKind = "rule"
	KindEgress    ViolationKind = "egress"
	KindRetention ViolationKind = "retention"
	KindControl   ViolationKind = "control"
)

// Violation is a single compliance finding.
type Violation struct {
	RuleID         string                 `json:"ruleId"`
	NodeID         string                 `json:"nodeId,omitempty"`
	Severity       pack.Severity          `json:"severity"`
	Kind           ViolationKind          `json:"kind"`
	Classification lattice.Classification `json:"classification,omitempty"`
	Message        string                 `json:"message"`

	// Pack is the pack that produced a rule violation. It is the zero Ref
	// for baseline findings of a composite.
	Pack pack.Ref `json:"pack"`
}

// ApprovalRequest is a human-in-the-loop gate on one node.
type ApprovalRequest struct {
	OperationID        string    `json:"operationId"`
	NodeID             string    `json:"nodeId"`
	ApproverRoles      []string  `json:"approverRoles"`
	EscalationDeadline time.Time `json:"escalationDeadline"`
}

// Result is the outcome of one evaluation. It is built fresh by every
// call and must not be modified by callers.
type Result struct {
	// Passed is true when there are no blocks.
	Passed bool `json:"passed"`

	// Blocks are findings that prevent publication.
	Blocks []Violation `json:"blocks"`

	// Warnings are advisory findings.
	Warnings []Violation `json:"warnings"`

	// InjectedControls maps node ids to their sorted required controls.
	InjectedControls map[string][]pack.ControlType `json:"injectedControls"`

	// RequiredApprovals are sorted by node id.
	RequiredApprovals []ApprovalRequest `json:"requiredApprovals"`

	// Packs are the constituent packs of the evaluated composite.
	Packs []pack.Ref `json:"packs"`

	// EvaluatedAt is the injected evaluation time.
	EvaluatedAt time.Time `json:"evaluatedAt"`
}

// Match is a rule that matched a node.
type Match struct {
	Rule   *pack.Rule
	Source pack.Ref
	Node   *NodeContext
}

// Phase is the point in a bot's life at which it is evaluated.
type Phase string

const (
	PhaseCompile Phase = "compile"
	PhaseRuntime Phase = "runtime"
)

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	return p == PhaseCompile || p == PhaseRuntime
}

// State is a step of the evaluation state machine.
type State string

const (
	StateInit                 State = "INIT"
	StateMatch                State = "MATCH"
	StateResolveControls      State = "RESOLVE_CONTROLS"
	StateResolveApprovals     State = "RESOLVE_APPROVALS"
	StateCheckEgressRetention State = "CHECK_EGRESS_RETENTION"
	StateFinalize             State = "FINALIZE"
)
