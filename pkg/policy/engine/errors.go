package engine

import (
	"errors"
	"fmt"
	"strings"

	"skuldbot/compliance/pkg/lattice"
	"skuldbot/compliance/pkg/pack"
)

// Common sentinel errors
var (
	// ErrInvalidContext indicates node contexts the evaluator cannot accept.
	ErrInvalidContext = errors.New("invalid evaluation context")

	// ErrNilComposite indicates an evaluation without a pack.
	ErrNilComposite = errors.New("composite pack cannot be nil")

	// ErrPoolClosed indicates a submission to a stopped worker pool.
	ErrPoolClosed = errors.New("evaluation pool closed")

	// ErrInvalidConfig indicates invalid engine configuration.
	ErrInvalidConfig = errors.New("invalid engine configuration")
)

// ContextError describes a node context rejected during INIT.
type ContextError struct {
	Index   int
	NodeID  string
	Field   string
	Message string
	Cause   error
}

// Error returns the error message.
func (e *ContextError) Error() string {
	node := e.NodeID
	if node == "" {
		node = fmt.Sprintf("#%d", e.Index)
	}
	msg := fmt.Sprintf("%v: node %s field %s: %s", ErrInvalidContext, node, e.Field, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes ErrInvalidContext and the cause.
func (e *ContextError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrInvalidContext, e.Cause}
	}
	return []error{ErrInvalidContext}
}

// EgressViolation reports data crossing a boundary its classification may
// not cross. It is a finding, returned by Enforcer.CheckEgress and stored
// in results as a Violation.
type EgressViolation struct {
	NodeID         string
	Classification lattice.Classification
	Requested      lattice.EgressScope
	Allowed        []lattice.EgressScope
	Severity       pack.Severity
}

// Error returns the violation message.
func (v *EgressViolation) Error() string {
	return fmt.Sprintf("%s data may not cross %s egress (allowed: %s)",
		v.Classification, v.Requested, formatScopes(v.Allowed))
}

// Violation converts v into a result entry.
func (v *EgressViolation) Violation() Violation {
	return Violation{
		RuleID:         "egress." + string(v.Classification),
		NodeID:         v.NodeID,
		Severity:       v.Severity,
		Kind:           KindEgress,
		Classification: v.Classification,
		Message:        v.Error(),
	}
}

// RetentionViolation reports a retention period above a classification's
// limit. Soft is set when only the warning threshold was crossed.
type RetentionViolation struct {
	NodeID         string
	Classification lattice.Classification
	RequestedDays  int
	LimitDays      int
	Soft           bool
}

// Error returns the violation message.
func (v *RetentionViolation) Error() string {
	if v.Soft {
		return fmt.Sprintf("%s retention of %d days is above the %d day warning threshold",
			v.Classification, v.RequestedDays, v.LimitDays)
	}
	return fmt.Sprintf("%s retention of %d days exceeds the %d day maximum",
		v.Classification, v.RequestedDays, v.LimitDays)
}

// Violation converts v into a result entry.
func (v *RetentionViolation) Violation() Violation {
	sev := pack.SeverityHigh
	if v.Soft {
		sev = pack.SeverityLow
	}
	return Violation{
		RuleID:         "retention." + string(v.Classification),
		NodeID:         v.NodeID,
		Severity:       sev,
		Kind:           KindRetention,
		Classification: v.Classification,
		Message:        v.Error(),
	}
}

func formatScopes(scopes []lattice.EgressScope) string {
	if len(scopes) == 0 {
		return "NONE"
	}
	parts := make([]string, len(scopes))
	for i, s := range scopes {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
