package pack

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"skuldbot/compliance/pkg/lattice"
)

// Predicate is the "when" half of a rule. The set of implementations is
// closed; see the Match types in this file.
type Predicate interface {
	predicate()
	String() string
}

// NodeTypeMatch matches when the node type equals one of Types.
type NodeTypeMatch struct {
	Types []string
}

// NodeCategoryMatch matches when the node category equals one of
// Categories.
type NodeCategoryMatch struct {
	Categories []string
}

// DataContainsMatch matches when the node's classifications intersect
// Classifications.
type DataContainsMatch struct {
	Classifications []lattice.Classification
}

// EgressMatch matches when the node's egress is at least Threshold.
type EgressMatch struct {
	Threshold lattice.EgressScope
}

// ClassificationAtLeastMatch matches when the most sensitive classification
// on the node is at least Level.
type ClassificationAtLeastMatch struct {
	Level lattice.Classification
}

// ThresholdField names the numeric node attribute a ThresholdMatch reads.
type ThresholdField string

const (
	FieldAmount        ThresholdField = "amount"
	FieldRetentionDays ThresholdField = "retentionDays"
)

// ThresholdMatch compares a numeric node attribute with Value. A node
// without the attribute never matches.
type ThresholdMatch struct {
	Field    ThresholdField
	Operator Operator
	Value    decimal.Decimal
}

// AndMatch matches when every operand matches. An empty AndMatch is
// rejected by validation.
type AndMatch struct {
	Operands []Predicate
}

// OrMatch matches when any operand matches.
type OrMatch struct {
	Operands []Predicate
}

// NotMatch negates its operand.
type NotMatch struct {
	Operand Predicate
}

func (NodeTypeMatch) predicate()              {}
func (NodeCategoryMatch) predicate()          {}
func (DataContainsMatch) predicate()          {}
func (EgressMatch) predicate()                {}
func (ClassificationAtLeastMatch) predicate() {}
func (ThresholdMatch) predicate()             {}
func (AndMatch) predicate()                   {}
func (OrMatch) predicate()                    {}
func (NotMatch) predicate()                   {}

func (m NodeTypeMatch) String() string {
	return "nodeType in [" + strings.Join(m.Types, ", ") + "]"
}

func (m NodeCategoryMatch) String() string {
	return "nodeCategory in [" + strings.Join(m.Categories, ", ") + "]"
}

func (m DataContainsMatch) String() string {
	parts := make([]string, len(m.Classifications))
	for i, c := range m.Classifications {
		parts[i] = string(c)
	}
	return "dataContains [" + strings.Join(parts, ", ") + "]"
}

func (m EgressMatch) String() string {
	return "egress >= " + string(m.Threshold)
}

func (m ClassificationAtLeastMatch) String() string {
	return "classification >= " + string(m.Level)
}

func (m ThresholdMatch) String() string {
	return fmt.Sprintf("%s %s %s", m.Field, m.Operator, m.Value.String())
}

func (m AndMatch) String() string {
	return joinOperands(m.Operands, " AND ")
}

func (m OrMatch) String() string {
	return joinOperands(m.Operands, " OR ")
}

func (m NotMatch) String() string {
	if m.Operand == nil {
		return "NOT ()"
	}
	return "NOT (" + m.Operand.String() + ")"
}

func joinOperands(ops []Predicate, sep string) string {
	parts := make([]string, len(ops))
	for i, op := range ops {
		if op == nil {
			parts[i] = "<nil>"
			continue
		}
		parts[i] = op.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// Walk calls fn for p and every nested predicate, depth first. It stops
// early when fn returns false.
func Walk(p Predicate, fn func(Predicate) bool) bool {
	if p == nil {
		return true
	}
	if !fn(p) {
		return false
	}
	switch m := p.(type) {
	case AndMatch:
		for _, op := range m.Operands {
			if !Walk(op, fn) {
				return false
			}
		}
	case OrMatch:
		for _, op := range m.Operands {
			if !Walk(op, fn) {
				return false
			}
		}
	case NotMatch:
		return Walk(m.Operand, fn)
	}
	return true
}

// ClonePredicate returns a deep copy of p.
func ClonePredicate(p Predicate) Predicate {
	switch m := p.(type) {
	case NodeTypeMatch:
		return NodeTypeMatch{Types: slices.Clone(m.Types)}
	case NodeCategoryMatch:
		return NodeCategoryMatch{Categories: slices.Clone(m.Categories)}
	case DataContainsMatch:
		return DataContainsMatch{Classifications: slices.Clone(m.Classifications)}
	case AndMatch:
		return AndMatch{Operands: clonePredicates(m.Operands)}
	case OrMatch:
		return OrMatch{Operands: clonePredicates(m.Operands)}
	case NotMatch:
		return NotMatch{Operand: ClonePredicate(m.Operand)}
	default:
		// EgressMatch, ClassificationAtLeastMatch and ThresholdMatch hold
		// only immutable values.
		return p
	}
}

func clonePredicates(in []Predicate) []Predicate {
	if in == nil {
		return nil
	}
	out := make([]Predicate, len(in))
	for i, op := range in {
		out[i] = ClonePredicate(op)
	}
	return out
}
