package engine

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"skuldbot/compliance/pkg/lattice"
	"skuldbot/compliance/pkg/pack"
)

// Matcher evaluates rule predicates against node contexts. It holds no
// mutable state and is safe for concurrent use.
type Matcher struct {
	lattice *lattice.Lattice
}

// NewMatcher creates a matcher over lat. A nil lattice means
// lattice.Default().
func NewMatcher(lat *lattice.Lattice) *Matcher {
	if lat == nil {
		lat = lattice.Default()
	}
	return &Matcher{lattice: lat}
}

// MatchAll runs every rule of c against every node using the process
// lattice.
func MatchAll(c *pack.Composite, nodes []NodeContext) []Match {
	return NewMatcher(nil).MatchAll(c, nodes)
}

// MatchAll returns every (rule, node) pair whose predicate holds, sorted
// by node id, rule id and source pack.
func (m *Matcher) MatchAll(c *pack.Composite, nodes []NodeContext) []Match {
	var matches []Match
	for i := range nodes {
		node := &nodes[i]
		for _, sr := range c.Rules {
			if m.Matches(sr.Rule.When, node) {
				matches = append(matches, Match{Rule: sr.Rule, Source: sr.Source, Node: node})
			}
		}
	}

	slices.SortStableFunc(matches, func(a, b Match) int {
		if n := strings.Compare(a.Node.NodeID, b.Node.NodeID); n != 0 {
			return n
		}
		if n := strings.Compare(a.Rule.ID, b.Rule.ID); n != 0 {
			return n
		}
		return a.Source.Compare(b.Source)
	})
	return matches
}

// Matches reports whether p holds for node. A nil predicate never
// matches.
func (m *Matcher) Matches(p pack.Predicate, node *NodeContext) bool {
	switch pred := p.(type) {
	case pack.NodeTypeMatch:
		return slices.Contains(pred.Types, node.NodeType)

	case pack.NodeCategoryMatch:
		return slices.Contains(pred.Categories, node.NodeCategory)

	case pack.DataContainsMatch:
		for _, c := range pred.Classifications {
			if node.HasClassification(c) {
				return true
			}
		}
		return false

	case pack.EgressMatch:
		return node.Egress.AtLeast(pred.Threshold)

	case pack.ClassificationAtLeastMatch:
		top, err := m.lattice.MaxOf(node.DataClassifications)
		if err != nil {
			return false
		}
		n, err := m.lattice.Compare(top, pred.Level)
		return err == nil && n >= 0

	case pack.ThresholdMatch:
		actual, ok := thresholdValue(pred.Field, node)
		if !ok {
			return false
		}
		return pred.Operator.Apply(actual, pred.Value)

	case pack.AndMatch:
		if len(pred.Operands) == 0 {
			return false
		}
		for _, op := range pred.Operands {
			if !m.Matches(op, node) {
				return false
			}
		}
		return true

	case pack.OrMatch:
		for _, op := range pred.Operands {
			if m.Matches(op, node) {
				return true
			}
		}
		return false

	case pack.NotMatch:
		if pred.Operand == nil {
			return false
		}
		return !m.Matches(pred.Operand, node)
	}
	return false
}

func thresholdValue(field pack.ThresholdField, node *NodeContext) (decimal.Decimal, bool) {
	switch field {
	case pack.FieldAmount:
		if node.Amount == nil {
			return decimal.Decimal{}, false
		}
		return *node.Amount, true
	case pack.FieldRetentionDays:
		if node.RetentionDays == nil {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromInt(int64(*node.RetentionDays)), true
	}
	return decimal.Decimal{}, false
}
