package engine

import (
	"testing"

	"github.com/shopspring/decimal"

	"skuldbot/compliance/pkg/lattice"
	"skuldbot/compliance/pkg/pack"
)

// TestMatcherPredicates tests each predicate variant against a single node
func TestMatcherPredicates(t *testing.T) {
	node := &NodeContext{
		NodeID:              "n1",
		NodeCategory:        "payments",
		NodeType:            "payments.charge",
		DataClassifications: []lattice.Classification{lattice.PII, lattice.PCI},
		Egress:              lattice.EgressInternal,
		Amount:              amount("10000"),
		RetentionDays:       intPtr(90),
	}

	gt := func(field pack.ThresholdField, op pack.Operator, v int64) pack.Predicate {
		return pack.ThresholdMatch{Field: field, Operator: op, Value: decimal.NewFromInt(v)}
	}

	tests := []struct {
		name string
		pred pack.Predicate
		want bool
	}{
		{"node type", pack.NodeTypeMatch{Types: []string{"payments.refund", "payments.charge"}}, true},
		{"node type miss", pack.NodeTypeMatch{Types: []string{"payments"}}, false},
		{"category", pack.NodeCategoryMatch{Categories: []string{"payments"}}, true},
		{"category is exact", pack.NodeCategoryMatch{Categories: []string{"Payments"}}, false},
		{"data contains", pack.DataContainsMatch{Classifications: []lattice.Classification{lattice.PHI, lattice.PCI}}, true},
		{"data contains miss", pack.DataContainsMatch{Classifications: []lattice.Classification{lattice.PHI}}, false},
		{"egress equal", pack.EgressMatch{Threshold: lattice.EgressInternal}, true},
		{"egress below", pack.EgressMatch{Threshold: lattice.EgressNone}, true},
		{"egress above", pack.EgressMatch{Threshold: lattice.EgressExternal}, false},
		{"at least PHI", pack.ClassificationAtLeastMatch{Level: lattice.PHI}, true},
		{"amount > 10000", gt(pack.FieldAmount, pack.OpGreater, 10000), false},
		{"amount >= 10000", gt(pack.FieldAmount, pack.OpGreaterEqual, 10000), true},
		{"amount == 10000", gt(pack.FieldAmount, pack.OpEqual, 10000), true},
		{"amount != 10000", gt(pack.FieldAmount, pack.OpNotEqual, 10000), false},
		{"retention < 365", gt(pack.FieldRetentionDays, pack.OpLess, 365), true},
		{"retention <= 89", gt(pack.FieldRetentionDays, pack.OpLessEqual, 89), false},
		{
			"and",
			pack.AndMatch{Operands: []pack.Predicate{
				pack.NodeCategoryMatch{Categories: []string{"payments"}},
				pack.EgressMatch{Threshold: lattice.EgressInternal},
			}},
			true,
		},
		{
			"and with one miss",
			pack.AndMatch{Operands: []pack.Predicate{
				pack.NodeCategoryMatch{Categories: []string{"payments"}},
				pack.EgressMatch{Threshold: lattice.EgressExternal},
			}},
			false,
		},
		{"empty and", pack.AndMatch{}, false},
		{
			"or",
			pack.OrMatch{Operands: []pack.Predicate{
				pack.NodeTypeMatch{Types: []string{"email.send"}},
				pack.DataContainsMatch{Classifications: []lattice.Classification{lattice.PCI}},
			}},
			true,
		},
		{"empty or", pack.OrMatch{}, false},
		{"not", pack.NotMatch{Operand: pack.NodeCategoryMatch{Categories: []string{"email"}}}, true},
		{"nil not", pack.NotMatch{}, false},
		{"nil predicate", nil, false},
	}

	m := NewMatcher(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Matches(tt.pred, node); got != tt.want {
				t.Errorf("Matches(%v) = %v, want %v", tt.pred, got, tt.want)
			}
		})
	}
}

// TestMatcherMissingAttributes tests that thresholds never match absent values
func TestMatcherMissingAttributes(t *testing.T) {
	node := &NodeContext{NodeID: "n1"}
	m := NewMatcher(nil)

	for _, field := range []pack.ThresholdField{pack.FieldAmount, pack.FieldRetentionDays} {
		for _, op := range []pack.Operator{pack.OpGreater, pack.OpLess, pack.OpNotEqual} {
			pred := pack.ThresholdMatch{Field: field, Operator: op, Value: decimal.Zero}
			if m.Matches(pred, node) {
				t.Errorf("%v matched a node without %s", pred, field)
			}
		}
	}

	if !m.Matches(pack.ClassificationAtLeastMatch{Level: lattice.None}, node) {
		t.Error("a node without classifications is at least NONE")
	}
}

// TestMatchAllOrdering tests that matches are sorted by node, rule and pack
func TestMatchAllOrdering(t *testing.T) {
	always := pack.NodeTypeMatch{Types: []string{"t"}}
	rule := func(id string) *pack.Rule {
		return &pack.Rule{ID: id, When: always, Then: pack.Outcome{Action: pack.ActionWarn, Severity: pack.SeverityLow}}
	}
	a := &pack.Pack{ID: "a", Version: "1", Rules: []*pack.Rule{rule("r2"), rule("r1")}}
	b := &pack.Pack{ID: "b", Version: "1", Rules: []*pack.Rule{rule("r1")}}

	nodes := []NodeContext{{NodeID: "z", NodeType: "t"}, {NodeID: "y", NodeType: "t"}, {NodeID: "x", NodeType: "other"}}
	matches := MatchAll(pack.Compose(b, a), nodes)

	want := []string{"y/r1/a@1", "y/r1/b@1", "y/r2/a@1", "z/r1/a@1", "z/r1/b@1", "z/r2/a@1"}
	if len(matches) != len(want) {
		t.Fatalf("got %d matches, want %d", len(matches), len(want))
	}
	for i, m := range matches {
		got := m.Node.NodeID + "/" + m.Rule.ID + "/" + m.Source.String()
		if got != want[i] {
			t.Errorf("match %d = %s, want %s", i, got, want[i])
		}
	}
}
