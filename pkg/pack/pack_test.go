package pack

import (
	"errors"
	"slices"
	"testing"

	"github.com/shopspring/decimal"

	"skuldbot/compliance/pkg/lattice"
)

func intPtr(v int) *int { return &v }

func TestParseRef(t *testing.T) {
	tests := []struct {
		in      string
		want    Ref
		wantErr bool
	}{
		{"hipaa@1.0.0", Ref{ID: "hipaa", Version: "1.0.0"}, false},
		{" soc2@2024.1 ", Ref{ID: "soc2", Version: "2024.1"}, false},
		{"hipaa", Ref{}, true},
		{"@1.0", Ref{}, true},
		{"hipaa@", Ref{}, true},
	}

	for _, tt := range tests {
		got, err := ParseRef(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRef(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrInvalidRef) {
			t.Errorf("ParseRef(%q) error = %v, want ErrInvalidRef", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseRef(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestOperatorApply(t *testing.T) {
	ten := decimal.NewFromInt(10000)

	tests := []struct {
		op     Operator
		actual int64
		want   bool
	}{
		{OpGreater, 15000, true},
		{OpGreater, 10000, false},
		{OpGreaterEqual, 10000, true},
		{OpLess, 9999, true},
		{OpLessEqual, 10001, false},
		{OpEqual, 10000, true},
		{OpNotEqual, 10000, false},
	}

	for _, tt := range tests {
		if got := tt.op.Apply(decimal.NewFromInt(tt.actual), ten); got != tt.want {
			t.Errorf("%d %s 10000 = %v, want %v", tt.actual, tt.op, got, tt.want)
		}
	}
}

func TestParseOperator(t *testing.T) {
	if op, err := ParseOperator("gte"); err != nil || op != OpGreaterEqual {
		t.Errorf("ParseOperator(gte) = %v, %v, want >=", op, err)
	}
	if _, err := ParseOperator("~="); !errors.Is(err, ErrMalformedRule) {
		t.Errorf("ParseOperator(~=) error = %v, want ErrMalformedRule", err)
	}
}

func TestCompose(t *testing.T) {
	a := &Pack{
		ID: "hipaa", Version: "1",
		Rules: []*Rule{{ID: "a1", When: EgressMatch{Threshold: lattice.EgressExternal}}},
		DataClassifications: map[lattice.Classification]ClassificationPolicy{
			lattice.PHI: {
				MaxRetentionDays: intPtr(2555),
				AllowedEgress:    []lattice.EgressScope{lattice.EgressNone, lattice.EgressInternal},
				RequiredControls: []ControlType{ControlAuditLog},
			},
		},
		Approvals: Approvals{
			RequiredFor:            []string{"claims.adjudicate"},
			ApproverRoles:          []string{"compliance_officer"},
			EscalationAfterMinutes: 120,
		},
	}
	b := &Pack{
		ID: "custom", Version: "3",
		Rules: []*Rule{{ID: "b1", When: EgressMatch{Threshold: lattice.EgressNone}}},
		DataClassifications: map[lattice.Classification]ClassificationPolicy{
			lattice.PHI: {
				MaxRetentionDays: intPtr(365),
				AllowedEgress:    []lattice.EgressScope{lattice.EgressInternal, lattice.EgressExternal},
				RequiredControls: []ControlType{ControlEncrypt},
			},
			lattice.PII: {AllowedEgress: []lattice.EgressScope{lattice.EgressInternal}},
		},
		Approvals: Approvals{
			RequiredFor:            []string{"payments.*"},
			ApproverRoles:          []string{"claims_supervisor", "compliance_officer"},
			EscalationAfterMinutes: 60,
		},
	}

	c := Compose(a, b)

	if len(c.Rules) != 2 || c.Rules[0].Source != a.Ref() || c.Rules[1].Source != b.Ref() {
		t.Errorf("Rules = %+v, want a1 from hipaa then b1 from custom", c.Rules)
	}

	phi, ok := c.Policy(lattice.PHI)
	if !ok {
		t.Fatal("Policy(PHI) missing")
	}
	if *phi.MaxRetentionDays != 365 {
		t.Errorf("MaxRetentionDays = %d, want 365", *phi.MaxRetentionDays)
	}
	if !slices.Equal(phi.AllowedEgress, []lattice.EgressScope{lattice.EgressInternal}) {
		t.Errorf("AllowedEgress = %v, want [INTERNAL]", phi.AllowedEgress)
	}
	if !slices.Equal(phi.RequiredControls, []ControlType{ControlAuditLog, ControlEncrypt}) {
		t.Errorf("RequiredControls = %v, want [AUDIT_LOG ENCRYPT]", phi.RequiredControls)
	}

	if !slices.Equal(c.Approvals.RequiredFor, []string{"claims.adjudicate", "payments.*"}) {
		t.Errorf("RequiredFor = %v", c.Approvals.RequiredFor)
	}
	if !slices.Equal(c.Approvals.ApproverRoles, []string{"claims_supervisor", "compliance_officer"}) {
		t.Errorf("ApproverRoles = %v", c.Approvals.ApproverRoles)
	}
	if c.Approvals.EscalationAfterMinutes != 60 {
		t.Errorf("EscalationAfterMinutes = %d, want 60", c.Approvals.EscalationAfterMinutes)
	}

	// Inputs stay untouched.
	if *a.DataClassifications[lattice.PHI].MaxRetentionDays != 2555 {
		t.Error("Compose() modified its input")
	}
}

func TestComposeStrictness(t *testing.T) {
	scopes := lattice.EgressScopes()
	subsets := [][]lattice.EgressScope{nil, {}}
	for _, s := range scopes {
		subsets = append(subsets, []lattice.EgressScope{s})
	}
	subsets = append(subsets, scopes[:2], scopes[1:], scopes)

	for _, ea := range subsets {
		for _, eb := range subsets {
			a := &Pack{ID: "a", Version: "1", DataClassifications: map[lattice.Classification]ClassificationPolicy{
				lattice.PHI: {AllowedEgress: ea, MaxRetentionDays: intPtr(30)},
			}}
			b := &Pack{ID: "b", Version: "1", DataClassifications: map[lattice.Classification]ClassificationPolicy{
				lattice.PHI: {AllowedEgress: eb, MaxRetentionDays: intPtr(10)},
			}}
			got, _ := Compose(a, b).Policy(lattice.PHI)

			for _, s := range got.AllowedEgress {
				if ea != nil && !slices.Contains(ea, s) {
					t.Errorf("Compose(%v, %v) allows %s not in A", ea, eb, s)
				}
				if eb != nil && !slices.Contains(eb, s) {
					t.Errorf("Compose(%v, %v) allows %s not in B", ea, eb, s)
				}
			}
			if got.EgressLimit().Exceeds(a.DataClassifications[lattice.PHI].EgressLimit()) ||
				got.EgressLimit().Exceeds(b.DataClassifications[lattice.PHI].EgressLimit()) {
				t.Errorf("Compose(%v, %v) limit %s is looser than a constituent", ea, eb, got.EgressLimit())
			}
			if *got.MaxRetentionDays != 10 {
				t.Errorf("MaxRetentionDays = %d, want 10", *got.MaxRetentionDays)
			}
		}
	}
}

func TestEgressLimit(t *testing.T) {
	tests := []struct {
		name    string
		allowed []lattice.EgressScope
		want    lattice.EgressScope
	}{
		{"unrestricted", nil, lattice.EgressExternal},
		{"none only", []lattice.EgressScope{}, lattice.EgressNone},
		{"internal", []lattice.EgressScope{lattice.EgressInternal}, lattice.EgressInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassificationPolicy{AllowedEgress: tt.allowed}.EgressLimit()
			if got != tt.want {
				t.Errorf("EgressLimit() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestWalk(t *testing.T) {
	p := AndMatch{Operands: []Predicate{
		DataContainsMatch{Classifications: []lattice.Classification{lattice.PHI}},
		NotMatch{Operand: OrMatch{Operands: []Predicate{
			NodeTypeMatch{Types: []string{"x"}},
			ThresholdMatch{Field: FieldAmount, Operator: OpGreater, Value: decimal.NewFromInt(1)},
		}}},
	}}

	count := 0
	Walk(p, func(Predicate) bool { count++; return true })
	if count != 6 {
		t.Errorf("Walk() visited %d predicates, want 6", count)
	}
}

func TestRuleErrorIs(t *testing.T) {
	err := &RuleError{PackID: "p", RuleID: "r", Message: "bad"}
	if !errors.Is(err, ErrMalformedRule) {
		t.Error("errors.Is(RuleError, ErrMalformedRule) = false")
	}

	var list ErrorList
	list.Add(err)
	list.Add(nil)
	if !errors.Is(list.Err(), ErrMalformedRule) {
		t.Error("errors.Is(ErrorList, ErrMalformedRule) = false")
	}
	if len(list.Errors) != 1 {
		t.Errorf("len(Errors) = %d, want 1", len(list.Errors))
	}
}
