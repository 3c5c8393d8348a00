package validator

import (
	"errors"
	"testing"

	"skuldbot/compliance/pkg/lattice"
	"skuldbot/compliance/pkg/pack"
)

func intPtr(v int) *int { return &v }

func validPack() *pack.Pack {
	return &pack.Pack{
		ID:      "hipaa",
		Version: "1.0.0",
		Controls: []pack.ControlDef{
			{ID: "PHI_BANNER"},
		},
		Rules: []*pack.Rule{
			{
				ID: "phi-external",
				When: pack.AndMatch{Operands: []pack.Predicate{
					pack.DataContainsMatch{Classifications: []lattice.Classification{lattice.PHI}},
					pack.EgressMatch{Threshold: lattice.EgressExternal},
				}},
				Then: pack.Outcome{
					Action:   pack.ActionRequireControls,
					Controls: []pack.ControlType{pack.ControlDLPScan, "PHI_BANNER"},
					Severity: pack.SeverityHigh,
				},
			},
		},
		DataClassifications: map[lattice.Classification]pack.ClassificationPolicy{
			lattice.PHI: {
				MaxRetentionDays:  intPtr(2555),
				WarnRetentionDays: intPtr(2000),
				AllowedEgress:     []lattice.EgressScope{lattice.EgressInternal},
			},
		},
		Approvals: pack.Approvals{
			RequiredFor:   []string{"claims.adjudicate"},
			ApproverRoles: []string{"claims_supervisor"},
		},
	}
}

func TestValidate(t *testing.T) {
	v := NewValidator(lattice.MustNew(lattice.DefaultLevels...))
	if err := v.Validate(validPack()); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func TestValidateStructural(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *pack.Pack)
	}{
		{"missing id", func(p *pack.Pack) { p.ID = "" }},
		{"upper case id", func(p *pack.Pack) { p.ID = "HIPAA" }},
		{"missing version", func(p *pack.Pack) { p.Version = "" }},
		{"duplicate rule", func(p *pack.Pack) { p.Rules = append(p.Rules, p.Rules[0]) }},
		{"undeclared control", func(p *pack.Pack) { p.Rules[0].Then.Controls = []pack.ControlType{"SHRED"} }},
		{"bad action", func(p *pack.Pack) { p.Rules[0].Then.Action = "ALLOW" }},
		{"bad severity", func(p *pack.Pack) { p.Rules[0].Then.Severity = "URGENT" }},
		{"no controls", func(p *pack.Pack) { p.Rules[0].Then.Controls = nil }},
		{"nil predicate", func(p *pack.Pack) { p.Rules[0].When = nil }},
		{"empty and", func(p *pack.Pack) { p.Rules[0].When = pack.AndMatch{} }},
		{"bad operator", func(p *pack.Pack) {
			p.Rules[0].When = pack.ThresholdMatch{Field: pack.FieldAmount, Operator: "=~"}
		}},
		{"warn above max", func(p *pack.Pack) {
			p.DataClassifications[lattice.PHI] = pack.ClassificationPolicy{
				MaxRetentionDays:  intPtr(10),
				WarnRetentionDays: intPtr(20),
			}
		}},
		{"roles missing", func(p *pack.Pack) { p.Approvals.ApproverRoles = nil }},
		{"negative escalation", func(p *pack.Pack) { p.Approvals.EscalationAfterMinutes = -5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPack()
			tt.mutate(p)
			err := NewValidator(nil).Validate(p)
			if !errors.Is(err, pack.ErrMalformedRule) {
				t.Errorf("Validate() error = %v, want ErrMalformedRule", err)
			}
		})
	}
}

func TestValidateUnknownClassification(t *testing.T) {
	p := validPack()
	p.Rules[0].When = pack.DataContainsMatch{Classifications: []lattice.Classification{"BIOMETRIC"}}

	err := NewValidator(lattice.MustNew(lattice.DefaultLevels...)).Validate(p)
	if !errors.Is(err, lattice.ErrUnknownClassification) {
		t.Fatalf("Validate() error = %v, want ErrUnknownClassification", err)
	}

	custom := lattice.MustNew(lattice.Public, lattice.PII, "BIOMETRIC", lattice.PHI)
	if err := NewValidator(custom).Validate(p); err != nil {
		t.Errorf("Validate() with custom lattice error = %v, want nil", err)
	}
}

func TestValidateReportsAllErrors(t *testing.T) {
	p := validPack()
	p.ID = ""
	p.Rules[0].Then.Action = "ALLOW"
	p.Rules[0].Then.Severity = "URGENT"

	err := NewStructuralValidator().Validate(p)
	var list *pack.ErrorList
	if !errors.As(err, &list) {
		t.Fatalf("Validate() error = %T, want *pack.ErrorList", err)
	}
	if len(list.Errors) != 3 {
		t.Errorf("len(Errors) = %d, want 3: %v", len(list.Errors), err)
	}
}
