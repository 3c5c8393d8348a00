package validator

import (
	"fmt"
	"regexp"
	"strings"

	"skuldbot/compliance/pkg/pack"
)

var (
	packIDPattern  = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
	versionPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._+-]*$`)
)

// StructuralValidator checks the shape of a pack.
type StructuralValidator struct{}

// NewStructuralValidator creates a structural validator.
func NewStructuralValidator() *StructuralValidator {
	return &StructuralValidator{}
}

// Validate returns every structural problem in p.
func (v *StructuralValidator) Validate(p *pack.Pack) error {
	var errs pack.ErrorList
	add := func(ruleID, field, format string, args ...any) {
		errs.Add(&pack.RuleError{
			PackID:  p.ID,
			RuleID:  ruleID,
			Field:   field,
			Message: fmt.Sprintf(format, args...),
		})
	}

	if p.ID == "" {
		add("", "id", "missing required field")
	} else if !packIDPattern.MatchString(p.ID) {
		add("", "id", "%q must be lower case letters, digits, '.', '_' or '-'", p.ID)
	}
	if p.Version == "" {
		add("", "version", "missing required field")
	} else if !versionPattern.MatchString(p.Version) {
		add("", "version", "invalid version %q", p.Version)
	}

	seenControls := make(map[pack.ControlType]bool)
	for _, def := range p.Controls {
		if seenControls[def.ID] {
			add("", "controls", "control %s declared twice", def.ID)
		}
		seenControls[def.ID] = true
	}

	seenRules := make(map[string]bool, len(p.Rules))
	for i, r := range p.Rules {
		if r == nil {
			add("", fmt.Sprintf("rules[%d]", i), "rule is nil")
			continue
		}
		if r.ID == "" {
			add("", fmt.Sprintf("rules[%d].id", i), "missing required field")
		} else if seenRules[r.ID] {
			add(r.ID, "id", "duplicate rule id")
		}
		seenRules[r.ID] = true

		if !r.Then.Action.Valid() {
			add(r.ID, "then.action", "unsupported action %q", r.Then.Action)
		}
		if !r.Then.Severity.Valid() {
			add(r.ID, "then.severity", "unsupported severity %q", r.Then.Severity)
		}
		if r.Then.Action == pack.ActionRequireControls && len(r.Then.Controls) == 0 {
			add(r.ID, "then.controls", "REQUIRE_CONTROLS needs at least one control")
		}
		for _, c := range r.Then.Controls {
			if !p.DeclaresControl(c) {
				add(r.ID, "then.controls", "control %s is neither built in nor declared", c)
			}
		}

		if r.When == nil {
			add(r.ID, "when", "missing predicate")
			continue
		}
		for _, msg := range predicateProblems(r.When) {
			add(r.ID, "when", "%s", msg)
		}
	}

	for class, cp := range p.DataClassifications {
		field := "dataClassifications." + string(class)
		if cp.MaxRetentionDays != nil && *cp.MaxRetentionDays < 0 {
			add("", field+".maxRetentionDays", "must not be negative")
		}
		if cp.WarnRetentionDays != nil {
			if *cp.WarnRetentionDays < 0 {
				add("", field+".warnRetentionDays", "must not be negative")
			}
			if cp.MaxRetentionDays != nil && *cp.WarnRetentionDays > *cp.MaxRetentionDays {
				add("", field+".warnRetentionDays", "%d exceeds maxRetentionDays %d", *cp.WarnRetentionDays, *cp.MaxRetentionDays)
			}
		}
		for _, s := range cp.AllowedEgress {
			if !s.Valid() {
				add("", field+".allowedEgress", "unknown egress scope %q", s)
			}
		}
		for _, c := range cp.RequiredControls {
			if !p.DeclaresControl(c) {
				add("", field+".requiredControls", "control %s is neither built in nor declared", c)
			}
		}
	}

	if p.Approvals.EscalationAfterMinutes < 0 {
		add("", "approvals.escalationAfterMinutes", "must not be negative")
	}
	if len(p.Approvals.RequiredFor) > 0 && len(p.Approvals.ApproverRoles) == 0 {
		add("", "approvals.approverRoles", "requiredFor is set but no approver roles are listed")
	}
	for _, op := range p.Approvals.RequiredFor {
		if strings.TrimSpace(op) == "" {
			add("", "approvals.requiredFor", "empty operation id")
		}
	}

	return errs.Err()
}

// predicateProblems lists structural issues in a predicate tree.
func predicateProblems(root pack.Predicate) []string {
	var problems []string
	pack.Walk(root, func(p pack.Predicate) bool {
		switch m := p.(type) {
		case pack.NodeTypeMatch:
			if len(m.Types) == 0 {
				problems = append(problems, "nodeType needs at least one value")
			}
		case pack.NodeCategoryMatch:
			if len(m.Categories) == 0 {
				problems = append(problems, "nodeCategory needs at least one value")
			}
		case pack.DataContainsMatch:
			if len(m.Classifications) == 0 {
				problems = append(problems, "dataContains needs at least one classification")
			}
		case pack.EgressMatch:
			if !m.Threshold.Valid() {
				problems = append(problems, fmt.Sprintf("unknown egress scope %q", m.Threshold))
			}
		case pack.ThresholdMatch:
			if !m.Operator.Valid() {
				problems = append(problems, fmt.Sprintf("unsupported operator %q", m.Operator))
			}
			if m.Field != pack.FieldAmount && m.Field != pack.FieldRetentionDays {
				problems = append(problems, fmt.Sprintf("unsupported threshold field %q", m.Field))
			}
		case pack.AndMatch:
			if len(m.Operands) == 0 {
				problems = append(problems, "all needs at least one operand")
			}
			for _, op := range m.Operands {
				if op == nil {
					problems = append(problems, "all has a nil operand")
				}
			}
		case pack.OrMatch:
			if len(m.Operands) == 0 {
				problems = append(problems, "any needs at least one operand")
			}
			for _, op := range m.Operands {
				if op == nil {
					problems = append(problems, "any has a nil operand")
				}
			}
		case pack.NotMatch:
			if m.Operand == nil {
				problems = append(problems, "not needs an operand")
			}
		case pack.ClassificationAtLeastMatch:
		default:
			problems = append(problems, fmt.Sprintf("unsupported predicate type %T", p))
		}
		return true
	})
	return problems
}
