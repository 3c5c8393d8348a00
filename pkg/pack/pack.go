package pack

import (
	"fmt"
	"slices"
	"strings"

	"skuldbot/compliance/pkg/lattice"
)

// Ref pins a pack by id and version.
type Ref struct {
	ID      string `json:"id" yaml:"id" validate:"required"`
	Version string `json:"version" yaml:"version" validate:"required"`
}

// ParseRef parses "id@version".
func ParseRef(s string) (Ref, error) {
	id, version, ok := strings.Cut(strings.TrimSpace(s), "@")
	if !ok || id == "" || version == "" {
		return Ref{}, fmt.Errorf("%w: %q (want id@version)", ErrInvalidRef, s)
	}
	return Ref{ID: id, Version: version}, nil
}

// String returns "id@version".
func (r Ref) String() string {
	return r.ID + "@" + r.Version
}

// Compare orders refs by id then version.
func (r Ref) Compare(o Ref) int {
	if c := strings.Compare(r.ID, o.ID); c != 0 {
		return c
	}
	return strings.Compare(r.Version, o.Version)
}

// Action is the outcome of a matched rule.
type Action string

const (
	ActionRequireControls Action = "REQUIRE_CONTROLS"
	ActionBlock           Action = "BLOCK"
	ActionWarn            Action = "WARN"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionRequireControls, ActionBlock, ActionWarn:
		return true
	}
	return false
}

// Severity orders findings for reporting. It never suppresses controls.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns 1 (LOW) through 4 (CRITICAL), or 0 when unknown.
func (s Severity) Rank() int {
	return severityRank[s]
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// Outcome is the "then" half of a rule.
type Outcome struct {
	Action   Action        `json:"action"`
	Controls []ControlType `json:"controls,omitempty"`
	Severity Severity      `json:"severity"`
}

// Rule is a single compliance rule.
type Rule struct {
	ID          string    `json:"id"`
	Description string    `json:"description,omitempty"`
	When        Predicate `json:"-"`
	Then        Outcome   `json:"then"`

	// Line is the source line of the rule, zero when built in code.
	Line int `json:"-"`
}

// Defaults are the pack-wide settings handed to the bot compiler.
type Defaults struct {
	Logging      string `json:"logging,omitempty" yaml:"logging"`
	Artifacts    string `json:"artifacts,omitempty" yaml:"artifacts"`
	EvidencePack bool   `json:"evidencePack" yaml:"evidencePack"`
}

// ClassificationPolicy is the baseline floor for one classification.
type ClassificationPolicy struct {
	// MaxRetentionDays is the hard retention limit; nil means unlimited.
	MaxRetentionDays *int `json:"maxRetentionDays,omitempty"`

	// WarnRetentionDays is the soft limit that produces warnings.
	WarnRetentionDays *int `json:"warnRetentionDays,omitempty"`

	// AllowedEgress lists the scopes data may cross. Nil means
	// unrestricted; an empty list allows only NONE.
	AllowedEgress []lattice.EgressScope `json:"allowedEgress"`

	RequiredControls []ControlType `json:"requiredControls,omitempty"`
}

// EgressLimit returns the widest allowed scope.
func (cp ClassificationPolicy) EgressLimit() lattice.EgressScope {
	if cp.AllowedEgress == nil {
		return lattice.EgressExternal
	}
	return lattice.MaxEgress(cp.AllowedEgress)
}

// Approvals lists the operations that need human sign-off.
type Approvals struct {
	// RequiredFor holds operation ids (node types) or category wildcards
	// such as "payments.*".
	RequiredFor   []string `json:"requiredFor,omitempty"`
	ApproverRoles []string `json:"approverRoles,omitempty"`

	// EscalationAfterMinutes is zero when the pack does not set it.
	EscalationAfterMinutes int `json:"escalationAfterMinutes,omitempty"`
}

// Pack is a versioned tenant policy pack.
type Pack struct {
	ID           string `json:"id"`
	Version      string `json:"version"`
	Tenant       string `json:"tenant,omitempty"`
	Industry     string `json:"industry,omitempty"`
	BaseStandard string `json:"baseStandard,omitempty"`
	Description  string `json:"description,omitempty"`

	Defaults            Defaults                                        `json:"defaults"`
	Controls            []ControlDef                                    `json:"controls,omitempty"`
	Rules               []*Rule                                         `json:"rules"`
	DataClassifications map[lattice.Classification]ClassificationPolicy `json:"dataClassifications,omitempty"`
	Approvals           Approvals                                       `json:"approvals"`

	// SourceFile is the file the pack was parsed from, if any.
	SourceFile string `json:"-"`
}

// Ref returns the pack reference.
func (p *Pack) Ref() Ref {
	return Ref{ID: p.ID, Version: p.Version}
}

// Global reports whether the pack is available to every tenant.
func (p *Pack) Global() bool {
	return p.Tenant == ""
}

// AvailableTo reports whether tenantID may resolve the pack.
func (p *Pack) AvailableTo(tenantID string) bool {
	return p.Global() || p.Tenant == tenantID
}

// DeclaresControl reports whether c is built in or declared by the pack.
func (p *Pack) DeclaresControl(c ControlType) bool {
	if IsBuiltinControl(c) {
		return true
	}
	for _, def := range p.Controls {
		if def.ID == c {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of p that shares no mutable state with it.
func (p *Pack) Clone() *Pack {
	if p == nil {
		return nil
	}
	out := *p
	out.Controls = slices.Clone(p.Controls)
	if p.Rules != nil {
		out.Rules = make([]*Rule, len(p.Rules))
		for i, r := range p.Rules {
			out.Rules[i] = r.Clone()
		}
	}
	if p.DataClassifications != nil {
		out.DataClassifications = make(map[lattice.Classification]ClassificationPolicy, len(p.DataClassifications))
		for class, cp := range p.DataClassifications {
			out.DataClassifications[class] = ClassificationPolicy{
				MaxRetentionDays:  cloneInt(cp.MaxRetentionDays),
				WarnRetentionDays: cloneInt(cp.WarnRetentionDays),
				AllowedEgress:     slices.Clone(cp.AllowedEgress),
				RequiredControls:  slices.Clone(cp.RequiredControls),
			}
		}
	}
	out.Approvals.RequiredFor = slices.Clone(p.Approvals.RequiredFor)
	out.Approvals.ApproverRoles = slices.Clone(p.Approvals.ApproverRoles)
	return &out
}

// Clone returns a deep copy of r.
func (r *Rule) Clone() *Rule {
	if r == nil {
		return nil
	}
	out := *r
	out.When = ClonePredicate(r.When)
	out.Then.Controls = slices.Clone(r.Then.Controls)
	return &out
}
