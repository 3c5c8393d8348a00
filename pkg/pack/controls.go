package pack

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ControlType identifies a concrete safeguard that can be required on an
// operation. The set is open: packs may declare their own controls.
type ControlType string

// Built-in controls.
const (
	ControlAuditLog       ControlType = "AUDIT_LOG"
	ControlRedact         ControlType = "REDACT"
	ControlDLPScan        ControlType = "DLP_SCAN"
	ControlHITLApproval   ControlType = "HITL_APPROVAL"
	ControlEncrypt        ControlType = "ENCRYPT"
	ControlTokenize       ControlType = "TOKENIZE"
	ControlVaultStore     ControlType = "VAULT_STORE"
	ControlNonRepudiation ControlType = "NON_REPUDIATION"
	ControlImmutableLog   ControlType = "IMMUTABLE_LOG"
	ControlMask           ControlType = "MASK"
	ControlPseudonymize   ControlType = "PSEUDONYMIZE"
	ControlConsentCheck   ControlType = "CONSENT_CHECK"
)

var builtinControls = map[ControlType]string{
	ControlAuditLog:       "Record the operation in the audit log",
	ControlRedact:         "Redact sensitive fields before use",
	ControlDLPScan:        "Scan payloads with data loss prevention",
	ControlHITLApproval:   "Require human approval before execution",
	ControlEncrypt:        "Encrypt data at rest and in transit",
	ControlTokenize:       "Replace sensitive values with tokens",
	ControlVaultStore:     "Keep secrets and card data in the vault",
	ControlNonRepudiation: "Sign operations for non-repudiation",
	ControlImmutableLog:   "Write to an append-only log",
	ControlMask:           "Mask values in logs and output",
	ControlPseudonymize:   "Replace identifiers with pseudonyms",
	ControlConsentCheck:   "Verify data subject consent",
}

var controlPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// ControlDef declares a control and its description.
type ControlDef struct {
	ID          ControlType `json:"id" yaml:"id"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
}

// ParseControl normalizes s into a well-formed ControlType.
func ParseControl(s string) (ControlType, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	if !controlPattern.MatchString(key) {
		return "", fmt.Errorf("invalid control key %q", s)
	}
	return ControlType(key), nil
}

// IsBuiltinControl reports whether c is part of the built-in catalog.
func IsBuiltinControl(c ControlType) bool {
	_, ok := builtinControls[c]
	return ok
}

// BuiltinControls returns the built-in catalog sorted by id.
func BuiltinControls() []ControlDef {
	defs := make([]ControlDef, 0, len(builtinControls))
	for id, desc := range builtinControls {
		defs = append(defs, ControlDef{ID: id, Description: desc})
	}
	slices.SortFunc(defs, func(a, b ControlDef) int {
		return strings.Compare(string(a.ID), string(b.ID))
	})
	return defs
}

// ControlSet is a set of controls. The zero value is not usable; create
// one with NewControlSet.
type ControlSet map[ControlType]struct{}

// NewControlSet returns a set holding controls.
func NewControlSet(controls ...ControlType) ControlSet {
	s := make(ControlSet, len(controls))
	s.Add(controls...)
	return s
}

// Add inserts controls into the set.
func (s ControlSet) Add(controls ...ControlType) {
	for _, c := range controls {
		s[c] = struct{}{}
	}
}

// Has reports whether c is in the set.
func (s ControlSet) Has(c ControlType) bool {
	_, ok := s[c]
	return ok
}

// Sorted returns the members in lexical order.
func (s ControlSet) Sorted() []ControlType {
	out := make([]ControlType, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// String returns the control id.
func (c ControlType) String() string {
	return string(c)
}
