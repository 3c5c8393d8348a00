package engine

import (
	"skuldbot/compliance/pkg/lattice"
	"skuldbot/compliance/pkg/pack"
)

// Enforcer applies the per-classification floor of a composite pack:
// egress limits, retention limits and mandatory controls. It runs
// regardless of rule matches. Classifications without an entry in the
// composite impose no limits.
type Enforcer struct{}

// NewEnforcer creates an enforcer.
func NewEnforcer() *Enforcer {
	return &Enforcer{}
}

// CheckEgress returns an *EgressViolation when scope is wider than the
// widest egress the composite allows for class. The violation is CRITICAL
// when the class may not leave the node at all.
func (e *Enforcer) CheckEgress(class lattice.Classification, scope lattice.EgressScope, c *pack.Composite) error {
	policy, ok := c.Policy(class)
	if !ok || policy.AllowedEgress == nil {
		return nil
	}
	limit := policy.EgressLimit()
	if !scope.Exceeds(limit) {
		return nil
	}

	sev := pack.SeverityHigh
	if limit == lattice.EgressNone {
		sev = pack.SeverityCritical
	}
	return &EgressViolation{
		Classification: class,
		Requested:      scope,
		Allowed:        append([]lattice.EgressScope(nil), policy.AllowedEgress...),
		Severity:       sev,
	}
}

// BaselineControls returns the controls the composite requires for class.
func (e *Enforcer) BaselineControls(class lattice.Classification, c *pack.Composite) []pack.ControlType {
	policy, ok := c.Policy(class)
	if !ok {
		return nil
	}
	return append([]pack.ControlType(nil), policy.RequiredControls...)
}

// CheckRetention returns a *RetentionViolation when days is above the
// composite's maximum for class, or a soft one when it is above the
// warning threshold only.
func (e *Enforcer) CheckRetention(class lattice.Classification, days int, c *pack.Composite) error {
	policy, ok := c.Policy(class)
	if !ok {
		return nil
	}
	if max := policy.MaxRetentionDays; max != nil && days > *max {
		return &RetentionViolation{
			Classification: class,
			RequestedDays:  days,
			LimitDays:      *max,
		}
	}
	if warn := policy.WarnRetentionDays; warn != nil && days > *warn {
		return &RetentionViolation{
			Classification: class,
			RequestedDays:  days,
			LimitDays:      *warn,
			Soft:           true,
		}
	}
	return nil
}
