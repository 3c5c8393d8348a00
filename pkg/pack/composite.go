package pack

import (
	"slices"
	"strings"

	"skuldbot/compliance/pkg/lattice"
)

// SourcedRule is a rule tagged with the pack it came from.
type SourcedRule struct {
	Source Ref
	Rule   *Rule
}

// Composite is the most restrictive merge of one or more packs. It is the
// unit the evaluator works on; a single pack is a composite of one.
type Composite struct {
	Refs                []Ref // sorted
	Rules               []SourcedRule
	DataClassifications map[lattice.Classification]ClassificationPolicy
	Approvals           Approvals
}

// Compose merges packs into a Composite:
//   - rules are unioned and tagged with their source ref
//   - MaxRetentionDays and WarnRetentionDays take the minimum
//   - AllowedEgress is intersected (unrestricted entries do not narrow it)
//   - RequiredControls, RequiredFor and ApproverRoles are unioned
//   - EscalationAfterMinutes takes the minimum of the packs that set it
//
// The inputs are not modified.
func Compose(packs ...*Pack) *Composite {
	c := &Composite{
		Refs:                make([]Ref, 0, len(packs)),
		DataClassifications: make(map[lattice.Classification]ClassificationPolicy),
	}

	requiredFor := make(map[string]struct{})
	roles := make(map[string]struct{})

	for _, p := range packs {
		ref := p.Ref()
		c.Refs = append(c.Refs, ref)

		for _, r := range p.Rules {
			c.Rules = append(c.Rules, SourcedRule{Source: ref, Rule: r})
		}

		for class, policy := range p.DataClassifications {
			existing, ok := c.DataClassifications[class]
			if !ok {
				c.DataClassifications[class] = clonePolicy(policy)
				continue
			}
			c.DataClassifications[class] = mergePolicy(existing, policy)
		}

		for _, op := range p.Approvals.RequiredFor {
			requiredFor[op] = struct{}{}
		}
		for _, role := range p.Approvals.ApproverRoles {
			roles[role] = struct{}{}
		}
		if m := p.Approvals.EscalationAfterMinutes; m > 0 {
			if c.Approvals.EscalationAfterMinutes == 0 || m < c.Approvals.EscalationAfterMinutes {
				c.Approvals.EscalationAfterMinutes = m
			}
		}
	}

	c.Approvals.RequiredFor = sortedKeys(requiredFor)
	c.Approvals.ApproverRoles = sortedKeys(roles)

	slices.SortFunc(c.Refs, Ref.Compare)
	slices.SortStableFunc(c.Rules, func(a, b SourcedRule) int {
		if n := a.Source.Compare(b.Source); n != 0 {
			return n
		}
		return strings.Compare(a.Rule.ID, b.Rule.ID)
	})

	return c
}

// Policy returns the merged policy for class and whether any pack set one.
func (c *Composite) Policy(class lattice.Classification) (ClassificationPolicy, bool) {
	p, ok := c.DataClassifications[class]
	return p, ok
}

// PrimaryRef returns the lowest constituent ref, or the zero Ref.
func (c *Composite) PrimaryRef() Ref {
	if len(c.Refs) == 0 {
		return Ref{}
	}
	return c.Refs[0]
}

func clonePolicy(p ClassificationPolicy) ClassificationPolicy {
	out := ClassificationPolicy{
		MaxRetentionDays:  cloneInt(p.MaxRetentionDays),
		WarnRetentionDays: cloneInt(p.WarnRetentionDays),
		RequiredControls:  NewControlSet(p.RequiredControls...).Sorted(),
	}
	if p.AllowedEgress != nil {
		out.AllowedEgress = sortEgress(p.AllowedEgress)
	}
	return out
}

func mergePolicy(a, b ClassificationPolicy) ClassificationPolicy {
	out := ClassificationPolicy{
		MaxRetentionDays:  minInt(a.MaxRetentionDays, b.MaxRetentionDays),
		WarnRetentionDays: minInt(a.WarnRetentionDays, b.WarnRetentionDays),
	}

	switch {
	case a.AllowedEgress == nil:
		out.AllowedEgress = cloneEgress(b.AllowedEgress)
	case b.AllowedEgress == nil:
		out.AllowedEgress = cloneEgress(a.AllowedEgress)
	default:
		out.AllowedEgress = []lattice.EgressScope{}
		for _, s := range a.AllowedEgress {
			if slices.Contains(b.AllowedEgress, s) && !slices.Contains(out.AllowedEgress, s) {
				out.AllowedEgress = append(out.AllowedEgress, s)
			}
		}
		out.AllowedEgress = sortEgress(out.AllowedEgress)
	}

	controls := NewControlSet(a.RequiredControls...)
	controls.Add(b.RequiredControls...)
	out.RequiredControls = controls.Sorted()
	return out
}

func cloneEgress(in []lattice.EgressScope) []lattice.EgressScope {
	if in == nil {
		return nil
	}
	return sortEgress(in)
}

func sortEgress(in []lattice.EgressScope) []lattice.EgressScope {
	out := make([]lattice.EgressScope, 0, len(in))
	for _, s := range in {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b lattice.EgressScope) int {
		return a.Rank() - b.Rank()
	})
	return out
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}

func minInt(a, b *int) *int {
	switch {
	case a == nil:
		return cloneInt(b)
	case b == nil:
		return cloneInt(a)
	case *b < *a:
		return cloneInt(b)
	default:
		return cloneInt(a)
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
