package evidence

import (
	"slices"

	"skuldbot/compliance/pkg/lattice"
	"skuldbot/compliance/pkg/pack"
	"skuldbot/compliance/pkg/policy/engine"
)

// NewComplianceSection builds the manifest section for an evaluation
// result. nodes are the evaluated contexts; only their classifications are
// kept.
func NewComplianceSection(result *engine.Result, nodes []engine.NodeContext) *ComplianceSection {
	s := &ComplianceSection{
		Packs:                   make([]string, 0, len(result.Packs)),
		EvaluationResult:        ResultFail,
		Violations:              nonNil(result.Blocks),
		Warnings:                nonNil(result.Warnings),
		InjectedControls:        result.InjectedControls,
		RequiredApprovals:       nonNil(result.RequiredApprovals),
		ClassificationsDetected: detected(nodes),
	}
	if s.InjectedControls == nil {
		s.InjectedControls = map[string][]pack.ControlType{}
	}
	if result.Passed {
		s.EvaluationResult = ResultPass
	}
	if len(result.Packs) > 0 {
		s.PolicyPackID = result.Packs[0].ID
		s.PolicyPackVersion = result.Packs[0].Version
	}
	for _, ref := range result.Packs {
		s.Packs = append(s.Packs, ref.String())
	}
	return s
}

func detected(nodes []engine.NodeContext) []lattice.Classification {
	seen := make(map[lattice.Classification]struct{})
	out := []lattice.Classification{}
	for _, n := range nodes {
		for _, c := range n.DataClassifications {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
