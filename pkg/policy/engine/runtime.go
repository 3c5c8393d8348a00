package engine

import (
	"fmt"
	"slices"
	"strings"

	"skuldbot/compliance/pkg/pack"
)

// CheckControlsPresent compares the controls a compile-time result
// injected with the controls a running bot reports. Every missing control
// becomes a HIGH control violation, sorted like any other violation.
func CheckControlsPresent(result *Result, present map[string][]pack.ControlType) []Violation {
	var out []Violation
	for nodeID, required := range result.InjectedControls {
		have := pack.NewControlSet(present[nodeID]...)
		for _, c := range required {
			if have.Has(c) {
				continue
			}
			out = append(out, Violation{
				RuleID:   "control." + string(c),
				NodeID:   nodeID,
				Severity: pack.SeverityHigh,
				Kind:     KindControl,
				Message:  fmt.Sprintf("required control %s is not active", c),
			})
		}
	}
	slices.SortFunc(out, compareViolations)
	return nonNil(out)
}

// DriftEntry lists what a runtime evaluation of a node requires beyond its
// compile-time evaluation.
type DriftEntry struct {
	NodeID        string             `json:"nodeId"`
	AddedControls []pack.ControlType `json:"addedControls,omitempty"`
	NewBlocks     []Violation        `json:"newBlocks,omitempty"`
}

// Drift reports nodes whose runtime result adds controls or blocks that
// the compiled result did not have. Live data can carry classifications
// the compiler did not infer; such a bot must be rebuilt.
func Drift(compiled, runtime *Result) []DriftEntry {
	byNode := make(map[string]*DriftEntry)
	entry := func(id string) *DriftEntry {
		e, ok := byNode[id]
		if !ok {
			e = &DriftEntry{NodeID: id}
			byNode[id] = e
		}
		return e
	}

	for nodeID, controls := range runtime.InjectedControls {
		before := pack.NewControlSet(compiled.InjectedControls[nodeID]...)
		for _, c := range controls {
			if !before.Has(c) {
				e := entry(nodeID)
				e.AddedControls = append(e.AddedControls, c)
			}
		}
	}

	known := make(map[string]struct{}, len(compiled.Blocks))
	for _, b := range compiled.Blocks {
		known[blockKey(b)] = struct{}{}
	}
	for _, b := range runtime.Blocks {
		if _, ok := known[blockKey(b)]; ok {
			continue
		}
		e := entry(b.NodeID)
		e.NewBlocks = append(e.NewBlocks, b)
	}

	out := make([]DriftEntry, 0, len(byNode))
	for _, e := range byNode {
		slices.Sort(e.AddedControls)
		out = append(out, *e)
	}
	slices.SortFunc(out, func(a, b DriftEntry) int {
		return strings.Compare(a.NodeID, b.NodeID)
	})
	return out
}

func blockKey(v Violation) string {
	return strings.Join([]string{string(v.Kind), v.RuleID, v.NodeID, string(v.Classification), v.Pack.String()}, "|")
}
