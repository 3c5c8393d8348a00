package engine

import (
	"skuldbot/compliance/pkg/pack"
)

// ResolveControls unions the controls of every matched rule per node.
// Union is commutative and associative, so the order of matches never
// changes the outcome. Rules of every action contribute their controls,
// so a blocked node still shows what it would need once unblocked.
func ResolveControls(matches []Match) map[string]pack.ControlSet {
	out := make(map[string]pack.ControlSet)
	for _, m := range matches {
		mergeControls(out, m.Node.NodeID, m.Rule.Then.Controls)
	}
	return out
}

// mergeControls adds controls to the set for nodeID.
func mergeControls(sets map[string]pack.ControlSet, nodeID string, controls []pack.ControlType) {
	if len(controls) == 0 {
		return
	}
	set, ok := sets[nodeID]
	if !ok {
		set = pack.NewControlSet()
		sets[nodeID] = set
	}
	set.Add(controls...)
}

// sortedControls flattens control sets into sorted slices. Nodes without
// controls have no entry.
func sortedControls(sets map[string]pack.ControlSet) map[string][]pack.ControlType {
	out := make(map[string][]pack.ControlType, len(sets))
	for id, set := range sets {
		if len(set) == 0 {
			continue
		}
		out[id] = set.Sorted()
	}
	return out
}
