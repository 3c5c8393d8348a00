package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"skuldbot/compliance/pkg/pack"
)

func TestResolveControls_Union(t *testing.T) {
	n1 := &NodeContext{NodeID: "n1"}
	n2 := &NodeContext{NodeID: "n2"}
	r := func(controls ...pack.ControlType) *pack.Rule {
		return &pack.Rule{ID: "r", Then: pack.Outcome{Action: pack.ActionRequireControls, Controls: controls}}
	}
	matches := []Match{
		{Rule: r(pack.ControlRedact, pack.ControlAuditLog), Node: n1},
		{Rule: r(pack.ControlAuditLog), Node: n1},
		{Rule: r(), Node: n2},
		{Rule: &pack.Rule{ID: "block", Then: pack.Outcome{Action: pack.ActionBlock, Controls: []pack.ControlType{pack.ControlEncrypt}}}, Node: n1},
	}

	got := sortedControls(ResolveControls(matches))
	assert.Equal(t, map[string][]pack.ControlType{
		"n1": {pack.ControlAuditLog, pack.ControlEncrypt, pack.ControlRedact},
	}, got)

	reversedMatches := reversed(matches)
	assert.Equal(t, got, sortedControls(ResolveControls(reversedMatches)))
}
