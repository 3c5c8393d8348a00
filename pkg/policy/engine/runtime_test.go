package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skuldbot/compliance/pkg/lattice"
	"skuldbot/compliance/pkg/pack"
)

func TestCheckControlsPresent(t *testing.T) {
	result := &Result{InjectedControls: map[string][]pack.ControlType{
		"n1": {pack.ControlAuditLog, pack.ControlRedact},
		"n2": {pack.ControlEncrypt},
	}}

	missing := CheckControlsPresent(result, map[string][]pack.ControlType{
		"n1": {pack.ControlAuditLog, pack.ControlMask},
	})

	require.Len(t, missing, 2)
	assert.Equal(t, "control.ENCRYPT", missing[0].RuleID)
	assert.Equal(t, "n2", missing[0].NodeID)
	assert.Equal(t, "control.REDACT", missing[1].RuleID)
	for _, v := range missing {
		assert.Equal(t, KindControl, v.Kind)
		assert.Equal(t, pack.SeverityHigh, v.Severity)
	}

	all := CheckControlsPresent(result, map[string][]pack.ControlType{
		"n1": {pack.ControlRedact, pack.ControlAuditLog},
		"n2": {pack.ControlEncrypt},
	})
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestDrift(t *testing.T) {
	p := hipaaV1()
	p.DataClassifications = map[lattice.Classification]pack.ClassificationPolicy{
		lattice.PHI: {AllowedEgress: []lattice.EgressScope{lattice.EgressInternal}},
	}
	c := pack.Compose(p)
	ev := newEvaluator(t)

	compiled, err := ev.Evaluate(context.Background(), c, []NodeContext{
		{NodeID: "upload", DataClassifications: []lattice.Classification{lattice.PII}, Egress: lattice.EgressExternal},
		{NodeID: "store", DataClassifications: []lattice.Classification{lattice.PHI}, Egress: lattice.EgressInternal},
	}, testNow)
	require.NoError(t, err)
	require.True(t, compiled.Passed)

	// At runtime the upload turns out to carry PHI.
	live, err := ev.Evaluate(context.Background(), c, []NodeContext{
		{NodeID: "upload", DataClassifications: []lattice.Classification{lattice.PII, lattice.PHI}, Egress: lattice.EgressExternal},
		{NodeID: "store", DataClassifications: []lattice.Classification{lattice.PHI}, Egress: lattice.EgressInternal},
	}, testNow)
	require.NoError(t, err)

	drift := Drift(compiled, live)
	require.Len(t, drift, 1)
	assert.Equal(t, "upload", drift[0].NodeID)
	assert.Equal(t, []pack.ControlType{pack.ControlAuditLog, pack.ControlDLPScan, pack.ControlRedact}, drift[0].AddedControls)
	require.Len(t, drift[0].NewBlocks, 1)
	assert.Equal(t, KindEgress, drift[0].NewBlocks[0].Kind)

	assert.Empty(t, Drift(live, live))
}
