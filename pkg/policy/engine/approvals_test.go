package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skuldbot/compliance/pkg/pack"
)

func TestResolveApprovals(t *testing.T) {
	a := &pack.Pack{ID: "a", Version: "1", Approvals: pack.Approvals{
		RequiredFor:            []string{"records.delete", "payments.*"},
		ApproverRoles:          []string{"privacy_officer"},
		EscalationAfterMinutes: 120,
	}}
	b := &pack.Pack{ID: "b", Version: "1", Approvals: pack.Approvals{
		RequiredFor:            []string{"deploy.production"},
		ApproverRoles:          []string{"security_officer", "privacy_officer"},
		EscalationAfterMinutes: 45,
	}}
	c := pack.Compose(a, b)

	nodes := []NodeContext{
		{NodeID: "n4", NodeCategory: "records", NodeType: "records.read"},
		{NodeID: "n3", NodeCategory: "payments", NodeType: "stripe.charge"},
		{NodeID: "n2", NodeCategory: "misc", NodeType: "payments.refund"},
		{NodeID: "n1", NodeCategory: "records", NodeType: "records.delete"},
		{NodeID: "n5", NodeCategory: "deploy", NodeType: "deploy.production"},
		{NodeID: "n6", NodeCategory: "ai", NodeType: "ai.complete"},
	}
	controls := map[string]pack.ControlSet{
		"n6": pack.NewControlSet(pack.ControlHITLApproval),
		"n4": pack.NewControlSet(pack.ControlAuditLog),
	}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	got := ResolveApprovals(c, nodes, controls, now, DefaultEscalation)

	var ids []string
	for _, r := range got {
		ids = append(ids, r.NodeID)
		assert.Equal(t, []string{"privacy_officer", "security_officer"}, r.ApproverRoles)
		assert.Equal(t, now.Add(45*time.Minute), r.EscalationDeadline, "minimum escalation wins")
	}
	assert.Equal(t, []string{"n1", "n2", "n3", "n5", "n6"}, ids)
	assert.Equal(t, "stripe.charge", got[2].OperationID)
}

func TestResolveApprovals_DefaultEscalation(t *testing.T) {
	c := pack.Compose(&pack.Pack{ID: "a", Version: "1", Approvals: pack.Approvals{RequiredFor: []string{"x"}}})
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	got := ResolveApprovals(c, []NodeContext{{NodeID: "n", NodeCategory: "x"}}, nil, now, 15*time.Minute)
	require.Len(t, got, 1)
	assert.Equal(t, "x", got[0].OperationID)
	assert.Equal(t, now.Add(15*time.Minute), got[0].EscalationDeadline)
	assert.Empty(t, got[0].ApproverRoles)
}

func TestResolveApprovals_CompositionNeverRemoves(t *testing.T) {
	a := &pack.Pack{ID: "a", Version: "1", Approvals: pack.Approvals{RequiredFor: []string{"phi.export"}, ApproverRoles: []string{"r1"}}}
	b := &pack.Pack{ID: "b", Version: "1", Approvals: pack.Approvals{ApproverRoles: []string{"r2"}}}
	nodes := []NodeContext{{NodeID: "n", NodeType: "phi.export"}}
	now := time.Now()

	alone := ResolveApprovals(pack.Compose(a), nodes, nil, now, DefaultEscalation)
	both := ResolveApprovals(pack.Compose(a, b), nodes, nil, now, DefaultEscalation)

	require.Len(t, alone, 1)
	require.Len(t, both, 1)
	assert.Subset(t, both[0].ApproverRoles, alone[0].ApproverRoles)
}
