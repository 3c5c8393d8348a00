package engine

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skuldbot/compliance/pkg/lattice"
	"skuldbot/compliance/pkg/pack"
	"skuldbot/compliance/pkg/pack/builtin"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func intPtr(n int) *int { return &n }

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func newEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	ev, err := NewEvaluator(nil, nil)
	require.NoError(t, err)
	return ev
}

// hipaaV1 has a single rule: PHI leaving the tenant needs DLP, redaction
// and audit logging.
func hipaaV1() *pack.Pack {
	return &pack.Pack{
		ID:      "hipaa-v1",
		Version: "1.0.0",
		Rules: []*pack.Rule{{
			ID: "phi-external",
			When: pack.AndMatch{Operands: []pack.Predicate{
				pack.DataContainsMatch{Classifications: []lattice.Classification{lattice.PHI}},
				pack.EgressMatch{Threshold: lattice.EgressExternal},
			}},
			Then: pack.Outcome{
				Action:   pack.ActionRequireControls,
				Controls: []pack.ControlType{pack.ControlDLPScan, pack.ControlRedact, pack.ControlAuditLog},
				Severity: pack.SeverityHigh,
			},
		}},
	}
}

func TestEvaluate_RequiredControls(t *testing.T) {
	ev := newEvaluator(t)
	nodes := []NodeContext{{
		NodeID:              "node_005",
		NodeCategory:        "http",
		NodeType:            "http.post",
		DataClassifications: []lattice.Classification{lattice.PHI},
		Egress:              lattice.EgressExternal,
	}}

	res, err := ev.Evaluate(context.Background(), pack.Compose(hipaaV1()), nodes, testNow)
	require.NoError(t, err)

	assert.True(t, res.Passed)
	assert.Empty(t, res.Blocks)
	assert.Equal(t, []pack.ControlType{pack.ControlAuditLog, pack.ControlDLPScan, pack.ControlRedact},
		res.InjectedControls["node_005"])
	assert.Equal(t, []pack.Ref{{ID: "hipaa-v1", Version: "1.0.0"}}, res.Packs)
	assert.Equal(t, testNow, res.EvaluatedAt)
}

func TestEvaluate_EgressBoundary(t *testing.T) {
	p := hipaaV1()
	p.DataClassifications = map[lattice.Classification]pack.ClassificationPolicy{
		lattice.PHI: {AllowedEgress: []lattice.EgressScope{lattice.EgressInternal}},
	}
	nodes := []NodeContext{{
		NodeID:              "node_005",
		DataClassifications: []lattice.Classification{lattice.PHI},
		Egress:              lattice.EgressExternal,
	}}

	res, err := newEvaluator(t).Evaluate(context.Background(), pack.Compose(p), nodes, testNow)
	require.NoError(t, err)

	assert.False(t, res.Passed)
	require.Len(t, res.Blocks, 1)
	b := res.Blocks[0]
	assert.Equal(t, KindEgress, b.Kind)
	assert.Equal(t, "node_005", b.NodeID)
	assert.Equal(t, lattice.PHI, b.Classification)
	assert.Equal(t, pack.SeverityHigh, b.Severity)

	// Controls are still injected for a blocked node.
	assert.Len(t, res.InjectedControls["node_005"], 3)
}

func TestEvaluate_RepeatedClassificationsCollapse(t *testing.T) {
	p := hipaaV1()
	p.DataClassifications = map[lattice.Classification]pack.ClassificationPolicy{
		lattice.PHI: {
			AllowedEgress:     []lattice.EgressScope{lattice.EgressInternal},
			MaxRetentionDays:  intPtr(30),
			WarnRetentionDays: intPtr(10),
		},
	}
	nodes := []NodeContext{
		{
			NodeID:              "n1",
			DataClassifications: []lattice.Classification{lattice.PHI, lattice.PHI},
			Egress:              lattice.EgressExternal,
		},
		{
			NodeID:              "n2",
			DataClassifications: []lattice.Classification{lattice.PHI, lattice.PII, lattice.PHI},
			RetentionDays:       intPtr(20),
		},
	}

	res, err := newEvaluator(t).Evaluate(context.Background(), pack.Compose(p), nodes, testNow)
	require.NoError(t, err)

	require.Len(t, res.Blocks, 1)
	assert.Equal(t, KindEgress, res.Blocks[0].Kind)
	assert.Equal(t, "n1", res.Blocks[0].NodeID)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "n2", res.Warnings[0].NodeID)

	// The caller's slice is left as given.
	assert.Equal(t, []lattice.Classification{lattice.PHI, lattice.PHI}, nodes[0].DataClassifications)
}

func TestEvaluate_EgressNoneOnlyIsCritical(t *testing.T) {
	p := &pack.Pack{
		ID:      "pci",
		Version: "4.0.0",
		DataClassifications: map[lattice.Classification]pack.ClassificationPolicy{
			lattice.PCI: {AllowedEgress: []lattice.EgressScope{}},
		},
	}
	nodes := []NodeContext{{
		NodeID:              "n1",
		DataClassifications: []lattice.Classification{lattice.PCI},
		Egress:              lattice.EgressInternal,
	}}

	res, err := newEvaluator(t).Evaluate(context.Background(), pack.Compose(p), nodes, testNow)
	require.NoError(t, err)
	require.Len(t, res.Blocks, 1)
	assert.Equal(t, pack.SeverityCritical, res.Blocks[0].Severity)
}

func TestEvaluate_ApprovalOnThreshold(t *testing.T) {
	p := &pack.Pack{
		ID:      "claims",
		Version: "2.1.0",
		Rules: []*pack.Rule{{
			ID: "large-claim",
			When: pack.ThresholdMatch{
				Field:    pack.FieldAmount,
				Operator: pack.OpGreater,
				Value:    decimal.NewFromInt(10000),
			},
			Then: pack.Outcome{
				Action:   pack.ActionRequireControls,
				Controls: []pack.ControlType{pack.ControlHITLApproval},
				Severity: pack.SeverityMedium,
			},
		}},
		Approvals: pack.Approvals{
			ApproverRoles: []string{"claims_supervisor", "compliance_officer"},
		},
	}
	nodes := []NodeContext{
		{NodeID: "adjudicate", NodeCategory: "claims", NodeType: "claims.adjudicate", Amount: amount("15000")},
		{NodeID: "small", NodeCategory: "claims", NodeType: "claims.adjudicate", Amount: amount("9000")},
		{NodeID: "no-amount", NodeCategory: "claims", NodeType: "claims.adjudicate"},
	}

	res, err := newEvaluator(t).Evaluate(context.Background(), pack.Compose(p), nodes, testNow)
	require.NoError(t, err)

	require.Len(t, res.RequiredApprovals, 1)
	req := res.RequiredApprovals[0]
	assert.Equal(t, "claims.adjudicate", req.OperationID)
	assert.Equal(t, "adjudicate", req.NodeID)
	assert.Equal(t, []string{"claims_supervisor", "compliance_officer"}, req.ApproverRoles)
	assert.Equal(t, testNow.Add(60*time.Minute), req.EscalationDeadline)
	assert.True(t, res.Passed)
}

func TestEvaluate_EmptyContexts(t *testing.T) {
	res, err := newEvaluator(t).Evaluate(context.Background(), pack.Compose(hipaaV1()), nil, testNow)
	require.NoError(t, err)

	assert.True(t, res.Passed)
	assert.NotNil(t, res.Blocks)
	assert.Empty(t, res.Blocks)
	assert.NotNil(t, res.Warnings)
	assert.Empty(t, res.Warnings)
	assert.NotNil(t, res.InjectedControls)
	assert.Empty(t, res.InjectedControls)
	assert.NotNil(t, res.RequiredApprovals)
	assert.Empty(t, res.RequiredApprovals)
}

func TestEvaluate_InvalidContext(t *testing.T) {
	tests := []struct {
		name      string
		nodes     []NodeContext
		wantField string
		wantCause error
	}{
		{
			name:      "unknown classification",
			nodes:     []NodeContext{{NodeID: "n1", DataClassifications: []lattice.Classification{"SECRET"}}},
			wantField: "dataClassifications",
			wantCause: lattice.ErrUnknownClassification,
		},
		{
			name:      "unknown egress",
			nodes:     []NodeContext{{NodeID: "n1", Egress: "PLANET"}},
			wantField: "egress",
			wantCause: lattice.ErrUnknownEgress,
		},
		{
			name:      "empty node id",
			nodes:     []NodeContext{{NodeID: " "}},
			wantField: "nodeId",
		},
		{
			name:      "duplicate node id",
			nodes:     []NodeContext{{NodeID: "n1"}, {NodeID: "n1"}},
			wantField: "nodeId",
		},
		{
			name:      "negative retention",
			nodes:     []NodeContext{{NodeID: "n1", RetentionDays: intPtr(-1)}},
			wantField: "retentionDays",
		},
	}

	ev := newEvaluator(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ev.Evaluate(context.Background(), pack.Compose(hipaaV1()), tt.nodes, testNow)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, ErrInvalidContext)

			var ce *ContextError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.wantField, ce.Field)
			if tt.wantCause != nil {
				assert.ErrorIs(t, err, tt.wantCause)
			}
		})
	}
}

func TestEvaluate_NilComposite(t *testing.T) {
	_, err := newEvaluator(t).Evaluate(context.Background(), nil, nil, testNow)
	assert.ErrorIs(t, err, ErrNilComposite)
}

func TestEvaluate_CustomLattice(t *testing.T) {
	lat, err := lattice.New("NONE", "INTERNAL_ONLY", "TRADE_SECRET")
	require.NoError(t, err)

	ev, err := NewEvaluator(DefaultEngineConfig().WithLattice(lat), nil)
	require.NoError(t, err)

	p := &pack.Pack{
		ID:      "ip",
		Version: "1.0.0",
		Rules: []*pack.Rule{{
			ID:   "secret",
			When: pack.ClassificationAtLeastMatch{Level: "INTERNAL_ONLY"},
			Then: pack.Outcome{Action: pack.ActionWarn, Severity: pack.SeverityLow},
		}},
	}
	nodes := []NodeContext{{NodeID: "n1", DataClassifications: []lattice.Classification{"TRADE_SECRET"}}}

	res, err := ev.Evaluate(context.Background(), pack.Compose(p), nodes, testNow)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "secret", res.Warnings[0].RuleID)

	_, err = newEvaluator(t).Evaluate(context.Background(), pack.Compose(p), nodes, testNow)
	assert.ErrorIs(t, err, ErrInvalidContext)
}

func TestEvaluate_BlockRuleKeepsControls(t *testing.T) {
	p := &pack.Pack{
		ID:      "mail",
		Version: "1.0.0",
		Rules: []*pack.Rule{
			{
				ID:   "no-phi-mail",
				When: pack.NodeCategoryMatch{Categories: []string{"email"}},
				Then: pack.Outcome{Action: pack.ActionBlock, Severity: pack.SeverityCritical},
			},
			{
				ID:   "log-mail",
				When: pack.NodeCategoryMatch{Categories: []string{"email"}},
				Then: pack.Outcome{
					Action:   pack.ActionRequireControls,
					Controls: []pack.ControlType{pack.ControlAuditLog},
					Severity: pack.SeverityLow,
				},
			},
			{
				ID:          "mail-volume",
				Description: "bulk mail is rate limited",
				When:        pack.NodeTypeMatch{Types: []string{"email.bulk"}},
				Then:        pack.Outcome{Action: pack.ActionWarn, Severity: pack.SeverityMedium},
			},
		},
	}
	nodes := []NodeContext{{NodeID: "send", NodeCategory: "email", NodeType: "email.bulk"}}

	res, err := newEvaluator(t).Evaluate(context.Background(), pack.Compose(p), nodes, testNow)
	require.NoError(t, err)

	assert.False(t, res.Passed)
	require.Len(t, res.Blocks, 1)
	assert.Equal(t, "no-phi-mail", res.Blocks[0].RuleID)
	assert.Equal(t, KindRule, res.Blocks[0].Kind)
	assert.Equal(t, pack.Ref{ID: "mail", Version: "1.0.0"}, res.Blocks[0].Pack)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "bulk mail is rate limited", res.Warnings[0].Message)
	assert.Equal(t, []pack.ControlType{pack.ControlAuditLog}, res.InjectedControls["send"])
}

func TestEvaluate_Retention(t *testing.T) {
	p := &pack.Pack{
		ID:      "hipaa",
		Version: "1.0.0",
		DataClassifications: map[lattice.Classification]pack.ClassificationPolicy{
			lattice.PHI: {
				MaxRetentionDays:  intPtr(2555),
				WarnRetentionDays: intPtr(2190),
				RequiredControls:  []pack.ControlType{pack.ControlEncrypt},
			},
		},
	}
	nodes := []NodeContext{
		{NodeID: "archive", DataClassifications: []lattice.Classification{lattice.PHI}, RetentionDays: intPtr(3000)},
		{NodeID: "cache", DataClassifications: []lattice.Classification{lattice.PHI}, RetentionDays: intPtr(2200)},
		{NodeID: "tmp", DataClassifications: []lattice.Classification{lattice.PHI}, RetentionDays: intPtr(30)},
		{NodeID: "public", DataClassifications: []lattice.Classification{lattice.Public}, RetentionDays: intPtr(99999)},
	}

	res, err := newEvaluator(t).Evaluate(context.Background(), pack.Compose(p), nodes, testNow)
	require.NoError(t, err)

	require.Len(t, res.Blocks, 1)
	assert.Equal(t, "archive", res.Blocks[0].NodeID)
	assert.Equal(t, KindRetention, res.Blocks[0].Kind)

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "cache", res.Warnings[0].NodeID)
	assert.Equal(t, pack.SeverityLow, res.Warnings[0].Severity)

	for _, id := range []string{"archive", "cache", "tmp"} {
		assert.Equal(t, []pack.ControlType{pack.ControlEncrypt}, res.InjectedControls[id], id)
	}
	assert.NotContains(t, res.InjectedControls, "public")
}

func TestEvaluate_ViolationOrder(t *testing.T) {
	p := &pack.Pack{
		ID:      "order",
		Version: "1.0.0",
		Rules: []*pack.Rule{
			{ID: "a-low", When: pack.NodeTypeMatch{Types: []string{"x"}}, Then: pack.Outcome{Action: pack.ActionBlock, Severity: pack.SeverityLow}},
			{ID: "b-critical", When: pack.NodeTypeMatch{Types: []string{"x"}}, Then: pack.Outcome{Action: pack.ActionBlock, Severity: pack.SeverityCritical}},
			{ID: "c-high", When: pack.NodeTypeMatch{Types: []string{"x"}}, Then: pack.Outcome{Action: pack.ActionBlock, Severity: pack.SeverityHigh}},
		},
	}
	nodes := []NodeContext{{NodeID: "n2", NodeType: "x"}, {NodeID: "n1", NodeType: "x"}}

	res, err := newEvaluator(t).Evaluate(context.Background(), pack.Compose(p), nodes, testNow)
	require.NoError(t, err)

	var got []string
	for _, b := range res.Blocks {
		got = append(got, b.RuleID+"/"+b.NodeID)
	}
	assert.Equal(t, []string{
		"b-critical/n1", "b-critical/n2",
		"c-high/n1", "c-high/n2",
		"a-low/n1", "a-low/n2",
	}, got)
}

func TestEvaluate_Determinism(t *testing.T) {
	c, nodes := builtinScenario(t)
	ev := newEvaluator(t)

	first, err := ev.Evaluate(context.Background(), c, nodes, testNow)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := ev.Evaluate(context.Background(), c, nodes, testNow)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestEvaluate_OrderIndependence(t *testing.T) {
	packs, err := builtin.Packs()
	require.NoError(t, err)
	_, nodes := builtinScenario(t)
	ev := newEvaluator(t)

	base, err := ev.Evaluate(context.Background(), pack.Compose(packs...), nodes, testNow)
	require.NoError(t, err)

	// Reverse rule order inside a shuffled composite, and the pack order.
	shuffled := pack.Compose(reversed(packs)...)
	slices.Reverse(shuffled.Rules)
	slices.Reverse(nodes)

	got, err := ev.Evaluate(context.Background(), shuffled, nodes, testNow)
	require.NoError(t, err)

	assert.Equal(t, base.InjectedControls, got.InjectedControls)
	assert.ElementsMatch(t, base.Blocks, got.Blocks)
	assert.ElementsMatch(t, base.Warnings, got.Warnings)
	assert.Equal(t, base.Passed, got.Passed)
}

func TestEvaluate_Monotonicity(t *testing.T) {
	p := hipaaV1()
	nodes := []NodeContext{
		{NodeID: "a", NodeCategory: "ai", DataClassifications: []lattice.Classification{lattice.PHI}, Egress: lattice.EgressExternal},
		{NodeID: "b", NodeCategory: "files", DataClassifications: []lattice.Classification{lattice.PII}},
	}
	ev := newEvaluator(t)

	before, err := ev.Evaluate(context.Background(), pack.Compose(p), nodes, testNow)
	require.NoError(t, err)

	extra := []*pack.Rule{
		{
			ID:   "ai-low",
			When: pack.NodeCategoryMatch{Categories: []string{"ai"}},
			Then: pack.Outcome{Action: pack.ActionRequireControls, Controls: []pack.ControlType{pack.ControlMask}, Severity: pack.SeverityLow},
		},
		{
			ID:   "ai-block",
			When: pack.NodeCategoryMatch{Categories: []string{"ai"}},
			Then: pack.Outcome{Action: pack.ActionBlock, Severity: pack.SeverityCritical},
		},
	}
	for _, r := range extra {
		p.Rules = append(p.Rules, r)
		after, err := ev.Evaluate(context.Background(), pack.Compose(p), nodes, testNow)
		require.NoError(t, err)
		for nodeID, controls := range before.InjectedControls {
			assert.Subset(t, after.InjectedControls[nodeID], controls, "rule %s removed controls from %s", r.ID, nodeID)
		}
		before = after
	}
}

func TestEvaluate_CompositeStrictness(t *testing.T) {
	a := &pack.Pack{ID: "a", Version: "1", DataClassifications: map[lattice.Classification]pack.ClassificationPolicy{
		lattice.PHI: {MaxRetentionDays: intPtr(2555), AllowedEgress: []lattice.EgressScope{lattice.EgressInternal, lattice.EgressExternal}},
	}}
	b := &pack.Pack{ID: "b", Version: "1", DataClassifications: map[lattice.Classification]pack.ClassificationPolicy{
		lattice.PHI: {MaxRetentionDays: intPtr(365), AllowedEgress: []lattice.EgressScope{lattice.EgressInternal}},
	}}
	c := pack.Compose(a, b)
	enforcer := NewEnforcer()

	policy, ok := c.Policy(lattice.PHI)
	require.True(t, ok)
	assert.Equal(t, 365, *policy.MaxRetentionDays)
	assert.Equal(t, []lattice.EgressScope{lattice.EgressInternal}, policy.AllowedEgress)

	assert.NoError(t, enforcer.CheckEgress(lattice.PHI, lattice.EgressExternal, pack.Compose(a)))
	assert.Error(t, enforcer.CheckEgress(lattice.PHI, lattice.EgressExternal, c))
	assert.NoError(t, enforcer.CheckRetention(lattice.PHI, 400, pack.Compose(a)))
	assert.Error(t, enforcer.CheckRetention(lattice.PHI, 400, c))
}

func TestEvaluate_BuiltinPacks(t *testing.T) {
	c, nodes := builtinScenario(t)

	res, err := newEvaluator(t).Evaluate(context.Background(), c, nodes, testNow)
	require.NoError(t, err)

	assert.False(t, res.Passed)

	var blocked []string
	for _, b := range res.Blocks {
		blocked = append(blocked, b.NodeID+":"+b.RuleID)
	}
	assert.Contains(t, blocked, "mail-records:phi-unencrypted-email")
	assert.Contains(t, blocked, "mail-records:egress.PHI")

	assert.Subset(t, res.InjectedControls["summarize"], []pack.ControlType{pack.ControlRedact, pack.ControlAuditLog})
}

func builtinScenario(t *testing.T) (*pack.Composite, []NodeContext) {
	t.Helper()
	packs, err := builtin.Packs()
	require.NoError(t, err)
	return pack.Compose(packs...), []NodeContext{
		{NodeID: "read-chart", NodeCategory: "database", NodeType: "database.query", DataClassifications: []lattice.Classification{lattice.PHI}, Egress: lattice.EgressInternal},
		{NodeID: "summarize", NodeCategory: "ai", NodeType: "ai.complete", DataClassifications: []lattice.Classification{lattice.PHI, lattice.PII}, Egress: lattice.EgressInternal},
		{NodeID: "mail-records", NodeCategory: "email", NodeType: "email.send", DataClassifications: []lattice.Classification{lattice.PHI}, Egress: lattice.EgressExternal},
		{NodeID: "charge", NodeCategory: "payments", NodeType: "payments.charge", DataClassifications: []lattice.Classification{lattice.PCI}, Amount: amount("25000.00"), Egress: lattice.EgressInternal, RetentionDays: intPtr(400)},
	}
}

func reversed[T any](in []T) []T {
	out := slices.Clone(in)
	slices.Reverse(out)
	return out
}

func TestContextErrorMessage(t *testing.T) {
	err := &ContextError{Index: 2, Field: "nodeId", Message: "node id is required"}
	assert.Equal(t, "invalid evaluation context: node #2 field nodeId: node id is required", err.Error())
	assert.True(t, errors.Is(err, ErrInvalidContext))
}
