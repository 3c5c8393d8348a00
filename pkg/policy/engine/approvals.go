package engine

import (
	"slices"
	"strings"
	"time"

	"skuldbot/compliance/pkg/pack"
)

// ResolveApprovals returns one approval request per node that needs a
// human sign-off. A node needs one when:
//   - its node type is listed in the composite's RequiredFor
//   - a "<prefix>.*" entry matches its category or its node type prefix
//   - its resolved controls include HITL_APPROVAL
//
// The deadline is now plus the composite's escalation period, or fallback
// when no pack sets one. now is a parameter so the result is reproducible.
func ResolveApprovals(c *pack.Composite, nodes []NodeContext, controls map[string]pack.ControlSet, now time.Time, fallback time.Duration) []ApprovalRequest {
	escalation := fallback
	if m := c.Approvals.EscalationAfterMinutes; m > 0 {
		escalation = time.Duration(m) * time.Minute
	}
	deadline := now.Add(escalation)

	var out []ApprovalRequest
	for i := range nodes {
		node := &nodes[i]
		if !requiresApproval(c.Approvals.RequiredFor, node) && !controls[node.NodeID].Has(pack.ControlHITLApproval) {
			continue
		}
		out = append(out, ApprovalRequest{
			OperationID:        operationID(node),
			NodeID:             node.NodeID,
			ApproverRoles:      slices.Clone(c.Approvals.ApproverRoles),
			EscalationDeadline: deadline,
		})
	}

	slices.SortFunc(out, func(a, b ApprovalRequest) int {
		return strings.Compare(a.NodeID, b.NodeID)
	})
	return out
}

func requiresApproval(requiredFor []string, node *NodeContext) bool {
	for _, op := range requiredFor {
		if prefix, ok := strings.CutSuffix(op, ".*"); ok {
			if node.NodeCategory == prefix || strings.HasPrefix(node.NodeType, prefix+".") {
				return true
			}
			continue
		}
		if op == node.NodeType {
			return true
		}
	}
	return false
}

// operationID is the node type, or the category when the type is empty.
func operationID(node *NodeContext) string {
	if node.NodeType != "" {
		return node.NodeType
	}
	return node.NodeCategory
}
