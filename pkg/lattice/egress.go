package lattice

import (
	"fmt"
	"strings"
)

// EgressScope is the boundary a piece of data is allowed to cross.
type EgressScope string

const (
	// EgressNone means data never leaves the node.
	EgressNone EgressScope = "NONE"

	// EgressInternal means data may move within the tenant's boundary.
	EgressInternal EgressScope = "INTERNAL"

	// EgressExternal means data may leave the tenant's boundary.
	EgressExternal EgressScope = "EXTERNAL"
)

var egressRank = map[EgressScope]int{
	EgressNone:     0,
	EgressInternal: 1,
	EgressExternal: 2,
}

// EgressScopes returns all scopes in ascending order.
func EgressScopes() []EgressScope {
	return []EgressScope{EgressNone, EgressInternal, EgressExternal}
}

// ParseEgress parses a scope name case-insensitively.
func ParseEgress(s string) (EgressScope, error) {
	scope := EgressScope(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := egressRank[scope]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEgress, s)
	}
	return scope, nil
}

// Valid reports whether e is one of the three known scopes.
func (e EgressScope) Valid() bool {
	_, ok := egressRank[e]
	return ok
}

// Rank returns the position of e in the egress order, or -1 if unknown.
func (e EgressScope) Rank() int {
	if r, ok := egressRank[e]; ok {
		return r
	}
	return -1
}

// Exceeds reports whether e is strictly wider than limit.
func (e EgressScope) Exceeds(limit EgressScope) bool {
	return e.Rank() > limit.Rank()
}

// AtLeast reports whether e is equal to or wider than threshold.
func (e EgressScope) AtLeast(threshold EgressScope) bool {
	return e.Rank() >= threshold.Rank()
}

// MaxEgress returns the widest scope in scopes. An empty list yields
// EgressNone.
func MaxEgress(scopes []EgressScope) EgressScope {
	widest := EgressNone
	for _, s := range scopes {
		if s.Rank() > widest.Rank() {
			widest = s
		}
	}
	return widest
}

// String returns the scope name.
func (e EgressScope) String() string {
	return string(e)
}
