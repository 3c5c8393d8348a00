// Package validator checks a parsed pack before it may be registered.
//
// Two passes run in order:
//
//   - Structural: identity fields, unique rule ids, actions, severities,
//     operators, non-empty predicates, declared controls and approval
//     settings.
//   - Semantic: every classification named by the pack exists in the
//     process lattice.
//
// The semantic pass only runs when the structural pass is clean, so one
// broken rule does not produce a cascade of follow-up errors. All errors
// of a pass are reported together as a *pack.ErrorList.
package validator
