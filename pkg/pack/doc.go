// Package pack defines the tenant policy pack model: versioned, immutable
// bundles of compliance rules, per-classification data limits and
// approval requirements.
//
// A Pack is plain data. It is produced by the parser (YAML), by the
// built-in catalog, or directly in Go, and becomes immutable once it is
// registered with the policy manager. Packs are identified by a Ref (id
// plus version); a tenant always pins an exact version.
//
// # Rules
//
// Each Rule pairs a Predicate with an outcome:
//
//	rules:
//	  - id: phi-external
//	    when:
//	      dataContains: [PHI]
//	      egress: EXTERNAL
//	    then:
//	      action: REQUIRE_CONTROLS
//	      controls: [DLP_SCAN, REDACT, AUDIT_LOG]
//	      severity: HIGH
//
// Predicates form a closed set of variants (NodeTypeMatch,
// NodeCategoryMatch, DataContainsMatch, EgressMatch, ThresholdMatch,
// ClassificationAtLeastMatch, AndMatch, OrMatch, NotMatch). The engine
// evaluates them with a type switch, so adding a variant is a compile-time
// change in one place.
//
// # Composition
//
// Compose merges several packs into a Composite, the most restrictive view
// of all of them: rules are unioned, retention limits take the minimum,
// allowed egress is intersected and required controls and approvals are
// unioned.
package pack
