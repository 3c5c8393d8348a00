// Package lattice defines the data-sensitivity classifications and egress
// scopes that compliance packs reason about, together with the partial
// orders used to compare them.
//
// A Lattice is declared once per process and never changes afterwards.
// The built-in order is:
//
//	NONE < PUBLIC < PII < PHI < PCI
//
// Deployments that need tenant-specific classes declare the full ordered
// list in configuration and call Init before any pack is registered:
//
//	if err := lattice.Init("NONE", "PUBLIC", "PII", "PHI", "PCI", "TRADE_SECRET"); err != nil {
//	    return err
//	}
//	l := lattice.Default()
//	top, _ := l.MaxOf([]lattice.Classification{"PII", "PHI"}) // PHI
//
// Egress scopes form a fixed total order NONE < INTERNAL < EXTERNAL.
//
// # Thread Safety
//
// A Lattice is immutable after construction and safe for concurrent use
// without locking.
package lattice
