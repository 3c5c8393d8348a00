// Package manager is the policy pack repository.
//
// Registry stores packs keyed by (id, version). It is append-only: a version
// is registered once and never changes, which keeps every evaluation that
// pins that version reproducible. Readers work on immutable snapshots
// published through an atomic pointer and never take a lock; writers
// serialize among themselves and publish a new snapshot.
//
// Resolution is exact. Resolve never falls back to another version of the
// same pack, and a tenant-scoped pack resolves only for its own tenant.
// ResolveComposite merges several packs into a pack.Composite, and
// ResolveTenant does the same for the packs bound to a tenant in
// configuration.
//
// Manager feeds the registry from its sources:
//
//   - the embedded standard packs (package builtin)
//   - a directory of YAML pack files, optionally watched with fsnotify
//   - a Git repository, polled for new commits (package git)
//
// A watched file that changes without a version bump is rejected and
// logged; publish a new version instead.
//
//	reg := manager.NewRegistry()
//	mgr, err := manager.NewManager(cfg, reg, logger)
//	if err != nil {
//		return err
//	}
//	if _, err := mgr.Load(ctx); err != nil {
//		return err
//	}
//	composite, err := reg.ResolveTenant("acme-health")
package manager
