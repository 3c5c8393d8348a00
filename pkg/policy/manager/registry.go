package manager

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"skuldbot/compliance/pkg/pack"
	"skuldbot/compliance/pkg/pack/validator"
)

type entry struct {
	pack         *pack.Pack
	registeredAt time.Time
}

// snapshot is an immutable view of the registry. Writers build a new one
// and publish it; readers never lock.
type snapshot struct {
	packs     map[pack.Ref]entry
	tenants   map[string][]pack.Ref
	version   string
	updatedAt time.Time
}

// Registry is the append-only store of policy packs. Registered packs are
// never replaced or removed, so a ref resolves to the same pack for the life
// of the process. Registered packs must not be modified by callers.
type Registry struct {
	current   atomic.Pointer[snapshot]
	writeMu   sync.Mutex
	validator *validator.Validator
	logger    *slog.Logger
	hooks     []RegisterHook
	now       func() time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithValidator sets the validator run on every registration.
func WithValidator(v *validator.Validator) RegistryOption {
	return func(r *Registry) { r.validator = v }
}

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// WithRegisterHook adds a hook called after every registration attempt.
func WithRegisterHook(h RegisterHook) RegistryOption {
	return func(r *Registry) { r.hooks = append(r.hooks, h) }
}

// NewRegistry returns an empty registry validating against the process
// lattice unless WithValidator is given.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if r.validator == nil {
		r.validator = validator.NewValidator(nil)
	}
	if r.logger == nil {
		r.logger = slog.Default().With("component", "pack-registry")
	}

	r.current.Store(&snapshot{
		packs:     map[pack.Ref]entry{},
		tenants:   map[string][]pack.Ref{},
		updatedAt: r.now(),
	})
	return r
}

// Register validates p and adds it. It fails with ErrDuplicateVersion when
// the (id, version) is already registered, and with pack.ErrMalformedRule
// or lattice.ErrUnknownClassification when validation fails.
func (r *Registry) Register(p *pack.Pack) error {
	err := r.register(p)
	ref := pack.Ref{}
	if p != nil {
		ref = p.Ref()
	}
	for _, h := range r.hooks {
		h(ref, err)
	}
	return err
}

func (r *Registry) register(p *pack.Pack) error {
	if p == nil {
		return &RegistryError{Operation: "register", Err: errors.New("pack cannot be nil")}
	}
	ref := p.Ref()

	if err := r.validator.Validate(p); err != nil {
		return &RegistryError{Ref: ref, Operation: "register", Err: err}
	}
	// The registry keeps its own copy so later edits by the caller never
	// reach readers.
	p = p.Clone()

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	cur := r.current.Load()
	if _, exists := cur.packs[ref]; exists {
		return &RegistryError{Ref: ref, Operation: "register", Err: ErrDuplicateVersion}
	}

	next := &snapshot{
		packs:     maps.Clone(cur.packs),
		tenants:   cur.tenants,
		updatedAt: r.now(),
	}
	next.packs[ref] = entry{pack: p, registeredAt: next.updatedAt}
	next.version = versionOf(next.packs)
	r.current.Store(next)

	r.logger.Info("policy pack registered",
		"pack", ref.String(),
		"tenant", p.Tenant,
		"rules", len(p.Rules),
		"source", p.SourceFile,
	)
	return nil
}

// RegisterAll registers every pack and returns the failures as a
// *pack.ErrorList. Successful registrations are kept.
func (r *Registry) RegisterAll(packs []*pack.Pack) error {
	var errs pack.ErrorList
	for _, p := range packs {
		errs.Add(r.Register(p))
	}
	return errs.Err()
}

// BindTenant pins the packs evaluated for tenantID. The packs need not be
// registered yet; they are resolved on every ResolveTenant call.
func (r *Registry) BindTenant(tenantID string, refs []pack.Ref) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	cur := r.current.Load()
	next := &snapshot{
		packs:     cur.packs,
		tenants:   maps.Clone(cur.tenants),
		version:   cur.version,
		updatedAt: r.now(),
	}
	next.tenants[tenantID] = slices.Clone(refs)
	r.current.Store(next)
}

// Resolve returns a copy of the pack pinned by ref. There is no fallback
// to another version. Tenant-scoped packs resolve only for their own
// tenant.
func (r *Registry) Resolve(tenantID string, ref pack.Ref) (*pack.Pack, error) {
	p, err := r.lookup(tenantID, ref)
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// lookup returns the registry's own copy of the pack. Callers must not
// modify it.
func (r *Registry) lookup(tenantID string, ref pack.Ref) (*pack.Pack, error) {
	e, ok := r.current.Load().packs[ref]
	if !ok || !e.pack.AvailableTo(tenantID) {
		return nil, &RegistryError{Ref: ref, TenantID: tenantID, Operation: "resolve", Err: ErrPackNotFound}
	}
	return e.pack, nil
}

// ResolveComposite resolves every ref and merges the packs into the
// strictest-wins composite. Duplicate refs are resolved once.
func (r *Registry) ResolveComposite(tenantID string, refs []pack.Ref) (*pack.Composite, error) {
	if len(refs) == 0 {
		return nil, ErrNoPacks
	}

	seen := make(map[pack.Ref]bool, len(refs))
	packs := make([]*pack.Pack, 0, len(refs))
	for _, ref := range refs {
		if seen[ref] {
			continue
		}
		seen[ref] = true

		p, err := r.lookup(tenantID, ref)
		if err != nil {
			return nil, err
		}
		packs = append(packs, p)
	}
	return pack.Compose(packs...), nil
}

// ResolveTenant resolves the composite of the packs bound to tenantID.
func (r *Registry) ResolveTenant(tenantID string) (*pack.Composite, error) {
	refs, ok := r.current.Load().tenants[tenantID]
	if !ok || len(refs) == 0 {
		return nil, fmt.Errorf("tenant %q: %w", tenantID, ErrUnknownTenant)
	}
	return r.ResolveComposite(tenantID, refs)
}

// TenantBindings returns the refs bound to tenantID.
func (r *Registry) TenantBindings(tenantID string) ([]pack.Ref, bool) {
	refs, ok := r.current.Load().tenants[tenantID]
	return slices.Clone(refs), ok
}

// List returns summaries of the packs visible to tenantID, sorted by ref.
// An empty tenantID lists every pack.
func (r *Registry) List(tenantID string) []PackSummary {
	snap := r.current.Load()

	out := make([]PackSummary, 0, len(snap.packs))
	for _, e := range snap.packs {
		if tenantID != "" && !e.pack.AvailableTo(tenantID) {
			continue
		}
		out = append(out, summarize(e))
	}
	slices.SortFunc(out, func(a, b PackSummary) int {
		return a.Ref().Compare(b.Ref())
	})
	return out
}

// Versions returns the registered versions of pack id, sorted.
func (r *Registry) Versions(id string) []string {
	var versions []string
	for ref := range r.current.Load().packs {
		if ref.ID == id {
			versions = append(versions, ref.Version)
		}
	}
	slices.Sort(versions)
	return versions
}

// Count returns the number of registered packs.
func (r *Registry) Count() int {
	return len(r.current.Load().packs)
}

// Version is a content hash of the registered refs. It changes whenever a
// pack is registered.
func (r *Registry) Version() string {
	return r.current.Load().version
}

// Stats returns registry statistics.
func (r *Registry) Stats() RegistryStats {
	snap := r.current.Load()
	return RegistryStats{
		Packs:     len(snap.packs),
		Tenants:   len(snap.tenants),
		Version:   snap.version,
		UpdatedAt: snap.updatedAt,
	}
}

func summarize(e entry) PackSummary {
	p := e.pack
	return PackSummary{
		ID:           p.ID,
		Version:      p.Version,
		Tenant:       p.Tenant,
		Industry:     p.Industry,
		BaseStandard: p.BaseStandard,
		Description:  p.Description,
		Rules:        len(p.Rules),
		Source:       p.SourceFile,
		RegisteredAt: e.registeredAt,
	}
}

func versionOf(packs map[pack.Ref]entry) string {
	refs := slices.SortedFunc(maps.Keys(packs), pack.Ref.Compare)

	h := sha256.New()
	for _, ref := range refs {
		h.Write([]byte(ref.String()))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
