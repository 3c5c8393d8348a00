package manager

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skuldbot/compliance/pkg/lattice"
	"skuldbot/compliance/pkg/pack"
)

func intPtr(v int) *int { return &v }

func testPack(id, version string) *pack.Pack {
	return &pack.Pack{
		ID:      id,
		Version: version,
		Rules: []*pack.Rule{
			{
				ID: "phi-external",
				When: pack.AndMatch{Operands: []pack.Predicate{
					pack.DataContainsMatch{Classifications: []lattice.Classification{lattice.PHI}},
					pack.EgressMatch{Threshold: lattice.EgressExternal},
				}},
				Then: pack.Outcome{
					Action:   pack.ActionRequireControls,
					Controls: []pack.ControlType{pack.ControlDLPScan, pack.ControlRedact},
					Severity: pack.SeverityMedium,
				},
			},
		},
		DataClassifications: map[lattice.Classification]pack.ClassificationPolicy{
			lattice.PHI: {
				MaxRetentionDays: intPtr(2555),
				AllowedEgress:    []lattice.EgressScope{lattice.EgressInternal},
			},
		},
	}
}

func TestRegistryRegisterAndResolve(t *testing.T) {
	reg := NewRegistry()
	p := testPack("hipaa", "1.0.0")

	require.NoError(t, reg.Register(p))
	assert.Equal(t, 1, reg.Count())

	got, err := reg.Resolve("acme", pack.Ref{ID: "hipaa", Version: "1.0.0"})
	require.NoError(t, err)
	assert.Equal(t, p, got)
	assert.NotSame(t, p, got)
}

func TestRegistryPacksAreFrozen(t *testing.T) {
	reg := NewRegistry()
	p := testPack("hipaa", "1.0.0")
	p.Approvals = pack.Approvals{RequiredFor: []string{"records.delete"}, ApproverRoles: []string{"privacy_officer"}}
	want := testPack("hipaa", "1.0.0")
	want.Approvals = pack.Approvals{RequiredFor: []string{"records.delete"}, ApproverRoles: []string{"privacy_officer"}}
	ref := p.Ref()

	require.NoError(t, reg.Register(p))

	// Edits after registration stay with the caller.
	p.Rules[0].Then.Controls[0] = pack.ControlEncrypt
	p.Rules[0].When.(pack.AndMatch).Operands[0] = pack.EgressMatch{Threshold: lattice.EgressNone}
	p.Rules = nil
	*p.DataClassifications[lattice.PHI].MaxRetentionDays = 1
	p.DataClassifications[lattice.PHI] = pack.ClassificationPolicy{}
	p.Approvals.ApproverRoles[0] = "anyone"

	got, err := reg.Resolve("", ref)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// So do edits to a resolved copy.
	got.Rules = nil
	got.DataClassifications[lattice.PHI] = pack.ClassificationPolicy{}

	c, err := reg.ResolveComposite("", []pack.Ref{ref})
	require.NoError(t, err)
	require.Len(t, c.Rules, 1)
	assert.Equal(t, pack.ControlDLPScan, c.Rules[0].Rule.Then.Controls[0])
	phi, ok := c.Policy(lattice.PHI)
	require.True(t, ok)
	assert.Equal(t, []lattice.EgressScope{lattice.EgressInternal}, phi.AllowedEgress)
	assert.Equal(t, 2555, *phi.MaxRetentionDays)
}

func TestRegistryDuplicateVersion(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(testPack("hipaa", "1.0.0")))

	err := reg.Register(testPack("hipaa", "1.0.0"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateVersion)

	var rerr *RegistryError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "register", rerr.Operation)
	assert.Equal(t, pack.Ref{ID: "hipaa", Version: "1.0.0"}, rerr.Ref)

	// A new version is fine.
	require.NoError(t, reg.Register(testPack("hipaa", "1.1.0")))
	assert.Equal(t, []string{"1.0.0", "1.1.0"}, reg.Versions("hipaa"))
}

func TestRegistryRejectsInvalidPacks(t *testing.T) {
	reg := NewRegistry()

	malformed := testPack("bad", "1.0.0")
	malformed.Rules[0].Then.Controls = nil
	assert.ErrorIs(t, reg.Register(malformed), pack.ErrMalformedRule)

	unknown := testPack("custom", "1.0.0")
	unknown.Rules[0].When = pack.DataContainsMatch{Classifications: []lattice.Classification{"BIOMETRIC"}}
	assert.ErrorIs(t, reg.Register(unknown), lattice.ErrUnknownClassification)

	assert.Equal(t, 0, reg.Count(), "rejected packs must not be registered")
	assert.Error(t, reg.Register(nil))
}

func TestRegistryResolveNotFound(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(testPack("hipaa", "1.0.0")))

	tests := []pack.Ref{
		{ID: "hipaa", Version: "2.0.0"},
		{ID: "hipaa", Version: "1.0"},
		{ID: "sox", Version: "1.0.0"},
	}
	for _, ref := range tests {
		_, err := reg.Resolve("acme", ref)
		assert.ErrorIs(t, err, ErrPackNotFound, "ref %s", ref)
	}
}

func TestRegistryTenantScope(t *testing.T) {
	reg := NewRegistry()
	custom := testPack("acme-claims", "1.0.0")
	custom.Tenant = "acme"
	require.NoError(t, reg.Register(custom))
	require.NoError(t, reg.Register(testPack("hipaa", "1.0.0")))

	_, err := reg.Resolve("acme", custom.Ref())
	assert.NoError(t, err)

	_, err = reg.Resolve("globex", custom.Ref())
	assert.ErrorIs(t, err, ErrPackNotFound)

	assert.Len(t, reg.List("acme"), 2)
	assert.Len(t, reg.List("globex"), 1)
	assert.Len(t, reg.List(""), 2)
}

func TestRegistryResolveComposite(t *testing.T) {
	reg := NewRegistry()
	hipaa := testPack("hipaa", "1.0.0")
	soc2 := testPack("soc2", "1.0.0")
	soc2.Rules[0].ID = "audit-all"
	soc2.DataClassifications[lattice.PHI] = pack.ClassificationPolicy{
		MaxRetentionDays: intPtr(365),
		AllowedEgress:    []lattice.EgressScope{lattice.EgressNone, lattice.EgressInternal},
	}
	require.NoError(t, reg.RegisterAll([]*pack.Pack{hipaa, soc2}))

	refs := []pack.Ref{soc2.Ref(), hipaa.Ref(), soc2.Ref()}
	c, err := reg.ResolveComposite("acme", refs)
	require.NoError(t, err)

	assert.Equal(t, []pack.Ref{hipaa.Ref(), soc2.Ref()}, c.Refs)
	assert.Len(t, c.Rules, 2)

	phi, ok := c.Policy(lattice.PHI)
	require.True(t, ok)
	assert.Equal(t, 365, *phi.MaxRetentionDays)
	assert.Equal(t, []lattice.EgressScope{lattice.EgressInternal}, phi.AllowedEgress)

	_, err = reg.ResolveComposite("acme", nil)
	assert.ErrorIs(t, err, ErrNoPacks)

	_, err = reg.ResolveComposite("acme", []pack.Ref{hipaa.Ref(), {ID: "gdpr", Version: "9"}})
	assert.ErrorIs(t, err, ErrPackNotFound)
}

func TestRegistryResolveTenant(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(testPack("hipaa", "1.0.0")))

	_, err := reg.ResolveTenant("acme")
	assert.ErrorIs(t, err, ErrUnknownTenant)

	reg.BindTenant("acme", []pack.Ref{{ID: "hipaa", Version: "1.0.0"}})
	c, err := reg.ResolveTenant("acme")
	require.NoError(t, err)
	assert.Equal(t, pack.Ref{ID: "hipaa", Version: "1.0.0"}, c.PrimaryRef())

	refs, ok := reg.TenantBindings("acme")
	assert.True(t, ok)
	assert.Len(t, refs, 1)
}

func TestRegistryVersionChanges(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(testPack("hipaa", "1.0.0")))
	v1 := reg.Version()

	require.NoError(t, reg.Register(testPack("hipaa", "1.1.0")))
	v2 := reg.Version()
	assert.NotEqual(t, v1, v2)

	_ = reg.Register(testPack("hipaa", "1.1.0"))
	assert.Equal(t, v2, reg.Version(), "failed registration must not change the version")
	assert.Equal(t, 2, reg.Stats().Packs)
}

func TestRegistryHooks(t *testing.T) {
	var ok, failed int
	reg := NewRegistry(WithRegisterHook(func(_ pack.Ref, err error) {
		if err != nil {
			failed++
			return
		}
		ok++
	}))

	_ = reg.Register(testPack("hipaa", "1.0.0"))
	_ = reg.Register(testPack("hipaa", "1.0.0"))
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, failed)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(testPack("hipaa", "1.0.0")))
	pinned := pack.Ref{ID: "hipaa", Version: "1.0.0"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = reg.Register(testPack("hipaa", fmt.Sprintf("2.%d.0", i)))
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if _, err := reg.Resolve("acme", pinned); err != nil {
					t.Errorf("Resolve() error = %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 9, reg.Count())
}

// Scenario: a lookup of an unregistered (id, version) fails before any
// evaluation starts.
func TestRegistryUnregisteredPin(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.ResolveComposite("acme", []pack.Ref{{ID: "hipaa", Version: "1.0.0"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPackNotFound))
}
