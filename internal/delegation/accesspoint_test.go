package delegation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tether/internal/ledger"
)

func TestCreateAccessPoint_Provenance(t *testing.T) {
	env := newTestEnv(t)
	ap := env.newAccessPoint(t)

	assert.NotZero(t, ap.ID())
	assert.Equal(t, env.admin.ID(), ap.AdminID())
	assert.Equal(t, env.parent, ap.Creator())
	assert.Equal(t, env.parent, ap.Parent())
	assert.True(t, ap.Active())
	assert.True(t, ap.Restricted())
	assert.Equal(t, []ledger.TypeID{typeCollection}, ap.AllowedTypes())
	assert.Equal(t, map[string]string{"name": "demo"}, ap.Metadata())
}

func TestCreateAccessPoint_UniqueIDs(t *testing.T) {
	env := newTestEnv(t)
	ap1 := env.newAccessPoint(t)
	ap2 := env.newAccessPoint(t)
	assert.NotEqual(t, ap1.ID(), ap2.ID())
}

func TestCreateAccessPoint_BrokenHandleFails(t *testing.T) {
	env := newTestEnv(t)
	h := env.childHandle(t)
	require.True(t, env.ledger.Unlink(h.ID()))

	_, err := env.admin.CreateAccessPoint(h, nil, nil, env.parent, nil)
	require.Error(t, err)
	assert.Equal(t, ErrCodeBrokenCapability, CodeOf(err))
}

func TestCreateAccessPoint_OwnerlessAdminFails(t *testing.T) {
	env := newTestEnv(t)
	orphan := NewAdmin(env.ledger, "", NopEmitter{})

	_, err := orphan.CreateAccessPoint(env.childHandle(t), nil, nil, env.parent, nil)
	require.Error(t, err)
	assert.Equal(t, ErrCodeNoOwner, CodeOf(err))
}

func TestCapabilityByType_DeclaredAndValidated(t *testing.T) {
	env := newTestEnv(t)
	ap := env.newAccessPoint(t)

	cap, ok, err := ap.CapabilityByType(typeCollection)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, cap.Check())
	assert.Equal(t, env.child, cap.Address())
	assert.Equal(t, env.colPath, cap.Path())
}

func TestCapabilityByType_UndeclaredIsEmptyNotError(t *testing.T) {
	env := newTestEnv(t)
	ap := env.newAccessPoint(t)

	_, ok, err := ap.CapabilityByType(typeVault)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCapabilityByType_StorageSwapRejected(t *testing.T) {
	env := newTestEnv(t)
	ap := env.newAccessPoint(t)

	// The child replaces the collection with a vault after configuration.
	// The declared mapping still exists, but the validator must reject.
	acct, okAcct := env.ledger.Account(env.child)
	require.True(t, okAcct)
	_, removed := acct.Remove(env.colPath)
	require.True(t, removed)
	require.NoError(t, acct.Save(env.colPath, &testVault{}))

	_, ok, err := ap.CapabilityByType(typeCollection)
	require.NoError(t, err)
	assert.False(t, ok, "re-validation guards against altered storage")
}

func TestCapabilityByPath(t *testing.T) {
	env := newTestEnv(t)
	ap := env.newAccessPoint(t)

	cap, ok, err := ap.CapabilityByPath(env.colPath)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, cap.Check())

	// Undeclared path: empty result.
	_, ok, err = ap.CapabilityByPath(ledger.MustPath(ledger.DomainStorage, "other"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScopedAccountAddress(t *testing.T) {
	env := newTestEnv(t)
	h := env.childHandle(t)
	ap, err := env.admin.CreateAccessPoint(h,
		map[ledger.TypeID]ledger.Path{typeCollection: env.colPath},
		nil, env.parent, nil)
	require.NoError(t, err)

	addr, err := ap.ScopedAccountAddress()
	require.NoError(t, err)
	assert.Equal(t, env.child, addr)

	require.True(t, env.ledger.Unlink(h.ID()))
	_, err = ap.ScopedAccountAddress()
	require.Error(t, err)
	assert.Equal(t, ErrCodeBrokenCapability, CodeOf(err))
}

func TestAuthAccountCapability_RestrictionGate(t *testing.T) {
	env := newTestEnv(t)
	ap := env.newAccessPoint(t)

	// Restricted: the raw handle is unreachable.
	_, err := ap.AuthAccountCapability()
	require.Error(t, err)
	assert.Equal(t, ErrCodeRestricted, CodeOf(err))

	// A different admin cannot lift the restriction.
	other := NewAdmin(env.ledger, env.parent, NopEmitter{})
	err = other.Unrestrict(ap)
	require.Error(t, err)
	assert.True(t, IsNotAuthorized(err))
	assert.True(t, ap.Restricted())

	// The minting admin can.
	require.NoError(t, env.admin.Unrestrict(ap))
	assert.False(t, ap.Restricted())

	h, err := ap.AuthAccountCapability()
	require.NoError(t, err)
	assert.Equal(t, env.child, h.Address())
	assert.True(t, h.Check())
}

func TestUnrestrict_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ap := env.newAccessPoint(t)

	require.NoError(t, env.admin.Unrestrict(ap))
	require.NoError(t, env.admin.Unrestrict(ap))
	assert.False(t, ap.Restricted())
}

func TestSetInactive_TerminalState(t *testing.T) {
	env := newTestEnv(t)
	ap := env.newAccessPoint(t)

	ap.setInactive()
	assert.False(t, ap.Active())

	// Idempotent: a second call leaves the state unchanged, no error.
	ap.setInactive()
	assert.False(t, ap.Active())

	// Every further operation fails regardless of restriction state.
	_, _, err := ap.CapabilityByType(typeCollection)
	require.Error(t, err)
	assert.Equal(t, ErrCodeInactive, CodeOf(err))

	require.NoError(t, env.admin.Unrestrict(ap))
	_, err = ap.AuthAccountCapability()
	require.Error(t, err)
	assert.Equal(t, ErrCodeInactive, CodeOf(err))

	err = ap.GrantCapability(typeVault, ledger.MustPath(ledger.DomainStorage, "vault"))
	require.Error(t, err)
	assert.Equal(t, ErrCodeInactive, CodeOf(err))
}

func TestGrantCapability(t *testing.T) {
	env := newTestEnv(t)
	ap := env.newAccessPoint(t)
	vaultPath := ledger.MustPath(ledger.DomainStorage, "vault")

	require.NoError(t, ap.GrantCapability(typeVault, vaultPath))
	assert.Equal(t, []ledger.TypeID{typeCollection, typeVault}, ap.AllowedTypes())

	// An existing grant is never silently re-pointed.
	err := ap.GrantCapability(typeVault, ledger.MustPath(ledger.DomainStorage, "otherVault"))
	assert.Error(t, err)
}

func TestRevokeCapability_StrictContract(t *testing.T) {
	env := newTestEnv(t)
	ap := env.newAccessPoint(t)

	ap.RevokeCapability(typeCollection)
	assert.Empty(t, ap.AllowedTypes())

	// Revoking an absent grant is an invariant bug, not an error.
	assert.Panics(t, func() {
		ap.RevokeCapability(typeCollection)
	})
}

func TestAccessPoint_EmitsCreatedEvent(t *testing.T) {
	env := newTestEnv(t)
	capture := &captureEmitter{}
	admin := NewAdmin(env.ledger, env.parent, capture)

	ap, err := admin.CreateAccessPoint(env.childHandle(t),
		map[ledger.TypeID]ledger.Path{typeCollection: env.colPath},
		nil, env.parent, nil)
	require.NoError(t, err)

	require.Len(t, capture.events, 1)
	ev := capture.events[0]
	assert.Equal(t, EventAccessPointCreated, ev.Kind)
	assert.Equal(t, ap.ID(), ev.AccessPointID)
	assert.Equal(t, env.child, ev.Child)
	assert.Equal(t, env.parent, ev.Parent)
	assert.Equal(t, env.parent, ev.Creator)
	assert.Equal(t, []ledger.TypeID{typeCollection}, ev.AllowedTypes)
}
