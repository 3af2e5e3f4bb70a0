package delegation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tether/internal/ledger"
)

func TestGenericValidator_AcceptsMatchingType(t *testing.T) {
	env := newTestEnv(t)
	cap, err := env.ledger.IssueCapability(env.child, env.colPath)
	require.NoError(t, err)

	v := NewGenericValidator(typeCollection)
	assert.True(t, v.Validate(typeCollection, cap))
}

func TestGenericValidator_RejectsWrongType(t *testing.T) {
	env := newTestEnv(t)

	// A vault stored where a collection is expected.
	acct, ok := env.ledger.Account(env.child)
	require.True(t, ok)
	vaultPath := ledger.MustPath(ledger.DomainStorage, "vault")
	require.NoError(t, acct.Save(vaultPath, &testVault{}))

	cap, err := env.ledger.IssueCapability(env.child, vaultPath)
	require.NoError(t, err)

	v := NewGenericValidator()
	assert.False(t, v.Validate(typeCollection, cap),
		"capability dereferencing to a different type must be rejected")
	assert.True(t, v.Validate(typeVault, cap))
}

func TestGenericValidator_AllowListGates(t *testing.T) {
	env := newTestEnv(t)
	cap, err := env.ledger.IssueCapability(env.child, env.colPath)
	require.NoError(t, err)

	// The stored value matches, but the type is outside the allow-list.
	v := NewGenericValidator(typeVault)
	assert.False(t, v.Validate(typeCollection, cap))
}

func TestGenericValidator_BrokenCapabilityRejects(t *testing.T) {
	env := newTestEnv(t)
	cap, err := env.ledger.IssueCapability(env.child, env.colPath)
	require.NoError(t, err)
	require.True(t, env.ledger.Unlink(cap.ID()))

	v := NewGenericValidator()
	assert.False(t, v.Validate(typeCollection, cap),
		"broken capability must reject, not panic")

	var zero ledger.Capability
	assert.False(t, v.Validate(typeCollection, zero))
}

func TestGenericValidator_UntypedValueRejects(t *testing.T) {
	env := newTestEnv(t)
	acct, ok := env.ledger.Account(env.child)
	require.True(t, ok)
	rawPath := ledger.MustPath(ledger.DomainStorage, "raw")
	require.NoError(t, acct.Save(rawPath, "just a string"))

	cap, err := env.ledger.IssueCapability(env.child, rawPath)
	require.NoError(t, err)

	v := NewGenericValidator()
	assert.False(t, v.Validate(typeCollection, cap))
}

func TestTypedValidator_SingleShape(t *testing.T) {
	env := newTestEnv(t)
	cap, err := env.ledger.IssueCapability(env.child, env.colPath)
	require.NoError(t, err)

	v := TypedValidator{Expected: typeCollection}
	assert.True(t, v.Validate(typeCollection, cap))
	assert.False(t, v.Validate(typeVault, cap),
		"typed validator rejects any request for a different type")
}

func TestValidator_Deterministic(t *testing.T) {
	env := newTestEnv(t)
	cap, err := env.ledger.IssueCapability(env.child, env.colPath)
	require.NoError(t, err)

	v := NewGenericValidator(typeCollection)
	for i := 0; i < 3; i++ {
		assert.True(t, v.Validate(typeCollection, cap))
	}
}
