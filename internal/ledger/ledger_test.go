package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger() *Ledger {
	return New(Config{IDs: NewSequentialIDs()})
}

func TestNew_RequiresIDAllocator(t *testing.T) {
	assert.Panics(t, func() {
		New(Config{})
	})
}

func TestSequentialIDs_Monotonic(t *testing.T) {
	ids := NewSequentialIDs()
	assert.Equal(t, uint64(1), ids.Next())
	assert.Equal(t, uint64(2), ids.Next())

	resumed := NewSequentialIDsAt(41)
	assert.Equal(t, uint64(42), resumed.Next())
}

func TestCreateAccount(t *testing.T) {
	l := newTestLedger()

	acct, err := l.CreateAccount("0x01")
	require.NoError(t, err)
	assert.Equal(t, Address("0x01"), acct.Address())

	_, err = l.CreateAccount("0x01")
	assert.Error(t, err, "duplicate address must fail")

	_, err = l.CreateAccount("bogus")
	assert.Error(t, err, "malformed address must fail")

	got, ok := l.Account("0x01")
	require.True(t, ok)
	assert.Same(t, acct, got)

	_, ok = l.Account("0x02")
	assert.False(t, ok)
}

func TestAccountStorage_SaveLoadRemove(t *testing.T) {
	l := newTestLedger()
	acct, err := l.CreateAccount("0x01")
	require.NoError(t, err)

	path := MustPath(DomainStorage, "slot")
	require.False(t, acct.Occupied(path))

	require.NoError(t, acct.Save(path, "hello"))
	assert.True(t, acct.Occupied(path))

	// Installs never overwrite.
	err = acct.Save(path, "again")
	assert.Error(t, err)

	v, ok := acct.Load(path)
	require.True(t, ok)
	assert.Equal(t, "hello", v)

	v, ok = acct.Remove(path)
	require.True(t, ok)
	assert.Equal(t, "hello", v)
	assert.False(t, acct.Occupied(path))

	_, ok = acct.Remove(path)
	assert.False(t, ok)
}

func TestAccountStorage_DomainsAreDistinct(t *testing.T) {
	l := newTestLedger()
	acct, err := l.CreateAccount("0x01")
	require.NoError(t, err)

	require.NoError(t, acct.Save(MustPath(DomainStorage, "slot"), 1))
	require.NoError(t, acct.Save(MustPath(DomainPublic, "slot"), 2))
	require.NoError(t, acct.Save(MustPath(DomainPrivate, "slot"), 3))

	v, ok := acct.Load(MustPath(DomainPublic, "slot"))
	require.True(t, ok)
	assert.Equal(t, 2, v)
}
