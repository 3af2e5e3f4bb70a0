package delegation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tether/internal/ledger"
)

const (
	typeCollection ledger.TypeID = "example/NFTCollection"
	typeVault      ledger.TypeID = "example/TokenVault"
)

// testCollection is a typed value installs place in child storage.
type testCollection struct {
	name string
}

func (c *testCollection) LedgerType() ledger.TypeID {
	return typeCollection
}

// testVault carries a different ledger type for mismatch cases.
type testVault struct{}

func (v *testVault) LedgerType() ledger.TypeID {
	return typeVault
}

// testEnv wires a ledger with a parent account (0x01, owning the admin)
// and a child account (0x02) holding a collection at /storage/collection.
type testEnv struct {
	ledger  *ledger.Ledger
	admin   *Admin
	parent  ledger.Address
	child   ledger.Address
	colPath ledger.Path
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	l := ledger.New(ledger.Config{IDs: ledger.NewSequentialIDs()})
	_, err := l.CreateAccount("0x01")
	require.NoError(t, err)
	childAcct, err := l.CreateAccount("0x02")
	require.NoError(t, err)

	colPath := ledger.MustPath(ledger.DomainStorage, "collection")
	require.NoError(t, childAcct.Save(colPath, &testCollection{name: "demo"}))

	return &testEnv{
		ledger:  l,
		admin:   NewAdmin(l, "0x01", NopEmitter{}),
		parent:  "0x01",
		child:   "0x02",
		colPath: colPath,
	}
}

// childHandle issues a fresh account handle for the child.
func (e *testEnv) childHandle(t *testing.T) ledger.AccountHandle {
	t.Helper()
	h, err := e.ledger.IssueAccountHandle(e.child)
	require.NoError(t, err)
	return h
}

// newAccessPoint mints a restricted access point exposing the collection.
func (e *testEnv) newAccessPoint(t *testing.T) *AccessPoint {
	t.Helper()
	ap, err := e.admin.CreateAccessPoint(
		e.childHandle(t),
		map[ledger.TypeID]ledger.Path{typeCollection: e.colPath},
		NewGenericValidator(typeCollection),
		e.parent,
		map[string]string{"name": "demo"},
	)
	require.NoError(t, err)
	return ap
}

// installAccessPoint saves ap into the child's storage and returns a
// checked capability to it.
func (e *testEnv) installAccessPoint(t *testing.T, ap *AccessPoint) ledger.Capability {
	t.Helper()
	acct, ok := e.ledger.Account(e.child)
	require.True(t, ok)
	apPath := ledger.MustPath(ledger.DomainStorage, "tetherAccessPoint_test")
	require.NoError(t, acct.Save(apPath, ap))
	cap, err := e.ledger.IssueCapability(e.child, apPath)
	require.NoError(t, err)
	require.True(t, cap.Check())
	return cap
}

// mintRecord builds a consistent record for the child.
func (e *testEnv) mintRecord(t *testing.T) *Record {
	t.Helper()
	ap := e.newAccessPoint(t)
	apCap := e.installAccessPoint(t, ap)
	rec, err := MintRecord(e.ledger, apCap, e.childHandle(t), NopEmitter{})
	require.NoError(t, err)
	return rec
}

// captureEmitter records emitted events in order.
type captureEmitter struct {
	events []Event
}

func (c *captureEmitter) Emit(ev Event) {
	c.events = append(c.events, ev)
}

func (c *captureEmitter) kinds() []EventKind {
	out := make([]EventKind, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Kind
	}
	return out
}
