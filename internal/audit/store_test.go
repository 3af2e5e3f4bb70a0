package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_OnDisk_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestWriteEvent_AndReadBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := EventRecord{
		Hash:    "abc123",
		Kind:    "AddedLinkedAccount",
		Child:   "0x02",
		Parent:  "0x01",
		RecordID: 7,
		Payload: `{"kind":"AddedLinkedAccount"}`,
		Token:   "tok-1",
		Seq:     1,
	}
	require.NoError(t, s.WriteEvent(ctx, rec))

	got, err := s.ReadEvents(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec, got[0])
}

func TestWriteEvent_IdempotentByHash(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := EventRecord{Hash: "same", Kind: "MintedRecord", Payload: "{}", Token: "t", Seq: 1}
	require.NoError(t, s.WriteEvent(ctx, rec))
	require.NoError(t, s.WriteEvent(ctx, rec))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWriteEvent_EmptyHashRejected(t *testing.T) {
	s := openTestStore(t)
	err := s.WriteEvent(context.Background(), EventRecord{Kind: "MintedRecord"})
	assert.Error(t, err)
}

func TestReadEvents_Filters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	events := []EventRecord{
		{Hash: "h1", Kind: "CollectionCreated", Parent: "0x01", Payload: "{}", Token: "t1", Seq: 1},
		{Hash: "h2", Kind: "AddedLinkedAccount", Child: "0x02", Parent: "0x01", Payload: "{}", Token: "t2", Seq: 2},
		{Hash: "h3", Kind: "AddedLinkedAccount", Child: "0x03", Parent: "0x01", Payload: "{}", Token: "t3", Seq: 3},
		{Hash: "h4", Kind: "RemovedLinkedAccount", Child: "0x02", Parent: "0x01", Payload: "{}", Token: "t4", Seq: 4},
	}
	for _, e := range events {
		require.NoError(t, s.WriteEvent(ctx, e))
	}

	byChild, err := s.ReadEvents(ctx, Filter{Child: "0x02"})
	require.NoError(t, err)
	require.Len(t, byChild, 2)
	assert.Equal(t, "h2", byChild[0].Hash)
	assert.Equal(t, "h4", byChild[1].Hash)

	byKind, err := s.ReadEvents(ctx, Filter{Kind: "AddedLinkedAccount"})
	require.NoError(t, err)
	require.Len(t, byKind, 2)

	both, err := s.ReadEvents(ctx, Filter{Child: "0x02", Kind: "AddedLinkedAccount"})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "h2", both[0].Hash)

	limited, err := s.ReadEvents(ctx, Filter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "h1", limited[0].Hash)
}
