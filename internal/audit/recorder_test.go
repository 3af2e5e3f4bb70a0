package audit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tether/internal/delegation"
	"github.com/roach88/tether/internal/testutil"
)

func TestRecorder_PersistsEvents(t *testing.T) {
	s := openTestStore(t)
	rec := NewRecorder(s, testutil.NewFixedTokens("tok-1", "tok-2"), nil)

	rec.Emit(delegation.Event{Kind: delegation.EventCollectionCreated, Parent: "0x01"})
	rec.Emit(delegation.Event{
		Kind:     delegation.EventAddedLinkedAccount,
		RecordID: 5,
		Child:    "0x02",
		Parent:   "0x01",
	})

	got, err := s.ReadEvents(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "CollectionCreated", got[0].Kind)
	assert.Equal(t, "tok-1", got[0].Token)
	assert.Equal(t, int64(1), got[0].Seq)

	assert.Equal(t, "AddedLinkedAccount", got[1].Kind)
	assert.Equal(t, "0x02", got[1].Child)
	assert.Equal(t, uint64(5), got[1].RecordID)
	assert.Equal(t, int64(2), got[1].Seq)

	// Payload is canonical JSON carrying seq and token.
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(got[1].Payload), &payload))
	assert.Equal(t, "AddedLinkedAccount", payload["kind"])
	assert.Equal(t, "tok-2", payload["token"])
}

func TestRecorder_HashesAreUniquePerEmit(t *testing.T) {
	s := openTestStore(t)
	rec := NewRecorder(s, testutil.NewFixedTokens("tok-1", "tok-2"), nil)

	// Same logical event twice: seq and token differ, so both persist.
	ev := delegation.Event{Kind: delegation.EventMintedRecord, RecordID: 9, Child: "0x02"}
	rec.Emit(ev)
	rec.Emit(ev)

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUUIDv7Source_GeneratesDistinctTokens(t *testing.T) {
	src := UUIDv7Source{}
	a := src.Generate()
	b := src.Generate()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}
