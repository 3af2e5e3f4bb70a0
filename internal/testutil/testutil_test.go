package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedTokens_SequenceThenSynthesized(t *testing.T) {
	src := NewFixedTokens("a", "b")
	assert.Equal(t, "a", src.Generate())
	assert.Equal(t, "b", src.Generate())
	assert.Equal(t, "tok-3", src.Generate())
	assert.Equal(t, "tok-4", src.Generate())
}

func TestSequenceTokens(t *testing.T) {
	src := NewSequenceTokens("flow")
	assert.Equal(t, "flow-1", src.Generate())
	assert.Equal(t, "flow-2", src.Generate())

	def := NewSequenceTokens("")
	assert.Equal(t, "tok-1", def.Generate())
}

func TestResettableIDs(t *testing.T) {
	ids := NewResettableIDs()
	assert.Equal(t, uint64(0), ids.Current())
	assert.Equal(t, uint64(1), ids.Next())
	assert.Equal(t, uint64(2), ids.Next())
	assert.Equal(t, uint64(2), ids.Current())

	ids.Reset()
	assert.Equal(t, uint64(1), ids.Next())
}
