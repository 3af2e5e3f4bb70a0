// Package testutil provides deterministic helpers for tests and the
// conformance harness: fixed token sources and resettable id allocation,
// so the same scenario produces byte-identical audit logs every run.
package testutil

import (
	"fmt"
	"sync"
)

// FixedTokens returns predetermined correlation tokens in order.
//
// This enables deterministic audit logs and golden trace comparison. Tests
// provide a known sequence of tokens and verify exact output.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedTokens struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedTokens creates a source that returns tokens in order.
//
// Example:
//
//	src := testutil.NewFixedTokens("tok-1", "tok-2")
//	src.Generate() // "tok-1"
//	src.Generate() // "tok-2"
//	src.Generate() // "tok-3" (synthesized)
//
// When the provided tokens run out, further calls synthesize "tok-N"
// continuing the sequence, so scenarios need not predict their exact
// event count.
func NewFixedTokens(tokens ...string) *FixedTokens {
	return &FixedTokens{tokens: tokens}
}

// Generate returns the next token.
func (f *FixedTokens) Generate() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idx++
	if f.idx <= len(f.tokens) {
		return f.tokens[f.idx-1]
	}
	return fmt.Sprintf("tok-%d", f.idx)
}

// SequenceTokens generates "prefix-1", "prefix-2", ... deterministically.
// Useful when a scenario only needs stable, readable tokens.
type SequenceTokens struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceTokens creates a sequential token source.
func NewSequenceTokens(prefix string) *SequenceTokens {
	if prefix == "" {
		prefix = "tok"
	}
	return &SequenceTokens{prefix: prefix}
}

// Generate returns the next token in the sequence.
func (s *SequenceTokens) Generate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%d", s.prefix, s.n)
}
