package testutil

import "sync"

// ResettableIDs is a thread-safe monotonic id allocator for tests.
//
// Unlike ledger.SequentialIDs, ResettableIDs can be reset for test reuse,
// so the same scenario runs repeatedly with identical object ids.
//
// Thread-safety: all methods are safe for concurrent use via internal
// mutex.
type ResettableIDs struct {
	mu   sync.Mutex
	last uint64
}

// NewResettableIDs creates an allocator starting at 0.
// The first call to Next() returns 1.
func NewResettableIDs() *ResettableIDs {
	return &ResettableIDs{}
}

// Next increments and returns the next id.
func (r *ResettableIDs) Next() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last++
	return r.last
}

// Current returns the last allocated id without incrementing.
func (r *ResettableIDs) Current() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Reset resets the allocator to 0.
// After Reset, the next call to Next() returns 1.
func (r *ResettableIDs) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = 0
}
