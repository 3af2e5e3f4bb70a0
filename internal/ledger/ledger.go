package ledger

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// IDAllocator hands out unique uint64 object ids.
// Implemented by SequentialIDs (production) and testutil fixed allocators.
type IDAllocator interface {
	Next() uint64
}

// SequentialIDs is a monotonic id allocator.
//
// Thread-safety: safe for concurrent use (atomic operations).
type SequentialIDs struct {
	last atomic.Uint64
}

// NewSequentialIDs creates an allocator whose first Next() returns 1.
func NewSequentialIDs() *SequentialIDs {
	return &SequentialIDs{}
}

// NewSequentialIDsAt creates an allocator resuming after start.
func NewSequentialIDsAt(start uint64) *SequentialIDs {
	s := &SequentialIDs{}
	s.last.Store(start)
	return s
}

// Next returns the next unique id.
func (s *SequentialIDs) Next() uint64 {
	return s.last.Add(1)
}

// Config carries the ledger's injected collaborators.
// Construct one at startup and pass it to New; there is no ambient default.
type Config struct {
	// IDs allocates all object identity on this ledger. Required.
	IDs IDAllocator
}

// storageKey addresses one slot of account storage.
type storageKey struct {
	address Address
	path    Path
}

// Ledger is the in-process host-ledger model.
//
// Thread-safety: all methods are safe for concurrent use via an internal
// mutex, but the delegation engine's operations are expected to run one at
// a time; the host's transaction serialization is an external guarantee.
type Ledger struct {
	mu       sync.Mutex
	ids      IDAllocator
	accounts map[Address]*Account
	storage  map[storageKey]any
	issued   map[uint64]bool // live capability and handle ids
}

// New creates an empty ledger from cfg.
// Panics if cfg.IDs is nil: id allocation is not optional.
func New(cfg Config) *Ledger {
	if cfg.IDs == nil {
		panic("ledger.New: Config.IDs is required")
	}
	return &Ledger{
		ids:      cfg.IDs,
		accounts: make(map[Address]*Account),
		storage:  make(map[storageKey]any),
		issued:   make(map[uint64]bool),
	}
}

// NextID allocates a fresh object id.
// Used for access point and delegation record identity as well as
// capability issuance, so ids are unique across all object kinds.
func (l *Ledger) NextID() uint64 {
	return l.ids.Next()
}

// CreateAccount registers a new account at addr.
// Fails if the address is malformed or already taken.
func (l *Ledger) CreateAccount(addr Address) (*Account, error) {
	if err := ValidateAddress(addr); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.accounts[addr]; ok {
		return nil, fmt.Errorf("create account: address %s already exists", addr)
	}
	acct := &Account{ledger: l, address: addr}
	l.accounts[addr] = acct
	return acct, nil
}

// Account returns the account at addr, if it exists.
func (l *Ledger) Account(addr Address) (*Account, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.accounts[addr]
	return acct, ok
}

// IssueCapability issues a capability to path in target's storage.
// The path need not be occupied yet; an unoccupied path just makes the
// capability fail Check until something is saved there.
func (l *Ledger) IssueCapability(target Address, path Path) (Capability, error) {
	if err := ValidateAddress(target); err != nil {
		return Capability{}, fmt.Errorf("issue capability: %w", err)
	}
	if path.IsZero() {
		return Capability{}, fmt.Errorf("issue capability: zero path")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.accounts[target]; !ok {
		return Capability{}, fmt.Errorf("issue capability: no account at %s", target)
	}
	id := l.ids.Next()
	l.issued[id] = true
	return Capability{id: id, ledger: l, target: target, path: path}, nil
}

// IssueAccountHandle issues a whole-account handle for target.
// This models the host's explicit link/grant primitive; the delegation
// engine never constructs handles any other way.
func (l *Ledger) IssueAccountHandle(target Address) (AccountHandle, error) {
	if err := ValidateAddress(target); err != nil {
		return AccountHandle{}, fmt.Errorf("issue account handle: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.accounts[target]; !ok {
		return AccountHandle{}, fmt.Errorf("issue account handle: no account at %s", target)
	}
	id := l.ids.Next()
	l.issued[id] = true
	return AccountHandle{id: id, ledger: l, target: target}, nil
}

// Unlink revokes a previously issued capability or account handle by id.
// Returns false if the id was not live. After Unlink, every copy of the
// handle fails Check.
func (l *Ledger) Unlink(id uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.issued[id] {
		return false
	}
	delete(l.issued, id)
	return true
}
