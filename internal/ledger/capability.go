package ledger

import "fmt"

// Capability is a revocable read-handle to a value stored at a path in a
// target account's storage.
//
// Capabilities are shared handles over ledger-owned state, never owners of
// it. Copying a Capability value copies the handle, not the target. The zero
// Capability is invalid: Check returns false and Borrow returns (nil, false).
//
// A Capability stays valid until it is unlinked (Ledger.Unlink) or the value
// it points at is removed from storage. Check is recomputed on every call;
// validity is never cached.
type Capability struct {
	id     uint64
	ledger *Ledger
	target Address
	path   Path
}

// ID returns the capability's issuance id. Zero for the invalid zero value.
func (c Capability) ID() uint64 {
	return c.id
}

// Address returns the target account's address.
func (c Capability) Address() Address {
	return c.target
}

// Path returns the storage path the capability points at.
func (c Capability) Path() Path {
	return c.path
}

// Check reports whether the capability still resolves: it has not been
// unlinked, the target account exists, and the path is occupied.
func (c Capability) Check() bool {
	if c.id == 0 || c.ledger == nil {
		return false
	}
	c.ledger.mu.Lock()
	defer c.ledger.mu.Unlock()
	if !c.ledger.issued[c.id] {
		return false
	}
	if _, ok := c.ledger.accounts[c.target]; !ok {
		return false
	}
	_, ok := c.ledger.storage[storageKey{c.target, c.path}]
	return ok
}

// Borrow dereferences the capability.
// Returns (nil, false) instead of erroring when the capability is broken.
func (c Capability) Borrow() (any, bool) {
	if !c.Check() {
		return nil, false
	}
	c.ledger.mu.Lock()
	defer c.ledger.mu.Unlock()
	v, ok := c.ledger.storage[storageKey{c.target, c.path}]
	return v, ok
}

// AccountHandle is a revocable handle granting access to a whole account.
//
// This is the delegation primitive: holding a valid AccountHandle for an
// account means the holder may act on that account's storage. Handles are
// issued by the Ledger and revoked with Unlink. The zero AccountHandle is
// invalid.
type AccountHandle struct {
	id     uint64
	ledger *Ledger
	target Address
}

// ID returns the handle's issuance id. Zero for the invalid zero value.
func (h AccountHandle) ID() uint64 {
	return h.id
}

// Address returns the target account's address.
func (h AccountHandle) Address() Address {
	return h.target
}

// Check reports whether the handle still resolves: not unlinked and the
// target account exists. Recomputed on every call.
func (h AccountHandle) Check() bool {
	if h.id == 0 || h.ledger == nil {
		return false
	}
	h.ledger.mu.Lock()
	defer h.ledger.mu.Unlock()
	if !h.ledger.issued[h.id] {
		return false
	}
	_, ok := h.ledger.accounts[h.target]
	return ok
}

// Borrow dereferences the handle to the target account.
// Returns (nil, false) instead of erroring when the handle is broken.
func (h AccountHandle) Borrow() (*Account, bool) {
	if !h.Check() {
		return nil, false
	}
	h.ledger.mu.Lock()
	defer h.ledger.mu.Unlock()
	acct, ok := h.ledger.accounts[h.target]
	return acct, ok
}

// IssueCapability issues a new capability to a path in the handle's target
// account. Fails if the handle itself no longer checks.
//
// This is the only way delegated code obtains capabilities on a linked
// account: authority flows from the handle, never from the ledger directly.
func (h AccountHandle) IssueCapability(path Path) (Capability, error) {
	if !h.Check() {
		return Capability{}, fmt.Errorf("issue capability: account handle for %s is broken", h.target)
	}
	return h.ledger.IssueCapability(h.target, path)
}
