package delegation

import (
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/tether/internal/ledger"
)

// TypeAccessPoint is the ledger-visible type of an installed AccessPoint.
const TypeAccessPoint ledger.TypeID = "tether/AccessPoint"

// AccessPoint is the capability-scoping wrapper installed in a linked
// account's own storage. It wraps the account handle for the child together
// with a declared map of allowed capability types and gates every
// extraction through a Validator.
//
// State machine: restricted{true->false} (admin-only, one-way) crossed with
// active{true->false} (registry-only, one-way). Both transitions are
// monotonic and independent; once active is false every operation fails.
//
// While restricted, the raw account handle is reachable only by the admin
// that minted the access point; callers get declared, type-checked
// capabilities or nothing.
//
// Thread-safety: all methods are safe for concurrent use, though the host's
// transaction serialization means operations do not interleave in practice.
type AccessPoint struct {
	mu sync.Mutex

	// Immutable provenance, assigned at mint.
	id      uint64
	adminID uint64
	creator ledger.Address

	handle    ledger.AccountHandle
	allowed   map[ledger.TypeID]ledger.Path
	validator Validator
	metadata  map[string]string

	// Mutable state.
	parent     ledger.Address
	active     bool
	restricted bool
}

// LedgerType implements ledger.Typed.
func (ap *AccessPoint) LedgerType() ledger.TypeID {
	return TypeAccessPoint
}

// ID returns the access point's unique id.
func (ap *AccessPoint) ID() uint64 {
	return ap.id
}

// AdminID returns the id of the admin that minted this access point.
func (ap *AccessPoint) AdminID() uint64 {
	return ap.adminID
}

// Creator returns the address of the admin's owning account at mint time.
func (ap *AccessPoint) Creator() ledger.Address {
	return ap.creator
}

// Parent returns the current parent address.
// Updated on each successful registry deposit.
func (ap *AccessPoint) Parent() ledger.Address {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	return ap.parent
}

// Active reports whether the access point is still active.
func (ap *AccessPoint) Active() bool {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	return ap.active
}

// Restricted reports whether raw account-handle access is still gated.
func (ap *AccessPoint) Restricted() bool {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	return ap.restricted
}

// Metadata returns a copy of the access point's metadata.
func (ap *AccessPoint) Metadata() map[string]string {
	out := make(map[string]string, len(ap.metadata))
	for k, v := range ap.metadata {
		out[k] = v
	}
	return out
}

// AllowedTypes returns the declared capability types in sorted order.
func (ap *AccessPoint) AllowedTypes() []ledger.TypeID {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	types := make([]ledger.TypeID, 0, len(ap.allowed))
	for t := range ap.allowed {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// AllowedCapabilities returns a copy of the declared type->path map.
func (ap *AccessPoint) AllowedCapabilities() map[ledger.TypeID]ledger.Path {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	out := make(map[ledger.TypeID]ledger.Path, len(ap.allowed))
	for t, p := range ap.allowed {
		out[t] = p
	}
	return out
}

// ScopedAccountAddress returns the linked account's address.
// Fails if the wrapped account handle no longer checks; a broken handle is
// fatal for this call, not for the access point.
func (ap *AccessPoint) ScopedAccountAddress() (ledger.Address, error) {
	if !ap.handle.Check() {
		return "", newError(ErrCodeBrokenCapability, "account handle for access point %d is broken", ap.id)
	}
	return ap.handle.Address(), nil
}

// CapabilityByType extracts the capability declared for t.
//
// Returns (zero, false, nil) when t is not declared or the validator rejects
// the retrieved capability: "not configured" is an empty result, not an
// error. Returns an error only when the access point is inactive or its
// account handle is broken.
func (ap *AccessPoint) CapabilityByType(t ledger.TypeID) (ledger.Capability, bool, error) {
	ap.mu.Lock()
	if !ap.active {
		ap.mu.Unlock()
		return ledger.Capability{}, false, newError(ErrCodeInactive, "access point %d is inactive", ap.id)
	}
	path, ok := ap.allowed[t]
	ap.mu.Unlock()
	if !ok {
		return ledger.Capability{}, false, nil
	}
	return ap.extract(t, path)
}

// CapabilityByPath extracts the capability declared at path.
// Same contract as CapabilityByType, keyed by path instead of type.
func (ap *AccessPoint) CapabilityByPath(path ledger.Path) (ledger.Capability, bool, error) {
	ap.mu.Lock()
	if !ap.active {
		ap.mu.Unlock()
		return ledger.Capability{}, false, newError(ErrCodeInactive, "access point %d is inactive", ap.id)
	}
	var declared ledger.TypeID
	found := false
	for t, p := range ap.allowed {
		if p == path {
			declared = t
			found = true
			break
		}
	}
	ap.mu.Unlock()
	if !found {
		return ledger.Capability{}, false, nil
	}
	return ap.extract(declared, path)
}

// extract retrieves the capability from the wrapped account and re-validates
// it. The declared mapping is configuration; the validator is the trust
// boundary against the child's storage having changed since configuration.
func (ap *AccessPoint) extract(t ledger.TypeID, path ledger.Path) (ledger.Capability, bool, error) {
	cap, err := ap.handle.IssueCapability(path)
	if err != nil {
		return ledger.Capability{}, false, newError(ErrCodeBrokenCapability, "account handle for access point %d is broken", ap.id)
	}
	if !ap.validator.Validate(t, cap) {
		return ledger.Capability{}, false, nil
	}
	return cap, true, nil
}

// AuthAccountCapability returns the raw account handle.
// This is the privileged escape hatch: it fails while the access point is
// restricted, and always fails once inactive.
func (ap *AccessPoint) AuthAccountCapability() (ledger.AccountHandle, error) {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	if !ap.active {
		return ledger.AccountHandle{}, newError(ErrCodeInactive, "access point %d is inactive", ap.id)
	}
	if ap.restricted {
		return ledger.AccountHandle{}, newError(ErrCodeRestricted, "access point %d is restricted", ap.id)
	}
	return ap.handle, nil
}

// GrantCapability declares a new allowed type at path.
// Fails if the type is already declared; an existing grant is never
// silently re-pointed.
func (ap *AccessPoint) GrantCapability(t ledger.TypeID, path ledger.Path) error {
	if path.IsZero() {
		return newError(ErrCodeBrokenCapability, "grant for type %s: zero path", t)
	}
	ap.mu.Lock()
	defer ap.mu.Unlock()
	if !ap.active {
		return newError(ErrCodeInactive, "access point %d is inactive", ap.id)
	}
	if _, ok := ap.allowed[t]; ok {
		return newError(ErrCodeDuplicateRecord, "type %s already granted on access point %d", t, ap.id)
	}
	ap.allowed[t] = path
	return nil
}

// RevokeCapability removes the grant for t.
//
// Panics if t was not granted: revocation of an absent grant indicates the
// caller's bookkeeping has diverged from the access point's, which is an
// invariant bug, not a recoverable condition.
func (ap *AccessPoint) RevokeCapability(t ledger.TypeID) {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	if _, ok := ap.allowed[t]; !ok {
		panic(fmt.Sprintf("delegation: revoke of ungranted type %s on access point %d", t, ap.id))
	}
	delete(ap.allowed, t)
}

// setInactive deactivates the access point. One-way and idempotent.
// Only the registry side invokes this, on record removal.
func (ap *AccessPoint) setInactive() {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	ap.active = false
}

// unrestrict lifts the restriction. One-way; only Admin.Unrestrict calls it
// after the id-based authorization check.
func (ap *AccessPoint) unrestrict() {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	ap.restricted = false
}

// setParent records a new parent address. Called exactly once per
// successful deposit.
func (ap *AccessPoint) setParent(parent ledger.Address) {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	ap.parent = parent
}
