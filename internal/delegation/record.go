package delegation

import (
	"github.com/roach88/tether/internal/ledger"
)

// Record is the transferable unit of delegation: it binds the capability to
// an installed AccessPoint and an account handle for the same child
// account.
//
// Records are move-only. Exactly one Registry owns a Record at any time;
// Withdraw hands ownership to the caller and Deposit takes it back. Records
// are never copied; all access goes through the *Record the owning registry
// holds.
type Record struct {
	id     uint64
	child  ledger.Address
	apCap  ledger.Capability
	handle ledger.AccountHandle
}

// MintRecord creates a record from an access point capability and an
// account handle.
//
// Fails if either capability is broken, if the access point capability does
// not dereference to an AccessPoint, or if the two capabilities disagree on
// the child address. An inconsistent record can never enter a registry
// because it can never be minted. Emits MintedRecord.
func MintRecord(l *ledger.Ledger, apCap ledger.Capability, handle ledger.AccountHandle, emitter Emitter) (*Record, error) {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	if !handle.Check() {
		return nil, newChildError(ErrCodeBrokenCapability, handle.Address(),
			"account handle does not check")
	}
	if !apCap.Check() {
		return nil, newChildError(ErrCodeBrokenCapability, apCap.Address(),
			"access point capability does not check")
	}
	ap, err := borrowAccessPoint(apCap)
	if err != nil {
		return nil, err
	}
	if apCap.Address() == "" {
		return nil, newError(ErrCodeNoOwner, "access point capability has no owning account")
	}
	if apCap.Address() != handle.Address() {
		return nil, &DelegationError{
			Code:    ErrCodeAddressMismatch,
			Message: "access point and account handle point at different accounts",
			Child:   handle.Address(),
		}
	}

	rec := &Record{
		id:     l.NextID(),
		child:  handle.Address(),
		apCap:  apCap,
		handle: handle,
	}

	emitter.Emit(Event{
		Kind:          EventMintedRecord,
		RecordID:      rec.id,
		AccessPointID: ap.ID(),
		Child:         rec.child,
		Parent:        ap.Parent(),
		AllowedTypes:  ap.AllowedTypes(),
	})

	return rec, nil
}

// ID returns the record's unique id.
func (r *Record) ID() uint64 {
	return r.id
}

// ChildAddress returns the linked account's address.
// Fixed at mint; a record is never retargeted to a different account.
func (r *Record) ChildAddress() ledger.Address {
	return r.child
}

// AccountHandle returns the wrapped account handle.
func (r *Record) AccountHandle() ledger.AccountHandle {
	return r.handle
}

// AccessPoint dereferences the wrapped access point capability.
// Fails if the capability is broken.
func (r *Record) AccessPoint() (*AccessPoint, error) {
	if !r.apCap.Check() {
		return nil, &DelegationError{
			Code:     ErrCodeBrokenCapability,
			Message:  "access point capability does not check",
			Child:    r.child,
			RecordID: r.id,
		}
	}
	return borrowAccessPoint(r.apCap)
}

// UpdateAccountCapability replaces the wrapped account handle.
//
// The new handle must check and must point at the record's fixed child
// address: a capability may be re-issued but never re-pointed at a
// different account.
func (r *Record) UpdateAccountCapability(newHandle ledger.AccountHandle) error {
	if !newHandle.Check() {
		return &DelegationError{
			Code:     ErrCodeBrokenCapability,
			Message:  "replacement account handle does not check",
			Child:    r.child,
			RecordID: r.id,
		}
	}
	if newHandle.Address() != r.child {
		return &DelegationError{
			Code:     ErrCodeAddressMismatch,
			Message:  "replacement handle points at a different account",
			Child:    r.child,
			RecordID: r.id,
		}
	}
	r.handle = newHandle
	return nil
}

// updateParentAddress propagates a new parent into the wrapped access
// point. Invoked exactly once per successful deposit.
func (r *Record) updateParentAddress(parent ledger.Address) error {
	ap, err := r.AccessPoint()
	if err != nil {
		return err
	}
	ap.setParent(parent)
	return nil
}

// deactivate marks the wrapped access point inactive.
// Used by the registry when the link is removed; idempotent.
func (r *Record) deactivate() error {
	ap, err := r.AccessPoint()
	if err != nil {
		return err
	}
	ap.setInactive()
	return nil
}

// borrowAccessPoint dereferences cap and asserts it holds an AccessPoint.
func borrowAccessPoint(cap ledger.Capability) (*AccessPoint, error) {
	value, ok := cap.Borrow()
	if !ok {
		return nil, newChildError(ErrCodeBrokenCapability, cap.Address(),
			"access point capability does not resolve")
	}
	ap, ok := value.(*AccessPoint)
	if !ok {
		return nil, newChildError(ErrCodeBrokenCapability, cap.Address(),
			"capability resolves to %T, not an access point", value)
	}
	return ap, nil
}
