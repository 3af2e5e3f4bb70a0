package delegation

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/tether/internal/ledger"
)

// AccessPointIdentifier derives the storage identifier for an installed
// access point from a caller-supplied suffix. The same identifier is used
// in all three path domains.
func AccessPointIdentifier(suffix string) string {
	return "tetherAccessPoint_" + suffix
}

// Registry is the per-parent store of delegation records.
//
// It owns every Record it holds: Deposit takes ownership, Withdraw hands it
// back. Invariants maintained across every deposit/withdraw sequence:
//
//   - at most one record per child address
//   - byAddress is exactly the inverse of the child-address field of records
//   - a deposit is admitted only if the child address was pre-registered in
//     the pending set, and the entry is consumed on success
//
// The pending set is the admission gate closing the race where a record
// engineered by one party could be deposited into a registry that never
// agreed to receive it for that address.
//
// Thread-safety: all methods are safe for concurrent use via an internal
// mutex; the host's transaction serialization is what actually orders
// cross-party operations.
type Registry struct {
	mu        sync.Mutex
	owner     ledger.Address
	records   map[uint64]*Record
	byAddress map[ledger.Address]uint64
	pending   map[ledger.Address]bool
	emitter   Emitter
	logger    *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithEmitter sets the event emitter. Defaults to NopEmitter.
func WithEmitter(e Emitter) RegistryOption {
	return func(r *Registry) {
		r.emitter = e
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry creates an empty registry owned by the account at owner.
// An empty owner is permitted at construction but blocks deposits until
// set; a registry that cannot name its parent cannot re-parent records.
// Emits CollectionCreated.
func NewRegistry(owner ledger.Address, opts ...RegistryOption) *Registry {
	r := &Registry{
		owner:     owner,
		records:   make(map[uint64]*Record),
		byAddress: make(map[ledger.Address]uint64),
		pending:   make(map[ledger.Address]bool),
		emitter:   NopEmitter{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.emitter.Emit(Event{Kind: EventCollectionCreated, Parent: owner})
	return r
}

// Owner returns the parent account's address.
func (r *Registry) Owner() ledger.Address {
	return r.owner
}

// Len returns the number of records held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// AddPendingDeposit registers child in the allow-once admission set.
// Idempotent: re-registering an already-pending address is a no-op.
func (r *Registry) AddPendingDeposit(child ledger.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[child] = true
}

// RemovePendingDeposit withdraws an admission ticket before it is used.
func (r *Registry) RemovePendingDeposit(child ledger.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, child)
}

// PendingDeposit reports whether child currently holds an admission ticket.
func (r *Registry) PendingDeposit(child ledger.Address) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending[child]
}

// Deposit takes ownership of rec.
//
// This is the public transport surface: anyone may attempt a deposit, so
// every admission condition is re-checked here regardless of what the
// caller already validated. Fails if the registry has no owner, a record
// with the same id or child address is already held, or the child address
// holds no pending-deposit ticket. On success the ticket is consumed, the
// record's parent is updated to the registry owner, and AddedLinkedAccount
// is emitted.
func (r *Registry) Deposit(rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.owner == "" {
		return newError(ErrCodeNoOwner, "registry has no owning account")
	}
	if _, ok := r.records[rec.ID()]; ok {
		return &DelegationError{
			Code:     ErrCodeDuplicateRecord,
			Message:  "record already deposited",
			RecordID: rec.ID(),
		}
	}
	child := rec.ChildAddress()
	if !r.pending[child] {
		return newChildError(ErrCodeNotAdmitted,
			child, "no pending deposit registered for child")
	}
	if existing, ok := r.byAddress[child]; ok {
		return &DelegationError{
			Code:     ErrCodeAlreadyLinked,
			Message:  "child already linked",
			Child:    child,
			RecordID: existing,
		}
	}

	if err := rec.updateParentAddress(r.owner); err != nil {
		return err
	}

	delete(r.pending, child)
	r.records[rec.ID()] = rec
	r.byAddress[child] = rec.ID()

	// The secondary index must point at the record just inserted. Anything
	// else means id reuse or index corruption, which is a core invariant
	// bug, not a caller error.
	if got := r.byAddress[child]; got != rec.ID() {
		panic(fmt.Sprintf("delegation: address index points at record %d after depositing %d", got, rec.ID()))
	}

	r.emitter.Emit(Event{
		Kind:     EventAddedLinkedAccount,
		RecordID: rec.ID(),
		Child:    child,
		Parent:   r.owner,
	})

	return nil
}

// Withdraw removes and returns the record with the given id, transferring
// ownership to the caller. Fails if the registry has no owner or holds no
// such record.
func (r *Registry) Withdraw(id uint64) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.withdrawLocked(id)
}

// WithdrawByAddress removes and returns the record for child.
func (r *Registry) WithdrawByAddress(child ledger.Address) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byAddress[child]
	if !ok {
		return nil, newChildError(ErrCodeNotFound, child, "no record for child")
	}
	return r.withdrawLocked(id)
}

// withdrawLocked removes a record from both maps. Caller holds r.mu.
func (r *Registry) withdrawLocked(id uint64) (*Record, error) {
	if r.owner == "" {
		return nil, newError(ErrCodeNoOwner, "registry has no owning account")
	}
	rec, ok := r.records[id]
	if !ok {
		return nil, &DelegationError{
			Code:     ErrCodeNotFound,
			Message:  "no record with id",
			RecordID: id,
		}
	}

	// Index must agree with the record map before we touch either.
	if got, ok := r.byAddress[rec.ChildAddress()]; !ok || got != id {
		panic(fmt.Sprintf("delegation: address index out of sync for record %d", id))
	}

	delete(r.records, id)
	delete(r.byAddress, rec.ChildAddress())
	return rec, nil
}

// Destroy tears the registry down. Fails while any record remains: the
// registry exclusively owns its records, so a non-empty registry can only
// be destroyed by first removing every link.
func (r *Registry) Destroy() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.records) > 0 {
		return newError(ErrCodeAlreadyLinked,
			"registry still holds %d records", len(r.records))
	}
	r.records = nil
	r.byAddress = nil
	r.pending = nil
	return nil
}

// LinkRequest carries the inputs of the composite AddLinkedAccount
// operation.
type LinkRequest struct {
	// Handle is the account handle for the child, obtained out of band via
	// the host's link/grant primitive.
	Handle ledger.AccountHandle

	// Suffix derives the storage paths for the installed access point.
	// Must be a well-formed path identifier fragment.
	Suffix string

	// Allowed declares which capability types the parent may extract, and
	// from which paths in the child's storage.
	Allowed map[ledger.TypeID]ledger.Path

	// Validator gates every extraction. Defaults to an unrestricted
	// GenericValidator.
	Validator Validator

	// Metadata is free-form provenance attached to the access point.
	Metadata map[string]string
}

// AddLinkedAccount performs end-to-end linking in one operation:
// validates the handle, derives and checks the install paths, installs a
// new restricted AccessPoint into the child's own storage, publishes
// capabilities to it, registers the admission ticket, mints the record, and
// deposits it.
//
// All validation happens before the first mutation, so a failure returns
// with no partial state. The host ledger's transaction atomicity is assumed
// for anything beyond that.
func (r *Registry) AddLinkedAccount(l *ledger.Ledger, admin *Admin, req LinkRequest) (*Record, error) {
	if r.owner == "" {
		return nil, newError(ErrCodeNoOwner, "registry has no owning account")
	}
	if !req.Handle.Check() {
		return nil, newChildError(ErrCodeBrokenCapability, req.Handle.Address(),
			"account handle does not check")
	}
	child := req.Handle.Address()
	if _, ok := r.IDForAddress(child); ok {
		return nil, newChildError(ErrCodeAlreadyLinked, child, "child already linked")
	}

	identifier := AccessPointIdentifier(req.Suffix)
	storagePath, err := ledger.NewPath(ledger.DomainStorage, identifier)
	if err != nil {
		return nil, fmt.Errorf("add linked account: %w", err)
	}
	publicPath := ledger.MustPath(ledger.DomainPublic, identifier)
	privatePath := ledger.MustPath(ledger.DomainPrivate, identifier)

	acct, ok := req.Handle.Borrow()
	if !ok {
		return nil, newChildError(ErrCodeBrokenCapability, child, "account handle does not resolve")
	}
	for _, p := range []ledger.Path{storagePath, publicPath, privatePath} {
		if acct.Occupied(p) {
			return nil, newChildError(ErrCodePathOccupied, child,
				"path %s already occupied", p)
		}
	}

	ap, err := admin.CreateAccessPoint(req.Handle, req.Allowed, req.Validator, r.owner, req.Metadata)
	if err != nil {
		return nil, err
	}
	if err := acct.Save(storagePath, ap); err != nil {
		return nil, fmt.Errorf("add linked account: install access point: %w", err)
	}

	// Re-derive a capability to the installed access point and publish it.
	// The public surface carries the same capability; the scoping is done
	// by the access point itself, not by path visibility.
	apCap, err := req.Handle.IssueCapability(storagePath)
	if err != nil {
		return nil, err
	}
	if !apCap.Check() {
		return nil, newChildError(ErrCodeBrokenCapability, child,
			"freshly issued access point capability does not check")
	}
	if err := acct.Save(publicPath, apCap); err != nil {
		return nil, fmt.Errorf("add linked account: publish public capability: %w", err)
	}
	if err := acct.Save(privatePath, apCap); err != nil {
		return nil, fmt.Errorf("add linked account: publish private capability: %w", err)
	}

	r.AddPendingDeposit(child)

	rec, err := MintRecord(l, apCap, req.Handle, r.emitter)
	if err != nil {
		return nil, err
	}
	if err := r.Deposit(rec); err != nil {
		return nil, err
	}

	r.logger.Info("linked account added",
		"child", string(child),
		"parent", string(r.owner),
		"record_id", rec.ID(),
		"access_point_id", ap.ID(),
	)

	return rec, nil
}

// RemoveLinkedAccount unlinks child: deactivates the underlying access
// point, withdraws the record from both maps, and discards it. Emits
// RemovedLinkedAccount.
//
// Ledger-level key access on the child account is NOT revoked here; that
// is the caller's separate responsibility.
func (r *Registry) RemoveLinkedAccount(child ledger.Address) error {
	r.mu.Lock()
	id, ok := r.byAddress[child]
	if !ok {
		r.mu.Unlock()
		return newChildError(ErrCodeNotFound, child, "no record for child")
	}
	rec := r.records[id]
	r.mu.Unlock()

	// Deactivate before removal so a failure leaves the registry intact.
	if err := rec.deactivate(); err != nil {
		return err
	}

	if _, err := r.Withdraw(id); err != nil {
		return err
	}

	r.emitter.Emit(Event{
		Kind:     EventRemovedLinkedAccount,
		RecordID: id,
		Child:    child,
		Parent:   r.owner,
	})

	return nil
}

// UpdateLinkedAccountCapability replaces the account handle on the record
// for child. The replacement must point at the same child address. Emits
// UpdatedCapabilityForLinkedAccount.
func (r *Registry) UpdateLinkedAccountCapability(child ledger.Address, newHandle ledger.AccountHandle) error {
	r.mu.Lock()
	id, ok := r.byAddress[child]
	if !ok {
		r.mu.Unlock()
		return newChildError(ErrCodeNotFound, child, "no record for child")
	}
	rec := r.records[id]
	r.mu.Unlock()

	if err := rec.UpdateAccountCapability(newHandle); err != nil {
		return err
	}

	r.emitter.Emit(Event{
		Kind:     EventUpdatedCapability,
		RecordID: id,
		Child:    child,
		Parent:   r.owner,
	})

	return nil
}

// IsLinkActive reports whether the link to child is fully live: a record
// exists, both wrapped capabilities still check, and the access point is
// active. Recomputed on every call; any of the three can be invalidated
// externally between calls, so nothing here is cached.
func (r *Registry) IsLinkActive(child ledger.Address) bool {
	r.mu.Lock()
	id, ok := r.byAddress[child]
	if !ok {
		r.mu.Unlock()
		return false
	}
	rec := r.records[id]
	r.mu.Unlock()

	if !rec.AccountHandle().Check() {
		return false
	}
	ap, err := rec.AccessPoint()
	if err != nil {
		return false
	}
	return ap.Active()
}

// LinkedAddresses returns the linked child addresses in sorted order.
func (r *Registry) LinkedAddresses() []ledger.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	addrs := make([]ledger.Address, 0, len(r.byAddress))
	for a := range r.byAddress {
		addrs = append(addrs, a)
	}
	slices.Sort(addrs)
	return addrs
}

// IDForAddress resolves the record id for child.
// A miss is an empty result, not an error.
func (r *Registry) IDForAddress(child ledger.Address) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byAddress[child]
	return id, ok
}

// AllowedTypes returns the declared capability types for child's access
// point, sorted. Returns (nil, false) if child is not linked or the access
// point capability is broken.
func (r *Registry) AllowedTypes(child ledger.Address) ([]ledger.TypeID, bool) {
	ap, ok := r.accessPointFor(child)
	if !ok {
		return nil, false
	}
	return ap.AllowedTypes(), true
}

// MetadataFor returns the metadata on child's access point.
// Returns (nil, false) if child is not linked or the capability is broken.
func (r *Registry) MetadataFor(child ledger.Address) (map[string]string, bool) {
	ap, ok := r.accessPointFor(child)
	if !ok {
		return nil, false
	}
	return ap.Metadata(), true
}

func (r *Registry) accessPointFor(child ledger.Address) (*AccessPoint, bool) {
	r.mu.Lock()
	id, ok := r.byAddress[child]
	if !ok {
		r.mu.Unlock()
		return nil, false
	}
	rec := r.records[id]
	r.mu.Unlock()

	ap, err := rec.AccessPoint()
	if err != nil {
		return nil, false
	}
	return ap, true
}
