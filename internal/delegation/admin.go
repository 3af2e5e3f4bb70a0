package delegation

import (
	"github.com/roach88/tether/internal/ledger"
)

// Admin mints AccessPoints and holds the sole authority to lift the
// restriction on ones it created. Authorization is by admin id: an access
// point remembers which admin minted it, and Unrestrict checks the ids
// match before doing anything.
type Admin struct {
	id      uint64
	owner   ledger.Address
	ledger  *ledger.Ledger
	emitter Emitter
}

// NewAdmin creates an admin owned by the account at owner.
//
// The owner address becomes the creator provenance on every access point
// the admin mints. An admin with no owner cannot mint: auditability
// requires a traceable creator.
func NewAdmin(l *ledger.Ledger, owner ledger.Address, emitter Emitter) *Admin {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &Admin{
		id:      l.NextID(),
		owner:   owner,
		ledger:  l,
		emitter: emitter,
	}
}

// ID returns the admin's unique id.
func (a *Admin) ID() uint64 {
	return a.id
}

// Owner returns the admin's owning account address.
func (a *Admin) Owner() ledger.Address {
	return a.owner
}

// CreateAccessPoint mints a restricted, active AccessPoint wrapping handle.
//
// Fails if the handle no longer checks or the admin has no owning account.
// The allowed map is copied; later mutation of the caller's map does not
// affect the access point. Emits AccessPointCreated.
func (a *Admin) CreateAccessPoint(
	handle ledger.AccountHandle,
	allowed map[ledger.TypeID]ledger.Path,
	validator Validator,
	parent ledger.Address,
	metadata map[string]string,
) (*AccessPoint, error) {
	if a.owner == "" {
		return nil, newError(ErrCodeNoOwner, "admin %d has no owning account", a.id)
	}
	if !handle.Check() {
		return nil, newChildError(ErrCodeBrokenCapability, handle.Address(),
			"account handle does not check")
	}
	if validator == nil {
		validator = NewGenericValidator()
	}

	allowedCopy := make(map[ledger.TypeID]ledger.Path, len(allowed))
	for t, p := range allowed {
		allowedCopy[t] = p
	}
	metadataCopy := make(map[string]string, len(metadata))
	for k, v := range metadata {
		metadataCopy[k] = v
	}

	ap := &AccessPoint{
		id:         a.ledger.NextID(),
		adminID:    a.id,
		creator:    a.owner,
		handle:     handle,
		allowed:    allowedCopy,
		validator:  validator,
		metadata:   metadataCopy,
		parent:     parent,
		active:     true,
		restricted: true,
	}

	a.emitter.Emit(Event{
		Kind:          EventAccessPointCreated,
		AccessPointID: ap.id,
		Child:         handle.Address(),
		Parent:        parent,
		Creator:       a.owner,
		AllowedTypes:  ap.AllowedTypes(),
	})

	return ap, nil
}

// Unrestrict lifts the restriction on an access point this admin minted.
//
// Fails with an authorization error if the access point was minted by a
// different admin. The transition is one-way; there is no way to restore
// the restriction.
func (a *Admin) Unrestrict(ap *AccessPoint) error {
	if ap.AdminID() != a.id {
		return newError(ErrCodeNotAuthorized,
			"admin %d cannot unrestrict access point %d minted by admin %d",
			a.id, ap.ID(), ap.AdminID())
	}
	ap.unrestrict()
	return nil
}
