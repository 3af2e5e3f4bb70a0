package delegation

import (
	"errors"
	"fmt"

	"github.com/roach88/tether/internal/ledger"
)

// DelegationError represents a precondition or authorization failure in a
// delegation operation.
//
// These errors abort the enclosing operation wholesale; nothing here
// retries. Lookup misses (querying an address or type that simply is not
// configured) are NOT errors - those return empty results.
//
// Internal consistency breaks (e.g. the address index disagreeing with the
// record map after an insert) are not DelegationErrors either: they panic,
// because they indicate a core invariant bug rather than a caller mistake.
type DelegationError struct {
	// Code identifies the failure category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Child identifies the linked account, when one is involved.
	Child ledger.Address

	// RecordID identifies the delegation record, when one is involved.
	RecordID uint64
}

// ErrorCode categorizes delegation failures.
type ErrorCode string

const (
	// ErrCodeBrokenCapability indicates a capability or account handle that
	// no longer resolves.
	ErrCodeBrokenCapability ErrorCode = "BROKEN_CAPABILITY"

	// ErrCodeNotAdmitted indicates a deposit for an address with no pending
	// admission ticket.
	ErrCodeNotAdmitted ErrorCode = "NOT_ADMITTED"

	// ErrCodeAlreadyLinked indicates the registry already holds a record for
	// the child address.
	ErrCodeAlreadyLinked ErrorCode = "ALREADY_LINKED"

	// ErrCodeDuplicateRecord indicates a record with the same id is already
	// held by the registry.
	ErrCodeDuplicateRecord ErrorCode = "DUPLICATE_RECORD"

	// ErrCodeNoOwner indicates the registry or admin has no owning account,
	// so provenance cannot be established.
	ErrCodeNoOwner ErrorCode = "NO_OWNER"

	// ErrCodeNotFound indicates a withdraw/remove for an id or address the
	// registry does not hold.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeNotAuthorized indicates an operation attempted by the wrong
	// authority (e.g. unrestricting an access point minted by another admin).
	ErrCodeNotAuthorized ErrorCode = "NOT_AUTHORIZED"

	// ErrCodeInactive indicates an operation on a deactivated access point.
	ErrCodeInactive ErrorCode = "INACTIVE"

	// ErrCodeRestricted indicates an attempt to reach the raw account handle
	// through a still-restricted access point.
	ErrCodeRestricted ErrorCode = "RESTRICTED"

	// ErrCodeAddressMismatch indicates two capabilities that should point at
	// the same child account but do not.
	ErrCodeAddressMismatch ErrorCode = "ADDRESS_MISMATCH"

	// ErrCodePathOccupied indicates an install target path that is already
	// in use.
	ErrCodePathOccupied ErrorCode = "PATH_OCCUPIED"
)

// Error implements the error interface.
func (e *DelegationError) Error() string {
	switch {
	case e.Child != "" && e.RecordID != 0:
		return fmt.Sprintf("%s: %s (child=%s, record=%d)", e.Code, e.Message, e.Child, e.RecordID)
	case e.Child != "":
		return fmt.Sprintf("%s: %s (child=%s)", e.Code, e.Message, e.Child)
	case e.RecordID != 0:
		return fmt.Sprintf("%s: %s (record=%d)", e.Code, e.Message, e.RecordID)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// CodeOf extracts the ErrorCode from err, unwrapping as needed.
// Returns "" if err is not a DelegationError.
func CodeOf(err error) ErrorCode {
	var de *DelegationError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsNotAuthorized reports whether err is an authorization failure.
func IsNotAuthorized(err error) bool {
	return CodeOf(err) == ErrCodeNotAuthorized
}

// IsNotAdmitted reports whether err is an admission-gate failure.
func IsNotAdmitted(err error) bool {
	return CodeOf(err) == ErrCodeNotAdmitted
}

// IsAlreadyLinked reports whether err is a duplicate-link failure.
func IsAlreadyLinked(err error) bool {
	return CodeOf(err) == ErrCodeAlreadyLinked
}

func newError(code ErrorCode, format string, args ...any) *DelegationError {
	return &DelegationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func newChildError(code ErrorCode, child ledger.Address, format string, args ...any) *DelegationError {
	return &DelegationError{Code: code, Message: fmt.Sprintf(format, args...), Child: child}
}
