package delegation

import "github.com/roach88/tether/internal/ledger"

// Validator decides whether a retrieved capability actually resolves to the
// declared type. It is the trust boundary of capability extraction: the
// declared type->path map on an access point is just configuration, and the
// linked account's storage may have been altered after configuration. Every
// extraction re-validates.
//
// Validate must be deterministic and side-effect-free, and must return
// false (never panic or error) when the capability cannot be dereferenced.
type Validator interface {
	Validate(expected ledger.TypeID, cap ledger.Capability) bool
}

// GenericValidator validates against an optional allow-list of types.
//
// With an empty allow-list any declared type is eligible; the capability
// still has to dereference to a value of exactly the expected type. With a
// non-empty allow-list, types outside the list are rejected before the
// dereference.
type GenericValidator struct {
	allowed map[ledger.TypeID]bool
}

// NewGenericValidator builds a validator restricted to the given types.
// With no arguments the validator accepts any type that checks structurally.
func NewGenericValidator(types ...ledger.TypeID) GenericValidator {
	v := GenericValidator{}
	if len(types) > 0 {
		v.allowed = make(map[ledger.TypeID]bool, len(types))
		for _, t := range types {
			v.allowed[t] = true
		}
	}
	return v
}

// Validate implements Validator.
func (v GenericValidator) Validate(expected ledger.TypeID, cap ledger.Capability) bool {
	if v.allowed != nil && !v.allowed[expected] {
		return false
	}
	return resolvesTo(expected, cap)
}

// TypedValidator validates against a single expected shape.
// Any request for a different type is rejected outright.
type TypedValidator struct {
	Expected ledger.TypeID
}

// Validate implements Validator.
func (v TypedValidator) Validate(expected ledger.TypeID, cap ledger.Capability) bool {
	if expected != v.Expected {
		return false
	}
	return resolvesTo(expected, cap)
}

// resolvesTo dereferences cap and checks the stored value's ledger type.
// A broken capability or an untyped value is a rejection, not an error.
func resolvesTo(expected ledger.TypeID, cap ledger.Capability) bool {
	value, ok := cap.Borrow()
	if !ok {
		return false
	}
	typed, ok := value.(ledger.Typed)
	if !ok {
		return false
	}
	return typed.LedgerType() == expected
}
