package ledger

import (
	"fmt"
	"regexp"
)

// Address identifies an account on the ledger.
//
// Addresses are lowercase hex with a 0x prefix, e.g. "0x01cf0e2f2f715450".
// Short forms like "0x01" are accepted; addresses are compared as opaque
// strings, never parsed into integers.
type Address string

// addressPattern matches a 0x-prefixed lowercase hex address, 1-16 digits.
var addressPattern = regexp.MustCompile(`^0x[0-9a-f]{1,16}$`)

// ValidateAddress checks that addr is a well-formed ledger address.
// Returns an error describing the problem, or nil.
func ValidateAddress(addr Address) error {
	if addr == "" {
		return fmt.Errorf("address is empty")
	}
	if !addressPattern.MatchString(string(addr)) {
		return fmt.Errorf("invalid address %q: must match 0x[0-9a-f]{1,16}", addr)
	}
	return nil
}

// TypeID names the ledger-visible type of a stored object.
//
// Type ids are path-like strings, e.g. "tether/AccessPoint" or
// "example/NFTCollection". They are the unit of scoping: an access point
// declares which TypeIDs may be extracted from a linked account.
type TypeID string

// Typed is implemented by values that carry a ledger-visible type.
// The validator layer uses it to confirm that a capability dereferences
// to exactly the declared type.
type Typed interface {
	LedgerType() TypeID
}
