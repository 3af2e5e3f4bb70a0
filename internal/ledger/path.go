package ledger

import (
	"fmt"
	"regexp"
)

// Domain is the class of a storage path.
type Domain string

const (
	// DomainStorage is private persistence inside an account.
	DomainStorage Domain = "storage"

	// DomainPublic holds capabilities any caller may read.
	DomainPublic Domain = "public"

	// DomainPrivate holds capabilities only the account (and parties it
	// hands them to) may use.
	DomainPrivate Domain = "private"
)

// ValidateDomain checks that d is one of the three path domains.
func ValidateDomain(d Domain) error {
	switch d {
	case DomainStorage, DomainPublic, DomainPrivate:
		return nil
	default:
		return fmt.Errorf("invalid path domain %q: must be storage, public, or private", d)
	}
}

// identifierPattern matches a well-formed path identifier.
// Identifiers come from caller-supplied suffixes, so they are validated
// strictly: ASCII letters, digits, and underscore only.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Path locates a value in an account's storage.
// The zero Path is invalid.
type Path struct {
	Domain     Domain
	Identifier string
}

// NewPath builds a validated path.
func NewPath(domain Domain, identifier string) (Path, error) {
	if err := ValidateDomain(domain); err != nil {
		return Path{}, err
	}
	if !identifierPattern.MatchString(identifier) {
		return Path{}, fmt.Errorf("invalid path identifier %q: must match [A-Za-z_][A-Za-z0-9_]*", identifier)
	}
	return Path{Domain: domain, Identifier: identifier}, nil
}

// MustPath builds a path and panics on malformed input.
// Use only for identifiers the program itself constructs.
func MustPath(domain Domain, identifier string) Path {
	p, err := NewPath(domain, identifier)
	if err != nil {
		panic(err)
	}
	return p
}

// String renders the path as "/domain/identifier".
func (p Path) String() string {
	return fmt.Sprintf("/%s/%s", p.Domain, p.Identifier)
}

// IsZero reports whether the path is the invalid zero value.
func (p Path) IsZero() bool {
	return p.Domain == "" && p.Identifier == ""
}
