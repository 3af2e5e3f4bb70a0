// Package policy compiles scope-policy documents written in CUE.
//
// A scope policy declares what a parent may extract from a linked account:
// the allowed capability types, the storage paths they are retrieved from,
// the validator that gates extraction, and free-form metadata. Policies are
// authored as CUE files and compiled with the CUE SDK's Go API directly
// (not a CLI subprocess).
package policy

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/tether/internal/delegation"
	"github.com/roach88/tether/internal/ledger"
)

// Validator kinds accepted in policy documents.
const (
	ValidatorKindGeneric = "generic"
	ValidatorKindTyped   = "typed"
)

// ScopePolicy is a compiled scope-policy document.
type ScopePolicy struct {
	// Name labels the policy; used in metadata and log output.
	Name string

	// Validator selects and configures the extraction gate.
	Validator ValidatorSpec

	// Grants declare the allowed types and their retrieval paths.
	Grants []Grant

	// Metadata is attached verbatim to the access point.
	Metadata map[string]string
}

// ValidatorSpec configures the validator for a policy.
type ValidatorSpec struct {
	// Kind is "generic" (allow-list) or "typed" (single expected shape).
	Kind string

	// Types is the allow-list for generic validators. A typed validator
	// requires exactly one entry.
	Types []ledger.TypeID
}

// Grant declares one allowed capability type and its retrieval path in the
// child's storage.
type Grant struct {
	Type ledger.TypeID
	Path ledger.Path
}

// Allowed renders the grants as the type->path map an access point takes.
func (p *ScopePolicy) Allowed() map[ledger.TypeID]ledger.Path {
	out := make(map[ledger.TypeID]ledger.Path, len(p.Grants))
	for _, g := range p.Grants {
		out[g.Type] = g.Path
	}
	return out
}

// BuildValidator constructs the delegation validator the policy describes.
func (p *ScopePolicy) BuildValidator() delegation.Validator {
	if p.Validator.Kind == ValidatorKindTyped {
		return delegation.TypedValidator{Expected: p.Validator.Types[0]}
	}
	return delegation.NewGenericValidator(p.Validator.Types...)
}

// CompileError reports a problem in a policy document, with the CUE source
// position when one is available.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Compile parses a CUE value into a ScopePolicy.
//
// The value should be the policy struct itself:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileBytes(src)
//	pol, err := policy.Compile(v.LookupPath(cue.ParsePath("policy")))
func Compile(v cue.Value) (*ScopePolicy, error) {
	if err := v.Err(); err != nil {
		return nil, &CompileError{Field: "policy", Message: err.Error(), Pos: v.Pos()}
	}
	if !v.Exists() {
		return nil, &CompileError{Field: "policy", Message: "policy struct not found"}
	}

	pol := &ScopePolicy{}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return nil, &CompileError{Field: "name", Message: "name is required", Pos: v.Pos()}
	}
	name, err := nameVal.String()
	if err != nil {
		return nil, &CompileError{Field: "name", Message: err.Error(), Pos: nameVal.Pos()}
	}
	pol.Name = name

	pol.Validator, err = parseValidator(v)
	if err != nil {
		return nil, err
	}

	pol.Grants, err = parseGrants(v)
	if err != nil {
		return nil, err
	}
	if len(pol.Grants) == 0 {
		return nil, &CompileError{Field: "grants", Message: "at least one grant is required", Pos: v.Pos()}
	}

	pol.Metadata, err = parseMetadata(v)
	if err != nil {
		return nil, err
	}
	if pol.Metadata == nil {
		pol.Metadata = map[string]string{}
	}
	pol.Metadata["policy"] = pol.Name

	return pol, nil
}

func parseValidator(v cue.Value) (ValidatorSpec, error) {
	spec := ValidatorSpec{Kind: ValidatorKindGeneric}

	val := v.LookupPath(cue.ParsePath("validator"))
	if !val.Exists() {
		// Optional: defaults to an unrestricted generic validator.
		return spec, nil
	}

	kindVal := val.LookupPath(cue.ParsePath("kind"))
	if kindVal.Exists() {
		kind, err := kindVal.String()
		if err != nil {
			return spec, &CompileError{Field: "validator.kind", Message: err.Error(), Pos: kindVal.Pos()}
		}
		if kind != ValidatorKindGeneric && kind != ValidatorKindTyped {
			return spec, &CompileError{
				Field:   "validator.kind",
				Message: fmt.Sprintf("invalid kind %q: must be generic or typed", kind),
				Pos:     kindVal.Pos(),
			}
		}
		spec.Kind = kind
	}

	typesVal := val.LookupPath(cue.ParsePath("types"))
	if typesVal.Exists() {
		iter, err := typesVal.List()
		if err != nil {
			return spec, &CompileError{Field: "validator.types", Message: err.Error(), Pos: typesVal.Pos()}
		}
		for iter.Next() {
			s, err := iter.Value().String()
			if err != nil {
				return spec, &CompileError{Field: "validator.types", Message: err.Error(), Pos: iter.Value().Pos()}
			}
			spec.Types = append(spec.Types, ledger.TypeID(s))
		}
	}

	if spec.Kind == ValidatorKindTyped && len(spec.Types) != 1 {
		return spec, &CompileError{
			Field:   "validator.types",
			Message: fmt.Sprintf("typed validator requires exactly one type, got %d", len(spec.Types)),
			Pos:     val.Pos(),
		}
	}

	return spec, nil
}

func parseGrants(v cue.Value) ([]Grant, error) {
	grantsVal := v.LookupPath(cue.ParsePath("grants"))
	if !grantsVal.Exists() {
		return nil, nil
	}

	iter, err := grantsVal.List()
	if err != nil {
		return nil, &CompileError{Field: "grants", Message: err.Error(), Pos: grantsVal.Pos()}
	}

	var grants []Grant
	seen := make(map[ledger.TypeID]bool)
	for iter.Next() {
		g := iter.Value()

		typeVal := g.LookupPath(cue.ParsePath("type"))
		if !typeVal.Exists() {
			return nil, &CompileError{Field: "grants.type", Message: "type is required", Pos: g.Pos()}
		}
		typeStr, err := typeVal.String()
		if err != nil {
			return nil, &CompileError{Field: "grants.type", Message: err.Error(), Pos: typeVal.Pos()}
		}
		typeID := ledger.TypeID(typeStr)
		if seen[typeID] {
			return nil, &CompileError{
				Field:   "grants.type",
				Message: fmt.Sprintf("duplicate grant for type %q", typeStr),
				Pos:     typeVal.Pos(),
			}
		}
		seen[typeID] = true

		pathVal := g.LookupPath(cue.ParsePath("path"))
		if !pathVal.Exists() {
			return nil, &CompileError{Field: "grants.path", Message: "path is required", Pos: g.Pos()}
		}
		pathStr, err := pathVal.String()
		if err != nil {
			return nil, &CompileError{Field: "grants.path", Message: err.Error(), Pos: pathVal.Pos()}
		}
		path, err := ledger.NewPath(ledger.DomainStorage, pathStr)
		if err != nil {
			return nil, &CompileError{Field: "grants.path", Message: err.Error(), Pos: pathVal.Pos()}
		}

		grants = append(grants, Grant{Type: typeID, Path: path})
	}

	return grants, nil
}

func parseMetadata(v cue.Value) (map[string]string, error) {
	metaVal := v.LookupPath(cue.ParsePath("metadata"))
	if !metaVal.Exists() {
		return nil, nil
	}

	iter, err := metaVal.Fields()
	if err != nil {
		return nil, &CompileError{Field: "metadata", Message: err.Error(), Pos: metaVal.Pos()}
	}

	meta := make(map[string]string)
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   "metadata." + iter.Selector().String(),
				Message: err.Error(),
				Pos:     iter.Value().Pos(),
			}
		}
		meta[iter.Selector().String()] = s
	}
	return meta, nil
}
