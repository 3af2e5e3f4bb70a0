package harness

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/tether/internal/audit"
	"github.com/roach88/tether/internal/delegation"
	"github.com/roach88/tether/internal/ledger"
)

// AssertionContext carries the final state assertions are evaluated against.
type AssertionContext struct {
	Registry *delegation.Registry
	Store    *audit.Store
	Ctx      context.Context
}

// EvaluateAssertions checks every assertion against the final registry and
// audit state, adding a failure message to result for each one that does
// not hold.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) {
	for i, a := range assertions {
		if msg := evaluate(a, actx); msg != "" {
			result.AddError(fmt.Sprintf("assertion %d (%s): %s", i, a.Type, msg))
		}
	}
}

// evaluate checks one assertion. Returns "" when it holds.
func evaluate(a Assertion, actx *AssertionContext) string {
	switch a.Type {
	case "link_active":
		got := actx.Registry.IsLinkActive(ledger.Address(a.Child))
		if got != a.Active {
			return fmt.Sprintf("link for %s: active=%t, want %t", a.Child, got, a.Active)
		}
	case "linked_count":
		got := len(actx.Registry.LinkedAddresses())
		if got != a.Count {
			return fmt.Sprintf("%d linked addresses, want %d", got, a.Count)
		}
	case "allowed_types":
		types, ok := actx.Registry.AllowedTypes(ledger.Address(a.Child))
		if !ok {
			return fmt.Sprintf("no allowed types readable for %s", a.Child)
		}
		got := make([]string, len(types))
		for i, t := range types {
			got[i] = string(t)
		}
		want := slices.Clone(a.Types)
		slices.Sort(want)
		if !slices.Equal(got, want) {
			return fmt.Sprintf("allowed types for %s: %v, want %v", a.Child, got, want)
		}
	case "event_count":
		events, err := actx.Store.ReadEvents(actx.Ctx, audit.Filter{Kind: a.Kind})
		if err != nil {
			return fmt.Sprintf("read audit log: %v", err)
		}
		if len(events) != a.Count {
			if a.Kind != "" {
				return fmt.Sprintf("%d %s events, want %d", len(events), a.Kind, a.Count)
			}
			return fmt.Sprintf("%d events, want %d", len(events), a.Count)
		}
	default:
		return fmt.Sprintf("unknown assertion type %q", a.Type)
	}
	return ""
}
