// Package harness provides a conformance testing framework for the
// delegation engine.
//
// Scenarios are YAML documents describing a ledger population (parent,
// children, installed values), a sequence of delegation operations with
// expected outcomes, and assertions over the final registry and audit log.
// Each scenario runs against a fresh in-memory ledger and audit store with
// deterministic ids and correlation tokens, so repeated runs produce
// byte-identical traces suitable for golden file comparison.
package harness
