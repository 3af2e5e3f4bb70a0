// Package delegation implements capability-scoped delegated access between a
// parent account and linked (child) accounts.
//
// The moving parts, leaves first:
//
//   - Validator: pluggable predicate deciding whether a retrieved capability
//     really resolves to its declared type. The validator is the trust
//     boundary; the declared type->path map is just configuration.
//   - AccessPoint: the scoping wrapper installed in a linked account's own
//     storage. While restricted, only declared, type-checked capabilities can
//     be extracted; the raw account handle is unreachable.
//   - Admin: mints AccessPoints and is the only party that may lift the
//     restriction on one it created.
//   - Record: the move-only unit binding an AccessPoint capability and an
//     account handle for the same child. Exactly one Registry owns a Record
//     at any time.
//   - Registry: the per-parent store of Records. Enforces the pending-deposit
//     admission gate, at-most-one-record-per-child, and a bijective
//     address->id index, and cascades deactivation to the child side on
//     removal.
//
// Execution is single-writer per operation: the host ledger serializes
// transactions, so no operation here interleaves with another. Precondition
// and authorization failures return *DelegationError; internal consistency
// breaks panic and must not be recovered.
package delegation
