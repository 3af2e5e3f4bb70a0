// Package ledger models the host ledger the delegation engine runs against:
// accounts addressed by short hex addresses, per-account keyed storage, and
// unforgeable capability handles over that storage.
//
// The ledger here is an in-process model, not a network client. It provides
// exactly the primitives the delegation engine needs from its host:
//
//   - Account storage: save/load values at typed paths, with occupancy checks
//     so installs never silently overwrite.
//   - Capability: a revocable read-handle to a value at a path in some
//     account's storage. Capabilities are shared handles, never owners.
//   - AccountHandle: a revocable handle granting access to a whole account.
//
// All object identity (access point ids, record ids, capability ids) is
// allocated from a single monotonic allocator owned by the Ledger's Config.
// There is no package-level state; construct a Config once and pass it in.
package ledger
