// Package selector defines the fixed-width keys that identify callable entry
// points, and the Keccak-256 helpers used to derive them from signatures.
//
// # Architecture boundaries
//
// A [Selector] is opaque to the dispatch core: it is compared for equality and
// used as a registry key, nothing more. Deriving selectors from canonical
// signatures ("func12()") is a convenience for implementations and tooling.
//
// # What this package must NOT do
//
//   - Import goClone, permission, or state.
//   - Encode call arguments (argument payloads are opaque bytes).
package selector
