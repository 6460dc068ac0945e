// Package state persists proxy instance records: each instance's feature mask
// and its private key/value slots.
//
// # Transactions
//
// Implementations never write to a store directly. A call runs against a
// [Tx] that buffers writes over the committed slots; the buffered [Changes]
// are applied with one atomic [Store.Commit] only if the whole call
// succeeded, and dropped otherwise.
//
// # Backends
//
//   - [MemoryStore]: process-local maps, used by tests and the CLI.
//   - [RedisStore]: binary header blob plus a slot hash per instance,
//     committed with MULTI/EXEC under WATCH.
//   - state/sqlite: one SQL transaction per commit.
//
// # What this package must NOT do
//
//   - Import goClone (no upward imports).
//   - Evaluate feature masks or resolve selectors.
//   - Retry failed commits.
package state
