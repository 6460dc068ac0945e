// Package goClone is a permissioned delegation framework: a [Factory] mints
// lightweight [Proxy] instances that share one upgradable [Implementation].
//
// Every proxy owns its persistent state and a feature mask. Entry points are
// identified by 4-byte selectors; the factory's registry assigns each one a
// dense id starting at 1, and bit id-1 of a proxy's mask authorizes it.
// Upgrading the implementation swaps a single shared slot, so every proxy
// sees the new logic on its next call while keeping its own state and mask.
//
// # Architecture boundaries
//
// goClone is the public surface: [Builder], [Factory], [Proxy], [Config] and
// the notification types. Masks and the registry live in permission/,
// selector derivation in selector/, and instance persistence in state/
// (memory, Redis, SQLite). Exporters, the NATS notification sink, the HTTP
// gateway and the CLI sit on top and only use exported API.
//
// # What this package must NOT do
//
//   - Retry failed calls or store operations; errors surface to the caller.
//   - Let a denied or failed call change any instance state.
//   - Mutate a registry after it has been published to the slot.
//
// # Concurrency
//
// All factory mutations and proxy calls are serialized by one execution
// lock. Reading the current implementation or registry id is a lock-free
// atomic load.
package goClone
