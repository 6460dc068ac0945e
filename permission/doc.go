// Package permission provides the entry-point registry and the fixed-size
// feature masks that decide which entry points a proxy instance may invoke.
//
// # Ids and bits
//
// [Registry.Register] assigns ids 1, 2, 3, … in registration order. Id n is
// governed by bit n-1 of a mask. Ids are never reused or renumbered, so a
// bit keeps its meaning across implementation upgrades as long as new entry
// points are appended.
//
// # Mask sizes
//
// Supported widths: 64, 128, 256, and 512 bits. The width is chosen when the
// registry is constructed; registering more entry points than the width
// allows fails with [ErrRegistryFull].
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import goClone or state.
//   - Dynamically resize masks after registry construction.
package permission
