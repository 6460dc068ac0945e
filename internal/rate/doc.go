// Package rate provides a Redis-backed fixed-window failure counter. The
// gateway uses it to throttle clients that keep presenting rejected owner
// tokens.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Keys are
// "<prefix>:<subject>", prefix "gcr" by default.
//
// # What this package must NOT do
//
//   - Decide who the subject is (callers pass a client identity).
//   - Be imported outside the goClone module.
package rate
