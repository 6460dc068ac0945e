// Package gateway exposes a goClone factory and its proxies over HTTP.
//
// # Routes
//
//	POST /proxies                 clone (mask or feature_set)
//	GET  /proxies                 list proxy addresses
//	GET  /proxies/{address}       proxy mask
//	POST /proxies/{address}/call  forward one call
//	PUT  /proxies/{address}/mask  update the feature set (owner)
//	GET  /implementation          current implementation and entry points
//	PUT  /implementation          upgrade to a named implementation (owner)
//	GET  /funcid/{selector}       registry id of a selector or signature
//	GET  /feature-sets            named feature sets
//
// A call denied by the proxy's mask answers 403 with the body
// "no permission for this call". Owner routes read the owner capability
// token from "Authorization: Bearer <token>" and answer 401 without one,
// unless the factory treats every caller as the owner, in which case no
// token is needed. With [WithOwnerThrottle], a client address that keeps
// presenting rejected tokens is answered 429 until its window expires.
//
// # What this package must NOT do
//
//   - Make authorization decisions itself; the factory decides.
//   - Ship implementation code over the wire. Upgrades name an
//     implementation registered with [WithImplementations].
package gateway
