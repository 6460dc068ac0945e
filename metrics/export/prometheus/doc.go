// Package prometheus exposes goClone factory metrics to Prometheus.
//
// [Collector] reads factory snapshots at scrape time and feeds them to a
// client_golang registry. [NewRegistry] and [Handler] wrap it in a private
// registry served by promhttp. Counter names are goclone_*_total; the
// histogram is goclone_call_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry; callers register
//     the Collector or mount the Handler.
//   - Render the exposition format itself; promhttp does.
//   - Mutate factory state.
package prometheus
