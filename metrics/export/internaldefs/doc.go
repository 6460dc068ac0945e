// Package internaldefs exposes stable metric names and bucket boundaries shared
// by exporter implementations.
//
// Both the Prometheus and OTel exporters read their definitions from here, so
// a rename or bucket change lands in every exporter at once.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
