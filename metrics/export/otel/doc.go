// Package otel binds goClone factory metrics to an OpenTelemetry Meter.
//
// [NewOTelExporter] registers one Int64ObservableCounter per factory counter
// and one Int64ObservableGauge per latency bucket. A single callback reads
// [goClone.Factory.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider; callers supply the Meter.
//   - Mutate factory state.
package otel
