// Package nats forwards goClone factory notifications to NATS subjects.
//
// Wire a [Sink] into a factory with Builder.WithAuditSink and enable
// Config.Audit; every proxy_created, implementation_upgraded,
// feature_set_updated, call_denied, call_failed and owner_rejected event is
// then published as one JSON message.
//
// # What this package must NOT do
//
//   - Call back into the factory from Emit.
//   - Block the dispatcher on slow consumers; NATS core publish is buffered
//     by the client.
package nats
