// Package audit defines the append-only operation record emitted by authcore
// and the sinks that persist or forward it.
//
// # Components
//
//   - [Event]: one record {timestamp, account, operation, details, resource, source address}.
//   - [Sink]: the consumer contract. Implementations here write JSON lines
//     ([JSONWriterSink]), structured logs ([LoggerSink]), NATS messages
//     ([NATSSink]), fan out ([MultiSink]), buffer to a channel ([ChannelSink])
//     or drop ([NoOpSink]). store/sqlstore provides a table-backed sink.
//
// Delivery is best effort. The engine sends events through an asynchronous
// dispatcher, so a failing sink never rolls back the operation it describes.
// Errors returned by Emit are logged and reported instead.
//
// # What this package must NOT do
//
//   - Decide which events to emit.
//   - Import authcore or any internal package.
package audit
