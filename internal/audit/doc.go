// Package audit relays audit events from the engine to a caller-supplied sink.
//
// The [Dispatcher] buffers events and delivers them on a single goroutine, so
// audit I/O never sits on the request path. Sink failures are counted and
// handed to an [ErrorHandler]; they are never returned to the operation that
// produced the event.
//
// This package does NOT decide which events to emit. That belongs to the
// engine and flow functions.
package audit
