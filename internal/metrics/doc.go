// Package metrics provides lock-free counters and one latency histogram for
// the engine.
//
// Counters are cache-line-padded uint64 slots incremented with sync/atomic.
// The histogram uses 8 fixed buckets (5ms up to +Inf). The write path does not
// allocate.
//
// Export (Prometheus) lives in metrics/export and reads snapshots. This
// package performs no I/O and keeps no global registry.
package metrics
