// Package rate provides the in-memory token-bucket limiter that guards
// authentication operations, keyed by client source address.
//
// # Bucket semantics
//
// Each key owns a golang.org/x/time/rate limiter with burst = Capacity and a refill
// interval of Window/Capacity, so tokens come back one at a time rather than all at
// a window boundary. Buckets are created on first use through sync.Map.LoadOrStore,
// which guarantees a single bucket per key under concurrent first access.
//
// # What this package must NOT do
//
//   - Persist buckets or share them across processes.
//   - Live as a package-level global; every Engine owns its own Limiter.
//   - Be imported outside the authcore module.
package rate
