// Package internal contains helpers that are private to authcore: secure random
// generation and the token digest used for refresh tokens and session markers.
//
// # Sub-packages
//
//   - audit: async record dispatch in front of an [audit.Sink]
//   - flows: flow orchestrators behind every Engine operation
//   - jobs: cron-driven maintenance (token sweep)
//   - limiters: lockout policy over account records
//   - logging: zap logger construction and Sentry reporting
//   - rate: in-memory token-bucket admission control
//   - stores: Redis-backed refresh and reset repositories
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
//   - Be imported by any package outside the authcore module.
package internal
