// Package stores provides the Redis-backed refresh and password-reset token
// repositories.
//
// # Design
//
// Each record is a Redis hash keyed by its lookup value (the refresh token
// digest or the raw reset token), plus a per-account set that indexes the
// account's rows. State transitions that must be atomic run as Lua scripts:
// consuming a refresh token, replacing an account's reset token, marking a reset
// token used, per-account revocation or deletion. A script executes as a single
// Redis command, so concurrent redeems of the same token see exactly one winner.
//
// Keys carry a TTL of the record expiry plus a grace period. The sweep deletes
// used and long-expired rows before that.
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control. It does NOT generate
// tokens, enforce rate limits, or make authentication decisions.
//
// # What this package must NOT do
//
//   - Import authcore or any sibling internal package.
//   - Log plaintext secrets.
package stores
