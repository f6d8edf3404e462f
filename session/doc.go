// Package session implements the single-active-session policy.
//
// When enforced, the engine stores [Guard.Mark] of the newest access token on the
// account record, and [Guard.Check] rejects any presented token whose digest is
// not that marker. At most one access token per account is therefore usable at
// a time.
//
// # What this package must NOT do
//
//   - Perform I/O. The caller loads the marker from the account store.
//   - Verify token signatures; the jwt package does that first.
package session
