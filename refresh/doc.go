// Package refresh issues and redeems opaque, single-use refresh tokens.
//
// # Token lifecycle
//
//	issued --Redeem--> used      (terminal)
//	issued --time----> expired   (terminal)
//
// A token is never un-used or renewed in place. Rotation is the caller's job:
// after a successful [Store.Redeem] the engine calls [Store.Create] for the
// replacement.
//
// The raw token is 128 bits from crypto/rand, base64url encoded. It is returned
// once by Create and only its SHA-256 hex digest is persisted.
//
// # Architecture boundaries
//
// [Store] holds the policy (TTL, clock, error mapping). Persistence goes through
// [Repository], implemented by internal/stores (Redis) and store/sqlstore (SQL).
// Repository.Consume must be an atomic check-and-set so that concurrent redeems
// of the same raw token have exactly one winner.
//
// # What this package must NOT do
//
//   - Import authcore, jwt, or session.
//   - Store or log raw tokens.
package refresh
