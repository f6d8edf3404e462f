// Package jwt issues and verifies HS256 access tokens with fixed issuer and
// audience claims.
//
// Verification fails closed: [Codec.Validate] returns false for malformed input,
// a foreign or rotated-out key, a non-HS256 algorithm, expiry, or issuer and
// audience mismatch. [Codec.Parse] carries the same checks and distinguishes
// [ErrExpired] from [ErrInvalid].
//
// # What this package must NOT do
//
//   - Offer asymmetric signing; issuer and verifier share one trust domain.
//   - Consult any store. Session checks happen in the session package.
package jwt
