// Package reset defines password-reset token records and their persistence
// contract.
//
// A reset token is looked up by its raw value. It is itself a short-lived,
// one-time bearer secret, so it is stored unhashed. At most one unused row
// exists per account: [Repository.Replace] deletes the previous unused row in
// the same atomic step that inserts the new one.
//
// Issuance and redemption policy live in internal/flows.
package reset
