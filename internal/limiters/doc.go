// Package limiters holds the lockout policy applied to account records.
//
// [LockoutPolicy] is pure: it mutates an *account.Account in memory and never
// performs I/O. Flows call it from inside account.Store.Update so that the
// read-modify-write of the counters is atomic at the store.
//
// # What this package must NOT do
//
//   - Import authcore or any sibling internal package.
//   - Decide consequences (audit, errors); flow functions do that.
package limiters
