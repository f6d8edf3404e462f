// Package flows contains the orchestrators behind every Engine operation.
//
// Each flow function (RunLogin, RunRefresh, RunRequestPasswordReset, ...)
// accepts a typed dependency struct and returns results without side effects
// beyond those dependencies. The Engine builds the structs once and stays thin.
//
// # Architecture boundaries
//
// Flows coordinate the account store, token codec, refresh store, rate
// limiter, audit dispatcher and metrics. They do NOT own any of these
// resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import authcore (to avoid import cycles).
//   - Run password hashing or notifier I/O inside account.Store.Update.
package flows
