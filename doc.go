// Package authcore authenticates users and manages the lifecycle of their
// credentials: login, JWT access tokens, rotating single-use refresh tokens,
// brute-force lockout, single-active-session enforcement, password reset and
// per-address rate limiting.
//
// # Architecture
//
// The [Engine] is the public entry point. It is assembled by a [Builder] and
// delegates every operation to internal/flows:
//
//	Login                  -> flows.RunLogin
//	Refresh                -> flows.RunRefresh
//	Logout                 -> flows.RunLogout
//	Authenticate           -> flows.RunAuthenticate
//	RequestPasswordReset   -> flows.RunRequestPasswordReset
//	RedeemPasswordReset    -> flows.RunRedeemPasswordReset
//	Register               -> flows.RunRegister
//	DeleteAccount          -> flows.RunDeleteAccount
//
// The account store ([account.Store]), the refresh and reset repositories,
// the notifier and the audit sink are supplied by the caller. Redis-backed
// repositories are built automatically from [Builder.WithRedis]; SQL-backed
// ones live in store/sqlstore.
//
// # Errors
//
// Every failure returned by the engine wraps one of the sentinels in errors.go.
// Use [errors.Is] or [KindOf]; middleware.StatusFor maps kinds to HTTP status.
package authcore
