package authcore

import "errors"

// Kind classifies engine errors for transport adapters.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInvalidCredentials
	KindAccountLocked
	KindSessionInvalidated
	KindTokenExpired
	KindTokenAlreadyUsed
	KindInvalidToken
	KindRateLimited
	KindNotifierFailure
	KindConfiguration
	KindPasswordPolicy
	KindAccountExists
	KindInvalidInput
	KindUnavailable
)

var kindNames = [...]string{
	KindUnknown:            "unknown",
	KindInvalidCredentials: "invalid_credentials",
	KindAccountLocked:      "account_locked",
	KindSessionInvalidated: "session_invalidated",
	KindTokenExpired:       "token_expired",
	KindTokenAlreadyUsed:   "token_already_used",
	KindInvalidToken:       "invalid_token",
	KindRateLimited:        "rate_limited",
	KindNotifierFailure:    "notifier_failure",
	KindConfiguration:      "configuration",
	KindPasswordPolicy:     "password_policy",
	KindAccountExists:      "account_exists",
	KindInvalidInput:       "invalid_input",
	KindUnavailable:        "unavailable",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[KindUnknown]
}

// Error is the sentinel type. Compare with errors.Is against the exported values.
type Error struct {
	kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Kind returns the classification of e.
func (e *Error) Kind() Kind { return e.kind }

func newError(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

var (
	// ErrInvalidCredentials is returned for an unknown identifier or a wrong password.
	ErrInvalidCredentials = newError(KindInvalidCredentials, "invalid credentials")
	// ErrAccountLocked is returned while an account is inside its lockout cooldown.
	ErrAccountLocked = newError(KindAccountLocked, "account locked")
	// ErrSessionInvalidated is returned when an access token is not the account's active session.
	ErrSessionInvalidated = newError(KindSessionInvalidated, "session invalidated")
	// ErrTokenExpired is returned for expired access, refresh or reset tokens.
	ErrTokenExpired = newError(KindTokenExpired, "token expired")
	// ErrTokenAlreadyUsed is returned when a single-use token is presented again.
	ErrTokenAlreadyUsed = newError(KindTokenAlreadyUsed, "token already used")
	// ErrInvalidToken is returned for malformed, forged or unknown tokens.
	ErrInvalidToken = newError(KindInvalidToken, "invalid token")
	// ErrRateLimited is returned when the source address exhausted its bucket.
	ErrRateLimited = newError(KindRateLimited, "too many requests")
	// ErrNotifierFailure is returned when a reset token could not be delivered.
	ErrNotifierFailure = newError(KindNotifierFailure, "notification delivery failed")
	// ErrConfiguration is returned by Builder.Build and Config.Validate.
	ErrConfiguration = newError(KindConfiguration, "invalid configuration")
	// ErrPasswordPolicy is returned when a new password violates the policy.
	ErrPasswordPolicy = newError(KindPasswordPolicy, "password policy violation")
	// ErrAccountExists is returned by Register for a taken username or email.
	ErrAccountExists = newError(KindAccountExists, "account already exists")
	// ErrInvalidInput is returned for malformed requests and unknown account ids.
	ErrInvalidInput = newError(KindInvalidInput, "invalid input")
	// ErrUnavailable wraps store, codec and timeout failures.
	ErrUnavailable = newError(KindUnavailable, "authentication backend unavailable")
)

// KindOf returns the Kind of the first engine sentinel in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}
