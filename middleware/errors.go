package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/MrEthical07/authcore"
)

var statusByKind = map[authcore.Kind]int{
	authcore.KindInvalidCredentials: http.StatusUnauthorized,
	authcore.KindSessionInvalidated: http.StatusUnauthorized,
	authcore.KindTokenExpired:       http.StatusUnauthorized,
	authcore.KindInvalidToken:       http.StatusUnauthorized,
	authcore.KindAccountLocked:      http.StatusLocked,
	authcore.KindRateLimited:        http.StatusTooManyRequests,
	authcore.KindTokenAlreadyUsed:   http.StatusBadRequest,
	authcore.KindPasswordPolicy:     http.StatusBadRequest,
	authcore.KindInvalidInput:       http.StatusBadRequest,
	authcore.KindAccountExists:      http.StatusConflict,
	authcore.KindNotifierFailure:    http.StatusBadGateway,
	authcore.KindUnavailable:        http.StatusServiceUnavailable,
	authcore.KindConfiguration:      http.StatusInternalServerError,
}

var messageByKind = map[authcore.Kind]string{
	authcore.KindInvalidCredentials: "Invalid username or password.",
	authcore.KindSessionInvalidated: "Session is no longer active.",
	authcore.KindTokenExpired:       "Token expired.",
	authcore.KindInvalidToken:       "Invalid token.",
	authcore.KindAccountLocked:      "Account is temporarily locked.",
	authcore.KindRateLimited:        "Too many requests.",
	authcore.KindTokenAlreadyUsed:   "Token already used.",
	authcore.KindPasswordPolicy:     "Password does not meet the policy.",
	authcore.KindInvalidInput:       "Invalid request.",
	authcore.KindAccountExists:      "Account already exists.",
	authcore.KindNotifierFailure:    "Could not deliver the notification.",
	authcore.KindUnavailable:        "Service temporarily unavailable.",
}

// StatusFor returns the HTTP status for an engine error kind. Unknown kinds
// map to 500.
func StatusFor(kind authcore.Kind) int {
	if s, ok := statusByKind[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// WriteError writes err as {"code","message"} with the status from StatusFor.
// The raw error text is included only when development is set.
func WriteError(w http.ResponseWriter, err error, development bool) {
	kind := authcore.KindOf(err)
	body := errorBody{Code: kind.String(), Message: messageByKind[kind]}
	if body.Message == "" {
		body.Message = "Internal error."
	}
	if development && err != nil {
		body.Detail = err.Error()
	}
	if kind == authcore.KindRateLimited {
		w.Header().Set("Retry-After", "60")
	}
	writeJSON(w, StatusFor(kind), body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
