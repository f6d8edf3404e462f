package middleware

import (
	"context"
	"net/http"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal"
)

// Authenticator is the subset of *authcore.Engine the guard needs.
type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (*authcore.Identity, error)
}

type identityContextKey struct{}

// IdentityFromContext returns the identity stored by Guard.
func IdentityFromContext(ctx context.Context) (*authcore.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*authcore.Identity)
	return id, ok && id != nil
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *authcore.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// Guard rejects requests without a valid bearer access token.
func Guard(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				WriteError(w, authcore.ErrInvalidToken, false)
				return
			}

			token, ok := internal.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				WriteError(w, authcore.ErrInvalidToken, false)
				return
			}

			id, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				WriteError(w, err, false)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole must run behind Guard. It answers 403 when the identity lacks role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				WriteError(w, authcore.ErrInvalidToken, false)
				return
			}
			if !id.HasRole(role) {
				writeJSON(w, http.StatusForbidden, errorBody{Code: "forbidden", Message: "Insufficient role."})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
