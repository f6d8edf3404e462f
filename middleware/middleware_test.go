package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrEthical07/authcore"
)

type fakeAuth struct {
	token string
	err   error
	seen  string
}

func (f *fakeAuth) Authenticate(_ context.Context, bearer string) (*authcore.Identity, error) {
	f.seen = bearer
	if f.err != nil {
		return nil, f.err
	}
	if bearer != f.token {
		return nil, authcore.ErrInvalidToken
	}
	return &authcore.Identity{AccountID: 7, Subject: "alice", Roles: []string{"USER"}}, nil
}

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatal("identity missing from context")
		}
		fmt.Fprintf(w, "%d", id.AccountID)
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestGuardAcceptsValidToken(t *testing.T) {
	auth := &fakeAuth{token: "good"}
	h := Guard(auth)(okHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "bearer good")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "7" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
	if auth.seen != "good" {
		t.Fatalf("expected prefix stripped, got %q", auth.seen)
	}
}

func TestGuardRejects(t *testing.T) {
	tests := []struct {
		name   string
		header string
		err    error
		status int
		code   string
	}{
		{"missing header", "", nil, http.StatusUnauthorized, "invalid_token"},
		{"wrong scheme", "Basic abc", nil, http.StatusUnauthorized, "invalid_token"},
		{"empty token", "Bearer  ", nil, http.StatusUnauthorized, "invalid_token"},
		{"expired", "Bearer good", authcore.ErrTokenExpired, http.StatusUnauthorized, "token_expired"},
		{"superseded session", "Bearer good", authcore.ErrSessionInvalidated, http.StatusUnauthorized, "session_invalidated"},
		{"backend down", "Bearer good", fmt.Errorf("%w: timeout", authcore.ErrUnavailable), http.StatusServiceUnavailable, "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Guard(&fakeAuth{token: "good", err: tt.err})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Fatal("next must not run")
			}))
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			body := decodeError(t, rec)
			if body.Code != tt.code || body.Detail != "" {
				t.Fatalf("unexpected body %+v", body)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	auth := &fakeAuth{token: "good"}
	chain := func(role string) http.Handler {
		return Guard(auth)(RequireRole(role)(okHandler(t)))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")

	rec := httptest.NewRecorder()
	chain("USER").ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for USER, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	chain("ADMIN").ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for ADMIN, got %d", rec.Code)
	}
}

func TestStatusForTable(t *testing.T) {
	want := map[authcore.Kind]int{
		authcore.KindInvalidCredentials: 401,
		authcore.KindAccountLocked:      423,
		authcore.KindRateLimited:        429,
		authcore.KindTokenAlreadyUsed:   400,
		authcore.KindAccountExists:      409,
		authcore.KindNotifierFailure:    502,
		authcore.KindUnavailable:        503,
		authcore.KindUnknown:            500,
	}
	for kind, status := range want {
		if got := StatusFor(kind); got != status {
			t.Fatalf("%s: expected %d, got %d", kind, status, got)
		}
	}
}

func TestWriteErrorDetailOnlyInDevelopment(t *testing.T) {
	err := fmt.Errorf("%w: minimum length 8", authcore.ErrPasswordPolicy)

	rec := httptest.NewRecorder()
	WriteError(rec, err, false)
	if body := decodeError(t, rec); body.Detail != "" || body.Code != "password_policy" {
		t.Fatalf("unexpected production body %+v", body)
	}

	rec = httptest.NewRecorder()
	WriteError(rec, err, true)
	if body := decodeError(t, rec); body.Detail == "" {
		t.Fatal("expected detail in development")
	}

	rec = httptest.NewRecorder()
	WriteError(rec, authcore.ErrRateLimited, false)
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After on 429")
	}
}

func TestClientAddress(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:4242"
	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")

	if got := ClientAddress(req, true); got != "203.0.113.9" {
		t.Fatalf("expected forwarded address, got %q", got)
	}
	if got := ClientAddress(req, false); got != "10.0.0.5" {
		t.Fatalf("expected remote host, got %q", got)
	}

	req.Header.Del("X-Forwarded-For")
	req.RemoteAddr = "unix-socket"
	if got := ClientAddress(req, true); got != "unix-socket" {
		t.Fatalf("expected raw remote addr, got %q", got)
	}
}
