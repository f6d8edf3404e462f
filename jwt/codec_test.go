package jwt

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newTestCodec(t *testing.T, clock clockwork.Clock) *Codec {
	t.Helper()
	c, err := NewCodec(Config{
		Key:        testKey,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		Issuer:     "authcore",
		Audience:   "authcore-api",
		Clock:      clock,
	})
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	return c
}

func TestNewCodecRejectsMissingAndWeakKeys(t *testing.T) {
	base := Config{AccessTTL: time.Minute, RefreshTTL: time.Hour, Issuer: "i", Audience: "a"}

	if _, err := NewCodec(base); err != ErrMissingKey {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}

	weak := base
	weak.Key = []byte("short")
	if _, err := NewCodec(weak); err == nil || !strings.Contains(err.Error(), ErrWeakKey.Error()) {
		t.Fatalf("expected ErrWeakKey, got %v", err)
	}

	noAudience := base
	noAudience.Key = testKey
	noAudience.Audience = ""
	if _, err := NewCodec(noAudience); err == nil {
		t.Fatal("expected missing audience to be rejected")
	}
}

func TestRoundTripSubjectAndRoles(t *testing.T) {
	c := newTestCodec(t, nil)
	cases := []struct {
		subject string
		roles   []string
	}{
		{subject: "alice", roles: []string{"USER"}},
		{subject: "bob@example.com", roles: []string{"USER", "ADMIN"}},
		{subject: "ünïcødé user", roles: nil},
		{subject: strings.Repeat("x", 300), roles: []string{}},
	}

	for _, tc := range cases {
		token, err := c.Generate(tc.subject, tc.roles, map[string]any{"uid": 42})
		if err != nil {
			t.Fatalf("Generate(%q) failed: %v", tc.subject, err)
		}
		if !c.Validate(token) {
			t.Fatalf("expected token for %q to validate", tc.subject)
		}
		if got := c.SubjectOf(token); got != tc.subject {
			t.Fatalf("SubjectOf = %q, want %q", got, tc.subject)
		}
		claims, err := c.Parse(token)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if len(claims.Roles) != len(tc.roles) {
			t.Fatalf("roles = %v, want %v", claims.Roles, tc.roles)
		}
		for i := range tc.roles {
			if claims.Roles[i] != tc.roles[i] {
				t.Fatalf("roles = %v, want %v", claims.Roles, tc.roles)
			}
		}
		if claims.Extra["uid"] != float64(42) {
			t.Fatalf("expected uid extra claim, got %v", claims.Extra)
		}
	}
}

func TestValidateRejectsTamperedPayload(t *testing.T) {
	c := newTestCodec(t, nil)
	token, err := c.Generate("alice", []string{"USER"}, nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	parts := strings.Split(token, ".")
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	tampered := strings.Replace(string(payload), `"alice"`, `"mallory"`, 1)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(tampered))
	forged := strings.Join(parts, ".")

	if c.Validate(forged) {
		t.Fatal("expected tampered payload to be rejected")
	}
	if _, err := c.Parse(forged); err == nil {
		t.Fatal("expected Parse to reject tampered payload")
	}
}

func TestValidateRejectsForeignKey(t *testing.T) {
	c := newTestCodec(t, nil)
	other, err := NewCodec(Config{
		Key:        []byte("ffffffffffffffffffffffffffffffff"),
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
		Issuer:     "authcore",
		Audience:   "authcore-api",
	})
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	token, _ := other.Generate("alice", nil, nil)
	if c.Validate(token) {
		t.Fatal("expected token signed with a different key to be rejected")
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
	c := newTestCodec(t, clock)
	token, _ := c.Generate("alice", nil, nil)

	clock.Advance(16 * time.Minute)
	if c.Validate(token) {
		t.Fatal("expected expired token to be rejected")
	}
	if _, err := c.Parse(token); err != ErrExpired {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestValidateRejectsIssuerAudienceMismatch(t *testing.T) {
	c := newTestCodec(t, nil)
	now := time.Now()
	for _, claims := range []Claims{
		{Use: useAccess, RegisteredClaims: gjwt.RegisteredClaims{Subject: "a", Issuer: "evil", Audience: gjwt.ClaimStrings{"authcore-api"}, ExpiresAt: gjwt.NewNumericDate(now.Add(time.Minute))}},
		{Use: useAccess, RegisteredClaims: gjwt.RegisteredClaims{Subject: "a", Issuer: "authcore", Audience: gjwt.ClaimStrings{"other"}, ExpiresAt: gjwt.NewNumericDate(now.Add(time.Minute))}},
		{Use: useAccess, RegisteredClaims: gjwt.RegisteredClaims{Subject: "a", Issuer: "authcore", Audience: gjwt.ClaimStrings{"authcore-api"}}},
	} {
		token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testKey)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		if c.Validate(token) {
			t.Fatalf("expected claims %+v to be rejected", claims.RegisteredClaims)
		}
	}
}

func TestValidateRejectsWrongAlgorithm(t *testing.T) {
	c := newTestCodec(t, nil)
	claims := Claims{Use: useAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject: "alice", Issuer: "authcore", Audience: gjwt.ClaimStrings{"authcore-api"},
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS512, claims).SignedString(testKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if c.Validate(token) {
		t.Fatal("expected HS512 token to be rejected")
	}

	none, err := gjwt.NewWithClaims(gjwt.SigningMethodNone, claims).SignedString(gjwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if c.Validate(none) {
		t.Fatal("expected alg=none token to be rejected")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	c := newTestCodec(t, nil)
	for _, in := range []string{"", "abc", "a.b.c", "....", "eyJhbGciOiJIUzI1NiJ9.e30.", strings.Repeat(".", 1000)} {
		if c.Validate(in) {
			t.Fatalf("expected %q to be rejected", in)
		}
	}
}

func TestRefreshTokensAreSeparated(t *testing.T) {
	c := newTestCodec(t, nil)
	refresh, err := c.GenerateRefresh("alice")
	if err != nil {
		t.Fatalf("GenerateRefresh failed: %v", err)
	}
	if c.Validate(refresh) {
		t.Fatal("refresh JWT must not pass access validation")
	}
	if !c.ValidateRefresh(refresh) {
		t.Fatal("expected refresh JWT to pass ValidateRefresh")
	}
	if c.SubjectOf(refresh) != "alice" {
		t.Fatal("expected subject alice")
	}

	access, _ := c.Generate("alice", nil, nil)
	if c.ValidateRefresh(access) {
		t.Fatal("access JWT must not pass refresh validation")
	}
}

func TestVerifyKeysAllowRotation(t *testing.T) {
	oldKey := []byte("old-key-old-key-old-key-old-key-")
	old, err := NewCodec(Config{Key: oldKey, KeyID: "k1", AccessTTL: time.Minute, RefreshTTL: time.Hour, Issuer: "authcore", Audience: "authcore-api"})
	if err != nil {
		t.Fatalf("NewCodec old: %v", err)
	}
	rotated, err := NewCodec(Config{
		Key:        testKey,
		KeyID:      "k2",
		VerifyKeys: map[string][]byte{"k1": oldKey},
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
		Issuer:     "authcore",
		Audience:   "authcore-api",
	})
	if err != nil {
		t.Fatalf("NewCodec rotated: %v", err)
	}

	token, _ := old.Generate("alice", nil, nil)
	if !rotated.Validate(token) {
		t.Fatal("expected token signed with a rotated-out key to verify")
	}
	fresh, _ := rotated.Generate("alice", nil, nil)
	if old.Validate(fresh) {
		t.Fatal("old codec must not accept unknown kid")
	}
}

func TestGeneratedTokensAreUnique(t *testing.T) {
	c := newTestCodec(t, clockwork.NewFakeClock())
	a, _ := c.Generate("alice", nil, nil)
	b, _ := c.Generate("alice", nil, nil)
	if a == b {
		t.Fatal("expected distinct tokens for the same subject and instant")
	}
}

func FuzzValidate(f *testing.F) {
	c, err := NewCodec(Config{Key: testKey, AccessTTL: time.Minute, RefreshTTL: time.Hour, Issuer: "authcore", Audience: "authcore-api"})
	if err != nil {
		f.Fatal(err)
	}
	valid, err := c.Generate("seed", []string{"USER"}, nil)
	if err != nil {
		f.Fatal(err)
	}
	f.Add(valid)
	f.Add("")
	f.Add("a.b.c")

	f.Fuzz(func(t *testing.T, token string) {
		if token != valid && c.Validate(token) {
			claims, err := c.Parse(token)
			if err != nil || claims.Subject == "" {
				t.Fatalf("Validate accepted a token Parse rejects: %q", token)
			}
		}
		_ = c.SubjectOf(token)
	})
}
