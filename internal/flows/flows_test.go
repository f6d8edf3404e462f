package flows

import (
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/reset"
)

func TestAccountIDFromClaims(t *testing.T) {
	cases := []struct {
		name  string
		extra map[string]any
		want  int64
		ok    bool
	}{
		{"json number", map[string]any{ClaimAccountID: float64(42)}, 42, true},
		{"int64", map[string]any{ClaimAccountID: int64(7)}, 7, true},
		{"string", map[string]any{ClaimAccountID: "9"}, 9, true},
		{"fraction", map[string]any{ClaimAccountID: 1.5}, 0, false},
		{"zero", map[string]any{ClaimAccountID: float64(0)}, 0, false},
		{"missing", map[string]any{}, 0, false},
		{"nil extra", nil, 0, false},
	}
	for _, tc := range cases {
		got, ok := AccountIDFromClaims(&jwt.Claims{Extra: tc.extra})
		if got != tc.want || ok != tc.ok {
			t.Fatalf("%s: got (%d, %v), want (%d, %v)", tc.name, got, ok, tc.want, tc.ok)
		}
	}
	if _, ok := AccountIDFromClaims(nil); ok {
		t.Fatal("nil claims must not resolve")
	}
}

func TestResetMessage(t *testing.T) {
	code := reset.Record{Token: "123456", Mode: reset.ModeCode}
	subject, body := resetMessage(code, "https://example.com/reset", 5*time.Minute)
	if !strings.Contains(subject, "code") || !strings.Contains(body, "123456") || !strings.Contains(body, "5 minutes") {
		t.Fatalf("unexpected code message %q / %q", subject, body)
	}

	link := reset.Record{Token: "abc", Mode: reset.ModeLink}
	_, body = resetMessage(link, "https://example.com/reset?lang=en", 30*time.Minute)
	if !strings.Contains(body, "https://example.com/reset?lang=en&token=abc") {
		t.Fatalf("unexpected link message %q", body)
	}
	_, body = resetMessage(link, "", 30*time.Minute)
	if !strings.Contains(body, "\nabc\n") {
		t.Fatalf("expected bare token without a link URL, got %q", body)
	}
}

func TestRegisterInputValidate(t *testing.T) {
	valid := RegisterInput{Username: "alice", Email: "alice@example.com", Password: "x"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid input, got %v", err)
	}
	for _, in := range []RegisterInput{
		{Username: "al", Email: "alice@example.com", Password: "x"},
		{Username: "alice smith", Email: "alice@example.com", Password: "x"},
		{Username: "alice", Email: "not-an-email", Password: "x"},
		{Username: "alice", Email: "alice@example.com"},
	} {
		if err := in.Validate(); err == nil {
			t.Fatalf("expected validation error for %+v", in)
		}
	}
}
