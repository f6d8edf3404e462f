package authcore_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrEthical07/authcore"
)

func TestDefaultConfigNeedsSecret(t *testing.T) {
	cfg := authcore.DefaultConfig()
	if err := cfg.Validate(); !errors.Is(err, authcore.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration without secret, got %v", err)
	}
	cfg.JWT.Secret = testSecret
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	cases := map[string]func(*authcore.Config){
		"short secret":       func(c *authcore.Config) { c.JWT.Secret = "too-short" },
		"unknown algorithm":  func(c *authcore.Config) { c.Password.Algorithm = "md5" },
		"bcrypt cost":        func(c *authcore.Config) { c.Password.BcryptCost = 40 },
		"rate window":        func(c *authcore.Config) { c.RateLimit.Capacity, c.RateLimit.Window = 5, 0 },
		"sweep schedule":     func(c *authcore.Config) { c.Refresh.SweepSchedule = "" },
		"policy bounds":      func(c *authcore.Config) { c.Password.Policy.MaxLength = 2 },
		"audit buffer":       func(c *authcore.Config) { c.Audit.BufferSize = 0 },
		"negative lockout":   func(c *authcore.Config) { c.Lockout.Threshold = -1 },
		"missing access ttl": func(c *authcore.Config) { c.JWT.AccessTTL = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, authcore.ErrConfiguration) {
				t.Fatalf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestDevelopmentConfig(t *testing.T) {
	cfg := authcore.DefaultConfig()
	if cfg.Development() {
		t.Fatal("defaults must be production")
	}
	cfg.Environment = authcore.EnvironmentDevelopment
	if !cfg.Development() {
		t.Fatal("expected development mode")
	}
}

func TestLoadConfigFromYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "authcore.yaml")
	doc := `
jwt:
  secret: "` + testSecret + `"
  access_ttl: 10m
lockout:
  threshold: 3
  cooldown: 1h
rate_limit:
  capacity: 10
  window: 30s
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("AUTHCORE_PASSWORD_PEPPER", "from-env")
	t.Setenv("AUTHCORE_SESSION_ENFORCE_SINGLE", "false")

	cfg, err := authcore.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.JWT.AccessTTL != 10*time.Minute || cfg.Lockout.Threshold != 3 || cfg.Lockout.Cooldown != time.Hour {
		t.Fatalf("yaml values not applied: %+v", cfg)
	}
	if cfg.RateLimit.Capacity != 10 || cfg.RateLimit.Window != 30*time.Second {
		t.Fatalf("rate limit not applied: %+v", cfg.RateLimit)
	}
	if cfg.JWT.Issuer != "authcore" {
		t.Fatalf("defaults must survive partial documents, got issuer %q", cfg.JWT.Issuer)
	}
	if cfg.Password.Pepper != "from-env" || cfg.Session.EnforceSingleSession {
		t.Fatalf("env overrides not applied: pepper=%q enforce=%v", cfg.Password.Pepper, cfg.Session.EnforceSingleSession)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded config invalid: %v", err)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := authcore.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, authcore.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for missing file, got %v", err)
	}

	cfg := authcore.DefaultConfig()
	if err := authcore.DecodeConfig([]byte("jwt: [not, a, map]"), &cfg); !errors.Is(err, authcore.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for bad yaml, got %v", err)
	}

	bad := func(string) (string, bool) { return "maybe", true }
	if err := authcore.ApplyEnv(&cfg, bad); !errors.Is(err, authcore.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for bad bool, got %v", err)
	}
}

func TestLoadDotEnvMissingFileIsIgnored(t *testing.T) {
	if err := authcore.LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("expected missing .env to be ignored, got %v", err)
	}
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("AUTHCORE_JWT_KEY_ID=from-file\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("AUTHCORE_JWT_KEY_ID", "from-process")
	if err := authcore.LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	if got := os.Getenv("AUTHCORE_JWT_KEY_ID"); got != "from-process" {
		t.Fatalf("expected process value to win, got %q", got)
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("%w: redis down", authcore.ErrUnavailable)
	if got := authcore.KindOf(wrapped); got != authcore.KindUnavailable {
		t.Fatalf("expected KindUnavailable, got %v", got)
	}
	if got := authcore.KindOf(fmt.Errorf("outer: %w", authcore.ErrAccountLocked)); got != authcore.KindAccountLocked {
		t.Fatalf("expected KindAccountLocked, got %v", got)
	}
	if got := authcore.KindOf(errors.New("plain")); got != authcore.KindUnknown {
		t.Fatalf("expected KindUnknown, got %v", got)
	}
	if authcore.KindOf(nil) != authcore.KindUnknown {
		t.Fatal("nil must map to KindUnknown")
	}
	if authcore.KindRateLimited.String() != "rate_limited" {
		t.Fatalf("unexpected kind name %q", authcore.KindRateLimited.String())
	}
}
