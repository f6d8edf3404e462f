package authcore

import (
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	validation "github.com/go-ozzo/ozzo-validation"
)

// Environment names accepted by Config.Environment.
const (
	EnvironmentProduction  = "production"
	EnvironmentDevelopment = "development"
)

// Config is the engine configuration. Start from DefaultConfig and override.
type Config struct {
	Environment string          `yaml:"environment"`
	JWT         JWTConfig       `yaml:"jwt"`
	Password    PasswordConfig  `yaml:"password"`
	Refresh     RefreshConfig   `yaml:"refresh"`
	Reset       ResetConfig     `yaml:"reset"`
	Lockout     LockoutConfig   `yaml:"lockout"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	Session     SessionConfig   `yaml:"session"`
	Timeouts    TimeoutConfig   `yaml:"timeouts"`
	Audit       AuditConfig     `yaml:"audit"`
	Metrics     MetricsConfig   `yaml:"metrics"`
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the HS256 access-token codec. Secret must be at least
// 32 bytes. PreviousSecrets maps retired key ids to secrets that are still
// accepted for verification.
type JWTConfig struct {
	Secret          string            `yaml:"secret"`
	KeyID           string            `yaml:"key_id"`
	PreviousSecrets map[string]string `yaml:"previous_secrets"`
	Issuer          string            `yaml:"issuer"`
	Audience        string            `yaml:"audience"`
	AccessTTL       time.Duration     `yaml:"access_ttl"`
	RefreshTTL      time.Duration     `yaml:"refresh_ttl"`
	Leeway          time.Duration     `yaml:"leeway"`
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// Argon2Config mirrors password.Config with yaml tags.
type Argon2Config struct {
	Memory      uint32 `yaml:"memory_kb"`
	Time        uint32 `yaml:"time"`
	Parallelism uint8  `yaml:"parallelism"`
	SaltLength  uint32 `yaml:"salt_length"`
	KeyLength   uint32 `yaml:"key_length"`
}

// PasswordConfig selects the hasher and the policy for new passwords. Pepper
// is appended to every password before hashing.
type PasswordConfig struct {
	Algorithm      string          `yaml:"algorithm"`
	Pepper         string          `yaml:"pepper"`
	BcryptCost     int             `yaml:"bcrypt_cost"`
	Argon2         Argon2Config    `yaml:"argon2"`
	UpgradeOnLogin bool            `yaml:"upgrade_on_login"`
	Policy         password.Policy `yaml:"policy"`
}

/*
====================================
TOKEN LIFECYCLE CONFIG
====================================
*/

// RefreshConfig controls refresh-token lifetime and cleanup.
type RefreshConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	Retention     time.Duration `yaml:"retention"`
	SweepSchedule string        `yaml:"sweep_schedule"`
	SweepTimeout  time.Duration `yaml:"sweep_timeout"`
	RevokeOnReuse bool          `yaml:"revoke_on_reuse"`
}

// ResetConfig controls password-reset tokens.
type ResetConfig struct {
	LinkTTL        time.Duration `yaml:"link_ttl"`
	CodeTTL        time.Duration `yaml:"code_ttl"`
	CodeDigits     int           `yaml:"code_digits"`
	LinkURL        string        `yaml:"link_url"`
	RevokeSessions bool          `yaml:"revoke_sessions"`
}

/*
====================================
ABUSE CONTROL CONFIG
====================================
*/

// LockoutConfig locks an account after Threshold consecutive failures for
// Cooldown. A zero Threshold disables lockout.
type LockoutConfig struct {
	Threshold int           `yaml:"threshold"`
	Cooldown  time.Duration `yaml:"cooldown"`
}

// RateLimitConfig gives every (endpoint, source address) pair Capacity
// requests per Window. A zero Capacity disables rate limiting.
type RateLimitConfig struct {
	Capacity int           `yaml:"capacity"`
	Window   time.Duration `yaml:"window"`
}

// SessionConfig toggles single-active-session enforcement.
type SessionConfig struct {
	EnforceSingleSession bool `yaml:"enforce_single_session"`
}

/*
====================================
RUNTIME CONFIG
====================================
*/

// TimeoutConfig bounds every store and notifier call.
type TimeoutConfig struct {
	Store    time.Duration `yaml:"store"`
	Notifier time.Duration `yaml:"notifier"`
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled     bool          `yaml:"enabled"`
	BufferSize  int           `yaml:"buffer_size"`
	DropIfFull  bool          `yaml:"drop_if_full"`
	EmitTimeout time.Duration `yaml:"emit_timeout"`
}

// MetricsConfig toggles in-process counters and the authenticate latency histogram.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

// DefaultConfig returns production defaults. JWT.Secret and Password.Pepper
// are empty and must be supplied.
func DefaultConfig() Config {
	argon := password.DefaultArgon2Config()
	return Config{
		Environment: EnvironmentProduction,
		JWT: JWTConfig{
			Issuer:     "authcore",
			Audience:   "authcore-clients",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Algorithm:  password.AlgorithmBcrypt,
			BcryptCost: 12,
			Argon2: Argon2Config{
				Memory:      argon.Memory,
				Time:        argon.Time,
				Parallelism: argon.Parallelism,
				SaltLength:  argon.SaltLength,
				KeyLength:   argon.KeyLength,
			},
			UpgradeOnLogin: true,
			Policy:         password.DefaultPolicy(),
		},
		Refresh: RefreshConfig{
			TTL:           7 * 24 * time.Hour,
			Retention:     30 * 24 * time.Hour,
			SweepSchedule: "0 3 * * *",
			SweepTimeout:  5 * time.Minute,
			RevokeOnReuse: true,
		},
		Reset: ResetConfig{
			LinkTTL:        30 * time.Minute,
			CodeTTL:        5 * time.Minute,
			CodeDigits:     6,
			RevokeSessions: true,
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Cooldown:  15 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Capacity: 5,
			Window:   time.Minute,
		},
		Session: SessionConfig{
			EnforceSingleSession: true,
		},
		Timeouts: TimeoutConfig{
			Store:    3 * time.Second,
			Notifier: 10 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:     true,
			BufferSize:  1024,
			DropIfFull:  true,
			EmitTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

// Development reports whether the engine runs in development mode.
func (c Config) Development() bool {
	return c.Environment == EnvironmentDevelopment
}

// Validate checks every section. Failures wrap ErrConfiguration.
func (c Config) Validate() error {
	err := validation.Errors{
		"environment": validation.Validate(c.Environment, validation.Required, validation.In(EnvironmentProduction, EnvironmentDevelopment)),
		"jwt":         c.JWT.validate(),
		"password":    c.Password.validate(),
		"refresh": validation.ValidateStruct(&c.Refresh,
			validation.Field(&c.Refresh.TTL, validation.Required, validation.Min(time.Minute)),
			validation.Field(&c.Refresh.Retention, validation.Min(time.Duration(0))),
			validation.Field(&c.Refresh.SweepSchedule, validation.Required),
		),
		"reset": validation.ValidateStruct(&c.Reset,
			validation.Field(&c.Reset.LinkTTL, validation.Required, validation.Min(time.Minute)),
			validation.Field(&c.Reset.CodeTTL, validation.Required, validation.Min(time.Minute)),
			validation.Field(&c.Reset.CodeDigits, validation.Required, validation.Min(4), validation.Max(10)),
		),
		"lockout": validation.ValidateStruct(&c.Lockout,
			validation.Field(&c.Lockout.Threshold, validation.Min(0)),
			validation.Field(&c.Lockout.Cooldown, validation.Min(time.Duration(0))),
		),
		"rate_limit": validation.ValidateStruct(&c.RateLimit,
			validation.Field(&c.RateLimit.Capacity, validation.Min(0)),
			validation.Field(&c.RateLimit.Window, requiredIf(c.RateLimit.Capacity > 0)...),
		),
		"timeouts": validation.ValidateStruct(&c.Timeouts,
			validation.Field(&c.Timeouts.Store, validation.Min(time.Duration(0))),
			validation.Field(&c.Timeouts.Notifier, validation.Min(time.Duration(0))),
		),
		"audit": validation.ValidateStruct(&c.Audit,
			validation.Field(&c.Audit.BufferSize, requiredIf(c.Audit.Enabled)...),
		),
	}.Filter()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return nil
}

func requiredIf(cond bool) []validation.Rule {
	if !cond {
		return nil
	}
	return []validation.Rule{validation.Required}
}

func (j *JWTConfig) validate() error {
	return validation.ValidateStruct(j,
		validation.Field(&j.Secret, validation.Required.Error("is required"),
			validation.Length(jwt.MinKeyLength, 0).Error(fmt.Sprintf("must be at least %d bytes", jwt.MinKeyLength))),
		validation.Field(&j.Issuer, validation.Required),
		validation.Field(&j.Audience, validation.Required),
		validation.Field(&j.AccessTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&j.RefreshTTL, validation.Min(time.Duration(0))),
		validation.Field(&j.Leeway, validation.Min(time.Duration(0))),
	)
}

func (p *PasswordConfig) validate() error {
	var costRules []validation.Rule
	if p.Algorithm != password.AlgorithmArgon2id {
		costRules = []validation.Rule{validation.Min(4), validation.Max(31)}
	}
	return validation.ValidateStruct(p,
		validation.Field(&p.Algorithm, validation.In(password.AlgorithmBcrypt, password.AlgorithmArgon2id)),
		validation.Field(&p.BcryptCost, costRules...),
		validation.Field(&p.Policy, validation.By(func(any) error {
			if p.Policy.MinLength < 1 || p.Policy.MaxLength < p.Policy.MinLength {
				return fmt.Errorf("length bounds %d-%d are invalid", p.Policy.MinLength, p.Policy.MaxLength)
			}
			return nil
		})),
	)
}

func (c Config) hasherOptions() password.Options {
	return password.Options{
		Algorithm:  c.Password.Algorithm,
		Pepper:     c.Password.Pepper,
		BcryptCost: c.Password.BcryptCost,
		Argon2: password.Config{
			Memory:      c.Password.Argon2.Memory,
			Time:        c.Password.Argon2.Time,
			Parallelism: c.Password.Argon2.Parallelism,
			SaltLength:  c.Password.Argon2.SaltLength,
			KeyLength:   c.Password.Argon2.KeyLength,
			Pepper:      c.Password.Pepper,
		},
	}
}

func (c Config) codecConfig() jwt.Config {
	previous := make(map[string][]byte, len(c.JWT.PreviousSecrets))
	for kid, secret := range c.JWT.PreviousSecrets {
		previous[kid] = []byte(secret)
	}
	return jwt.Config{
		Key:        []byte(c.JWT.Secret),
		KeyID:      c.JWT.KeyID,
		VerifyKeys: previous,
		AccessTTL:  c.JWT.AccessTTL,
		RefreshTTL: c.JWT.RefreshTTL,
		Issuer:     c.JWT.Issuer,
		Audience:   c.JWT.Audience,
		Leeway:     c.JWT.Leeway,
	}
}
