package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// MinKeyLength is the smallest accepted HMAC key, in bytes.
const MinKeyLength = 32

const (
	useAccess  = "access"
	useRefresh = "refresh"
)

var (
	// ErrMissingKey is returned by NewCodec when no signing key is configured.
	ErrMissingKey = errors.New("jwt signing key is missing")
	// ErrWeakKey is returned by NewCodec when the signing key is shorter than MinKeyLength.
	ErrWeakKey = errors.New("jwt signing key is too short")
	// ErrInvalid is returned by Parse for any token that fails verification other than expiry.
	ErrInvalid = errors.New("invalid token")
	// ErrExpired is returned by Parse for a correctly signed token past its expiry.
	ErrExpired = errors.New("token expired")
)

// Config defines codec parameters. Key is the HMAC-SHA256 secret.
//
// VerifyKeys holds additional keys accepted for verification only, indexed by kid,
// so that a key can be rotated without invalidating tokens already in flight.
type Config struct {
	Key        []byte
	KeyID      string
	VerifyKeys map[string][]byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	Audience   string
	Leeway     time.Duration
	Clock      clockwork.Clock
}

// Claims is the access-token payload.
type Claims struct {
	Roles []string       `json:"roles,omitempty"`
	Use   string         `json:"use"`
	Extra map[string]any `json:"ext,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and verifies HS256 tokens with fixed issuer and audience.
//
// Codec instances are immutable after NewCodec and safe for concurrent use.
type Codec struct {
	config Config
	clock  clockwork.Clock
	parser *jwt.Parser
}

// NewCodec validates cfg and returns a Codec. It returns ErrMissingKey or ErrWeakKey
// for unusable key material so callers can fail at startup.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Key) == 0 {
		return nil, ErrMissingKey
	}
	if len(cfg.Key) < MinKeyLength {
		return nil, fmt.Errorf("%w: need at least %d bytes", ErrWeakKey, MinKeyLength)
	}
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid access TTL configuration")
	}
	if cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid refresh TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if strings.TrimSpace(cfg.Issuer) == "" || strings.TrimSpace(cfg.Audience) == "" {
		return nil, errors.New("issuer and audience are required")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	for kid, key := range cfg.VerifyKeys {
		if strings.TrimSpace(kid) == "" {
			return nil, errors.New("verify key map contains empty kid")
		}
		if len(key) < MinKeyLength {
			return nil, fmt.Errorf("%w: verify key %q", ErrWeakKey, kid)
		}
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	c := &Codec{config: cfg, clock: cfg.Clock}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.clock.Now),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	c.parser = jwt.NewParser(options...)

	return c, nil
}

// Generate mints an access token for subject. extra is embedded under the "ext"
// claim and may carry identity data such as the numeric account id.
func (c *Codec) Generate(subject string, roles []string, extra map[string]any) (string, error) {
	return c.sign(subject, roles, extra, useAccess, c.config.AccessTTL)
}

// GenerateRefresh mints a long-lived token without role claims. It is rejected by
// Validate and accepted only by ValidateRefresh.
func (c *Codec) GenerateRefresh(subject string) (string, error) {
	return c.sign(subject, nil, nil, useRefresh, c.config.RefreshTTL)
}

func (c *Codec) sign(subject string, roles []string, extra map[string]any, use string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("subject is required")
	}
	now := c.clock.Now()
	claims := Claims{
		Roles: roles,
		Use:   use,
		Extra: extra,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.config.Issuer,
			Audience:  jwt.ClaimStrings{c.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if c.config.KeyID != "" {
		token.Header["kid"] = c.config.KeyID
	}
	return token.SignedString(c.config.Key)
}

// Parse verifies an access token and returns its claims. Expired tokens yield
// ErrExpired; every other failure yields ErrInvalid.
func (c *Codec) Parse(tokenStr string) (*Claims, error) {
	claims, err := c.parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Use != useAccess {
		return nil, ErrInvalid
	}
	return claims, nil
}

// Validate reports whether tokenStr is a well-formed, correctly signed, unexpired
// access token for the configured issuer and audience. It never panics.
func (c *Codec) Validate(tokenStr string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	_, err := c.Parse(tokenStr)
	return err == nil
}

// ValidateRefresh is Validate for tokens produced by GenerateRefresh.
func (c *Codec) ValidateRefresh(tokenStr string) bool {
	claims, err := c.parse(tokenStr)
	return err == nil && claims.Use == useRefresh
}

// SubjectOf returns the subject claim without verifying the signature. Callers
// must run Validate first; the result for an invalid token is unspecified.
func (c *Codec) SubjectOf(tokenStr string) string {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return ""
	}
	return claims.Subject
}

func (c *Codec) parse(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrInvalid
	}
	token, err := c.parser.ParseWithClaims(tokenStr, &Claims{}, c.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalid
	}
	return claims, nil
}

func (c *Codec) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	kid, _ := t.Header["kid"].(string)
	if kid == "" || kid == c.config.KeyID {
		return c.config.Key, nil
	}
	if key, ok := c.config.VerifyKeys[kid]; ok {
		return key, nil
	}
	return nil, errors.New("unknown kid")
}
