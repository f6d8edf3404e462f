package authcore

import (
	"time"

	"github.com/MrEthical07/authcore/internal/flows"
)

// RequestMeta is the per-request context recorded with every audit event.
type RequestMeta struct {
	SourceAddress string
	Resource      string
}

func (m RequestMeta) flow() flows.Meta {
	return flows.Meta{SourceAddress: m.SourceAddress, Resource: m.Resource}
}

// TokenPair is returned by Login and Refresh. RefreshToken is the raw value and
// is never stored by the engine.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Identity is the authenticated principal behind an access token.
type Identity struct {
	AccountID int64     `json:"account_id"`
	Subject   string    `json:"subject"`
	Email     string    `json:"email,omitempty"`
	Roles     []string  `json:"roles"`
	TokenID   string    `json:"token_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HasRole reports whether the identity carries role.
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RegisterInput is the self-registration request. Roles defaults to USER.
type RegisterInput struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Roles    []string `json:"-"`
}

// SweepResult reports how many rows one sweep deleted.
type SweepResult struct {
	RefreshTokens int64
	ResetTokens   int64
}
