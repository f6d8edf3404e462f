package session

import (
	"crypto/subtle"
	"errors"

	"github.com/MrEthical07/authcore/internal"
)

// ErrInvalidated is returned by Check when the presented token is not the
// account's active one.
var ErrInvalidated = errors.New("session invalidated")

// Guard enforces the single-active-session policy when Enforce is true. The zero
// value is a disabled guard.
type Guard struct {
	Enforce bool
}

// Mark returns the marker to persist for accessToken, or "" when the policy is off.
func (g Guard) Mark(accessToken string) string {
	if !g.Enforce {
		return ""
	}
	return internal.HashToken(accessToken)
}

// Check compares the presented token against the stored marker. An empty marker
// is a mismatch.
func (g Guard) Check(activeTokenHash, presentedToken string) error {
	if !g.Enforce {
		return nil
	}
	if activeTokenHash == "" {
		return ErrInvalidated
	}
	presented := internal.HashToken(presentedToken)
	if subtle.ConstantTimeCompare([]byte(presented), []byte(activeTokenHash)) != 1 {
		return ErrInvalidated
	}
	return nil
}
