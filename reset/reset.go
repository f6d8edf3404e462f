package reset

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no row has the given token.
	ErrNotFound = errors.New("reset token not found")
	// ErrDuplicateToken is returned by Replace when the token collides with a live row.
	ErrDuplicateToken = errors.New("reset token collision")
)

// Mode selects how a reset secret is generated and delivered.
type Mode uint8

const (
	// ModeLink is an opaque UUID token delivered inside a link.
	ModeLink Mode = iota
	// ModeCode is a short numeric code typed by the user.
	ModeCode
)

func (m Mode) String() string {
	switch m {
	case ModeCode:
		return "code"
	default:
		return "link"
	}
}

// ParseMode maps a stored mode name back to a Mode. Unknown names are ModeLink.
func ParseMode(s string) Mode {
	if s == "code" {
		return ModeCode
	}
	return ModeLink
}

// Record is one persisted reset token.
type Record struct {
	ID        string
	AccountID int64
	Token     string
	Mode      Mode
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// Repository persists reset token records.
type Repository interface {
	// Replace deletes every unused row of rec.AccountID and inserts rec, atomically.
	Replace(ctx context.Context, rec Record) error
	FindByToken(ctx context.Context, token string) (Record, error)
	// MarkUsed transitions the row from unused to used. It returns false when the
	// row was already used or no longer exists.
	MarkUsed(ctx context.Context, token string) (bool, error)
	// Release undoes a MarkUsed whose follow-up write failed, returning the row
	// to unused. Releasing an unused or missing row is a no-op.
	Release(ctx context.Context, token string) error
	DeleteAccount(ctx context.Context, accountID int64) (int64, error)
	// DeleteStale removes rows that are used or expired before cutoff.
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}
