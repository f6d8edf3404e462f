package account

import (
	"context"
	"errors"
	"slices"
	"time"
)

var (
	// ErrNotFound is returned by lookups that match no account.
	ErrNotFound = errors.New("account not found")
	// ErrDuplicate is returned by Create when the username or email is taken.
	ErrDuplicate = errors.New("account already exists")
)

// Account is the credential record. AccountLocked implies LockTime != nil.
// An empty ActiveTokenHash means no session marker is set.
type Account struct {
	ID              int64
	Username        string
	Email           string
	PasswordHash    string
	Roles           []string
	FailedAttempts  int
	AccountLocked   bool
	LockTime        *time.Time
	ActiveTokenHash string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := *a
	out.Roles = slices.Clone(a.Roles)
	if a.LockTime != nil {
		lt := *a.LockTime
		out.LockTime = &lt
	}
	return &out
}

// Store is the account persistence contract.
//
// Update must run fn as an atomic read-modify-write on the row identified by id:
// fn receives the current committed state, and its mutations are persisted only
// if fn returns nil. Two concurrent Update calls on the same id must serialize.
type Store interface {
	FindByUsernameOrEmail(ctx context.Context, identifier string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id int64) (*Account, error)
	Create(ctx context.Context, acc *Account) error
	Update(ctx context.Context, id int64, fn func(*Account) error) (*Account, error)
	Delete(ctx context.Context, id int64) error
}
