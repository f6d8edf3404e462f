package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/internal"
	"github.com/jonboulle/clockwork"
)

var (
	// ErrNotFound is returned when no row matches the token digest.
	ErrNotFound = errors.New("refresh token not found")
	// ErrConsumed is returned when the matched row was already redeemed.
	ErrConsumed = errors.New("refresh token already used")
	// ErrExpired is returned when the matched row is past its expiry.
	ErrExpired = errors.New("refresh token expired")
	// ErrUnavailable wraps repository failures.
	ErrUnavailable = errors.New("refresh token backend unavailable")
)

// Record is one persisted refresh token.
type Record struct {
	ID        string
	AccountID int64
	TokenHash string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// Repository persists refresh token records.
type Repository interface {
	Insert(ctx context.Context, rec Record) error
	// Consume atomically transitions the row with tokenHash from unused to used.
	// It returns ErrNotFound, ErrConsumed (with the row), or ErrExpired (with the
	// row, left unused) when the transition is not allowed at now.
	Consume(ctx context.Context, tokenHash string, now time.Time) (Record, error)
	// RevokeAccount marks every unused row of the account as used.
	RevokeAccount(ctx context.Context, accountID int64) (int64, error)
	// DeleteAccount removes every row of the account.
	DeleteAccount(ctx context.Context, accountID int64) (int64, error)
	// DeleteStale removes rows that are used or expired before cutoff.
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config tunes a Store.
type Config struct {
	TTL   time.Duration
	Clock clockwork.Clock
}

// Issued is the result of Create. Raw exists only here.
type Issued struct {
	Raw       string
	ExpiresAt time.Time
}

// Store is the refresh token service over a Repository.
type Store struct {
	repo  Repository
	ttl   time.Duration
	clock clockwork.Clock
}

// NewStore returns a Store. A zero TTL defaults to seven days.
func NewStore(repo Repository, cfg Config) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Store{repo: repo, ttl: cfg.TTL, clock: cfg.Clock}
}

// Create issues a new refresh token for accountID.
func (s *Store) Create(ctx context.Context, accountID int64) (Issued, error) {
	raw, err := internal.NewRefreshToken()
	if err != nil {
		return Issued{}, err
	}

	now := s.clock.Now()
	rec := Record{
		ID:        internal.NewID(),
		AccountID: accountID,
		TokenHash: internal.HashToken(raw),
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		return Issued{}, wrapUnavailable(err)
	}

	return Issued{Raw: raw, ExpiresAt: rec.ExpiresAt}, nil
}

// Redeem consumes raw and returns its account id. On ErrConsumed the account id
// is also returned so callers can react to replay.
func (s *Store) Redeem(ctx context.Context, raw string) (int64, error) {
	if raw == "" {
		return 0, ErrNotFound
	}

	rec, err := s.repo.Consume(ctx, internal.HashToken(raw), s.clock.Now())
	switch {
	case err == nil:
		return rec.AccountID, nil
	case errors.Is(err, ErrConsumed):
		return rec.AccountID, ErrConsumed
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrExpired):
		return 0, err
	default:
		return 0, wrapUnavailable(err)
	}
}

// RevokeAll marks every live token of the account as used.
func (s *Store) RevokeAll(ctx context.Context, accountID int64) (int64, error) {
	n, err := s.repo.RevokeAccount(ctx, accountID)
	return n, wrapUnavailable(err)
}

// DeleteAll removes every token row of the account.
func (s *Store) DeleteAll(ctx context.Context, accountID int64) (int64, error) {
	n, err := s.repo.DeleteAccount(ctx, accountID)
	return n, wrapUnavailable(err)
}

// Sweep deletes rows that are used or expired for longer than retention.
func (s *Store) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	if retention < 0 {
		retention = 0
	}
	n, err := s.repo.DeleteStale(ctx, s.clock.Now().Add(-retention))
	return n, wrapUnavailable(err)
}

func wrapUnavailable(err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
