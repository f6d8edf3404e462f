package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/refresh"
	"github.com/uptrace/bun"
)

// RefreshTokens implements refresh.Repository on the refresh_tokens table.
type RefreshTokens struct {
	db *bun.DB
}

var _ refresh.Repository = (*RefreshTokens)(nil)

func NewRefreshTokens(db *bun.DB) *RefreshTokens {
	return &RefreshTokens{db: db}
}

func (r *RefreshTokens) Insert(ctx context.Context, rec refresh.Record) error {
	m := &refreshTokenModel{
		ID:        rec.ID,
		AccountID: rec.AccountID,
		TokenHash: rec.TokenHash,
		ExpiresAt: utc(rec.ExpiresAt),
		Used:      rec.Used,
		CreatedAt: utc(rec.CreatedAt),
	}
	if _, err := r.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

// Consume reads the row, then claims it with UPDATE ... WHERE used = false.
// A zero RowsAffected means another caller consumed it first.
func (r *RefreshTokens) Consume(ctx context.Context, tokenHash string, now time.Time) (refresh.Record, error) {
	var m refreshTokenModel
	err := r.db.NewSelect().Model(&m).Where("token_hash = ?", tokenHash).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return refresh.Record{}, refresh.ErrNotFound
		}
		return refresh.Record{}, unavailable(err)
	}

	rec := m.toRecord()
	if rec.Used {
		return rec, refresh.ErrConsumed
	}
	if !now.Before(rec.ExpiresAt) {
		return rec, refresh.ErrExpired
	}

	res, err := r.db.NewUpdate().
		Model((*refreshTokenModel)(nil)).
		Set("used = ?", true).
		Where("id = ?", rec.ID).
		Where("used = ?", false).
		Exec(ctx)
	if err != nil {
		return refresh.Record{}, unavailable(err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		rec.Used = true
		return rec, refresh.ErrConsumed
	}
	rec.Used = true
	return rec, nil
}

func (r *RefreshTokens) RevokeAccount(ctx context.Context, accountID int64) (int64, error) {
	res, err := r.db.NewUpdate().
		Model((*refreshTokenModel)(nil)).
		Set("used = ?", true).
		Where("account_id = ?", accountID).
		Where("used = ?", false).
		Exec(ctx)
	if err != nil {
		return 0, unavailable(err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *RefreshTokens) DeleteAccount(ctx context.Context, accountID int64) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*refreshTokenModel)(nil)).
		Where("account_id = ?", accountID).
		Exec(ctx)
	if err != nil {
		return 0, unavailable(err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *RefreshTokens) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*refreshTokenModel)(nil)).
		Where("used = ? OR expires_at < ?", true, utc(cutoff)).
		Exec(ctx)
	if err != nil {
		return 0, unavailable(err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
