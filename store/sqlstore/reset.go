package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/reset"
	"github.com/uptrace/bun"
)

// ResetTokens implements reset.Repository on the password_reset_tokens table.
type ResetTokens struct {
	db *bun.DB
}

var _ reset.Repository = (*ResetTokens)(nil)

func NewResetTokens(db *bun.DB) *ResetTokens {
	return &ResetTokens{db: db}
}

// Replace deletes the account's unused rows and inserts rec in one transaction.
func (r *ResetTokens) Replace(ctx context.Context, rec reset.Record) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*resetTokenModel)(nil)).
			Where("account_id = ?", rec.AccountID).
			Where("used = ?", false).
			Exec(ctx); err != nil {
			return unavailable(err)
		}

		m := &resetTokenModel{
			ID:        rec.ID,
			AccountID: rec.AccountID,
			Token:     rec.Token,
			Mode:      rec.Mode.String(),
			ExpiresAt: utc(rec.ExpiresAt),
			Used:      false,
			CreatedAt: utc(rec.CreatedAt),
		}
		if _, err := tx.NewInsert().Model(m).Exec(ctx); err != nil {
			if isUniqueViolation(err) {
				return reset.ErrDuplicateToken
			}
			return unavailable(err)
		}
		return nil
	})
}

func (r *ResetTokens) FindByToken(ctx context.Context, token string) (reset.Record, error) {
	if token == "" {
		return reset.Record{}, reset.ErrNotFound
	}
	var m resetTokenModel
	err := r.db.NewSelect().Model(&m).Where("token = ?", token).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return reset.Record{}, reset.ErrNotFound
		}
		return reset.Record{}, unavailable(err)
	}
	return m.toRecord(), nil
}

func (r *ResetTokens) MarkUsed(ctx context.Context, token string) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*resetTokenModel)(nil)).
		Set("used = ?", true).
		Where("token = ?", token).
		Where("used = ?", false).
		Exec(ctx)
	if err != nil {
		return false, unavailable(err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r *ResetTokens) Release(ctx context.Context, token string) error {
	_, err := r.db.NewUpdate().
		Model((*resetTokenModel)(nil)).
		Set("used = ?", false).
		Where("token = ?", token).
		Where("used = ?", true).
		Exec(ctx)
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *ResetTokens) DeleteAccount(ctx context.Context, accountID int64) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*resetTokenModel)(nil)).
		Where("account_id = ?", accountID).
		Exec(ctx)
	if err != nil {
		return 0, unavailable(err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *ResetTokens) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*resetTokenModel)(nil)).
		Where("used = ? OR expires_at < ?", true, utc(cutoff)).
		Exec(ctx)
	if err != nil {
		return 0, unavailable(err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
