package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/account"
	"github.com/uptrace/bun"
)

// Accounts implements account.Store.
type Accounts struct {
	db  *bun.DB
	now func() time.Time
}

var _ account.Store = (*Accounts)(nil)

// NewAccounts returns an account store on db.
func NewAccounts(db *bun.DB) *Accounts {
	return &Accounts{db: db, now: time.Now}
}

func (s *Accounts) findOne(ctx context.Context, where string, args ...any) (*account.Account, error) {
	var m accountModel
	err := s.db.NewSelect().Model(&m).Where(where, args...).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, account.ErrNotFound
		}
		return nil, unavailable(err)
	}
	return m.toAccount(), nil
}

// FindByUsernameOrEmail matches identifier against username, then email.
func (s *Accounts) FindByUsernameOrEmail(ctx context.Context, identifier string) (*account.Account, error) {
	if identifier == "" {
		return nil, account.ErrNotFound
	}
	acc, err := s.findOne(ctx, "username = ?", identifier)
	if err == nil || !errors.Is(err, account.ErrNotFound) {
		return acc, err
	}
	return s.findOne(ctx, "lower(email) = ?", strings.ToLower(identifier))
}

func (s *Accounts) FindByEmail(ctx context.Context, email string) (*account.Account, error) {
	if email == "" {
		return nil, account.ErrNotFound
	}
	return s.findOne(ctx, "lower(email) = ?", strings.ToLower(email))
}

func (s *Accounts) FindByID(ctx context.Context, id int64) (*account.Account, error) {
	return s.findOne(ctx, "id = ?", id)
}

// Create inserts acc and sets acc.ID.
func (s *Accounts) Create(ctx context.Context, acc *account.Account) error {
	now := s.now().UTC()
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = now
	}
	acc.UpdatedAt = now

	m := fromAccount(acc)
	m.ID = 0
	if _, err := s.db.NewInsert().Model(m).Returning("id").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return account.ErrDuplicate
		}
		return unavailable(err)
	}
	acc.ID = m.ID
	return nil
}

// Update runs fn inside a transaction. On PostgreSQL the row is locked with
// SELECT ... FOR UPDATE; SQLite serializes writers through its single connection.
func (s *Accounts) Update(ctx context.Context, id int64, fn func(*account.Account) error) (*account.Account, error) {
	var out *account.Account
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var m accountModel
		q := tx.NewSelect().Model(&m).Where("id = ?", id)
		if isPostgres(tx) {
			q = q.For("UPDATE")
		}
		if err := q.Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return account.ErrNotFound
			}
			return unavailable(err)
		}

		acc := m.toAccount()
		if err := fn(acc); err != nil {
			return err
		}
		acc.ID = id
		acc.UpdatedAt = s.now().UTC()

		updated := fromAccount(acc)
		if _, err := tx.NewUpdate().Model(updated).WherePK().Exec(ctx); err != nil {
			if isUniqueViolation(err) {
				return account.ErrDuplicate
			}
			return unavailable(err)
		}
		out = acc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Accounts) Delete(ctx context.Context, id int64) error {
	res, err := s.db.NewDelete().Model((*accountModel)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return unavailable(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return account.ErrNotFound
	}
	return nil
}
