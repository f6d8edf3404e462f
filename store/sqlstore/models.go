package sqlstore

import (
	"strings"
	"time"

	"github.com/MrEthical07/authcore/account"
	"github.com/MrEthical07/authcore/refresh"
	"github.com/MrEthical07/authcore/reset"
	"github.com/uptrace/bun"
)

type accountModel struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`

	ID              int64      `bun:"id,pk,autoincrement"`
	Username        string     `bun:"username,notnull,unique"`
	Email           string     `bun:"email,notnull,unique"`
	PasswordHash    string     `bun:"password_hash,notnull"`
	Roles           string     `bun:"roles,notnull,default:''"`
	FailedAttempts  int        `bun:"failed_attempts,notnull,default:0"`
	AccountLocked   bool       `bun:"account_locked,notnull,default:false"`
	LockTime        *time.Time `bun:"lock_time,nullzero"`
	ActiveTokenHash string     `bun:"active_token_hash,notnull,default:''"`
	CreatedAt       time.Time  `bun:"created_at,notnull"`
	UpdatedAt       time.Time  `bun:"updated_at,notnull"`
}

type refreshTokenModel struct {
	bun.BaseModel `bun:"table:refresh_tokens,alias:rt"`

	ID        string    `bun:"id,pk"`
	AccountID int64     `bun:"account_id,notnull"`
	TokenHash string    `bun:"token_hash,notnull,unique"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
	Used      bool      `bun:"used,notnull,default:false"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

type resetTokenModel struct {
	bun.BaseModel `bun:"table:password_reset_tokens,alias:prt"`

	ID        string    `bun:"id,pk"`
	AccountID int64     `bun:"account_id,notnull"`
	Token     string    `bun:"token,notnull,unique"`
	Mode      string    `bun:"mode,notnull"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
	Used      bool      `bun:"used,notnull,default:false"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

type auditLogModel struct {
	bun.BaseModel `bun:"table:audit_log,alias:al"`

	ID            int64             `bun:"id,pk,autoincrement"`
	AccountID     int64             `bun:"account_id,notnull,default:0"`
	Operation     string            `bun:"operation,notnull"`
	Timestamp     time.Time         `bun:"occurred_at,notnull"`
	Details       string            `bun:"details"`
	Resource      string            `bun:"resource"`
	SourceAddress string            `bun:"source_address"`
	Success       bool              `bun:"success,notnull"`
	Metadata      map[string]string `bun:"metadata,type:jsonb"`
}

func utc(t time.Time) time.Time {
	return t.UTC()
}

func joinRoles(roles []string) string {
	return strings.Join(roles, ",")
}

func splitRoles(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func fromAccount(a *account.Account) *accountModel {
	m := &accountModel{
		ID:              a.ID,
		Username:        a.Username,
		Email:           a.Email,
		PasswordHash:    a.PasswordHash,
		Roles:           joinRoles(a.Roles),
		FailedAttempts:  a.FailedAttempts,
		AccountLocked:   a.AccountLocked,
		ActiveTokenHash: a.ActiveTokenHash,
		CreatedAt:       utc(a.CreatedAt),
		UpdatedAt:       utc(a.UpdatedAt),
	}
	if a.LockTime != nil {
		lt := utc(*a.LockTime)
		m.LockTime = &lt
	}
	return m
}

func (m *accountModel) toAccount() *account.Account {
	a := &account.Account{
		ID:              m.ID,
		Username:        m.Username,
		Email:           m.Email,
		PasswordHash:    m.PasswordHash,
		Roles:           splitRoles(m.Roles),
		FailedAttempts:  m.FailedAttempts,
		AccountLocked:   m.AccountLocked,
		ActiveTokenHash: m.ActiveTokenHash,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.LockTime != nil {
		lt := *m.LockTime
		a.LockTime = &lt
	}
	return a
}

func (m *refreshTokenModel) toRecord() refresh.Record {
	return refresh.Record{
		ID:        m.ID,
		AccountID: m.AccountID,
		TokenHash: m.TokenHash,
		ExpiresAt: m.ExpiresAt,
		Used:      m.Used,
		CreatedAt: m.CreatedAt,
	}
}

func (m *resetTokenModel) toRecord() reset.Record {
	return reset.Record{
		ID:        m.ID,
		AccountID: m.AccountID,
		Token:     m.Token,
		Mode:      reset.ParseMode(m.Mode),
		ExpiresAt: m.ExpiresAt,
		Used:      m.Used,
		CreatedAt: m.CreatedAt,
	}
}
