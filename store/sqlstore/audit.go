package sqlstore

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/audit"
	"github.com/uptrace/bun"
)

// AuditLog is an audit.Sink that appends to the audit_log table.
type AuditLog struct {
	db *bun.DB
}

var _ audit.Sink = (*AuditLog)(nil)

func NewAuditLog(db *bun.DB) *AuditLog {
	return &AuditLog{db: db}
}

func (l *AuditLog) Emit(ctx context.Context, e audit.Event) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	m := &auditLogModel{
		AccountID:     e.AccountID,
		Operation:     e.Operation,
		Timestamp:     utc(ts),
		Details:       e.Details,
		Resource:      e.Resource,
		SourceAddress: e.SourceAddress,
		Success:       e.Success,
		Metadata:      e.Metadata,
	}
	if _, err := l.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

// ForAccount returns the newest limit records of accountID, newest first.
func (l *AuditLog) ForAccount(ctx context.Context, accountID int64, limit int) ([]audit.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []auditLogModel
	err := l.db.NewSelect().
		Model(&rows).
		Where("account_id = ?", accountID).
		OrderExpr("occurred_at DESC, id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, unavailable(err)
	}

	out := make([]audit.Event, len(rows))
	for i, r := range rows {
		out[i] = audit.Event{
			Timestamp:     r.Timestamp,
			AccountID:     r.AccountID,
			Operation:     r.Operation,
			Details:       r.Details,
			Resource:      r.Resource,
			SourceAddress: r.SourceAddress,
			Success:       r.Success,
			Metadata:      r.Metadata,
		}
	}
	return out, nil
}
