package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// ErrUnavailable wraps database failures that are not domain outcomes.
var ErrUnavailable = errors.New("sql store unavailable")

// PoolOptions tunes the database/sql pool for PostgreSQL. SQLite always uses
// a single connection.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to driver ("postgres"/"pgx" or "sqlite"/"sqlite3") and pings it.
func Open(ctx context.Context, driver, dsn string, pool PoolOptions) (*bun.DB, error) {
	var (
		sqldb *sql.DB
		db    *bun.DB
		err   error
	)

	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		sqldb, err = sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	case "postgres", "postgresql", "pgx":
		sqldb, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if pool.MaxOpenConns > 0 {
			sqldb.SetMaxOpenConns(pool.MaxOpenConns)
		}
		if pool.MaxIdleConns > 0 {
			sqldb.SetMaxIdleConns(pool.MaxIdleConns)
		}
		if pool.ConnMaxLifetime > 0 {
			sqldb.SetConnMaxLifetime(pool.ConnMaxLifetime)
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate creates every table and index if missing.
func Migrate(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*accountModel)(nil),
		(*refreshTokenModel)(nil),
		(*resetTokenModel)(nil),
		(*auditLogModel)(nil),
	}
	for _, m := range models {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	indexes := []struct {
		model   any
		name    string
		columns []string
		unique  bool
	}{
		{(*refreshTokenModel)(nil), "idx_refresh_tokens_account", []string{"account_id"}, false},
		{(*resetTokenModel)(nil), "idx_password_reset_tokens_account", []string{"account_id"}, false},
		{(*auditLogModel)(nil), "idx_audit_log_account", []string{"account_id"}, false},
	}
	for _, ix := range indexes {
		q := db.NewCreateIndex().Model(ix.model).Index(ix.name).Column(ix.columns...).IfNotExists()
		if ix.unique {
			q = q.Unique()
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("create index %s: %w", ix.name, err)
		}
	}
	return nil
}

func unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isPostgres(db bun.IDB) bool {
	return db.Dialect().Name() == dialect.PG
}
