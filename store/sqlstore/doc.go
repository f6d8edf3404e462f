// Package sqlstore persists accounts, refresh tokens, reset tokens and audit
// records in a SQL database through bun.
//
// PostgreSQL (via pgx) and SQLite (via sqliteshim) are supported. [Open]
// selects the dialect from the driver name and [Migrate] creates the tables.
//
// Single-use transitions are conditional UPDATE statements checked through
// RowsAffected, so two callers racing on the same token cannot both win.
// Account updates run inside a transaction and take a row lock on PostgreSQL.
package sqlstore
