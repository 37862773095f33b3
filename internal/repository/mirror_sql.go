package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const mirrorSchema = `CREATE TABLE IF NOT EXISTS mirror_entries (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`

// SQLMirrorBackend stores mirror keys in a single table. It works with both the postgres and
// sqlite3 drivers since placeholders are rebound per driver.
type SQLMirrorBackend struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLMirrorBackend constructs the backend.
func NewSQLMirrorBackend(db *sqlx.DB) *SQLMirrorBackend {
	return &SQLMirrorBackend{db: db, now: time.Now}
}

// EnsureSchema creates the mirror table when missing.
func (b *SQLMirrorBackend) EnsureSchema(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, mirrorSchema); err != nil {
		return fmt.Errorf("create mirror schema: %w", err)
	}
	return nil
}

type mirrorRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// Read loads the requested keys.
func (b *SQLMirrorBackend) Read(ctx context.Context, keys ...string) (map[string][]byte, error) {
	values := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return values, nil
	}
	query, args, err := sqlx.In(`SELECT key, value FROM mirror_entries WHERE key IN (?)`, keys)
	if err != nil {
		return nil, fmt.Errorf("build mirror query: %w", err)
	}
	var rows []mirrorRow
	if err := b.db.SelectContext(ctx, &rows, b.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("read mirror entries: %w", err)
	}
	for _, row := range rows {
		values[row.Key] = []byte(row.Value)
	}
	return values, nil
}

// WriteAll upserts every entry inside one transaction.
func (b *SQLMirrorBackend) WriteAll(ctx context.Context, entries []MirrorEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mirror tx: %w", err)
	}
	query := b.db.Rebind(`INSERT INTO mirror_entries (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
	now := b.now().UTC()
	for _, entry := range entries {
		if _, err := tx.ExecContext(ctx, query, entry.Key, string(entry.Value), now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert mirror entry %s: %w", entry.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mirror tx: %w", err)
	}
	return nil
}
