// Package sqlite implements the tagcache backend contract on an embedded
// SQLite database (modernc.org/sqlite, no cgo). Entries live in one table,
// tag associations in a second; PurgeExpired is a single range DELETE over
// an indexed expires_at column.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/unkn0wn-root/tagcache/backend"
)

type Backend struct {
	db *sql.DB
}

var _ backend.Backend = (*Backend)(nil)

// New opens (or creates) the database at dbPath and prepares the schema.
// An empty path or ":memory:" uses an in-memory database.
func New(ctx context.Context, dbPath string) (*Backend, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// WAL for better concurrent read performance
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	// tag rows are deleted explicitly alongside their entries: PRAGMA
	// foreign_keys is per-connection and database/sql pools connections,
	// so ON DELETE CASCADE cannot be relied on here
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			key        TEXT PRIMARY KEY,
			type_id    TEXT NOT NULL,
			payload    BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_expires_at ON entries(expires_at)`,
		`CREATE TABLE IF NOT EXISTS entry_tags (
			key TEXT NOT NULL,
			tag TEXT NOT NULL,
			PRIMARY KEY (key, tag)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entry_tags_tag ON entry_tags(tag)`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite backend: schema: %w", err)
		}
	}
	return &Backend{db: db}, nil
}

func (b *Backend) Read(ctx context.Context, key string) (*backend.Entry, error) {
	row := b.db.QueryRowContext(ctx,
		`SELECT key, type_id, payload, created_at, expires_at FROM entries WHERE key = ?`, key)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if e.Tags, err = b.tagsOf(ctx, key); err != nil {
		return nil, err
	}
	return e, nil
}

func (b *Backend) ReadAll(ctx context.Context) ([]*backend.Entry, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT key, type_id, payload, created_at, expires_at FROM entries`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*backend.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, e := range out {
		if e.Tags, err = b.tagsOf(ctx, e.Key); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(r rowScanner) (*backend.Entry, error) {
	var e backend.Entry
	if err := r.Scan(&e.Key, &e.TypeID, &e.Payload, &e.CreatedAt, &e.ExpiresAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func (b *Backend) tagsOf(ctx context.Context, key string) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT tag FROM entry_tags WHERE key = ?`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (b *Backend) Write(ctx context.Context, e *backend.Entry) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO entries (key, type_id, payload, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   type_id = excluded.type_id,
		   payload = excluded.payload,
		   created_at = excluded.created_at,
		   expires_at = excluded.expires_at`,
		e.Key, e.TypeID, e.Payload, e.CreatedAt, e.ExpiresAt); err != nil {
		return err
	}
	// full overwrite includes the prior tag associations
	if _, err := tx.ExecContext(ctx, `DELETE FROM entry_tags WHERE key = ?`, e.Key); err != nil {
		return err
	}
	for _, t := range e.Tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO entry_tags (key, tag) VALUES (?, ?)`, e.Key, t); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM entry_tags WHERE key = ?`, key); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key); err != nil {
		return err
	}
	return tx.Commit()
}

func (b *Backend) Clear(ctx context.Context) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM entry_tags`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return err
	}
	return tx.Commit()
}

func (b *Backend) KeysByTag(ctx context.Context, tag string) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT key FROM entry_tags WHERE tag = ?`, tag)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (b *Backend) DeleteTag(ctx context.Context, tag string) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM entry_tags WHERE tag = ?`, tag)
	return err
}

func (b *Backend) PurgeExpired(ctx context.Context, now int64) (int, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM entry_tags WHERE key IN
		   (SELECT key FROM entries WHERE expires_at != 0 AND expires_at <= ?)`, now); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM entries WHERE expires_at != 0 AND expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(n), nil
}

func (b *Backend) Close(_ context.Context) error { return b.db.Close() }
