package backend

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"
)

type sqliteBackend struct {
	db *sql.DB
}

var _ Backend = (*sqliteBackend)(nil)

// NewSQLite opens the relational store at path. If path is empty or
// ":memory:", an in-memory database is used. Each entry is one row, so
// lookups and overwrites touch only the key involved.
func NewSQLite(ctx context.Context, path string) (Backend, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "backend: open sqlite %s", path)
	}

	// Enable WAL mode for better concurrent read performance. A failure
	// here means the file is not a usable database.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Mark(errors.Wrapf(err, "backend: init sqlite %s", path), ErrCorrupted)
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS cache (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		expires_at INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, errors.Mark(errors.Wrapf(err, "backend: init sqlite %s", path), ErrCorrupted)
	}

	// Index for expiry-ordered scans (the prune path).
	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_cache_expires_at ON cache(expires_at)`); err != nil {
		db.Close()
		return nil, errors.Mark(errors.Wrapf(err, "backend: init sqlite %s", path), ErrCorrupted)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Get(ctx context.Context, key string) (Entry, bool, error) {
	var value []byte
	var expiresAt int64
	err := b.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM cache WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, errors.Wrapf(err, "backend: get %s", key)
	}
	return Entry{Value: value, ExpiresAt: time.Unix(0, expiresAt)}, true, nil
}

func (b *sqliteBackend) Put(ctx context.Context, key string, value []byte, expiresAt time.Time) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO cache (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt.UnixNano(),
	)
	return errors.Wrapf(err, "backend: put %s", key)
}

func (b *sqliteBackend) Delete(ctx context.Context, key string) (bool, error) {
	result, err := b.db.ExecContext(ctx, `DELETE FROM cache WHERE key = ?`, key)
	if err != nil {
		return false, errors.Wrapf(err, "backend: delete %s", key)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "backend: delete")
	}
	return rows > 0, nil
}

func (b *sqliteBackend) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	result, err := b.db.ExecContext(ctx,
		`DELETE FROM cache WHERE key LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%",
	)
	if err != nil {
		return 0, errors.Wrapf(err, "backend: delete prefix %s", prefix)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "backend: delete prefix")
	}
	return int(rows), nil
}

func (b *sqliteBackend) List(ctx context.Context, prefix string) ([]Item, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT key, value, expires_at FROM cache WHERE key LIKE ? ESCAPE '\' ORDER BY key`,
		escapeLike(prefix)+"%",
	)
	if err != nil {
		return nil, errors.Wrap(err, "backend: list")
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		var expiresAt int64
		if err := rows.Scan(&it.Key, &it.Entry.Value, &expiresAt); err != nil {
			return nil, errors.Wrap(err, "backend: list")
		}
		it.Entry.ExpiresAt = time.Unix(0, expiresAt)
		items = append(items, it)
	}
	return items, errors.Wrap(rows.Err(), "backend: list")
}

func (b *sqliteBackend) Codec() Codec {
	return msgpackCodec{}
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}

// escapeLike escapes LIKE metacharacters so a prefix matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
