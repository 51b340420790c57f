package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a single-file Store backend for development and
// single-process deployments that need to survive a process restart
// without requiring a database server: WAL mode for concurrent
// readers, a driver-level busy timeout instead of manual retry loops,
// and auto-migration on first open.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex // serializes IncrCounter and GetLocked; other row access is left to SQLite
}

// NewSQLiteStore opens (creating if absent) a SQLite database at path
// and migrates its schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("persistence: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers on one *DB beyond WAL's reader concurrency

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS kv_counters (
	name  TEXT PRIMARY KEY,
	value INTEGER NOT NULL DEFAULT 0
);
`
	_, err := s.db.Exec(ddl)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, key string, value any) error {
	return s.put(ctx, key, value)
}

func (s *SQLiteStore) SaveOrUpdate(ctx context.Context, key string, value any) error {
	return s.put(ctx, key, value)
}

func (s *SQLiteStore) put(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, data)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, key string, out any) (bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&data)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, out)
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return err
}

func (s *SQLiteStore) GetAll(ctx context.Context, keyPrefix string, newItem func() any) ([]any, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT value FROM kv WHERE key LIKE ? ESCAPE '\' ORDER BY key`, likePrefix(keyPrefix))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]any, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		item := newItem()
		if err := json.Unmarshal(data, item); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// GetUnique has no secondary index in the kv schema; it scans every row
// and decodes into a generic map, same tradeoff as MemStore.
func (s *SQLiteStore) GetUnique(ctx context.Context, field, value string, out any) (bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT value FROM kv`)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return false, err
		}
		var probe map[string]any
		if err := json.Unmarshal(data, &probe); err != nil {
			continue
		}
		v, ok := probe[field].(string)
		if !ok || v != value {
			continue
		}
		return true, json.Unmarshal(data, out)
	}
	return false, rows.Err()
}

func (s *SQLiteStore) IncrCounter(ctx context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO kv_counters (name, value) VALUES (?, 1) ON CONFLICT(name) DO UPDATE SET value = value + 1`, name)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := tx.QueryRowContext(ctx, `SELECT value FROM kv_counters WHERE name = ?`, name).Scan(&n); err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// GetLocked holds the store's in-process mutex (the one IncrCounter
// also takes) until unlock is called. SQLite's own writer serialization
// (one connection, WAL mode) already prevents corruption. Save,
// SaveOrUpdate and Delete do not take this mutex, so the lock excludes
// only other GetLocked and IncrCounter calls on the same *SQLiteStore
// in this process.
func (s *SQLiteStore) GetLocked(ctx context.Context, key string, out any) (bool, func() error, error) {
	s.mu.Lock()
	found, err := s.Get(ctx, key, out)
	if err != nil || !found {
		s.mu.Unlock()
		return found, nil, err
	}
	unlocked := false
	unlock := func() error {
		if !unlocked {
			unlocked = true
			s.mu.Unlock()
		}
		return nil
	}
	return true, unlock, nil
}

func likePrefix(prefix string) string {
	r := make([]byte, 0, len(prefix)+1)
	for i := 0; i < len(prefix); i++ {
		c := prefix[i]
		if c == '%' || c == '_' || c == '\\' {
			r = append(r, '\\')
		}
		r = append(r, c)
	}
	return string(r) + "%"
}
