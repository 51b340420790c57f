package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is the production Store backend: a connection-pooled
// relational store so multiple engine instances can share one case
// population, backed by transactional counters and an opaque kv
// schema.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens a pooled connection to dsn (see
// github.com/go-sql-driver/mysql for DSN format) and migrates the
// schema.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("persistence: open mysql: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	s := &MySQLStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS kv (
	` + "`key`" + ` VARCHAR(512) PRIMARY KEY,
	value     LONGBLOB NOT NULL
) ENGINE=InnoDB;
CREATE TABLE IF NOT EXISTS kv_counters (
	name  VARCHAR(255) PRIMARY KEY,
	value BIGINT NOT NULL DEFAULT 0
) ENGINE=InnoDB;
`
	for _, stmt := range strings.Split(ddl, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *MySQLStore) Close() error {
	return s.db.Close()
}

func (s *MySQLStore) Save(ctx context.Context, key string, value any) error {
	return s.put(ctx, key, value)
}

func (s *MySQLStore) SaveOrUpdate(ctx context.Context, key string, value any) error {
	return s.put(ctx, key, value)
}

func (s *MySQLStore) put(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO kv (`key`, value) VALUES (?, ?) ON DUPLICATE KEY UPDATE value = VALUES(value)",
		key, data)
	return err
}

func (s *MySQLStore) Get(ctx context.Context, key string, out any) (bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE `key` = ?", key).Scan(&data)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, out)
}

func (s *MySQLStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE `key` = ?", key)
	return err
}

func (s *MySQLStore) GetAll(ctx context.Context, keyPrefix string, newItem func() any) ([]any, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT value FROM kv WHERE `key` LIKE ? ORDER BY `key`", escapeLike(keyPrefix)+"%")
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

func (s *MySQLStore) GetUnique(ctx context.Context, field, value string, out any) (bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT value FROM kv")
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

func (s *MySQLStore) IncrCounter(ctx context.Context, name string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO kv_counters (name, value) VALUES (?, 1) ON DUPLICATE KEY UPDATE value = value + 1", name)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := tx.QueryRowContext(ctx, "SELECT value FROM kv_counters WHERE name = ?", name).Scan(&n); err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// GetLocked uses MySQL's named locks (GET_LOCK/RELEASE_LOCK) so two
// engine instances pointed at the same database serialize on the same
// key, not just the same process — the one piece of the Store
// interface's optional distributed-locking contract MemStore and
// SQLiteStore cannot honor across processes.
func (s *MySQLStore) GetLocked(ctx context.Context, key string, out any) (bool, func() error, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return false, nil, err
	}

	var got int
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, 10)", key).Scan(&got); err != nil {
		conn.Close()
		return false, nil, err
	}
	if got != 1 {
		conn.Close()
		return false, nil, fmt.Errorf("persistence: could not acquire lock on %s", key)
	}

	var data []byte
	err = conn.QueryRowContext(ctx, "SELECT value FROM kv WHERE `key` = ?", key).Scan(&data)
	if err == sql.ErrNoRows {
		conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", key)
		conn.Close()
		return false, nil, nil
	}
	if err != nil {
		conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", key)
		conn.Close()
		return false, nil, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", key)
		conn.Close()
		return false, nil, err
	}

	unlocked := false
	unlock := func() error {
		if unlocked {
			return nil
		}
		unlocked = true
		defer conn.Close()
		_, err := conn.ExecContext(ctx, "SELECT RELEASE_LOCK(?)", key)
		return err
	}
	return true, unlock, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer("\\", "\\\\", "%", "\\%", "_", "\\_")
	return r.Replace(s)
}
