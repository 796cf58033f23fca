// Package sqlite provides a file-backed guest KV store on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"insightboard/internal/domain/repositories"
)

const schema = `
CREATE TABLE IF NOT EXISTS guest_kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0
)`

// KVStore persists guest blobs in a single SQLite table. Expired rows read as
// missing and are purged by Sweep.
type KVStore struct {
	sqlDB *sql.DB
	ttl   time.Duration
	now   func() time.Time
}

// Open opens (creating if needed) the store at path. A zero ttl keeps rows
// forever.
func Open(path string, ttl time.Duration) (*KVStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &KVStore{sqlDB: sqlDB, ttl: ttl, now: time.Now}, nil
}

// Close releases the SQLite connection.
func (s *KVStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var expiresAt int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT value, expires_at FROM guest_kv WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	if expiresAt != 0 && s.now().Unix() >= expiresAt {
		return nil, false, nil
	}
	return value, true, nil
}

func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO guest_kv (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, s.expiry(),
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Update runs the cycle in one transaction. Transactions begin IMMEDIATE, so
// the write lock is taken before the read and concurrent cycles queue behind
// busy_timeout instead of interleaving.
func (s *KVStore) Update(ctx context.Context, key string, fn repositories.UpdateFunc) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update %s: begin: %w", key, err)
	}
	defer func() { _ = tx.Rollback() }()

	var current []byte
	var expiresAt int64
	found := true
	err = tx.QueryRowContext(ctx, `SELECT value, expires_at FROM guest_kv WHERE key = ?`, key).Scan(&current, &expiresAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		found = false
	case err != nil:
		return fmt.Errorf("update %s: read: %w", key, err)
	case expiresAt != 0 && s.now().Unix() >= expiresAt:
		current, found = nil, false
	}

	next, err := fn(current, found)
	if errors.Is(err, repositories.ErrKeepValue) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO guest_kv (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, next, s.expiry(),
	); err != nil {
		return fmt.Errorf("update %s: write: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update %s: commit: %w", key, err)
	}
	return nil
}

func (s *KVStore) expiry() int64 {
	if s.ttl > 0 {
		return s.now().Add(s.ttl).Unix()
	}
	return 0
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM guest_kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Sweep deletes expired rows and returns how many were removed.
func (s *KVStore) Sweep(ctx context.Context) (int64, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM guest_kv WHERE expires_at != 0 AND expires_at <= ?`, s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}
	return res.RowsAffected()
}
