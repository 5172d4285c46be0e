// Package sqlite persists sessions in a SQLite database.
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

	"github.com/vitrina-app/vitrina/internal/domain/session"
)

const schema = `CREATE TABLE IF NOT EXISTS session_records (
	storage_key   TEXT PRIMARY KEY,
	access_token  TEXT NOT NULL,
	refresh_token TEXT NOT NULL DEFAULT '',
	updated_at    INTEGER NOT NULL
)`

// Store keeps one session record per storage key.
type Store struct {
	sqlDB *sql.DB
	key   string
}

var _ session.Storage = (*Store)(nil)

// Open opens the database at path, creating the schema if needed. An empty
// key selects session.StorageKey.
func Open(path, key string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if key == "" {
		key = session.StorageKey
	}

	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
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
	return &Store{sqlDB: sqlDB, key: key}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Load returns the stored session for the key.
func (s *Store) Load(ctx context.Context) (session.Session, bool, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT access_token, refresh_token FROM session_records WHERE storage_key = ?`,
		s.key,
	)
	var sess session.Session
	if err := row.Scan(&sess.AccessToken, &sess.RefreshToken); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Session{}, false, nil
		}
		return session.Session{}, false, fmt.Errorf("load session: %w", err)
	}
	if sess.IsZero() {
		return session.Session{}, false, nil
	}
	return sess, true, nil
}

// Save upserts the session for the key.
func (s *Store) Save(ctx context.Context, sess session.Session) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO session_records (storage_key, access_token, refresh_token, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(storage_key) DO UPDATE SET
		    access_token = excluded.access_token,
		    refresh_token = excluded.refresh_token,
		    updated_at = excluded.updated_at`,
		s.key, sess.AccessToken, sess.RefreshToken, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Clear deletes the record for the key.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM session_records WHERE storage_key = ?`, s.key); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
