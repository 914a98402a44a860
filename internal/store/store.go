// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver.
)

// DefaultScope is the durable scope the quiz writes to.
// Bumping the version abandons data stored under the previous name.
const DefaultScope = "score-store-v1"

// Store is a durable key-value byte store bound to one named scope.
type Store struct {
	db    *sql.DB
	scope string
}

// ScopeInfo describes a scope present in the database file.
type ScopeInfo struct {
	Name      string
	Keys      int
	UpdatedAt time.Time
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path, scope string) (*Store, error) {
	if scope == "" {
		return nil, fmt.Errorf("store scope is empty")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection keeps per-key writes atomic without busy errors.
	db.SetMaxOpenConns(1)
	store := &Store{db: db, scope: scope}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Scope returns the scope this store reads and writes.
func (s *Store) Scope() string {
	return s.scope
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			scope TEXT NOT NULL,
			key TEXT NOT NULL,
			value BLOB NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (scope, key)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the value stored under key. The bool is false when the key is absent.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM entries WHERE scope = ? AND key = ?`, s.scope, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Put stores value under key, replacing any previous value.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (scope, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.scope, key, value, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE scope = ? AND key = ?`, s.scope, key)
	return err
}

// Scopes lists every scope with stored entries, including abandoned ones.
func (s *Store) Scopes(ctx context.Context) ([]ScopeInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT scope, COUNT(*), MAX(updated_at) FROM entries GROUP BY scope ORDER BY scope`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []ScopeInfo
	for rows.Next() {
		var info ScopeInfo
		var updatedAt string
		if err := rows.Scan(&info.Name, &info.Keys, &updatedAt); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, updatedAt)
		if err != nil {
			return nil, err
		}
		info.UpdatedAt = parsed
		result = append(result, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// DropScope deletes every entry stored under scope and reports how many were removed.
func (s *Store) DropScope(ctx context.Context, scope string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE scope = ?`, scope)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
