// Package store persists the press log in SQLite: one row per press plus an
// offset counting presses made before timestamps were recorded.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	_ "modernc.org/sqlite" // SQLite driver.
)

const offsetKey = "offset"

// Store wraps SQLite access for the press log.
type Store struct {
	db *sqlx.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer, one reader at a time: the appliance never needs more, and a
	// single connection keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// AppendEvent records one press. The row is visible to AllTimestamps once
// this returns nil.
func (s *Store) AppendEvent(ctx context.Context, t time.Time) error {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO logs (timestamp) VALUES (?)`, formatTimestamp(t)); err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	return nil
}

// AllTimestamps returns every logged press in insertion order.
func (s *Store) AllTimestamps(ctx context.Context) ([]time.Time, error) {
	var raw []string
	if err := s.db.SelectContext(ctx, &raw, `SELECT timestamp FROM logs ORDER BY id ASC`); err != nil {
		return nil, fmt.Errorf("select logs: %w", err)
	}
	out := make([]time.Time, 0, len(raw))
	for _, r := range raw {
		t, err := ParseTimestamp(r)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Count returns the number of logged presses.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM logs`); err != nil {
		return 0, fmt.Errorf("count logs: %w", err)
	}
	return n, nil
}

// Offset returns the pre-history press count, 0 if never set.
func (s *Store) Offset(ctx context.Context) (int, error) {
	var v string
	err := s.db.GetContext(ctx, &v, `SELECT value FROM meta WHERE key = ?`, offsetKey)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select offset: %w", err)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse offset %q: %w", v, err)
	}
	return n, nil
}

// SetOffset stores the pre-history press count.
func (s *Store) SetOffset(ctx context.Context, n int) error {
	if n < 0 {
		return fmt.Errorf("offset must be non-negative, got %d", n)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, offsetKey, strconv.Itoa(n)); err != nil {
		return fmt.Errorf("store offset: %w", err)
	}
	return nil
}

func formatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// Layouts accepted when reading timestamps back. Rows written by older
// versions carry no zone and are read as local time.
var legacyLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp reads a stored timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range legacyLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q: unrecognised format", s)
}
