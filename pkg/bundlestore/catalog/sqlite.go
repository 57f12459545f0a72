package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"modernc.org/sqlite" // Pure Go SQLite driver
	sqlite3 "modernc.org/sqlite/lib"
)

// IsBusy reports whether err is SQLite refusing a write because another
// connection holds the database. Such errors clear once the holder commits.
func IsBusy(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

// SQLiteCatalog persists entries to SQLite.
// It is suitable for single-host use alongside the store root.
type SQLiteCatalog struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteCatalog opens (or creates) a catalog database.
// The path should be a file path (e.g., "./catalog.db") or ":memory:" for testing.
func NewSQLiteCatalog(path string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		`CREATE TABLE IF NOT EXISTS artifacts (
			bundle_id TEXT NOT NULL,
			version_id TEXT NOT NULL,
			format_tag TEXT NOT NULL,
			size INTEGER NOT NULL,
			sha256 TEXT NOT NULL,
			state TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (bundle_id, version_id, format_tag)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_artifacts_state
		ON artifacts(bundle_id, state)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init catalog: %w", err)
		}
	}

	return &SQLiteCatalog{db: db}, nil
}

// Put implements Catalog.
func (s *SQLiteCatalog) Put(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if e.State == "" {
		e.State = StateCurrent
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts (bundle_id, version_id, format_tag, size, sha256, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(bundle_id, version_id, format_tag) DO UPDATE SET
			size = excluded.size,
			sha256 = excluded.sha256,
			state = excluded.state,
			created_at = excluded.created_at
	`, e.BundleID, e.VersionID, e.FormatTag, e.Size, e.SHA256, string(e.State),
		e.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("put artifact: %w", err)
	}
	return nil
}

// Archive implements Catalog.
func (s *SQLiteCatalog) Archive(ctx context.Context, bundleID string, versionIDs []string) error {
	if len(versionIDs) == 0 {
		return s.checkOpen()
	}
	query, args := inClause(`UPDATE artifacts SET state = ? WHERE bundle_id = ? AND version_id IN `,
		[]any{string(StateArchived), bundleID}, versionIDs)
	return s.exec(ctx, "archive artifacts", query, args...)
}

// Delete implements Catalog.
func (s *SQLiteCatalog) Delete(ctx context.Context, bundleID string, versionIDs []string) error {
	if len(versionIDs) == 0 {
		return s.checkOpen()
	}
	query, args := inClause(`DELETE FROM artifacts WHERE bundle_id = ? AND version_id IN `,
		[]any{bundleID}, versionIDs)
	return s.exec(ctx, "delete artifacts", query, args...)
}

// Forget implements Catalog.
func (s *SQLiteCatalog) Forget(ctx context.Context, bundleID string, archivedOnly bool) error {
	if archivedOnly {
		return s.exec(ctx, "forget archived artifacts",
			`DELETE FROM artifacts WHERE bundle_id = ? AND state = ?`, bundleID, string(StateArchived))
	}
	return s.exec(ctx, "forget bundle", `DELETE FROM artifacts WHERE bundle_id = ?`, bundleID)
}

// Entries implements Catalog.
func (s *SQLiteCatalog) Entries(ctx context.Context, bundleID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT version_id, format_tag, size, sha256, state, created_at
		FROM artifacts
		WHERE bundle_id = ?
		ORDER BY version_id, format_tag
	`, bundleID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e := Entry{BundleID: bundleID}
		var state, created string
		if err := rows.Scan(&e.VersionID, &e.FormatTag, &e.Size, &e.SHA256, &state, &created); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		e.State = State(state)
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return entries, nil
}

// Close implements Catalog.
func (s *SQLiteCatalog) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SQLiteCatalog) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *SQLiteCatalog) exec(ctx context.Context, what, query string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

// inClause appends "(?, ?, ...)" for ids to prefix.
func inClause(prefix string, args []any, ids []string) (string, []any) {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	for _, id := range ids {
		args = append(args, id)
	}
	return prefix + "(" + marks + ")", args
}
