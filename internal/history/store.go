// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package history persists submission runs in SQLite.
// Document payloads are never stored.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/ManuGH/xmlembed/internal/persistence/sqlite"
)

// ErrNotFound is returned for unknown submission IDs.
var ErrNotFound = errors.New("submission not found")

// Outcomes.
const (
	OutcomePending   = "pending"
	OutcomeRunning   = "running"
	OutcomeSuccess   = "success"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// Record is one submission run.
type Record struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Source     string    `json:"source"`
	State      string    `json:"state"`
	Outcome    string    `json:"outcome"`
	LastStatus int       `json:"last_status"`
	Polls      int       `json:"polls"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Done reports whether the run has ended.
func (r Record) Done() bool {
	return r.Outcome == OutcomeSuccess || r.Outcome == OutcomeCancelled || r.Outcome == OutcomeFailed
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL,
		outcome TEXT NOT NULL,
		last_status INTEGER NOT NULL DEFAULT -1,
		polls INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_submissions_created ON submissions(created_at);`,
}

// Store is the SQLite-backed history.
type Store struct {
	DB   *sql.DB
	path string
	now  func() time.Time
}

// Open opens (and migrates) the history database at path. An existing file
// is integrity-checked first; a corrupt file fails with sqlite.ErrCorrupt.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := verifyExisting(ctx, path); err != nil {
		return nil, err
	}
	db, err := sqlite.Open(path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	return newStore(ctx, db, path)
}

// OpenMemory opens a private in-memory history, used when persistence is disabled.
func OpenMemory(ctx context.Context) (*Store, error) {
	db, err := sqlite.Open(":memory:", sqlite.Config{BusyTimeout: time.Second, MaxOpenConns: 1})
	if err != nil {
		return nil, err
	}
	return newStore(ctx, db, "")
}

func verifyExisting(ctx context.Context, path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	issues, err := sqlite.VerifyIntegrity(ctx, path, "quick")
	if err != nil {
		return fmt.Errorf("history: verify %s: %w", path, err)
	}
	if issues != nil {
		return fmt.Errorf("history: %s: %w: %s", path, sqlite.ErrCorrupt, strings.Join(issues, "; "))
	}
	return nil
}

func newStore(ctx context.Context, db *sql.DB, path string) (*Store, error) {
	if err := sqlite.Migrate(ctx, db, migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &Store{DB: db, path: path, now: time.Now}, nil
}

// Path returns the database file, empty for in-memory stores.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error { return s.DB.Close() }

// Ping verifies the database is reachable and structurally sound.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.DB.PingContext(ctx); err != nil {
		return err
	}
	return sqlite.QuickCheck(ctx, s.DB)
}

// Put inserts or replaces rec. Zero timestamps are filled in.
func (s *Store) Put(ctx context.Context, rec Record) error {
	now := s.now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO submissions (id, kind, source, state, outcome, last_status, polls, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind=excluded.kind, source=excluded.source, state=excluded.state, outcome=excluded.outcome,
			last_status=excluded.last_status, polls=excluded.polls, error=excluded.error,
			updated_at=excluded.updated_at`,
		rec.ID, rec.Kind, rec.Source, rec.State, rec.Outcome, rec.LastStatus, rec.Polls, rec.Error,
		rec.CreatedAt.UnixMilli(), rec.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("history: put %s: %w", rec.ID, err)
	}
	return nil
}

// Update applies fn to the stored record inside a transaction.
func (s *Store) Update(ctx context.Context, id string, fn func(*Record) error) (Record, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, err
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := scanOne(tx.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if err != nil {
		return Record{}, err
	}
	if err := fn(&rec); err != nil {
		return Record{}, err
	}
	rec.UpdatedAt = s.now().UTC()
	_, err = tx.ExecContext(ctx, `
		UPDATE submissions SET state=?, outcome=?, last_status=?, polls=?, error=?, updated_at=?
		WHERE id=?`,
		rec.State, rec.Outcome, rec.LastStatus, rec.Polls, rec.Error, rec.UpdatedAt.UnixMilli(), id)
	if err != nil {
		return Record{}, fmt.Errorf("history: update %s: %w", id, err)
	}
	return rec, tx.Commit()
}

// Get returns the record with id or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	return scanOne(s.DB.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
}

// List returns up to limit records, newest first. A non-positive limit means 50.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, selectColumns+` ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

const selectColumns = `SELECT id, kind, source, state, outcome, last_status, polls, error, created_at, updated_at FROM submissions`

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (Record, error) {
	var rec Record
	var created, updated int64
	if err := row.Scan(&rec.ID, &rec.Kind, &rec.Source, &rec.State, &rec.Outcome,
		&rec.LastStatus, &rec.Polls, &rec.Error, &created, &updated); err != nil {
		return Record{}, err
	}
	rec.CreatedAt = time.UnixMilli(created).UTC()
	rec.UpdatedAt = time.UnixMilli(updated).UTC()
	return rec, nil
}

func scanOne(row *sql.Row) (Record, error) {
	rec, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}
