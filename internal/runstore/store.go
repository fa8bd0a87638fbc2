// Package runstore records evaluation and tuning runs in SQLite.
package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("runstore: run not found")

// Run is one scored decoding pass over a manifest.
type Run struct {
	ID         string
	CreatedAt  time.Time
	Mode       string // greedy or beam
	Manifest   string
	BeamSize   int
	Alpha      float64
	Beta       float64
	Utterances int
	CER        float64
	WER        float64
	Exact      float64 // fraction of utterances decoded exactly
}

// Store persists runs.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	mode       TEXT NOT NULL,
	manifest   TEXT NOT NULL DEFAULT '',
	beam_size  INTEGER NOT NULL DEFAULT 0,
	alpha      REAL NOT NULL DEFAULT 0,
	beta       REAL NOT NULL DEFAULT 0,
	utterances INTEGER NOT NULL,
	cer        REAL NOT NULL,
	wer        REAL NOT NULL,
	exact      REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_wer ON runs (wer, cer);
`

// Open opens or creates the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts run, assigning ID and CreatedAt when unset.
func (s *Store) Record(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `INSERT INTO runs
			(id, created_at, mode, manifest, beam_size, alpha, beta, utterances, cer, wer, exact)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, run.CreatedAt.Format(time.RFC3339Nano), run.Mode, run.Manifest,
			run.BeamSize, run.Alpha, run.Beta, run.Utterances, run.CER, run.WER, run.Exact)
		return err
	})
}

const selectColumns = `SELECT id, created_at, mode, manifest, beam_size, alpha, beta, utterances, cer, wer, exact FROM runs`

// Get returns the run with the given id.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run, err
}

// Best returns up to limit runs with the lowest WER, ties broken by CER
// then recency. An empty mode matches every mode.
func (s *Store) Best(ctx context.Context, mode string, limit int) ([]*Run, error) {
	return s.query(ctx, mode, "wer ASC, cer ASC, created_at DESC", limit)
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, mode string, limit int) ([]*Run, error) {
	return s.query(ctx, mode, "created_at DESC", limit)
}

func (s *Store) query(ctx context.Context, mode, order string, limit int) ([]*Run, error) {
	var (
		where []string
		args  []any
	)
	if mode != "" {
		where = append(where, "mode = ?")
		args = append(args, mode)
	}
	q := selectColumns
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY " + order
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run     Run
		created string
	)
	if err := scanner.Scan(&run.ID, &created, &run.Mode, &run.Manifest, &run.BeamSize,
		&run.Alpha, &run.Beta, &run.Utterances, &run.CER, &run.WER, &run.Exact); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	run.CreatedAt = t
	return &run, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := range busyRetryAttempts {
		lastErr = op()
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, busyRetryMaxBackoff)
	}
	return lastErr
}
