// Package journal keeps a local SQLite record of every plan dave disclosed
// and what happened to each action.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

// Run statuses.
const (
	RunStatusOpen      = "open"
	RunStatusPreviewed = "previewed"
	RunStatusApplied   = "applied"
	RunStatusFailed    = "failed"
	RunStatusCanceled  = "canceled"
)

// Run is one gated plan execution.
type Run struct {
	ID         string     `json:"id"`
	Tool       string     `json:"tool"`
	Title      string     `json:"title"`
	Mode       string     `json:"mode"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// ActionRecord is the persisted outcome of one action.
type ActionRecord struct {
	ID         string    `json:"id"`
	RunID      string    `json:"run_id"`
	Seq        int       `json:"seq"`
	Kind       string    `json:"kind"`
	Summary    string    `json:"summary"`
	Target     string    `json:"target,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ErrNotFound is returned when a run id does not match anything.
var ErrNotFound = errors.New("run not found")

// Store is the SQLite-backed journal.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewStore creates a store. Call Open before use.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{logger: logger}
}

// Open opens (creating if needed) the journal at path.
// Use ":memory:" for an in-memory journal.
func (s *Store) Open(path string) error {
	dsn := ":memory:?_pragma=foreign_keys(1)"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create journal directory: %w", err)
			}
		}
		dsn = "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	// One connection keeps :memory: databases coherent and writes serialized.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to open journal %s: %w", path, err)
	}

	s.db = db
	s.path = path
	s.logger.Debug("journal opened", slog.String("path", path))
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the path the journal was opened with.
func (s *Store) Path() string {
	return s.path
}

func generateID() string {
	return uuid.NewString()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// StartRun opens a new run record.
func (s *Store) StartRun(ctx context.Context, tool, title, mode string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("journal not opened")
	}

	run := &Run{
		ID:        generateID(),
		Tool:      tool,
		Title:     title,
		Mode:      mode,
		Status:    RunStatusOpen,
		StartedAt: time.Now().UTC(),
	}

	s.logger.Debug("starting run", slog.String("id", run.ID), slog.String("tool", tool))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, tool, title, mode, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Tool, run.Title, run.Mode, run.Status, formatTime(run.StartedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	return run, nil
}

// RecordAction stores one action outcome for a run.
func (s *Store) RecordAction(ctx context.Context, a *ActionRecord) error {
	if s.db == nil {
		return fmt.Errorf("journal not opened")
	}
	if a.ID == "" {
		a.ID = generateID()
	}
	if a.RecordedAt.IsZero() {
		a.RecordedAt = time.Now().UTC()
	}

	var errMsg *string
	if a.Error != "" {
		errMsg = &a.Error
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO actions (id, run_id, seq, kind, summary, target, status, error, duration_ms, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.RunID, a.Seq, a.Kind, a.Summary, a.Target, a.Status, errMsg, a.DurationMS, formatTime(a.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record action: %w", err)
	}
	return nil
}

// FinishRun closes a run with its final status.
func (s *Store) FinishRun(ctx context.Context, id, status, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("journal not opened")
	}

	var errPtr *string
	if errMsg != "" {
		errPtr = &errMsg
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, errPtr, formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

const runColumns = `id, tool, title, mode, status, error, started_at, finished_at`

func scanRun(row interface{ Scan(...any) error }) (*Run, error) {
	var (
		run        Run
		errMsg     sql.NullString
		startedAt  string
		finishedAt sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Tool, &run.Title, &run.Mode, &run.Status, &errMsg, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	run.Error = errMsg.String
	run.StartedAt = parseTime(startedAt)
	if finishedAt.Valid {
		t := parseTime(finishedAt.String)
		run.FinishedAt = &t
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("journal not opened")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns the run whose id equals or starts with idOrPrefix.
// An ambiguous prefix is an error.
func (s *Store) GetRun(ctx context.Context, idOrPrefix string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("journal not opened")
	}
	idOrPrefix = strings.TrimSpace(idOrPrefix)
	if idOrPrefix == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? ESCAPE '\' ORDER BY id LIMIT 2`,
		idOrPrefix, escapeLike(idOrPrefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var found []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch {
	case len(found) == 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, idOrPrefix)
	case len(found) > 1 && found[0].ID != idOrPrefix:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", idOrPrefix)
	}
	return found[0], nil
}

// ListActions returns the actions of a run in execution order.
func (s *Store) ListActions(ctx context.Context, runID string) ([]*ActionRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("journal not opened")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, seq, kind, summary, target, status, error, duration_ms, recorded_at
		 FROM actions WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*ActionRecord
	for rows.Next() {
		var (
			a          ActionRecord
			errMsg     sql.NullString
			recordedAt string
		)
		if err := rows.Scan(&a.ID, &a.RunID, &a.Seq, &a.Kind, &a.Summary, &a.Target, &a.Status,
			&errMsg, &a.DurationMS, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		a.Error = errMsg.String
		a.RecordedAt = parseTime(recordedAt)
		out = append(out, &a)
	}
	return out, rows.Err()
}

// escapeLike makes s match literally in a LIKE pattern with ESCAPE '\'.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return r.Replace(s)
}
