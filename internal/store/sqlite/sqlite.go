/*
Package sqlite provides a SQLite-backed implementation of the run store.

KEY TABLES:

	runs:        One row per reconciliation run and its lifecycle status
	run_files:   Uploaded inputs and generated workbooks
	run_metrics: Counts of a finished execution (one per run)
	exceptions:  Flagged records with their review state

STATUS CHANGES:

	Every status change is a conditional UPDATE on the expected current
	status. Zero affected rows means the run is missing or was moved by
	someone else, reported as store.ErrNotFound or store.ErrConflict.

CONCURRENCY:

	Uses sync.RWMutex for thread-safety, with WAL journaling so readers
	never block on the single writer.

USAGE:

	st, err := sqlite.New("./data/filingsync.db")
	if err != nil {
	    log.Fatal(err)
	}
	defer st.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ginjaninja78/filingsync/internal/store"
	"github.com/ginjaninja78/filingsync/internal/types"
	_ "github.com/mattn/go-sqlite3"
)

// Store implements the run store using SQLite.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	st := &Store{db: db, now: time.Now}
	if err := st.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return st, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		year INTEGER NOT NULL CHECK (year >= 2020 AND year <= 2100),
		category TEXT NOT NULL CHECK (category IN ('annual', 'financial')),
		status TEXT NOT NULL DEFAULT 'uploading'
			CHECK (status IN ('uploading', 'processing', 'review', 'completed', 'failed')),
		notes TEXT,
		created_at TEXT NOT NULL,
		started_at TEXT,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_year_category
		ON runs(year, category);

	CREATE TABLE IF NOT EXISTS run_files (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		role TEXT NOT NULL CHECK (role IN
			('source_a_upload', 'source_b_upload', 'import_output', 'change_report', 'exceptions_report')),
		original_name TEXT NOT NULL,
		stored_path TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		mime_type TEXT,
		uploaded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_run_files_run
		ON run_files(run_id, role);

	CREATE TABLE IF NOT EXISTS run_metrics (
		run_id TEXT PRIMARY KEY REFERENCES runs(id) ON DELETE CASCADE,
		total_a INTEGER NOT NULL DEFAULT 0,
		total_b INTEGER NOT NULL DEFAULT 0,
		matched INTEGER NOT NULL DEFAULT 0,
		unmatched INTEGER NOT NULL DEFAULT 0,
		changed INTEGER NOT NULL DEFAULT 0,
		unchanged INTEGER NOT NULL DEFAULT 0,
		status_completed INTEGER NOT NULL DEFAULT 0,
		status_preserved INTEGER NOT NULL DEFAULT 0,
		status_anomaly INTEGER NOT NULL DEFAULT 0,
		processing_seconds REAL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS exceptions (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		kind TEXT NOT NULL CHECK (kind IN ('no_counterpart_match', 'duplicate_key', 'status_anomaly')),
		severity TEXT NOT NULL DEFAULT 'medium',
		source_a_ref TEXT,
		source_b_ref TEXT,
		name TEXT,
		description TEXT NOT NULL,
		fields_json TEXT,
		resolution TEXT NOT NULL DEFAULT 'pending'
			CHECK (resolution IN ('pending', 'acknowledged', 'dismissed')),
		note TEXT,
		resolved_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_exceptions_run
		ON exceptions(run_id, kind, resolution);
	`

	_, err := s.db.Exec(schema)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// RUNS
// =============================================================================

const runColumns = `id, year, category, status, notes, created_at, started_at, completed_at`

// CreateRun inserts a new run.
func (s *Store) CreateRun(ctx context.Context, run *store.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Year,
		string(run.Category),
		string(run.Status),
		nullString(run.Notes),
		formatTime(run.CreatedAt),
		formatTimePtr(run.StartedAt),
		formatTimePtr(run.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// GetRun returns one run.
func (s *Store) GetRun(ctx context.Context, id string) (*store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, store.ErrNotFound)
	}
	return run, err
}

// ListRuns returns runs, newest first.
func (s *Store) ListRuns(ctx context.Context, filter store.RunFilter) ([]store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any
	if filter.Year != 0 {
		where = append(where, "year = ?")
		args = append(args, filter.Year)
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(filter.Category))
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, max(filter.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []store.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and everything attached to it. Completed and
// processing runs cannot be deleted.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, err := s.unlockedStatus(ctx, s.db, id)
	if err != nil {
		return err
	}
	if status == store.StatusProcessing {
		return fmt.Errorf("%w: run %s is processing", store.ErrConflict, id)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

// TransitionStatus moves a run from one status to another if, and only if,
// its current status is from.
func (s *Store) TransitionStatus(ctx context.Context, id string, from, to store.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.transition(ctx, s.db, id, from, to)
}

func (s *Store) transition(ctx context.Context, db interface {
	execer
	queryer
}, id string, from, to store.RunStatus) error {
	if !store.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s is not allowed", store.ErrConflict, from, to)
	}

	now := formatTime(s.now())
	query := `UPDATE runs SET status = ?`
	args := []any{string(to)}
	switch to {
	case store.StatusProcessing:
		query += `, started_at = ?`
		args = append(args, now)
	case store.StatusReview, store.StatusCompleted, store.StatusFailed:
		query += `, completed_at = ?`
		args = append(args, now)
	}
	query += ` WHERE id = ? AND status = ?`
	args = append(args, id, string(from))

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	var current string
	err = db.QueryRowContext(ctx, `SELECT status FROM runs WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("run %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read run status: %w", err)
	}
	return fmt.Errorf("%w: run %s is %s, expected %s", store.ErrConflict, id, current, from)
}

// unlockedStatus returns the status of a run that is not completed.
func (s *Store) unlockedStatus(ctx context.Context, db queryer, id string) (store.RunStatus, error) {
	var status string
	err := db.QueryRowContext(ctx, `SELECT status FROM runs WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("run %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read run status: %w", err)
	}
	if store.RunStatus(status) == store.StatusCompleted {
		return "", fmt.Errorf("run %s: %w", id, store.ErrRunLocked)
	}
	return store.RunStatus(status), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*store.Run, error) {
	var (
		run                store.Run
		category, status   string
		notes              sql.NullString
		created            string
		started, completed sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Year, &category, &status, &notes, &created, &started, &completed); err != nil {
		return nil, err
	}
	run.Category = types.Category(category)
	run.Status = store.RunStatus(status)
	run.Notes = notes.String
	run.CreatedAt = parseTime(created)
	run.StartedAt = parseTimePtr(started)
	run.CompletedAt = parseTimePtr(completed)
	return &run, nil
}

// =============================================================================
// FILES
// =============================================================================

const fileColumns = `id, run_id, role, original_name, stored_path, size_bytes, mime_type, uploaded_at`

// AddUpload records an uploaded input, replacing an earlier upload of the
// same role. Uploads are accepted only while the run is uploading.
func (s *Store) AddUpload(ctx context.Context, file store.RunFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !file.Role.IsUpload() {
		return fmt.Errorf("%w: %s is not an upload role", store.ErrInvalid, file.Role)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	status, err := s.unlockedStatus(ctx, tx, file.RunID)
	if err != nil {
		return err
	}
	if status != store.StatusUploading {
		return fmt.Errorf("%w: run %s is %s, uploads need %s", store.ErrConflict, file.RunID, status, store.StatusUploading)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_files WHERE run_id = ? AND role = ?`, file.RunID, string(file.Role)); err != nil {
		return fmt.Errorf("failed to replace upload: %w", err)
	}
	if err := insertFile(ctx, tx, file); err != nil {
		return err
	}
	return tx.Commit()
}

func insertFile(ctx context.Context, db execer, f store.RunFile) error {
	_, err := db.ExecContext(ctx, `INSERT INTO run_files (`+fileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID,
		f.RunID,
		string(f.Role),
		f.OriginalName,
		f.StoredPath,
		f.SizeBytes,
		nullString(f.MimeType),
		formatTime(f.UploadedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert file: %w", err)
	}
	return nil
}

// ListFiles returns the files of a run, uploads first.
func (s *Store) ListFiles(ctx context.Context, runID string) ([]store.RunFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM run_files WHERE run_id = ? ORDER BY uploaded_at, role`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	var files []store.RunFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, *f)
	}
	return files, rows.Err()
}

// GetFile returns one file of a run.
func (s *Store) GetFile(ctx context.Context, runID, fileID string) (*store.RunFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM run_files WHERE run_id = ? AND id = ?`, runID, fileID)
	f, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file %s: %w", fileID, store.ErrNotFound)
	}
	return f, err
}

func scanFile(row scanner) (*store.RunFile, error) {
	var (
		f        store.RunFile
		role     string
		mime     sql.NullString
		uploaded string
	)
	if err := row.Scan(&f.ID, &f.RunID, &role, &f.OriginalName, &f.StoredPath, &f.SizeBytes, &mime, &uploaded); err != nil {
		return nil, err
	}
	f.Role = store.FileRole(role)
	f.MimeType = mime.String
	f.UploadedAt = parseTime(uploaded)
	return &f, nil
}

// =============================================================================
// EXECUTION OUTCOME
// =============================================================================

// SaveOutcome stores the result of an execution and moves the run from
// processing to the given status in one transaction.
func (s *Store) SaveOutcome(ctx context.Context, runID string, to store.RunStatus, metrics store.Metrics, files []store.RunFile, exceptions []store.ExceptionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.transition(ctx, tx, runID, store.StatusProcessing, to); err != nil {
		return err
	}

	c := metrics.Counts
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO run_metrics
		(run_id, total_a, total_b, matched, unmatched, changed, unchanged,
		 status_completed, status_preserved, status_anomaly, processing_seconds, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, c.TotalA, c.TotalB, c.Matched, c.Unmatched, c.Changed, c.Unchanged,
		c.StatusCompleted, c.StatusPreserved, c.StatusAnomaly, metrics.ProcessingSeconds,
		formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("failed to save metrics: %w", err)
	}

	for _, f := range files {
		if err := insertFile(ctx, tx, f); err != nil {
			return err
		}
	}
	for _, e := range exceptions {
		if err := insertException(ctx, tx, e); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetMetrics returns the metrics of an executed run.
func (s *Store) GetMetrics(ctx context.Context, runID string) (*store.Metrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		m       store.Metrics
		seconds sql.NullFloat64
	)
	c := &m.Counts
	err := s.db.QueryRowContext(ctx, `
		SELECT total_a, total_b, matched, unmatched, changed, unchanged,
		       status_completed, status_preserved, status_anomaly, processing_seconds
		FROM run_metrics WHERE run_id = ?`, runID).Scan(
		&c.TotalA, &c.TotalB, &c.Matched, &c.Unmatched, &c.Changed, &c.Unchanged,
		&c.StatusCompleted, &c.StatusPreserved, &c.StatusAnomaly, &seconds,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("metrics for run %s: %w", runID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metrics: %w", err)
	}
	m.ProcessingSeconds = seconds.Float64
	return &m, nil
}

// =============================================================================
// EXCEPTIONS
// =============================================================================

const exceptionColumns = `id, run_id, kind, severity, source_a_ref, source_b_ref, name, description,
	fields_json, resolution, note, resolved_at, created_at`

func insertException(ctx context.Context, db execer, e store.ExceptionRecord) error {
	var fieldsJSON sql.NullString
	if len(e.Fields) > 0 {
		data, err := json.Marshal(e.Fields)
		if err != nil {
			return fmt.Errorf("failed to encode exception fields: %w", err)
		}
		fieldsJSON = sql.NullString{String: string(data), Valid: true}
	}

	_, err := db.ExecContext(ctx, `INSERT INTO exceptions (`+exceptionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.RunID,
		string(e.Kind),
		string(e.Severity),
		nullString(e.SourceARef),
		nullString(e.SourceBRef),
		nullString(e.Name),
		e.Description,
		fieldsJSON,
		string(e.Resolution),
		nullString(e.Note),
		formatTimePtr(e.ResolvedAt),
		formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert exception: %w", err)
	}
	return nil
}

// ListExceptions returns the exceptions of a run in creation order.
func (s *Store) ListExceptions(ctx context.Context, runID string, filter store.ExceptionFilter) ([]store.ExceptionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + exceptionColumns + ` FROM exceptions WHERE run_id = ?`
	args := []any{runID}
	if filter.Kind != "" {
		query += " AND kind = ?"
		args = append(args, string(filter.Kind))
	}
	if filter.Resolution != "" {
		query += " AND resolution = ?"
		args = append(args, string(filter.Resolution))
	}
	query += " ORDER BY rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list exceptions: %w", err)
	}
	defer rows.Close()

	var out []store.ExceptionRecord
	for rows.Next() {
		e, err := scanException(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// ResolveException sets the review state of one exception.
func (s *Store) ResolveException(ctx context.Context, runID, exceptionID string, resolution store.Resolution, note string) (*store.ExceptionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.unlockedStatus(ctx, tx, runID); err != nil {
		return nil, err
	}

	query := `UPDATE exceptions SET resolution = ?, resolved_at = ?`
	args := []any{string(resolution), resolvedAt(resolution, s.now())}
	if note != "" {
		query += `, note = ?`
		args = append(args, note)
	}
	query += ` WHERE run_id = ? AND id = ?`
	args = append(args, runID, exceptionID)

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve exception: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("exception %s: %w", exceptionID, store.ErrNotFound)
	}

	e, err := scanException(tx.QueryRowContext(ctx,
		`SELECT `+exceptionColumns+` FROM exceptions WHERE id = ?`, exceptionID))
	if err != nil {
		return nil, err
	}
	return e, tx.Commit()
}

// ResolvePending sets the review state of every pending exception of a run
// and returns how many changed.
func (s *Store) ResolvePending(ctx context.Context, runID string, resolution store.Resolution) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.unlockedStatus(ctx, tx, runID); err != nil {
		return 0, err
	}
	if resolution == store.ResolutionPending {
		return 0, tx.Commit()
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE exceptions SET resolution = ?, resolved_at = ? WHERE run_id = ? AND resolution = 'pending'`,
		string(resolution), resolvedAt(resolution, s.now()), runID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve exceptions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), tx.Commit()
}

func resolvedAt(r store.Resolution, now time.Time) sql.NullString {
	if r == store.ResolutionPending {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(now), Valid: true}
}

func scanException(row scanner) (*store.ExceptionRecord, error) {
	var (
		e                store.ExceptionRecord
		kind, severity   string
		aRef, bRef, name sql.NullString
		fieldsJSON       sql.NullString
		resolution       string
		note, resolved   sql.NullString
		created          string
	)
	if err := row.Scan(&e.ID, &e.RunID, &kind, &severity, &aRef, &bRef, &name, &e.Description,
		&fieldsJSON, &resolution, &note, &resolved, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("exception: %w", store.ErrNotFound)
		}
		return nil, err
	}
	e.Kind = types.ExceptionKind(kind)
	e.Severity = store.Severity(severity)
	e.SourceARef = aRef.String
	e.SourceBRef = bRef.String
	e.Name = name.String
	e.Resolution = store.Resolution(resolution)
	e.Note = note.String
	e.ResolvedAt = parseTimePtr(resolved)
	e.CreatedAt = parseTime(created)
	if fieldsJSON.Valid {
		if err := json.Unmarshal([]byte(fieldsJSON.String), &e.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode exception fields: %w", err)
		}
	}
	return &e, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}
