// Package history keeps a SQLite ledger of conversion jobs.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/andresfredes/pdf2ppt/internal/domain"
)

// Common errors
var (
	ErrNotFound = errors.New("record not found")
)

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Record is one job as stored in the ledger.
type Record struct {
	ID          uuid.UUID               `json:"id"`
	SourcePath  string                  `json:"source_path"`
	OutputPath  string                  `json:"output_path,omitempty"`
	State       domain.JobState         `json:"state"`
	Pages       int                     `json:"pages"`
	ErrorDetail string                  `json:"error_detail,omitempty"`
	Config      domain.ConversionConfig `json:"config"`
	CreatedAt   time.Time               `json:"created_at"`
	StartedAt   *time.Time              `json:"started_at,omitempty"`
	FinishedAt  *time.Time              `json:"finished_at,omitempty"`
}

const schema = `
	CREATE TABLE IF NOT EXISTS jobs (
		id           TEXT PRIMARY KEY,
		source_path  TEXT NOT NULL,
		output_path  TEXT NOT NULL DEFAULT '',
		state        TEXT NOT NULL,
		pages        INTEGER NOT NULL DEFAULT 0,
		error_detail TEXT NOT NULL DEFAULT '',
		config       TEXT NOT NULL,
		created_at   DATETIME NOT NULL,
		started_at   DATETIME,
		finished_at  DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs (created_at);
`

// Store handles job CRUD operations.
type Store struct {
	db     DB
	closer func() error
}

// NewStore creates a store over an existing connection. Call Migrate before use.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Open opens (or creates) the SQLite database at path and migrates it.
// ":memory:" gives a private in-memory ledger.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	// one connection keeps :memory: databases shared and writes serialised
	db.SetMaxOpenConns(1)

	s := &Store{db: db, closer: db.Close}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the schema if needed.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate history database: %w", err)
	}
	return nil
}

// Close releases the database when the store opened it.
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// Create inserts a new idle job.
func (s *Store) Create(ctx context.Context, job domain.ConversionJob) error {
	cfg, err := json.Marshal(job.Config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	query := `
		INSERT INTO jobs (id, source_path, state, config, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		job.ID, job.SourcePath, domain.StateIdle, string(cfg), createdAt(job),
	)
	return err
}

// MarkRunning moves a job to running.
func (s *Store) MarkRunning(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE jobs SET state = ?, started_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query, domain.StateRunning, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// Finish stores a job's outcome.
func (s *Store) Finish(ctx context.Context, outcome domain.ConversionOutcome) error {
	state := domain.StateFailed
	if outcome.Succeeded() {
		state = domain.StateCompleted
	}

	query := `
		UPDATE jobs
		SET state = ?, output_path = ?, pages = ?, error_detail = ?, finished_at = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		state, outcome.OutputPath, outcome.Pages, outcome.ErrorDetail, time.Now().UTC(), outcome.JobID,
	)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// Get retrieves a job by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	query := `
		SELECT id, source_path, output_path, state, pages, error_detail, config,
			created_at, started_at, finished_at
		FROM jobs WHERE id = ?
	`
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// List returns the most recent jobs first. limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT id, source_path, output_path, state, pages, error_detail, config,
			created_at, started_at, finished_at
		FROM jobs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// JobStarted records a job entering the running state, creating it if needed.
// It implements convert.Recorder.
func (s *Store) JobStarted(ctx context.Context, job domain.ConversionJob) error {
	cfg, err := json.Marshal(job.Config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	query := `
		INSERT INTO jobs (id, source_path, state, config, created_at, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET state = excluded.state, started_at = excluded.started_at
	`
	_, err = s.db.ExecContext(ctx, query,
		job.ID, job.SourcePath, domain.StateRunning, string(cfg), createdAt(job), time.Now().UTC(),
	)
	return err
}

// JobFinished implements convert.Recorder.
func (s *Store) JobFinished(ctx context.Context, outcome domain.ConversionOutcome) error {
	return s.Finish(ctx, outcome)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*Record, error) {
	rec := &Record{}
	var cfg string
	var started, finished sql.NullTime

	err := row.Scan(
		&rec.ID, &rec.SourcePath, &rec.OutputPath, &rec.State, &rec.Pages, &rec.ErrorDetail, &cfg,
		&rec.CreatedAt, &started, &finished,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(cfg), &rec.Config); err != nil {
		return nil, fmt.Errorf("decode config of job %s: %w", rec.ID, err)
	}
	if started.Valid {
		t := started.Time
		rec.StartedAt = &t
	}
	if finished.Valid {
		t := finished.Time
		rec.FinishedAt = &t
	}
	return rec, nil
}

func createdAt(job domain.ConversionJob) time.Time {
	if job.CreatedAt.IsZero() {
		return time.Now().UTC()
	}
	return job.CreatedAt.UTC()
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
