// Package history keeps an append-only sqlite audit of finished conversion
// work. It is not a job queue: records are written when files and jobs
// complete and only ever read back for display.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/warraq-app/warraq/constants"
)

const schema = `
CREATE TABLE IF NOT EXISTS job_run (
	id          TEXT PRIMARY KEY,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	status      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS file_result (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id  TEXT NOT NULL REFERENCES job_run(id),
	path    TEXT NOT NULL,
	status  TEXT NOT NULL,
	pages   INTEGER NOT NULL DEFAULT 0,
	error   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_file_result_job ON file_result(job_id);
`

// Store wraps the sqlite database holding job history.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// JobRecord is one job row, with its file results attached on read.
type JobRecord struct {
	ID         string              `json:"id"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
	Status     constants.JobStatus `json:"status"`
	Files      []FileRecord        `json:"files,omitempty"`
}

// FileRecord is the outcome of one input file within a job.
type FileRecord struct {
	JobID  string `json:"-"`
	Path   string `json:"path"`
	Status string `json:"status"`
	Pages  int    `json:"pages"`
	Error  string `json:"error,omitempty"`
}

// Open creates or opens the history database at path and applies the schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// One writer at a time; the controller is sequential anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	logger.Info("history.open", "path", path)
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// StartJob inserts the running-job row.
func (s *Store) StartJob(ctx context.Context, id string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_run (id, started_at, status) VALUES (?, ?, ?)`,
		id, startedAt.UTC(), constants.JobStatusRunning)
	return err
}

// FinishJob stamps the job's terminal status.
func (s *Store) FinishJob(ctx context.Context, id string, status constants.JobStatus, finishedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE job_run SET status = ?, finished_at = ? WHERE id = ?`,
		status, finishedAt.UTC(), id)
	return err
}

// RecordFile appends one file outcome to its job.
func (s *Store) RecordFile(ctx context.Context, rec FileRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO file_result (job_id, path, status, pages, error) VALUES (?, ?, ?, ?, ?)`,
		rec.JobID, rec.Path, rec.Status, rec.Pages, rec.Error)
	return err
}

// Recent returns the most recently started jobs, newest first, with their
// file results.
func (s *Store) Recent(ctx context.Context, limit int) ([]JobRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, status FROM job_run ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []JobRecord
	for rows.Next() {
		var j JobRecord
		var finished sql.NullTime
		if err := rows.Scan(&j.ID, &j.StartedAt, &finished, &j.Status); err != nil {
			return nil, err
		}
		if finished.Valid {
			t := finished.Time
			j.FinishedAt = &t
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range jobs {
		files, err := s.filesFor(ctx, jobs[i].ID)
		if err != nil {
			return nil, err
		}
		jobs[i].Files = files
	}
	return jobs, nil
}

func (s *Store) filesFor(ctx context.Context, jobID string) ([]FileRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, path, status, pages, error FROM file_result WHERE job_id = ? ORDER BY id`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []FileRecord
	for rows.Next() {
		var f FileRecord
		if err := rows.Scan(&f.JobID, &f.Path, &f.Status, &f.Pages, &f.Error); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}
