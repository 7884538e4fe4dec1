package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/stemsync/karaoke/internal/model"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a job id has no history entry.
var ErrNotFound = errors.New("history entry not found")

// Entry is one submission made from this machine
type Entry struct {
	JobID       string
	SourceURL   string
	Status      model.JobStatus
	Media       *model.MediaURLs
	Error       string
	SubmittedAt time.Time
	FinishedAt  *time.Time
}

// Store keeps the local submission history in SQLite
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at path
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; avoids SQLITE_BUSY between the poller and the shell
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS submissions (
		job_id TEXT PRIMARY KEY,
		source_url TEXT NOT NULL,
		status TEXT NOT NULL,
		video_url TEXT,
		instrumental_url TEXT,
		vocals_url TEXT,
		error TEXT,
		submitted_at INTEGER NOT NULL,
		finished_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_submitted_at ON submissions(submitted_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a freshly submitted job
func (s *Store) Record(ctx context.Context, jobID, sourceURL string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions (job_id, source_url, status, submitted_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(job_id) DO UPDATE SET source_url = excluded.source_url`,
		jobID, sourceURL, string(model.JobStatusSubmitted), at.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record submission: %w", err)
	}
	return nil
}

// Complete marks a job finished with its media
func (s *Store) Complete(ctx context.Context, jobID string, media model.MediaURLs, at time.Time) error {
	return s.finish(ctx, jobID, model.JobStatusComplete, &media, "", at)
}

// Fail marks a job finished with an error message
func (s *Store) Fail(ctx context.Context, jobID, message string, at time.Time) error {
	return s.finish(ctx, jobID, model.JobStatusError, nil, message, at)
}

func (s *Store) finish(ctx context.Context, jobID string, status model.JobStatus, media *model.MediaURLs, message string, at time.Time) error {
	var video, inst, vocals sql.NullString
	if media != nil {
		video = sql.NullString{String: media.Video, Valid: true}
		inst = sql.NullString{String: media.Instrumental, Valid: true}
		vocals = sql.NullString{String: media.Vocals, Valid: true}
	}
	var errMsg sql.NullString
	if message != "" {
		errMsg = sql.NullString{String: message, Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions
		 SET status = ?, video_url = ?, instrumental_url = ?, vocals_url = ?, error = ?, finished_at = ?
		 WHERE job_id = ?`,
		string(status), video, inst, vocals, errMsg, at.UnixMilli(), jobID)
	if err != nil {
		return fmt.Errorf("failed to update submission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns the entry for jobID
func (s *Store) Get(ctx context.Context, jobID string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, selectEntry+` WHERE job_id = ?`, jobID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// List returns the most recent entries first
func (s *Store) List(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, selectEntry+` ORDER BY submitted_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

const selectEntry = `SELECT job_id, source_url, status, video_url, instrumental_url, vocals_url, error, submitted_at, finished_at FROM submissions`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e                   Entry
		status              string
		video, inst, vocals sql.NullString
		errMsg              sql.NullString
		submitted           int64
		finished            sql.NullInt64
	)
	if err := row.Scan(&e.JobID, &e.SourceURL, &status, &video, &inst, &vocals, &errMsg, &submitted, &finished); err != nil {
		return nil, err
	}

	e.Status = model.JobStatus(status)
	e.Error = errMsg.String
	e.SubmittedAt = time.UnixMilli(submitted)
	if finished.Valid {
		t := time.UnixMilli(finished.Int64)
		e.FinishedAt = &t
	}
	if video.Valid && inst.Valid && vocals.Valid {
		e.Media = &model.MediaURLs{
			Video:        video.String,
			Instrumental: inst.String,
			Vocals:       vocals.String,
		}
	}
	return &e, nil
}
