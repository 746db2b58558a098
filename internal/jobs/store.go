// Package jobs persists analysis jobs in sqlite and runs them one at a time
// on a background worker with cancellation.
package jobs

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/pocket-drs/crease.report/internal/timeutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrJobNotFound is returned for lookups of unknown job ids.
var ErrJobNotFound = errors.New("job not found")

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether a job in this status will never change again.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Job is one persisted analysis job.
type Job struct {
	ID           string
	Status       Status
	Stage        string
	Pct          int
	RequestJSON  []byte
	ResultJSON   []byte
	ErrorCode    string
	ErrorMessage string
	CreatedAtMs  int64
	UpdatedAtMs  int64
}

// Store persists jobs in sqlite.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewStore opens (creating if needed) the sqlite database at path and runs
// pending migrations.
func NewStore(path string, clock timeutil.Clock) (*Store, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	s := &Store{db: db, clock: clock}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// migrateUp applies all pending embedded migrations.
func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// migrateLogger implements migrate.Logger.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool { return false }

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a queued job with the given id and request payload.
func (s *Store) Create(id string, requestJSON []byte) (*Job, error) {
	now := s.clock.Now().UnixMilli()
	_, err := s.db.Exec(`
		INSERT INTO jobs (job_id, status, stage, pct, request_json, created_at_ms, updated_at_ms)
		VALUES (?, 'queued', 'queued', 0, ?, ?, ?)`,
		id, string(requestJSON), now, now)
	if err != nil {
		return nil, fmt.Errorf("create job %s: %w", id, err)
	}
	return s.Get(id)
}

// Get returns the job with the given id, or ErrJobNotFound.
func (s *Store) Get(id string) (*Job, error) {
	row := s.db.QueryRow(`
		SELECT job_id, status, stage, pct, request_json,
		       COALESCE(result_json, ''), COALESCE(error_code, ''),
		       COALESCE(error_message, ''), created_at_ms, updated_at_ms
		FROM jobs WHERE job_id = ?`, id)

	var j Job
	var req, res string
	err := row.Scan(&j.ID, &j.Status, &j.Stage, &j.Pct, &req, &res,
		&j.ErrorCode, &j.ErrorMessage, &j.CreatedAtMs, &j.UpdatedAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	j.RequestJSON = []byte(req)
	if res != "" {
		j.ResultJSON = []byte(res)
	}
	return &j, nil
}

// SetProgress records the running stage and percent for a job.
func (s *Store) SetProgress(id string, pct int, stage string) error {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return s.exec(`UPDATE jobs SET status = 'running', stage = ?, pct = ?, updated_at_ms = ? WHERE job_id = ?`,
		stage, pct, s.clock.Now().UnixMilli(), id)
}

// SetSucceeded stores the result payload and marks the job done.
func (s *Store) SetSucceeded(id string, resultJSON []byte) error {
	return s.exec(`UPDATE jobs SET status = 'succeeded', stage = 'done', pct = 100, result_json = ?, updated_at_ms = ? WHERE job_id = ?`,
		string(resultJSON), s.clock.Now().UnixMilli(), id)
}

// SetFailed records an error code/message and marks the job failed. Partial
// results are discarded: result_json stays empty.
func (s *Store) SetFailed(id, code, message string) error {
	return s.exec(`UPDATE jobs SET status = 'failed', error_code = ?, error_message = ?, result_json = NULL, updated_at_ms = ? WHERE job_id = ?`,
		code, message, s.clock.Now().UnixMilli(), id)
}

func (s *Store) exec(query string, args ...interface{}) error {
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}
