package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"truetrack/internal/job"
)

// SQLiteStore is the durable JobStore backed by mattn/go-sqlite3. Schema and
// pragma choices mirror the engine's own single-writer usage pattern: one
// worker loop, one HTTP server, many short-lived statements.
type SQLiteStore struct {
	conn   *sql.DB
	logger *logrus.Logger

	insertJobStmt *sql.Stmt
	updateJobStmt *sql.Stmt
	getJobStmt    *sql.Stmt
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies WAL
// pragmas, and ensures all tables exist.
func NewSQLiteStore(dbPath string, logger *logrus.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	conn, err := sql.Open("sqlite3", dbPath+"?cache=shared&mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(5)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(15 * time.Minute)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=2000;",
		"PRAGMA temp_store=memory;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			logger.WithError(err).WithField("pragma", pragma).Warn("failed to set pragma")
		}
	}

	s := &SQLiteStore{conn: conn, logger: logger}

	if err := s.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	logger.WithField("db_path", dbPath).Info("job store initialized")
	return s, nil
}

func (s *SQLiteStore) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			job_id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_updated_at ON jobs(updated_at);`,
		`CREATE TABLE IF NOT EXISTS idempotency_keys (
			key TEXT PRIMARY KEY,
			job_id TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS app_settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.conn.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error
	s.insertJobStmt, err = s.conn.Prepare(`INSERT INTO jobs (job_id, data, updated_at) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	s.updateJobStmt, err = s.conn.Prepare(`UPDATE jobs SET data = ?, updated_at = ? WHERE job_id = ?`)
	if err != nil {
		return err
	}
	s.getJobStmt, err = s.conn.Prepare(`SELECT data FROM jobs WHERE job_id = ?`)
	if err != nil {
		return err
	}
	return nil
}

// Create inserts a brand-new job; fails with ErrAlreadyExists if the id is
// already bound.
func (s *SQLiteStore) Create(j *job.Job) error {
	data, err := job.ToJSON(j)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	_, err = s.insertJobStmt.Exec(j.JobID, string(data), j.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Get loads a job by id, or ErrNotFound.
func (s *SQLiteStore) Get(jobID string) (*job.Job, error) {
	var data string
	err := s.getJobStmt.QueryRow(jobID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job.FromJSON([]byte(data))
}

// Update persists a mutated job; fails with ErrNotFound if absent.
func (s *SQLiteStore) Update(j *job.Job) error {
	data, err := job.ToJSON(j)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	res, err := s.updateJobStmt.Exec(string(data), j.UpdatedAt.UTC().Format(time.RFC3339Nano), j.JobID)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns up to limit jobs ordered by created_at descending. Sorting by
// created_at requires deserializing (it isn't a column), so this scans the
// most-recently-updated rows first as a reasonable working set, then sorts.
func (s *SQLiteStore) List(limit int) ([]*job.Job, error) {
	rows, err := s.conn.Query(`SELECT data FROM jobs ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*job.Job
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		j, err := job.FromJSON([]byte(data))
		if err != nil {
			s.logger.WithError(err).Warn("skipping unreadable job row")
			continue
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortByCreatedAtDesc(jobs)
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func sortByCreatedAtDesc(jobs []*job.Job) {
	for i := 1; i < len(jobs); i++ {
		for j := i; j > 0 && jobs[j].CreatedAt.After(jobs[j-1].CreatedAt); j-- {
			jobs[j], jobs[j-1] = jobs[j-1], jobs[j]
		}
	}
}

// NextRunnable scans jobs oldest-updated_at first and returns the first one
// for which IsRunnable holds. A full scan matches the reference
// implementation's semantics; the engine's expected job counts are small
// enough (a handful of concurrent ingests) that this is not worth an SQL
// predicate rewrite.
func (s *SQLiteStore) NextRunnable() (string, error) {
	rows, err := s.conn.Query(`SELECT job_id, data FROM jobs ORDER BY updated_at ASC`)
	if err != nil {
		return "", fmt.Errorf("scan runnable: %w", err)
	}
	defer rows.Close()

	now := time.Now().UTC()
	for rows.Next() {
		var jobID, data string
		if err := rows.Scan(&jobID, &data); err != nil {
			return "", fmt.Errorf("scan row: %w", err)
		}
		j, err := job.FromJSON([]byte(data))
		if err != nil {
			s.logger.WithError(err).WithField("job_id", jobID).Warn("skipping unreadable job row")
			continue
		}
		if j.IsRunnable(now) {
			return jobID, nil
		}
	}
	return "", rows.Err()
}

// GetJobByIdempotencyKey resolves a bound key to its job, if any.
func (s *SQLiteStore) GetJobByIdempotencyKey(key string) (*job.Job, error) {
	var jobID string
	err := s.conn.QueryRow(`SELECT job_id FROM idempotency_keys WHERE key = ?`, key).Scan(&jobID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}
	return s.Get(jobID)
}

// BindIdempotencyKey is insert-if-absent: a second bind of the same key is a
// silent no-op, preserving the original binding.
func (s *SQLiteStore) BindIdempotencyKey(key, jobID string) error {
	_, err := s.conn.Exec(
		`INSERT OR IGNORE INTO idempotency_keys (key, job_id, created_at) VALUES (?, ?, ?)`,
		key, jobID, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("bind idempotency key: %w", err)
	}
	return nil
}

// GetSetting reads a single app_settings value.
func (s *SQLiteStore) GetSetting(key string) (string, bool, error) {
	var value string
	err := s.conn.QueryRow(`SELECT value FROM app_settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting: %w", err)
	}
	return value, true, nil
}

// SetSetting upserts a single app_settings value.
func (s *SQLiteStore) SetSetting(key, value string) error {
	_, err := s.conn.Exec(
		`INSERT INTO app_settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ JobStore = (*SQLiteStore)(nil)
