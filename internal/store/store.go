// Package store durably persists jobs, idempotency-key bindings, and
// application settings, and implements the fairness-ordered runnable
// selection the worker polls.
package store

import (
	"errors"

	"truetrack/internal/job"
)

// ErrNotFound is returned by Get when no job matches the id.
var ErrNotFound = errors.New("store: job not found")

// ErrAlreadyExists is returned by Create when job_id is already present.
var ErrAlreadyExists = errors.New("store: job already exists")

// JobStore is the durable mapping from job_id to Job, plus idempotency-key
// bindings and application settings.
type JobStore interface {
	Create(j *job.Job) error
	Get(jobID string) (*job.Job, error)
	Update(j *job.Job) error
	List(limit int) ([]*job.Job, error)

	// NextRunnable returns the job_id of the oldest-updated_at job for which
	// is_runnable holds, or "" if none is eligible right now.
	NextRunnable() (string, error)

	GetJobByIdempotencyKey(key string) (*job.Job, error)
	// BindIdempotencyKey is insert-if-absent: binding an already-bound key
	// is a no-op, the original binding wins.
	BindIdempotencyKey(key, jobID string) error

	GetSetting(key string) (string, bool, error)
	SetSetting(key, value string) error

	Close() error
}
