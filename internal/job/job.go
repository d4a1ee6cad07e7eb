// Package job defines the durable unit of work the pipeline advances: its
// state, payload, history, and the small set of mutating helpers handlers
// and the worker runtime use. A Job is never aliased across steps — it is
// loaded from the store, mutated in place, and persisted back.
package job

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"truetrack/internal/state"
)

// MaxStateHistory bounds state_history; oldest records are evicted FIFO.
const MaxStateHistory = 50

// LockTTL is how long a worker's lock is honored before a job is considered
// unlocked regardless of owner.
const LockTTL = 60 * time.Second

// Backoff schedule applied on unexpected (non-domain) handler failures.
var Backoff = []time.Duration{1 * time.Second, 5 * time.Second, 30 * time.Second}

// MaxRetries is the number of unexpected-failure retries before a job is
// terminated with MAX_RETRIES_EXCEEDED.
const MaxRetries = 3

// StateRecord is one entry in a job's append-only (bounded) history.
type StateRecord struct {
	State     state.State `json:"state"`
	EnteredAt time.Time      `json:"entered_at"`
	ExitedAt  *time.Time     `json:"exited_at,omitempty"`
	Status    string         `json:"status,omitempty"` // "success" | "failed"
}

// Options are the user-supplied flags that steer handler behavior.
type Options struct {
	Ask          bool `json:"ask"`
	ForceArchive bool `json:"force_archive"`
	DryRun       bool `json:"dry_run"`
	Verbose      bool `json:"verbose"`
}

// IdentityHint is the resolved intent: what recording the user meant.
type IdentityHint struct {
	Title      string   `json:"title"`
	Artists    []string `json:"artists"`
	Album      string   `json:"album,omitempty"`
	DurationMs int64    `json:"duration_ms,omitempty"`
	VideoID    string   `json:"video_id"`
	Uploader   string   `json:"uploader,omitempty"`
	Confidence int      `json:"confidence"`
}

// Result is the outcome recorded once a job finishes (success or archive).
type Result struct {
	Success  bool   `json:"success"`
	Archived bool   `json:"archived"`
	Title    string `json:"title,omitempty"`
	Artist   string `json:"artist,omitempty"`
	Album    string `json:"album,omitempty"`
	Source   string `json:"source,omitempty"`
	Path     string `json:"path,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Job is the full persisted unit of work.
type Job struct {
	JobID           string         `json:"job_id"`
	RawQuery        string         `json:"raw_query"`
	NormalizedQuery string         `json:"normalized_query"`
	Options         Options        `json:"options"`
	CurrentState    state.State `json:"current_state"`
	StateHistory    []StateRecord  `json:"state_history"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`

	FailedState  *state.State `json:"failed_state,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	RetryCount   int             `json:"retry_count"`
	NextRunAt    *time.Time      `json:"next_run_at,omitempty"`

	ResumeFrom *state.State `json:"resume_from,omitempty"`

	LockedAt *time.Time `json:"locked_at,omitempty"`
	LockedBy string     `json:"locked_by,omitempty"`

	IdentityHint      *IdentityHint            `json:"identity_hint,omitempty"`
	SourceCandidates  []map[string]interface{} `json:"source_candidates,omitempty"`
	SelectedSource    map[string]interface{}   `json:"selected_source,omitempty"`
	TempDir           string                   `json:"temp_dir,omitempty"`
	DownloadedFile    string                   `json:"downloaded_file,omitempty"`
	ExtractedFile     string                   `json:"extracted_file,omitempty"`
	MetadataCandidates []map[string]interface{} `json:"metadata_candidates,omitempty"`
	FinalMetadata     map[string]interface{}   `json:"final_metadata,omitempty"`
	MetadataConfidence *int                    `json:"metadata_confidence,omitempty"`

	Result Result `json:"result"`

	LastMessage string `json:"last_message,omitempty"`
}

// New constructs a fresh job in INIT, ready to be transitioned to
// RESOLVING_IDENTITY by the caller before persisting.
func New(rawQuery string, opts Options) *Job {
	now := time.Now().UTC()
	j := &Job{
		JobID:           uuid.NewString(),
		RawQuery:        rawQuery,
		NormalizedQuery: strings.ToLower(rawQuery),
		Options:         opts,
		CurrentState:    state.Init,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	j.StateHistory = append(j.StateHistory, StateRecord{State: state.Init, EnteredAt: now})
	return j
}

// Emit records a single diagnostic message, overwriting any prior one.
func (j *Job) Emit(message string) {
	j.LastMessage = message
}

// TransitionTo closes out the current history record and opens a new one
// for the target state, bumping updated_at.
func (j *Job) TransitionTo(newState state.State) {
	now := time.Now().UTC()
	if n := len(j.StateHistory); n > 0 {
		last := &j.StateHistory[n-1]
		if last.ExitedAt == nil {
			t := now
			last.ExitedAt = &t
			last.Status = "success"
		}
	}
	j.CurrentState = newState
	j.StateHistory = append(j.StateHistory, StateRecord{State: newState, EnteredAt: now})
	if len(j.StateHistory) > MaxStateHistory {
		j.StateHistory = j.StateHistory[len(j.StateHistory)-MaxStateHistory:]
	}
	j.UpdatedAt = now
}

// Fail terminates the job with a domain or exhaustion error code.
func (j *Job) Fail(code, message string) {
	now := time.Now().UTC()
	failed := j.CurrentState
	j.FailedState = &failed
	j.ErrorCode = code
	j.ErrorMessage = message
	if n := len(j.StateHistory); n > 0 {
		last := &j.StateHistory[n-1]
		if last.ExitedAt == nil {
			t := now
			last.ExitedAt = &t
			last.Status = "failed"
		}
	}
	j.CurrentState = state.Failed
	j.StateHistory = append(j.StateHistory, StateRecord{State: state.Failed, EnteredAt: now})
	if len(j.StateHistory) > MaxStateHistory {
		j.StateHistory = j.StateHistory[len(j.StateHistory)-MaxStateHistory:]
	}
	j.Result.Error = message
	j.UpdatedAt = now
}

// Cancel moves a non-terminal job to CANCELLED, recording resume_from so a
// later resume can restore it.
func (j *Job) Cancel(reason string) {
	if j.CurrentState.IsTerminal() {
		return
	}
	if reason == "" {
		reason = "Cancelled by user"
	}
	prior := j.CurrentState
	j.ResumeFrom = &prior
	j.ReleaseLock()
	j.TransitionTo(state.Cancelled)
	j.ErrorCode = "CANCELLED"
	j.ErrorMessage = reason
	j.Result.Error = reason
}

// Resume restores a cancelled or paused job to its pre-pause state.
func (j *Job) Resume() {
	if j.ResumeFrom == nil {
		return
	}
	target := *j.ResumeFrom
	j.ErrorCode = ""
	j.ErrorMessage = ""
	j.ResumeFrom = nil
	j.TransitionTo(target)
}

// IsLocked reports whether the job's lock is currently held, given ttl.
func (j *Job) IsLocked(now time.Time, ttl time.Duration) bool {
	if j.LockedAt == nil {
		return false
	}
	return now.Sub(*j.LockedAt) < ttl
}

// AcquireLock claims the job for a worker.
func (j *Job) AcquireLock(workerID string, now time.Time) {
	t := now
	j.LockedAt = &t
	j.LockedBy = workerID
}

// ReleaseLock drops ownership without otherwise mutating the job.
func (j *Job) ReleaseLock() {
	j.LockedAt = nil
	j.LockedBy = ""
}

// ScheduleRetry bumps retry_count and schedules the next eligible run.
func (j *Job) ScheduleRetry(delay time.Duration) {
	j.RetryCount++
	t := time.Now().UTC().Add(delay)
	j.NextRunAt = &t
}

// IsRunnable mirrors the store's is_runnable predicate for a single job,
// given the current time.
func (j *Job) IsRunnable(now time.Time) bool {
	if j.CurrentState.IsTerminal() {
		return false
	}
	if j.CurrentState.IsPause() {
		return false
	}
	if j.NextRunAt != nil && j.NextRunAt.After(now) {
		return false
	}
	if j.IsLocked(now, LockTTL) {
		return false
	}
	return true
}
