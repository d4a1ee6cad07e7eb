// Package worker runs the pipeline to completion, one job at a time, one
// step at a time. It owns no domain logic — that lives in pipeline and
// handlers — only the poll loop, locking, retry/backoff, and cancellation
// barriers around a single pipeline.Step call.
package worker

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"truetrack/internal/job"
	"truetrack/internal/pipeline"
	"truetrack/internal/state"
	"truetrack/internal/store"
)

// PollInterval is how long the runtime sleeps between NextRunnable checks
// when no job is eligible.
const PollInterval = 500 * time.Millisecond

// workerID identifies this process's lock owner. A single-process runtime
// only ever needs one.
const workerID = "worker-1"

// Runtime owns the lifecycle of the background poll loop: start, run,
// graceful stop. It holds no job logic itself.
type Runtime struct {
	store    store.JobStore
	pipeline *pipeline.Pipeline
	logger   *logrus.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Runtime over the given store and pipeline.
func New(st store.JobStore, p *pipeline.Pipeline, logger *logrus.Logger) *Runtime {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return &Runtime{store: st, pipeline: p, logger: logger}
}

// Start launches the poll loop in a background goroutine. Calling Start
// while already running is a no-op.
func (r *Runtime) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		r.runLoop(ctx)
	}()

	r.logger.Info("worker runtime started")
}

// Stop signals the loop to exit and waits up to 5s for it to finish its
// current job.
func (r *Runtime) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	done := r.done
	r.cancel = nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	r.logger.Info("stopping worker runtime")
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		r.logger.Warn("worker runtime stop timed out")
	}
	r.logger.Info("worker runtime stopped")
}

func (r *Runtime) runLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		jobID, err := r.store.NextRunnable()
		if err != nil {
			r.logger.WithError(err).Error("next_runnable lookup failed")
			sleep(ctx, PollInterval)
			continue
		}
		if jobID == "" {
			sleep(ctx, PollInterval)
			continue
		}

		r.processJob(ctx, jobID)
	}
}

// processJob locks, executes exactly one pipeline step, and persists the
// result. The lock is always released before return.
func (r *Runtime) processJob(ctx context.Context, jobID string) {
	j, err := r.store.Get(jobID)
	if err != nil {
		r.logger.WithError(err).WithField("job_id", jobID).Error("failed to load runnable job")
		return
	}

	now := time.Now().UTC()
	j.AcquireLock(workerID, now)
	if err := r.store.Update(j); err != nil {
		r.logger.WithError(err).WithField("job_id", jobID).Error("failed to persist lock acquisition")
		return
	}

	// Reload to catch external cancellation since the lock was granted.
	fresh, err := r.store.Get(jobID)
	if err != nil {
		r.logger.WithError(err).WithField("job_id", jobID).Error("failed to reload locked job")
		return
	}
	j = fresh

	if j.CurrentState == state.Cancelled {
		j.ReleaseLock()
		r.store.Update(j)
		r.cleanupTempDir(j)
		return
	}

	stepErr := r.pipeline.Step(ctx, j)

	if stepErr != nil {
		r.handleStepError(j, stepErr)
		return
	}

	// Cancellation barrier before persisting the new state: pipeline.Step
	// guarantees j.CurrentState advanced, so this is the only remaining
	// reason to discard the step.
	fresh, err = r.store.Get(jobID)
	if err == nil && fresh.CurrentState == state.Cancelled {
		j.ReleaseLock()
		r.store.Update(fresh)
		r.cleanupTempDir(fresh)
		return
	}

	r.logger.WithFields(logrus.Fields{"job_id": jobID, "state": j.CurrentState}).Info("job advanced")
	j.ReleaseLock()
	r.store.Update(j)
	r.cleanupTempDir(j)
}

// cleanupTempDir best-effort removes a job's temp directory once it has
// reached a terminal state, per spec.md §3.4/§4.6: failure is logged only,
// never surfaced as a job error.
func (r *Runtime) cleanupTempDir(j *job.Job) {
	if !j.CurrentState.IsTerminal() || j.TempDir == "" {
		return
	}
	if err := os.RemoveAll(j.TempDir); err != nil {
		r.logger.WithError(err).WithField("job_id", j.JobID).Warn("temp dir cleanup failed")
	}
}

func (r *Runtime) handleStepError(j *job.Job, stepErr error) {
	if perr, ok := stepErr.(*state.Error); ok {
		j.Fail(perr.Code, perr.Message)
		j.ReleaseLock()
		r.store.Update(j)
		r.cleanupTempDir(j)
		r.logger.WithFields(logrus.Fields{"job_id": j.JobID, "code": perr.Code}).Error("job failed")
		return
	}

	if j.RetryCount >= job.MaxRetries {
		j.Fail("MAX_RETRIES_EXCEEDED", stepErr.Error())
		j.ReleaseLock()
		r.store.Update(j)
		r.cleanupTempDir(j)
		r.logger.WithField("job_id", j.JobID).Error("job failed after max retries")
		return
	}

	delay := job.Backoff[minInt(j.RetryCount, len(job.Backoff)-1)]
	j.ScheduleRetry(delay)
	j.ReleaseLock()
	r.store.Update(j)
	r.logger.WithFields(logrus.Fields{"job_id": j.JobID, "delay": delay, "attempt": j.RetryCount}).Warn("retry scheduled")
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
