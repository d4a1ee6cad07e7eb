package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"truetrack/internal/job"
	"truetrack/internal/pipeline"
	"truetrack/internal/state"
	"truetrack/internal/store"
)

func newTestStore(t *testing.T) store.JobStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "worker-test.db")
	s, err := store.NewSQLiteStore(dbPath, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestRuntimeAdvancesRunnableJob(t *testing.T) {
	st := newTestStore(t)
	p := pipeline.New()
	p.Register(state.Init, func(ctx context.Context, j *job.Job) error {
		j.TransitionTo(state.ResolvingIdentity)
		return nil
	})

	j := job.New("some query", job.Options{})
	if err := st.Create(j); err != nil {
		t.Fatalf("create: %v", err)
	}

	r := New(st, p, nil)
	r.Start()
	defer r.Stop()

	waitUntil(t, 2*time.Second, func() bool {
		got, err := st.Get(j.JobID)
		return err == nil && got.CurrentState == state.ResolvingIdentity
	})
}

func TestRuntimeFailsJobOnDomainError(t *testing.T) {
	st := newTestStore(t)
	p := pipeline.New()
	p.Register(state.Init, func(ctx context.Context, j *job.Job) error {
		return state.NewError("NO_RESULTS", state.Content, "boom")
	})

	j := job.New("some query", job.Options{})
	if err := st.Create(j); err != nil {
		t.Fatalf("create: %v", err)
	}

	r := New(st, p, nil)
	r.Start()
	defer r.Stop()

	waitUntil(t, 2*time.Second, func() bool {
		got, err := st.Get(j.JobID)
		return err == nil && got.CurrentState == state.Failed
	})

	got, _ := st.Get(j.JobID)
	if got.ErrorCode != "NO_RESULTS" {
		t.Fatalf("want error_code NO_RESULTS, got %q", got.ErrorCode)
	}
	if got.LockedAt != nil {
		t.Fatalf("want lock released after failure")
	}
}

func TestRuntimeRetriesOnUnexpectedError(t *testing.T) {
	st := newTestStore(t)
	p := pipeline.New()
	p.Register(state.Init, func(ctx context.Context, j *job.Job) error {
		return errUnexpected
	})

	j := job.New("some query", job.Options{})
	if err := st.Create(j); err != nil {
		t.Fatalf("create: %v", err)
	}

	r := New(st, p, nil)
	r.Start()
	defer r.Stop()

	waitUntil(t, 2*time.Second, func() bool {
		got, err := st.Get(j.JobID)
		return err == nil && got.RetryCount >= 1
	})

	got, _ := st.Get(j.JobID)
	if got.CurrentState != state.Init {
		t.Fatalf("want state unchanged (INIT) while retry pending, got %s", got.CurrentState)
	}
	if got.NextRunAt == nil {
		t.Fatalf("want next_run_at scheduled")
	}
}

func TestRuntimeExhaustsRetriesToMaxRetriesExceeded(t *testing.T) {
	st := newTestStore(t)
	p := pipeline.New()
	p.Register(state.Init, func(ctx context.Context, j *job.Job) error {
		return errUnexpected
	})

	j := job.New("some query", job.Options{})
	j.RetryCount = job.MaxRetries
	if err := st.Create(j); err != nil {
		t.Fatalf("create: %v", err)
	}

	r := New(st, p, nil)
	r.Start()
	defer r.Stop()

	waitUntil(t, 2*time.Second, func() bool {
		got, err := st.Get(j.JobID)
		return err == nil && got.CurrentState == state.Failed
	})

	got, _ := st.Get(j.JobID)
	if got.ErrorCode != "MAX_RETRIES_EXCEEDED" {
		t.Fatalf("want MAX_RETRIES_EXCEEDED, got %q", got.ErrorCode)
	}
}

func TestRuntimeDiscardsStepIfCancelledDuringExecution(t *testing.T) {
	st := newTestStore(t)
	p := pipeline.New()
	p.Register(state.Init, func(ctx context.Context, j *job.Job) error {
		// Simulate an external cancellation landing in the store while this
		// step was executing, independent of the in-memory job's advance.
		cancelled, err := st.Get(j.JobID)
		if err != nil {
			return err
		}
		cancelled.Cancel("external cancel mid-step")
		if err := st.Update(cancelled); err != nil {
			return err
		}
		j.TransitionTo(state.ResolvingIdentity)
		return nil
	})

	j := job.New("some query", job.Options{})
	if err := st.Create(j); err != nil {
		t.Fatalf("create: %v", err)
	}

	r := New(st, p, nil)
	r.Start()
	defer r.Stop()

	waitUntil(t, 2*time.Second, func() bool {
		got, err := st.Get(j.JobID)
		return err == nil && got.CurrentState == state.Cancelled
	})

	got, _ := st.Get(j.JobID)
	if got.CurrentState == state.ResolvingIdentity {
		t.Fatalf("want the cancellation to win over the advanced-but-discarded step")
	}
}

func TestStopIsIdempotentAndWaitsForLoop(t *testing.T) {
	st := newTestStore(t)
	p := pipeline.New()
	r := New(st, p, nil)
	r.Start()
	r.Stop()
	r.Stop()
}

type unexpectedError struct{}

func (unexpectedError) Error() string { return "unexpected failure" }

var errUnexpected = unexpectedError{}
