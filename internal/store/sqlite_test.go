package store

import (
	"path/filepath"
	"testing"
	"time"

	"truetrack/internal/job"
	"truetrack/internal/state"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "truetrack-test.db")
	s, err := NewSQLiteStore(dbPath, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateThenGet(t *testing.T) {
	s := newTestStore(t)
	j := job.New("radiohead - creep", job.Options{})

	if err := s.Create(j); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := s.Get(j.JobID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RawQuery != j.RawQuery {
		t.Fatalf("round trip mismatch: %q vs %q", got.RawQuery, j.RawQuery)
	}
}

func TestCreateDuplicateFails(t *testing.T) {
	s := newTestStore(t)
	j := job.New("q", job.Options{})

	if err := s.Create(j); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(j); err != ErrAlreadyExists {
		t.Fatalf("want ErrAlreadyExists, got %v", err)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get("does-not-exist"); err != ErrNotFound {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestUpdateMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	j := job.New("q", job.Options{})
	if err := s.Update(j); err != ErrNotFound {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestNextRunnableSkipsLockedAndPaused(t *testing.T) {
	s := newTestStore(t)

	runnable := job.New("runnable", job.Options{})
	runnable.TransitionTo(state.ResolvingIdentity)
	// Newest updated_at, so the scan must pass over the paused and locked
	// jobs before reaching it.
	runnable.UpdatedAt = time.Now().UTC().Add(time.Hour)
	if err := s.Create(runnable); err != nil {
		t.Fatalf("create runnable: %v", err)
	}

	paused := job.New("paused", job.Options{})
	paused.TransitionTo(state.UserIntentSelection)
	if err := s.Create(paused); err != nil {
		t.Fatalf("create paused: %v", err)
	}

	locked := job.New("locked", job.Options{})
	locked.TransitionTo(state.Downloading)
	locked.AcquireLock("worker-1", time.Now().UTC())
	if err := s.Create(locked); err != nil {
		t.Fatalf("create locked: %v", err)
	}

	id, err := s.NextRunnable()
	if err != nil {
		t.Fatalf("next runnable: %v", err)
	}
	if id != runnable.JobID {
		t.Fatalf("want %s, got %s", runnable.JobID, id)
	}
}

func TestNextRunnableOrdersByOldestUpdatedAt(t *testing.T) {
	s := newTestStore(t)

	older := job.New("older", job.Options{})
	older.TransitionTo(state.ResolvingIdentity)
	older.UpdatedAt = time.Now().UTC().Add(-time.Hour)
	if err := s.Create(older); err != nil {
		t.Fatalf("create older: %v", err)
	}

	newer := job.New("newer", job.Options{})
	newer.TransitionTo(state.ResolvingIdentity)
	if err := s.Create(newer); err != nil {
		t.Fatalf("create newer: %v", err)
	}

	id, err := s.NextRunnable()
	if err != nil {
		t.Fatalf("next runnable: %v", err)
	}
	if id != older.JobID {
		t.Fatalf("want oldest-updated job %s, got %s", older.JobID, id)
	}
}

func TestIdempotencyKeyBindIsInsertIfAbsent(t *testing.T) {
	s := newTestStore(t)

	first := job.New("first query", job.Options{})
	if err := s.Create(first); err != nil {
		t.Fatalf("create first: %v", err)
	}
	if err := s.BindIdempotencyKey("abc", first.JobID); err != nil {
		t.Fatalf("bind: %v", err)
	}

	second := job.New("second query", job.Options{})
	if err := s.Create(second); err != nil {
		t.Fatalf("create second: %v", err)
	}
	// Rebinding the same key to a different job must not overwrite.
	if err := s.BindIdempotencyKey("abc", second.JobID); err != nil {
		t.Fatalf("rebind: %v", err)
	}

	bound, err := s.GetJobByIdempotencyKey("abc")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if bound.JobID != first.JobID {
		t.Fatalf("want original job %s, got %s", first.JobID, bound.JobID)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if _, ok, err := s.GetSetting("music_library_root"); err != nil || ok {
		t.Fatalf("expected absent setting, got ok=%v err=%v", ok, err)
	}
	if err := s.SetSetting("music_library_root", "/music/TrueTrack"); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, ok, err := s.GetSetting("music_library_root")
	if err != nil || !ok {
		t.Fatalf("expected present setting, got ok=%v err=%v", ok, err)
	}
	if value != "/music/TrueTrack" {
		t.Fatalf("want /music/TrueTrack, got %s", value)
	}

	if err := s.SetSetting("music_library_root", "/music/Other"); err != nil {
		t.Fatalf("update: %v", err)
	}
	value, _, _ = s.GetSetting("music_library_root")
	if value != "/music/Other" {
		t.Fatalf("want updated value, got %s", value)
	}
}

func TestListOrdersByCreatedAtDescending(t *testing.T) {
	s := newTestStore(t)

	older := job.New("older", job.Options{})
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	if err := s.Create(older); err != nil {
		t.Fatalf("create older: %v", err)
	}
	newer := job.New("newer", job.Options{})
	if err := s.Create(newer); err != nil {
		t.Fatalf("create newer: %v", err)
	}

	jobs, err := s.List(50)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 2 || jobs[0].JobID != newer.JobID {
		t.Fatalf("want newest first, got %+v", jobs)
	}
}
