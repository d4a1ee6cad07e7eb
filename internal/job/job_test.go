package job

import (
	"testing"
	"time"

	"truetrack/internal/state"
)

func TestNewJobStartsInInit(t *testing.T) {
	j := New("radiohead - creep", Options{})
	if j.CurrentState != state.Init {
		t.Fatalf("want INIT, got %s", j.CurrentState)
	}
	if j.NormalizedQuery != "radiohead - creep" {
		t.Fatalf("normalized query not lowercased: %q", j.NormalizedQuery)
	}
	if len(j.StateHistory) != 1 {
		t.Fatalf("want 1 history record, got %d", len(j.StateHistory))
	}
}

func TestTransitionToClosesPriorRecord(t *testing.T) {
	j := New("q", Options{})
	j.TransitionTo(state.ResolvingIdentity)

	if len(j.StateHistory) != 2 {
		t.Fatalf("want 2 history records, got %d", len(j.StateHistory))
	}
	first := j.StateHistory[0]
	if first.ExitedAt == nil || first.Status != "success" {
		t.Fatalf("first record not closed: %+v", first)
	}
	if j.CurrentState != state.ResolvingIdentity {
		t.Fatalf("want RESOLVING_IDENTITY, got %s", j.CurrentState)
	}
}

func TestStateHistoryEvictsFIFO(t *testing.T) {
	j := New("q", Options{})
	for i := 0; i < MaxStateHistory+10; i++ {
		j.TransitionTo(state.Searching)
	}
	if len(j.StateHistory) != MaxStateHistory {
		t.Fatalf("want history capped at %d, got %d", MaxStateHistory, len(j.StateHistory))
	}
}

func TestFailSetsTerminalState(t *testing.T) {
	j := New("q", Options{})
	j.TransitionTo(state.Downloading)
	j.Fail("NO_FILE", "no file produced")

	if j.CurrentState != state.Failed {
		t.Fatalf("want FAILED, got %s", j.CurrentState)
	}
	if j.FailedState == nil || *j.FailedState != state.Downloading {
		t.Fatalf("failed_state not recorded: %+v", j.FailedState)
	}
	if j.ErrorCode != "NO_FILE" {
		t.Fatalf("want error code NO_FILE, got %s", j.ErrorCode)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	j := New("q", Options{})
	j.TransitionTo(state.Extracting)
	j.Cancel("")

	if j.CurrentState != state.Cancelled {
		t.Fatalf("want CANCELLED, got %s", j.CurrentState)
	}
	if j.ResumeFrom == nil || *j.ResumeFrom != state.Extracting {
		t.Fatalf("resume_from not set to EXTRACTING: %+v", j.ResumeFrom)
	}

	// Cancel again: terminal, must no-op.
	resumeBefore := *j.ResumeFrom
	j.Cancel("ignored")
	if *j.ResumeFrom != resumeBefore {
		t.Fatalf("second cancel mutated resume_from")
	}
}

func TestResumeRestoresPriorState(t *testing.T) {
	j := New("q", Options{})
	j.TransitionTo(state.Extracting)
	j.Cancel("")
	j.Resume()

	if j.CurrentState != state.Extracting {
		t.Fatalf("want EXTRACTING after resume, got %s", j.CurrentState)
	}
	if j.ResumeFrom != nil {
		t.Fatalf("resume_from should be cleared")
	}
}

func TestLockExpiresAfterTTL(t *testing.T) {
	j := New("q", Options{})
	now := time.Now().UTC()
	past := now.Add(-LockTTL)
	j.AcquireLock("worker-1", past)

	if j.IsLocked(now, LockTTL) {
		t.Fatalf("lock exactly at TTL boundary should be considered expired")
	}
}

func TestIsRunnableExcludesPauseAndLocked(t *testing.T) {
	j := New("q", Options{})
	j.TransitionTo(state.UserIntentSelection)
	if j.IsRunnable(time.Now().UTC()) {
		t.Fatalf("pause state must not be runnable")
	}

	j2 := New("q", Options{})
	j2.AcquireLock("worker-1", time.Now().UTC())
	if j2.IsRunnable(time.Now().UTC()) {
		t.Fatalf("locked job must not be runnable")
	}
}

func TestRoundTripSerialization(t *testing.T) {
	j := New("radiohead - creep", Options{Ask: true})
	j.TransitionTo(state.ResolvingIdentity)
	j.IdentityHint = &IdentityHint{Title: "Creep", Artists: []string{"Radiohead"}, Confidence: 80}

	data, err := ToJSON(j)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	restored, err := FromJSON(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	data2, err := ToJSON(restored)
	if err != nil {
		t.Fatalf("re-marshal: %v", err)
	}
	if string(data) != string(data2) {
		t.Fatalf("round trip mismatch:\n%s\nvs\n%s", data, data2)
	}
}
