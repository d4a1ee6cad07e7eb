package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"truetrack/internal/job"
	"truetrack/internal/settings"
	"truetrack/internal/state"
	"truetrack/internal/store"
)

func newTestServer(t *testing.T) (*Server, store.JobStore) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "api-test.db")
	st, err := store.NewSQLiteStore(dbPath, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	resolver := settings.NewResolver(st)
	if err := resolver.SetLibraryRoot(t.TempDir()); err != nil {
		t.Fatalf("set library root: %v", err)
	}

	return NewServer(st, resolver, nil, nil), st
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) Status {
	t.Helper()
	var s Status
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode status: %v (body=%s)", err, rec.Body.String())
	}
	return s
}

func TestCreateJobStartsInResolvingIdentity(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/jobs", createJobRequest{Query: "radiohead - creep"}, nil)

	if rec.Code != http.StatusCreated {
		t.Fatalf("want 201, got %d: %s", rec.Code, rec.Body.String())
	}
	got := decodeStatus(t, rec)
	if got.State != state.ResolvingIdentity {
		t.Fatalf("want RESOLVING_IDENTITY, got %s", got.State)
	}
	if got.Status != "running" {
		t.Fatalf("want running, got %s", got.Status)
	}
}

func TestCreateJobRequiresQuery(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/jobs", createJobRequest{}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
}

func TestIdempotentCreateReturnsSameJob(t *testing.T) {
	s, _ := newTestServer(t)
	headers := map[string]string{"Idempotency-Key": "abc"}

	first := doRequest(t, s, http.MethodPost, "/jobs", createJobRequest{Query: "query one"}, headers)
	second := doRequest(t, s, http.MethodPost, "/jobs", createJobRequest{Query: "query two"}, headers)

	firstStatus := decodeStatus(t, first)
	secondStatus := decodeStatus(t, second)
	if firstStatus.JobID != secondStatus.JobID {
		t.Fatalf("want same job_id, got %s vs %s", firstStatus.JobID, secondStatus.JobID)
	}
}

func TestGetJobNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/jobs/does-not-exist", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", rec.Code)
	}
}

func TestListJobsReturnsSummaries(t *testing.T) {
	s, st := newTestServer(t)
	j := job.New("some query", job.Options{})
	j.TransitionTo(state.ResolvingIdentity)
	if err := st.Create(j); err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := doRequest(t, s, http.MethodGet, "/jobs", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	var summaries []ListSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summaries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(summaries) != 1 || summaries[0].JobID != j.JobID {
		t.Fatalf("want one summary for %s, got %+v", j.JobID, summaries)
	}
}

func TestInputRejectedWhenNotWaiting(t *testing.T) {
	s, st := newTestServer(t)
	j := job.New("some query", job.Options{})
	j.TransitionTo(state.ResolvingIdentity)
	if err := st.Create(j); err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := doRequest(t, s, http.MethodPost, "/jobs/"+j.JobID+"/input", inputRequest{Choice: 0}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
}

func TestInputAdvancesIdentitySelectionToSearching(t *testing.T) {
	s, st := newTestServer(t)
	j := job.New("some query", job.Options{})
	j.TransitionTo(state.ResolvingIdentity)
	j.SourceCandidates = []map[string]interface{}{
		{"title": "Song A", "artists": []interface{}{"Artist A"}, "video_id": "a", "duration": 200.0},
		{"title": "Song B", "artists": []interface{}{"Artist B"}, "video_id": "b", "duration": 210.0},
	}
	j.TransitionTo(state.UserIntentSelection)
	if err := st.Create(j); err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := doRequest(t, s, http.MethodPost, "/jobs/"+j.JobID+"/input", inputRequest{Choice: 1}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	got := decodeStatus(t, rec)
	if got.State != state.Searching {
		t.Fatalf("want SEARCHING, got %s", got.State)
	}

	stored, err := st.Get(j.JobID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.IdentityHint == nil || stored.IdentityHint.Title != "Song B" || stored.IdentityHint.Confidence != 100 {
		t.Fatalf("unexpected identity hint: %+v", stored.IdentityHint)
	}
}

func TestInputChoiceOutOfRange(t *testing.T) {
	s, st := newTestServer(t)
	j := job.New("some query", job.Options{})
	j.TransitionTo(state.ResolvingIdentity)
	j.SourceCandidates = []map[string]interface{}{{"title": "Only One"}}
	j.TransitionTo(state.UserIntentSelection)
	if err := st.Create(j); err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := doRequest(t, s, http.MethodPost, "/jobs/"+j.JobID+"/input", inputRequest{Choice: 5}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
}

func TestCancelThenResumeRestoresPriorState(t *testing.T) {
	s, st := newTestServer(t)
	j := job.New("some query", job.Options{})
	j.TransitionTo(state.ResolvingIdentity)
	j.TransitionTo(state.Searching)
	j.TransitionTo(state.Downloading)
	j.TransitionTo(state.Extracting)
	if err := st.Create(j); err != nil {
		t.Fatalf("create: %v", err)
	}

	cancelRec := doRequest(t, s, http.MethodPost, "/jobs/"+j.JobID+"/cancel", nil, nil)
	if cancelRec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", cancelRec.Code)
	}
	cancelled := decodeStatus(t, cancelRec)
	if cancelled.State != state.Cancelled || !cancelled.CanResume {
		t.Fatalf("want cancelled+resumable, got %+v", cancelled)
	}

	resumeRec := doRequest(t, s, http.MethodPost, "/jobs/"+j.JobID+"/resume", nil, nil)
	if resumeRec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", resumeRec.Code, resumeRec.Body.String())
	}
	resumed := decodeStatus(t, resumeRec)
	if resumed.State != state.Extracting {
		t.Fatalf("want EXTRACTING, got %s", resumed.State)
	}
}

func TestCancelIsNoOpOnTerminalState(t *testing.T) {
	s, st := newTestServer(t)
	j := job.New("some query", job.Options{})
	j.Fail("NO_RESULTS", "boom")
	if err := st.Create(j); err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := doRequest(t, s, http.MethodPost, "/jobs/"+j.JobID+"/cancel", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	got := decodeStatus(t, rec)
	if got.State != state.Failed {
		t.Fatalf("cancel must be a no-op on a terminal job, got %s", got.State)
	}
}

func TestGetSettingsReportsSource(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/settings", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["source"] != string(settings.SourceDB) {
		t.Fatalf("want db source (set via SetLibraryRoot in test setup), got %s", body["source"])
	}
}

func TestPutLibraryPathUpdatesSettings(t *testing.T) {
	s, _ := newTestServer(t)
	newRoot := filepath.Join(t.TempDir(), "new-root")
	rec := doRequest(t, s, http.MethodPut, "/settings/music-library-path", setLibraryPathRequest{Path: newRoot}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}

	getRec := doRequest(t, s, http.MethodGet, "/settings", nil, nil)
	var body map[string]string
	if err := json.Unmarshal(getRec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["music_library_root"] != newRoot {
		t.Fatalf("want %s, got %s", newRoot, body["music_library_root"])
	}
}
