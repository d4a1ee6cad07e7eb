package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"truetrack/internal/job"
	"truetrack/internal/state"
	"truetrack/internal/store"
)

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func writeStatus(w http.ResponseWriter, statusCode int, j *job.Job) {
	writeJSON(w, statusCode, buildStatus(j))
}

type createJobRequest struct {
	Query   string      `json:"query"`
	Options job.Options `json:"options"`
}

// handleCreateJob implements POST /jobs, per spec.md §6: idempotency-key
// binding is insert-if-absent, so a replayed request with the same key
// returns the original job's status rather than creating a second job.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")
	if idempotencyKey != "" {
		existing, err := s.store.GetJobByIdempotencyKey(idempotencyKey)
		if err != nil {
			s.logger.WithError(err).Error("idempotency key lookup failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if existing != nil {
			writeStatus(w, http.StatusOK, existing)
			return
		}
	}

	j := job.New(req.Query, req.Options)
	j.TransitionTo(state.ResolvingIdentity)

	if err := s.store.Create(j); err != nil {
		s.logger.WithError(err).Error("failed to create job")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if idempotencyKey != "" {
		if err := s.store.BindIdempotencyKey(idempotencyKey, j.JobID); err != nil {
			s.logger.WithError(err).Error("failed to bind idempotency key")
		}
	}

	writeStatus(w, http.StatusCreated, j)
}

// handleGetJob implements GET /jobs/{job_id}.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	j, err := s.store.Get(jobID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("failed to load job")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeStatus(w, http.StatusOK, j)
}

// handleListJobs implements GET /jobs: summaries, limit 50, per spec.md §6.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.List(ListLimit)
	if err != nil {
		s.logger.WithError(err).Error("failed to list jobs")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	summaries := make([]ListSummary, len(jobs))
	for i, j := range jobs {
		summaries[i] = buildListSummary(j)
	}
	writeJSON(w, http.StatusOK, summaries)
}

type inputRequest struct {
	Choice int `json:"choice"`
}

// handleInput implements POST /jobs/{id}/input: mutates a paused job
// directly (no handler owns USER_* states) and persists, per spec.md §4.3.
func (s *Server) handleInput(w http.ResponseWriter, r *http.Request, jobID string) {
	var req inputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Choice < 0 {
		http.Error(w, "choice must be >= 0", http.StatusBadRequest)
		return
	}

	j, err := s.store.Get(jobID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("failed to load job")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := applyInput(j, req.Choice); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.store.Update(j); err != nil {
		s.logger.WithError(err).Error("failed to persist input")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeStatus(w, http.StatusOK, j)
}

// handleCancel implements POST /jobs/{id}/cancel: idempotent, a no-op on
// terminal states.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request, jobID string) {
	j, err := s.store.Get(jobID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("failed to load job")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	j.Cancel("")
	if err := s.store.Update(j); err != nil {
		s.logger.WithError(err).Error("failed to persist cancellation")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeStatus(w, http.StatusOK, j)
}

// handleResume implements POST /jobs/{id}/resume: allowed only from
// CANCELLED (or a USER_* pause) with resume_from set.
func (s *Server) handleResume(w http.ResponseWriter, r *http.Request, jobID string) {
	j, err := s.store.Get(jobID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("failed to load job")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if j.CurrentState != state.Cancelled && !j.CurrentState.IsPause() {
		http.Error(w, "job is not resumable", http.StatusBadRequest)
		return
	}
	if j.ResumeFrom == nil {
		http.Error(w, "job has no resume_from recorded", http.StatusBadRequest)
		return
	}

	j.Resume()
	if err := s.store.Update(j); err != nil {
		s.logger.WithError(err).Error("failed to persist resume")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeStatus(w, http.StatusOK, j)
}

// handleSettings implements GET /settings: the current library root plus
// which layer provided it, per the original's get_config_source debug
// helper (SPEC_FULL.md "Settings HTTP surface source tracking").
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	root, err := s.settings.LibraryRoot()
	if err != nil {
		s.logger.WithError(err).Error("failed to resolve library root")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	source, err := s.settings.Source()
	if err != nil {
		s.logger.WithError(err).Error("failed to resolve settings source")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"music_library_root": root,
		"source":             string(source),
	})
}

type setLibraryPathRequest struct {
	Path string `json:"path"`
}

// handleSettingsLibraryPath implements PUT /settings/music-library-path.
func (s *Server) handleSettingsLibraryPath(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req setLibraryPathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := s.settings.SetLibraryRoot(req.Path); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"music_library_root": req.Path})
}
