// Package api exposes the job engine over HTTP: create/get/list/cancel/
// resume/provide-input, plus settings. Routed with the standard library
// net/http mux, in the teacher's own style (no external router dependency).
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"truetrack/internal/settings"
	"truetrack/internal/store"
)

// ListLimit bounds GET /jobs, per spec.md §6.
const ListLimit = 50

// Server wires the HTTP surface to the durable store and settings resolver.
type Server struct {
	store          store.JobStore
	settings       *settings.Resolver
	logger         *logrus.Logger
	allowedOrigins []string
	mux            *http.ServeMux
}

// Config carries the ambient HTTP server knobs SPEC_FULL.md's config.toml
// section adds beyond spec.md's own route list.
type Config struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// NewServer builds a Server and registers all routes.
func NewServer(st store.JobStore, resolver *settings.Resolver, allowedOrigins []string, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	s := &Server{
		store:          st,
		settings:       resolver,
		logger:         logger,
		allowedOrigins: allowedOrigins,
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s
}

// Handler returns the fully wrapped root handler (routes + middleware
// chain), ready to pass to an *http.Server.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = s.corsMiddleware(h)
	h = s.requestLoggingMiddleware(h)
	h = s.panicRecoveryMiddleware(h)
	return h
}

func (s *Server) routes() {
	s.mux.HandleFunc("/jobs", s.handleJobsCollection)
	s.mux.HandleFunc("/jobs/", s.handleJobsItem)
	s.mux.HandleFunc("/settings", s.handleSettings)
	s.mux.HandleFunc("/settings/music-library-path", s.handleSettingsLibraryPath)
	s.mux.HandleFunc("/health", s.handleHealth)
}

// handleJobsCollection dispatches POST /jobs and GET /jobs.
func (s *Server) handleJobsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	case http.MethodGet:
		s.handleListJobs(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobsItem dispatches every /jobs/{id}[/action] route.
func (s *Server) handleJobsItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/jobs/")
	parts := strings.SplitN(rest, "/", 2)
	jobID := parts[0]
	if jobID == "" {
		http.Error(w, "job id required", http.StatusBadRequest)
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleGetJob(w, r, jobID)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch parts[1] {
	case "input":
		s.handleInput(w, r, jobID)
	case "cancel":
		s.handleCancel(w, r, jobID)
	case "resume":
		s.handleResume(w, r, jobID)
	default:
		http.Error(w, "unknown action", http.StatusNotFound)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
