package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Jobs
	mux.HandleFunc("/api/jobs", s.handleJobsRoute)
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes) // Handles /api/jobs/{id} and subpaths

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// Prometheus metrics
	mux.Handle("/metrics", s.app.Metrics.Handler())

	return mux
}

// handleJobsRoute handles /api/jobs (collection operations)
func (s *Server) handleJobsRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.app.JobHandler.SubmitJobHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobRoutes handles /api/jobs/{id} and /api/jobs/{id}/runtime
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Job id required", http.StatusBadRequest)
		return
	}
	jobID := parts[0]

	if len(parts) == 2 && parts[1] == "runtime" && r.Method == http.MethodGet {
		s.app.JobHandler.GetJobRuntimeHandler(w, r, jobID)
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.app.JobHandler.GetJobHandler(w, r, jobID)
			return
		case http.MethodDelete:
			s.app.JobHandler.KillJobHandler(w, r, jobID)
			return
		}
	}

	http.Error(w, "Not found", http.StatusNotFound)
}
