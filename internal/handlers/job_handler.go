package handlers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/conductor/internal/interfaces"
	"github.com/ternarybob/conductor/internal/models"
	"github.com/ternarybob/conductor/internal/services/coordinator"
)

// JobHandler handles job submission and lifecycle API requests
type JobHandler struct {
	coordinator interfaces.Coordinator
	jobStorage  interfaces.JobStorage
	logger      arbor.ILogger
}

// NewJobHandler creates a new job handler
func NewJobHandler(coord interfaces.Coordinator, jobStorage interfaces.JobStorage, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		coordinator: coord,
		jobStorage:  jobStorage,
		logger:      logger,
	}
}

// SubmitJobHandler accepts a job submission
// POST /api/jobs
func (h *JobHandler) SubmitJobHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var request models.JobRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	metadata := &models.JobMetadata{
		ClientHost: clientHost(r),
		UserAgent:  r.UserAgent(),
	}

	jobID, err := h.coordinator.Submit(ctx, &request, metadata)
	if err != nil {
		h.writeCoordinationError(w, err)
		return
	}

	w.Header().Set("Location", "/api/jobs/"+jobID)
	writeJSON(w, http.StatusCreated, map[string]string{"id": jobID})
}

// GetJobHandler returns a job record
// GET /api/jobs/{id}
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	record, err := h.jobStorage.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		writeError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// GetJobRuntimeHandler returns a job's runtime binding
// GET /api/jobs/{id}/runtime
func (h *JobHandler) GetJobRuntimeHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	binding, err := h.jobStorage.GetRuntimeBinding(ctx, jobID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			writeError(w, http.StatusNotFound, "runtime binding not found")
			return
		}
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to get runtime binding")
		writeError(w, http.StatusInternalServerError, "failed to get runtime binding")
		return
	}

	writeJSON(w, http.StatusOK, binding)
}

// KillJobHandler kills an in-flight job
// DELETE /api/jobs/{id}?reason=...
func (h *JobHandler) KillJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	reason := r.URL.Query().Get("reason")
	if reason == "" {
		reason = "Killed by user request"
	}

	if err := h.coordinator.Kill(ctx, jobID, reason); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to kill job")
		writeError(w, http.StatusInternalServerError, "failed to kill job")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"id": jobID, "status": string(models.JobStatusKilled)})
}

// writeCoordinationError maps the coordinator's failure kinds onto transport
// status codes
func (h *JobHandler) writeCoordinationError(w http.ResponseWriter, err error) {
	kind := coordinator.Classify(err)
	status := coordinator.HTTPStatus(kind)

	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("kind", string(kind)).Msg("Job submission failed")
	}

	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  string(kind),
	})
}

func clientHost(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
