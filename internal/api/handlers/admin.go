package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"beacon/internal/jobs"
	"beacon/pkg/logger"
)

// JobRunner runs the scheduled maintenance jobs on demand
type JobRunner interface {
	RunNow(ctx context.Context, name string) (int64, error)
	Status() []jobs.Status
}

// AdminHandler handles admin endpoints
type AdminHandler struct {
	jobs   JobRunner
	logger *logger.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(runner JobRunner, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		jobs:   runner,
		logger: log.WithComponent("admin"),
	}
}

// ListJobs handles GET /api/v1/admin/jobs
func (h *AdminHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		respondJSON(w, http.StatusOK, map[string]any{"jobs": []jobs.Status{}})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"jobs": h.jobs.Status()})
}

// TriggerJob handles POST /api/v1/admin/jobs/{job}
func (h *AdminHandler) TriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "job")
	if h.jobs == nil {
		respondError(w, http.StatusServiceUnavailable, "jobs are disabled")
		return
	}

	h.logger.Info().Str("job", name).Msg("triggering job")
	affected, err := h.jobs.RunNow(r.Context(), name)
	switch {
	case errors.Is(err, jobs.ErrUnknownJob):
		respondError(w, http.StatusNotFound, "unknown job")
		return
	case errors.Is(err, jobs.ErrJobRunning):
		respondError(w, http.StatusConflict, "job is already running")
		return
	case err != nil:
		h.logger.Error().Err(err).Str("job", name).Msg("job failed")
		respondError(w, http.StatusInternalServerError, "job failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"job":      name,
		"affected": affected,
	})
}
