package handlers

import (
	"net/http"

	"beacon/internal/domain/models"
	"beacon/internal/domain/services"
	"beacon/pkg/logger"
)

// SalaryHandler handles the salary tracker endpoints
type SalaryHandler struct {
	tracker *services.SalaryTracker
	logger  *logger.Logger
}

// NewSalaryHandler creates a new SalaryHandler
func NewSalaryHandler(tracker *services.SalaryTracker, log *logger.Logger) *SalaryHandler {
	return &SalaryHandler{
		tracker: tracker,
		logger:  log.WithComponent("salary-handler"),
	}
}

// Summary handles POST /api/v1/salary/summary
func (h *SalaryHandler) Summary(w http.ResponseWriter, r *http.Request) {
	var req models.SalaryLedgerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.tracker.ValidateLedger(&req, false); err != nil {
		respondServiceError(w, h.logger, err, "failed to summarize ledger")
		return
	}

	respondJSON(w, http.StatusOK, h.tracker.Summarize(req.Employer, req.Records))
}

// Reminder handles POST /api/v1/salary/reminder
func (h *SalaryHandler) Reminder(w http.ResponseWriter, r *http.Request) {
	var req models.SalaryLedgerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reminder, err := h.tracker.Reminder(&req)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to draft reminder")
		return
	}

	respondJSON(w, http.StatusOK, reminder)
}
