package handlers

import (
	"context"
	"net/http"

	"beacon/internal/api/middleware"
	"beacon/internal/domain/models"
	"beacon/pkg/logger"
)

// SOSService prepares emergency alerts
type SOSService interface {
	Contacts() []models.EmergencyContact
	Trigger(ctx context.Context, sess models.Session, req models.SOSRequest) (*models.SOSAlert, error)
}

// SOSHandler handles the emergency alert endpoints
type SOSHandler struct {
	service SOSService
	logger  *logger.Logger
}

// NewSOSHandler creates a new SOSHandler
func NewSOSHandler(svc SOSService, log *logger.Logger) *SOSHandler {
	return &SOSHandler{
		service: svc,
		logger:  log.WithComponent("sos-handler"),
	}
}

// Trigger handles POST /api/v1/sos
func (h *SOSHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req models.SOSRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, _ := middleware.SessionFromContext(r.Context())
	alert, err := h.service.Trigger(r.Context(), sess, req)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to raise alert")
		return
	}

	respondJSON(w, http.StatusCreated, alert)
}

// Contacts handles GET /api/v1/sos/contacts
func (h *SOSHandler) Contacts(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	respondJSON(w, http.StatusOK, map[string]any{
		"contacts": h.service.Contacts(),
	})
}
