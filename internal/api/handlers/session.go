package handlers

import (
	"context"
	"net/http"

	"beacon/internal/api/middleware"
	"beacon/internal/domain/models"
	"beacon/pkg/logger"
)

// SessionIssuer issues and updates anonymous session tokens
type SessionIssuer interface {
	Issue(ctx context.Context, acceptLanguage string) (*models.SessionToken, error)
	SetLanguage(ctx context.Context, sess models.Session, code string) (*models.SessionToken, error)
}

// SessionHandler handles the anonymous session endpoints
type SessionHandler struct {
	sessions SessionIssuer
	logger   *logger.Logger
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(sessions SessionIssuer, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logger:   log.WithComponent("session-handler"),
	}
}

// Create handles POST /api/v1/session
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	token, err := h.sessions.Issue(r.Context(), r.Header.Get("Accept-Language"))
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to issue session")
		return
	}

	respondJSON(w, http.StatusCreated, token)
}

// SetLanguage handles PUT /api/v1/session/language
func (h *SessionHandler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Language string `json:"language"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, _ := middleware.SessionFromContext(r.Context())
	token, err := h.sessions.SetLanguage(r.Context(), sess, req.Language)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to update session")
		return
	}

	respondJSON(w, http.StatusOK, token)
}
