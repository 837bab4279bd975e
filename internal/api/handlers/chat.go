package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"beacon/internal/api/middleware"
	"beacon/internal/domain/models"
	"beacon/internal/domain/services/ai"
	"beacon/pkg/logger"
)

// ChatRelay is the conversation relay behind the chat endpoints
type ChatRelay interface {
	Converse(ctx context.Context, sess models.Session, persona models.Persona, message string) (models.ChatResponse, error)
	Translate(ctx context.Context, sess models.Session, text string) (string, error)
}

// ChatHandler handles the assistant chat and translation endpoints
type ChatHandler struct {
	relay  ChatRelay
	logger *logger.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(relay ChatRelay, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		relay:  relay,
		logger: log.WithComponent("chat-handler"),
	}
}

// Legal handles POST /chat
func (h *ChatHandler) Legal(w http.ResponseWriter, r *http.Request) {
	h.chat(w, r, models.PersonaLegal)
}

// Volunteer handles POST /chat-volunteer
func (h *ChatHandler) Volunteer(w http.ResponseWriter, r *http.Request) {
	h.chat(w, r, models.PersonaVolunteer)
}

// Persona handles POST /api/v1/chat/{persona}
func (h *ChatHandler) Persona(w http.ResponseWriter, r *http.Request) {
	persona, err := models.ParsePersona(chi.URLParam(r, "persona"))
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if persona == models.PersonaTranslator {
		h.Translate(w, r)
		return
	}
	h.chat(w, r, persona)
}

// Translate handles POST /translate. The generic persona route also accepts
// the text under "message".
func (h *ChatHandler) Translate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		models.TranslateRequest
		Message string `json:"message"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Text required")
		return
	}
	text := req.Text
	if text == "" {
		text = req.Message
	}
	if text == "" {
		respondError(w, http.StatusBadRequest, "Text required")
		return
	}

	sess, _ := middleware.SessionFromContext(r.Context())
	translated, err := h.relay.Translate(r.Context(), sess, text)
	if err != nil {
		h.logger.Error().Err(err).Msg("translation failed")
		respondError(w, http.StatusInternalServerError, "Translation failed")
		return
	}

	respondJSON(w, http.StatusOK, models.TranslateResponse{TranslatedText: translated})
}

func (h *ChatHandler) chat(w http.ResponseWriter, r *http.Request, persona models.Persona) {
	var req models.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Message == "" {
		respondError(w, http.StatusBadRequest, "Message required")
		return
	}

	sess, _ := middleware.SessionFromContext(r.Context())
	resp, err := h.relay.Converse(r.Context(), sess, persona, req.Message)
	if err != nil {
		if errors.Is(err, ai.ErrEmptyMessage) {
			respondError(w, http.StatusBadRequest, "Message required")
			return
		}
		h.logger.Error().Err(err).Str("persona", string(persona)).Msg("chat failed")
		respondError(w, http.StatusInternalServerError, "LLM error")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}
