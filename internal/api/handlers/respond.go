package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"beacon/internal/domain/services"
	"beacon/pkg/logger"
)

const maxJSONBody = 1 << 20

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error  string                `json:"error"`
	Fields []services.FieldError `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// respondServiceError maps service errors to status codes. Storage and
// unknown failures answer with internalMsg only.
func respondServiceError(w http.ResponseWriter, log *logger.Logger, err error, internalMsg string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, services.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrInvalidSession):
		respondError(w, http.StatusUnauthorized, "invalid session token")
	case errors.Is(err, services.ErrUpstream):
		log.Warn().Err(err).Msg("upstream failure")
		respondError(w, http.StatusBadGateway, "upstream service unavailable")
	default:
		log.Error().Err(err).Msg(internalMsg)
		respondError(w, http.StatusInternalServerError, internalMsg)
	}
}

// decodeJSON reads a bounded JSON body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	return json.NewDecoder(r.Body).Decode(v)
}
