package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"beacon/internal/domain/models"
	"beacon/pkg/logger"
)

// ErrEmptyMessage is returned when there is nothing to relay
var ErrEmptyMessage = errors.New("message required")

// PersonaProfile is the fixed behavior of one relay persona
type PersonaProfile struct {
	SystemPrompt string
	MaxTokens    int
	Fallback     string
}

var personas = map[models.Persona]PersonaProfile{
	models.PersonaLegal: {
		SystemPrompt: "You are a legal rights assistant. Provide general legal information only. Always add disclaimer: This is not legal advice.",
		MaxTokens:    300,
		Fallback:     "No response",
	},
	models.PersonaVolunteer: {
		SystemPrompt: "You are a trained NGO volunteer helping workers with salary, labor law, and workplace issues. Be polite, practical, and supportive.",
		MaxTokens:    300,
		Fallback:     "No response",
	},
	// An empty translation means "show the original text".
	models.PersonaTranslator: {
		SystemPrompt: "Translate the given English text into simple Hindi. Only return Hindi.",
		MaxTokens:    400,
		Fallback:     "",
	},
}

// Relay forwards worker messages to the language model under a persona
type Relay struct {
	llm    Completer
	logger *logger.Logger
}

// NewRelay creates a new Relay
func NewRelay(llm Completer, log *logger.Logger) *Relay {
	return &Relay{
		llm:    llm,
		logger: log.WithComponent("relay"),
	}
}

// Relay sends one message and returns the reply. Upstream failures of any
// kind degrade to the persona's fallback text; the only errors are an empty
// message or an unknown persona. Messages are not retried.
func (r *Relay) Relay(ctx context.Context, sess models.Session, persona models.Persona, message string) (string, error) {
	profile, ok := personas[persona]
	if !ok {
		return "", fmt.Errorf("unknown persona %q", persona)
	}
	if message == "" {
		return "", ErrEmptyMessage
	}

	reply, err := r.llm.Complete(ctx, profile.SystemPrompt, message, profile.MaxTokens)
	if err != nil {
		r.logger.Warn().Err(err).
			Str("persona", string(persona)).
			Str("anon_id", sess.AnonID).
			Msg("relay fell back")
		return profile.Fallback, nil
	}
	if strings.TrimSpace(reply) == "" {
		return profile.Fallback, nil
	}

	return reply, nil
}

// Converse relays a chat message and, for Hindi sessions, adds a translation
// of the reply the way the chat screens display it.
func (r *Relay) Converse(ctx context.Context, sess models.Session, persona models.Persona, message string) (models.ChatResponse, error) {
	reply, err := r.Relay(ctx, sess, persona, message)
	if err != nil {
		return models.ChatResponse{}, err
	}

	resp := models.ChatResponse{Reply: reply}
	if persona == models.PersonaTranslator || !sess.WantsHindi() {
		return resp, nil
	}

	if fallback := personas[persona].Fallback; reply == fallback {
		return resp, nil
	}

	translated, err := r.Relay(ctx, sess, models.PersonaTranslator, reply)
	if err != nil {
		return resp, nil
	}
	resp.TranslatedReply = translated
	return resp, nil
}

// Translate is Relay with the translator persona
func (r *Relay) Translate(ctx context.Context, sess models.Session, text string) (string, error) {
	return r.Relay(ctx, sess, models.PersonaTranslator, text)
}
