package models

import "fmt"

// Persona selects the assistant behavior behind the chat relay
type Persona string

const (
	PersonaLegal      Persona = "legal"
	PersonaVolunteer  Persona = "volunteer"
	PersonaTranslator Persona = "translator"
)

// ParsePersona validates a persona name from a URL or CLI flag
func ParsePersona(s string) (Persona, error) {
	switch p := Persona(s); p {
	case PersonaLegal, PersonaVolunteer, PersonaTranslator:
		return p, nil
	}
	return "", fmt.Errorf("unknown persona %q", s)
}

// ChatRequest is the body of /chat and /chat-volunteer
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the relay reply. TranslatedReply is set when the
// session language is Hindi.
type ChatResponse struct {
	Reply           string `json:"reply"`
	TranslatedReply string `json:"translatedReply,omitempty"`
}

// TranslateRequest is the body of /translate
type TranslateRequest struct {
	Text string `json:"text"`
}

// TranslateResponse is the reply of /translate
type TranslateResponse struct {
	TranslatedText string `json:"translatedText"`
}
