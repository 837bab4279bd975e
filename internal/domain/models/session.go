package models

import (
	"time"

	"golang.org/x/text/language"
)

// Supported UI languages
var (
	LanguageEnglish = language.English
	LanguageHindi   = language.Hindi
)

// SupportedLanguages is the matcher order; the first entry is the fallback.
var SupportedLanguages = []language.Tag{LanguageEnglish, LanguageHindi}

// Session is the per-client context passed explicitly into services.
// There is one current language per session.
type Session struct {
	AnonID    string       `json:"anon_id"`
	Language  language.Tag `json:"-"`
	IssuedAt  time.Time    `json:"issued_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// LanguageCode returns the base language code ("en" or "hi"). A session
// without a language reads as English.
func (s Session) LanguageCode() string {
	if s.Language == language.Und {
		return "en"
	}
	base, _ := s.Language.Base()
	return base.String()
}

// WantsHindi reports whether replies should be translated for display
func (s Session) WantsHindi() bool {
	return s.LanguageCode() == "hi"
}

// SessionToken is returned when a session is issued or updated
type SessionToken struct {
	Token     string    `json:"token"`
	AnonID    string    `json:"anon_id"`
	Language  string    `json:"language"`
	ExpiresAt time.Time `json:"expires_at"`
}
