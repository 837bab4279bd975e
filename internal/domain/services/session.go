package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/text/language"

	"beacon/internal/domain/models"
	"beacon/pkg/logger"
)

// ErrInvalidSession is returned for tokens that fail verification
var ErrInvalidSession = errors.New("invalid session token")

var languageMatcher = language.NewMatcher(models.SupportedLanguages)

// LanguageStore remembers the language chosen for an anonymous id so a
// switch applies even to requests carrying an older token
type LanguageStore interface {
	GetLanguage(ctx context.Context, anonID string) (string, error)
	SetLanguage(ctx context.Context, anonID, lang string, ttl time.Duration) error
}

type sessionClaims struct {
	AnonID string `json:"anon_id"`
	Lang   string `json:"lang"`
	jwt.RegisteredClaims
}

// SessionService issues and verifies anonymous session tokens
type SessionService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	store  LanguageStore
	logger *logger.Logger
	now    func() time.Time
}

// NewSessionService creates a new SessionService. store may be nil.
func NewSessionService(secret, issuer string, ttl time.Duration, store LanguageStore, log *logger.Logger) *SessionService {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &SessionService{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		store:  store,
		logger: log.WithComponent("sessions"),
		now:    time.Now,
	}
}

// MatchLanguage picks en or hi for an Accept-Language header, English by default
func MatchLanguage(acceptLanguage string) language.Tag {
	_, idx := language.MatchStrings(languageMatcher, acceptLanguage)
	return models.SupportedLanguages[idx]
}

// ParseLanguage accepts exactly the supported language codes
func ParseLanguage(code string) (language.Tag, error) {
	tag, err := language.Parse(code)
	if err == nil {
		base, _ := tag.Base()
		for _, supported := range models.SupportedLanguages {
			if b, _ := supported.Base(); b == base {
				return supported, nil
			}
		}
	}
	verr := &ValidationError{}
	verr.Add("language", fmt.Sprintf("unsupported language %q, use en or hi", code))
	return language.Und, verr
}

// Guest returns the session used for requests without a token
func (s *SessionService) Guest(acceptLanguage string) models.Session {
	return models.Session{Language: MatchLanguage(acceptLanguage)}
}

// Issue starts a new anonymous session
func (s *SessionService) Issue(ctx context.Context, acceptLanguage string) (*models.SessionToken, error) {
	sess := models.Session{
		AnonID:   uuid.NewString(),
		Language: MatchLanguage(acceptLanguage),
	}
	return s.sign(sess)
}

// SetLanguage switches the single current language of a session
func (s *SessionService) SetLanguage(ctx context.Context, sess models.Session, code string) (*models.SessionToken, error) {
	tag, err := ParseLanguage(code)
	if err != nil {
		return nil, err
	}
	sess.Language = tag

	if s.store != nil && sess.AnonID != "" {
		if err := s.store.SetLanguage(ctx, sess.AnonID, sess.LanguageCode(), s.ttl); err != nil {
			s.logger.Warn().Err(err).Str("anon_id", sess.AnonID).Msg("failed to persist language")
		}
	}

	if sess.AnonID == "" {
		sess.AnonID = uuid.NewString()
	}
	return s.sign(sess)
}

// Resolve verifies a bearer token and applies any stored language switch
func (s *SessionService) Resolve(ctx context.Context, token string) (models.Session, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return models.Session{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if claims.AnonID == "" {
		return models.Session{}, fmt.Errorf("%w: missing anon_id", ErrInvalidSession)
	}

	sess := models.Session{
		AnonID:   claims.AnonID,
		Language: MatchLanguage(claims.Lang),
	}
	if claims.IssuedAt != nil {
		sess.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}

	if s.store != nil {
		lang, err := s.store.GetLanguage(ctx, sess.AnonID)
		if err != nil {
			s.logger.Debug().Err(err).Str("anon_id", sess.AnonID).Msg("language lookup failed")
		} else if lang != "" {
			sess.Language = MatchLanguage(lang)
		}
	}

	return sess, nil
}

func (s *SessionService) sign(sess models.Session) (*models.SessionToken, error) {
	now := s.now()
	expires := now.Add(s.ttl)

	claims := sessionClaims{
		AnonID: sess.AnonID,
		Lang:   sess.LanguageCode(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return &models.SessionToken{
		Token:     token,
		AnonID:    sess.AnonID,
		Language:  sess.LanguageCode(),
		ExpiresAt: expires.UTC(),
	}, nil
}
