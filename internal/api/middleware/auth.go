package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"beacon/internal/domain/models"
)

// ContextKey is a type for context keys
type ContextKey string

const (
	// ContextKeySession holds the models.Session of the request
	ContextKeySession ContextKey = "session"
	// ContextKeyIsAdmin is the context key for admin status
	ContextKeyIsAdmin ContextKey = "is_admin"
)

// SessionResolver verifies session tokens
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (models.Session, error)
	Guest(acceptLanguage string) models.Session
}

// Session attaches the anonymous session to the request. A request without a
// bearer token gets a guest session in the Accept-Language language; an
// invalid token is rejected.
func Session(resolver SessionResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			var sess models.Session
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				sess = resolver.Guest(r.Header.Get("Accept-Language"))
			} else {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
					unauthorized(w, "invalid authorization header format")
					return
				}

				resolved, err := resolver.Resolve(r.Context(), parts[1])
				if err != nil {
					unauthorized(w, "invalid session token")
					return
				}
				sess = resolved
			}

			ctx := context.WithValue(r.Context(), ContextKeySession, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminAuth requires the X-Admin-Key header to equal key. An empty key
// disables the admin routes.
func AdminAuth(key string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				http.NotFound(w, r)
				return
			}

			provided := r.Header.Get("X-Admin-Key")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"invalid admin key"}`))
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyIsAdmin, true)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the session set by the Session middleware
func SessionFromContext(ctx context.Context) (models.Session, bool) {
	sess, ok := ctx.Value(ContextKeySession).(models.Session)
	return sess, ok
}

// IsAdmin returns whether the request is from an admin
func IsAdmin(ctx context.Context) bool {
	if isAdmin, ok := ctx.Value(ContextKeyIsAdmin).(bool); ok {
		return isAdmin
	}
	return false
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
