package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/playmate/server/internal/apperr"
	"github.com/playmate/server/internal/auth"
	"github.com/playmate/server/internal/httpx"
	"github.com/playmate/server/internal/model"
)

// SessionCookie carries the session token for browser clients
const SessionCookie = "session_token"

type contextKey string

const identityKey contextKey = "identity"

// Authenticator resolves session tokens
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Identity, error)
}

// TokenFromRequest returns the bearer token, falling back to the session cookie
func TokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token
			}
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

// RequireSession resolves the session (bridge or full) and attaches it to the context
func RequireSession(authn Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := authn.Authenticate(r.Context(), TokenFromRequest(r))
			if err != nil {
				httpx.WriteAppError(w, r, logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
		})
	}
}

// RequireProfile resolves a full session and rejects bridge sessions with RegistrationRequired
func RequireProfile(authn Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := authn.Authenticate(r.Context(), TokenFromRequest(r))
			if err != nil {
				httpx.WriteAppError(w, r, logger, err)
				return
			}
			if !id.Session.Complete() || id.User == nil {
				httpx.WriteAppError(w, r, logger, apperr.ErrRegistrationRequired)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
		})
	}
}

// OptionalAuth attaches a full session when one resolves and proceeds
// anonymously otherwise. forceAnonymous=true skips resolution entirely.
func OptionalAuth(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if forceAnonymous(r) {
				next.ServeHTTP(w, r)
				return
			}
			token := TokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			id, err := authn.Authenticate(r.Context(), token)
			if err != nil || id.User == nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
		})
	}
}

func forceAnonymous(r *http.Request) bool {
	switch strings.ToLower(r.URL.Query().Get("forceAnonymous")) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// GetIdentity returns the session attached by RequireSession, RequireProfile or OptionalAuth
func GetIdentity(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey).(auth.Identity)
	return id, ok
}

// GetUser returns the user attached to the request context, if any
func GetUser(ctx context.Context) (*model.User, bool) {
	id, ok := GetIdentity(ctx)
	if !ok || id.User == nil {
		return nil, false
	}
	return id.User, true
}

// ViewerID returns the authenticated user's id, or nil for anonymous requests
func ViewerID(ctx context.Context) *uuid.UUID {
	u, ok := GetUser(ctx)
	if !ok {
		return nil
	}
	id := u.ID
	return &id
}
