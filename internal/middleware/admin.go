package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/playmate/server/internal/auth"
	"github.com/playmate/server/internal/httpx"
)

// RequireAdmin checks for a valid operator JWT in the Authorization header.
// With no admin secret configured every request is rejected.
func RequireAdmin(tokens *auth.AdminTokens, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !tokens.Enabled() {
				httpx.WriteError(w, http.StatusNotFound, "not found")
				return
			}
			parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				httpx.WriteError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}
			claims, err := tokens.Verify(strings.TrimSpace(parts[1]))
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			logger.InfoContext(r.Context(), "admin request",
				slog.String("subject", claims.Subject), slog.String("path", r.URL.Path))
			next.ServeHTTP(w, r)
		})
	}
}
