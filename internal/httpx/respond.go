// Package httpx holds the JSON response helpers shared by middleware and handlers.
package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/playmate/server/internal/apperr"
)

// WriteJSON writes v as a JSON response
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error                string `json:"error"`
	RequiresRegistration bool   `json:"requiresRegistration,omitempty"`
}

// WriteError sends a JSON error response
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, errorBody{Error: message})
}

// WriteAppError maps err through the apperr taxonomy. Internal errors are
// logged and their details hidden from the client.
func WriteAppError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}
	WriteJSON(w, status, errorBody{
		Error:                apperr.PublicMessage(err),
		RequiresRegistration: apperr.KindOf(err) == apperr.KindRegistrationRequired,
	})
}
