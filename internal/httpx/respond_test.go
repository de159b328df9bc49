package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/playmate/server/internal/apperr"
	"github.com/playmate/server/internal/observability/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWriteAppError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{apperr.Validation("bad"), http.StatusBadRequest, "bad"},
		{apperr.ErrInterestAlreadyActive, http.StatusBadRequest, "interest already sent"},
		{apperr.ErrDailyLimitExceeded, http.StatusBadRequest, "daily interest limit reached"},
		{apperr.ErrUnauthenticated, http.StatusUnauthorized, "authentication required"},
		{apperr.ErrSessionExpired, http.StatusUnauthorized, "session expired or invalid"},
		{apperr.ErrNotFound, http.StatusNotFound, "not found"},
		{apperr.Internal("db", errors.New("secret dsn")), http.StatusInternalServerError, "internal server error"},
		{errors.New("raw"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		WriteAppError(rec, req, logging.Discard(), tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		body := decode(t, rec)
		assert.Equal(t, tc.msg, body["error"])
		_, flagged := body["requiresRegistration"]
		assert.False(t, flagged)
	}
}

func TestWriteAppError_registrationRequiredFlag(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAppError(rec, httptest.NewRequest(http.MethodGet, "/x", nil), logging.Discard(), apperr.ErrRegistrationRequired)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, true, decode(t, rec)["requiresRegistration"])
}
