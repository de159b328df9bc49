package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	_ "github.com/lib/pq"
)

// TestIntegration runs the same flows against PostgreSQL. Deterministic:
// every section truncates the tables and starts a fresh server.
func TestIntegration(t *testing.T) {
	database := openTestDB(t)

	t.Run("A_HealthCheck", func(t *testing.T) {
		ts := newPGServer(t, database)
		res := ts.get(t, "/health", "")
		assert.Equal(t, http.StatusOK, res.Status, "GET /health must return 200")
		assert.Equal(t, true, res.Body["ok"], "response must contain {\"ok\":true}")
	})

	t.Run("B_AuthFlow", func(t *testing.T) { runAuthFlow(t, newPGServer(t, database)) })
	t.Run("C_OTPProperties", func(t *testing.T) { runOTPProperties(t, newPGServer(t, database)) })
	t.Run("D_InterestScenario", func(t *testing.T) { runInterestScenario(t, newPGServer(t, database)) })
	t.Run("E_SearchExclusion", func(t *testing.T) { runSearchExclusion(t, newPGServer(t, database)) })
	t.Run("F_DailyLimit", func(t *testing.T) { runDailyLimit(t, newPGServer(t, database)) })

	t.Run("G_InvalidOTP", func(t *testing.T) {
		ts := newPGServer(t, database)
		ts.sendOTP(t, "9876500050")
		res := ts.post(t, "/auth/verify-otp", map[string]string{"phoneNumber": "9876500050", "otp": "000000"}, "")
		assert.Equal(t, http.StatusBadRequest, res.Status, "wrong OTP must return 400; body: %s", res.Raw)
		assert.NotEmpty(t, res.str("error"))
	})

	t.Run("H_ProductionMode", func(t *testing.T) {
		ts := newPGServer(t, database, withProductionOTP())
		res := ts.post(t, "/auth/send-otp", map[string]string{"phoneNumber": "9876500051"}, "")
		assert.Equal(t, http.StatusOK, res.Status, "send-otp in prod mode must return 200; body: %s", res.Raw)
		assert.NotContains(t, res.Body, "devOtp", "devOtp must not be exposed outside dev mode")
		assert.Equal(t, 1, ts.otpCount(t, "9876500051"))
	})
}
