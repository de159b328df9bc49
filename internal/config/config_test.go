package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_requiresDatabaseURLAndSalt(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("OTP_SALT", "salt")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("DATABASE_URL", "postgres://localhost/playmate")
	t.Setenv("OTP_SALT", "")
	_, err = Load()
	require.Error(t, err)
}

func TestLoad_defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/playmate")
	t.Setenv("OTP_SALT", "salt")
	t.Setenv("PORT", "")
	t.Setenv("OTP_TTL", "")
	t.Setenv("DAILY_INTEREST_LIMIT", "")
	t.Setenv("SWEEP_INTERVAL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10, cfg.DailyInterestLimit)
	assert.Equal(t, 10*time.Minute, cfg.OTPTTL)
	assert.Equal(t, 60*time.Second, cfg.SweepInterval)
}

func TestLoad_overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/playmate")
	t.Setenv("OTP_SALT", "salt")
	t.Setenv("DAILY_INTEREST_LIMIT", "3")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("SESSION_TTL", "2h")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.DailyInterestLimit)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
}

func TestLoad_rejectsBadDuration(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/playmate")
	t.Setenv("OTP_SALT", "salt")
	t.Setenv("OTP_TTL", "ten minutes")
	_, err := Load()
	require.Error(t, err)
}
