package auth

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/playmate/server/internal/apperr"
	"github.com/playmate/server/internal/observability/logging"
	"github.com/playmate/server/internal/observability/metrics"
	"github.com/playmate/server/internal/repo/memrepo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSMS struct{ calls int }

func (f *failingSMS) SendOTP(context.Context, string, string) error {
	f.calls++
	return errors.New("gateway down")
}

func newOtpService(store *memrepo.Store, clock func() time.Time) *OtpService {
	svc := NewOtpService(store.Otps(), &failingSMS{}, OtpConfig{Salt: "test-salt", TTL: 10 * time.Minute, DevMode: true},
		logging.Discard(), metrics.New("test"))
	return svc.WithClock(clock)
}

func TestHashOTPHex_consistency(t *testing.T) {
	phone, code, salt := "9876543210", "123456", "test-salt"
	h1 := hashOTPHex(phone, code, salt)
	h2 := hashOTPHex(phone, code, salt)
	assert.Equal(t, h1, h2, "hash should be deterministic")
	decoded, err := hex.DecodeString(h1)
	require.NoError(t, err, "hash should be valid hex")
	assert.Len(t, decoded, 32)
}

func TestHashOTPHex_differentInputsDifferentHash(t *testing.T) {
	salt := "salt"
	h1 := hashOTPHex("9876543210", "123456", salt)
	h2 := hashOTPHex("9876543211", "123456", salt)
	h3 := hashOTPHex("9876543210", "654321", salt)
	assert.NotEqual(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.NotEqual(t, h2, h3)
}

func TestGenerateOTPCode_sixDigits(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := generateOTPCode()
		require.NoError(t, err)
		assert.Regexp(t, `^[1-9][0-9]{5}$`, code)
	}
}

func TestRequestOTP_persistsDespiteDeliveryFailure(t *testing.T) {
	store := memrepo.New()
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	sms := &failingSMS{}
	svc := NewOtpService(store.Otps(), sms, OtpConfig{Salt: "s", TTL: 10 * time.Minute, DevMode: true},
		logging.Discard(), metrics.New("test")).WithClock(func() time.Time { return now })

	code, err := svc.RequestOTP(context.Background(), "9876543210")
	require.NoError(t, err)
	assert.NotEmpty(t, code)
	assert.Equal(t, 1, sms.calls)
	assert.Equal(t, 1, store.OtpCount("9876543210"))
}

func TestRequestOTP_hidesCodeOutsideDevMode(t *testing.T) {
	store := memrepo.New()
	svc := NewOtpService(store.Otps(), &failingSMS{}, OtpConfig{Salt: "s", TTL: time.Minute},
		logging.Discard(), metrics.New("test"))
	code, err := svc.RequestOTP(context.Background(), "9876543210")
	require.NoError(t, err)
	assert.Empty(t, code)
}

func TestVerifyOTP_latestCodeWins(t *testing.T) {
	store := memrepo.New()
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	svc := newOtpService(store, func() time.Time { return now })
	ctx := context.Background()

	first, err := svc.RequestOTP(ctx, "9876543210")
	require.NoError(t, err)
	second, err := svc.RequestOTP(ctx, "9876543210")
	require.NoError(t, err)
	assert.Equal(t, 2, store.OtpCount("9876543210"), "each send stores its own row")

	if first != second {
		assert.ErrorIs(t, svc.VerifyOTP(ctx, "9876543210", first), apperr.ErrInvalidOrExpiredCode)
	}
	require.NoError(t, svc.VerifyOTP(ctx, "9876543210", second))
	assert.ErrorIs(t, svc.VerifyOTP(ctx, "9876543210", second), apperr.ErrInvalidOrExpiredCode, "a code is single use")
}

func TestVerifyOTP_otherPhoneAndExpiry(t *testing.T) {
	store := memrepo.New()
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	svc := newOtpService(store, func() time.Time { return now })
	ctx := context.Background()

	code, err := svc.RequestOTP(ctx, "9000000001")
	require.NoError(t, err)
	assert.ErrorIs(t, svc.VerifyOTP(ctx, "9000000002", code), apperr.ErrInvalidOrExpiredCode)

	now = now.Add(11 * time.Minute)
	assert.ErrorIs(t, svc.VerifyOTP(ctx, "9000000001", code), apperr.ErrInvalidOrExpiredCode)
}
