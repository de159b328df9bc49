package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/playmate/server/internal/apperr"
	"github.com/playmate/server/internal/notify"
	"github.com/playmate/server/internal/observability/logging"
	"github.com/playmate/server/internal/observability/metrics"
	"github.com/playmate/server/internal/repo"
)

const otpLength = 6

// OtpProvider issues and checks one-time codes
type OtpProvider interface {
	// RequestOTP stores a fresh code for phone and attempts delivery.
	// devCode is the plaintext code when dev mode is on, empty otherwise.
	RequestOTP(ctx context.Context, phone string) (devCode string, err error)
	// VerifyOTP consumes the most recent unexpired code for phone if it matches
	VerifyOTP(ctx context.Context, phone, code string) error
}

// OtpService implements OtpProvider on an OtpRepo. Codes are stored as salted hashes.
type OtpService struct {
	otps    repo.OtpRepo
	sms     notify.SMSSender
	salt    string
	ttl     time.Duration
	devMode bool
	logger  *slog.Logger
	metrics *metrics.Registry
	now     func() time.Time
}

// OtpConfig configures an OtpService
type OtpConfig struct {
	Salt    string
	TTL     time.Duration
	DevMode bool
}

// NewOtpService creates a new OTP provider
func NewOtpService(otps repo.OtpRepo, sms notify.SMSSender, cfg OtpConfig, logger *slog.Logger, m *metrics.Registry) *OtpService {
	return &OtpService{
		otps:    otps,
		sms:     sms,
		salt:    cfg.Salt,
		ttl:     cfg.TTL,
		devMode: cfg.DevMode,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// WithClock replaces the service clock; used by tests
func (p *OtpService) WithClock(now func() time.Time) *OtpService {
	p.now = now
	return p
}

// RequestOTP persists a new code, then tries SMS delivery. Delivery failure is
// logged and does not fail the request.
func (p *OtpService) RequestOTP(ctx context.Context, phone string) (string, error) {
	code, err := generateOTPCode()
	if err != nil {
		return "", apperr.Internal("generate otp", err)
	}
	now := p.now()
	if _, err := p.otps.Create(ctx, phone, hashOTPHex(phone, code, p.salt), now.Add(p.ttl), now); err != nil {
		return "", apperr.Internal("store otp", err)
	}

	delivery := "sent"
	if err := p.sms.SendOTP(ctx, phone, code); err != nil {
		delivery = "failed"
		p.logger.WarnContext(ctx, "otp delivery failed", logging.Phone(phone), slog.Any("error", err))
	}
	p.metrics.OTPRequestsTotal.WithLabelValues(delivery).Inc()

	if p.devMode {
		return code, nil
	}
	return "", nil
}

// VerifyOTP checks code against the most recently issued unexpired code for phone
// and marks it verified.
func (p *OtpService) VerifyOTP(ctx context.Context, phone, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return apperr.Validation("otp is required")
	}
	_, err := p.otps.ConsumeLatest(ctx, phone, hashOTPHex(phone, code, p.salt), p.now())
	switch {
	case err == nil:
		p.metrics.OTPVerificationsTotal.WithLabelValues("ok").Inc()
		return nil
	case errors.Is(err, repo.ErrNotFound):
		p.metrics.OTPVerificationsTotal.WithLabelValues("invalid").Inc()
		return apperr.ErrInvalidOrExpiredCode
	default:
		p.metrics.OTPVerificationsTotal.WithLabelValues("error").Inc()
		return apperr.Internal("verify otp", err)
	}
}

func generateOTPCode() (string, error) {
	max := big.NewInt(900000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpLength, n.Int64()+100000), nil
}

// hashOTPHex returns SHA-256(phone:code:salt) as hex for DB storage
func hashOTPHex(phone, code, salt string) string {
	data := fmt.Sprintf("%s:%s:%s", phone, code, salt)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
