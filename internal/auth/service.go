package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/playmate/server/internal/apperr"
	"github.com/playmate/server/internal/model"
	"github.com/playmate/server/internal/observability/logging"
	"github.com/playmate/server/internal/observability/metrics"
	"github.com/playmate/server/internal/profile"
	"github.com/playmate/server/internal/repo"
)

// SessionConfig sets session lifetimes
type SessionConfig struct {
	BridgeTTL time.Duration
	FullTTL   time.Duration
}

// Issued is a newly created session and its plaintext token
type Issued struct {
	Token   string
	Session model.Session
	// User is set for full sessions
	User *model.User
}

// RequiresRegistration reports whether the session only bridges OTP verification to registration
func (i Issued) RequiresRegistration() bool { return !i.Session.Complete() }

// Identity is a resolved request session
type Identity struct {
	Session model.Session
	// User is set for full sessions
	User *model.User
}

// AuthService orchestrates the OTP → bridge session → full session lifecycle
type AuthService struct {
	otp      OtpProvider
	users    repo.UserRepo
	sessions repo.SessionRepo
	cfg      SessionConfig
	logger   *slog.Logger
	metrics  *metrics.Registry
	now      func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(
	otp OtpProvider,
	users repo.UserRepo,
	sessions repo.SessionRepo,
	cfg SessionConfig,
	logger *slog.Logger,
	m *metrics.Registry,
) *AuthService {
	return &AuthService{
		otp:      otp,
		users:    users,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// WithClock replaces the service clock; used by tests
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// SendOTP validates the phone and issues a code. devCode is only set in dev mode.
func (s *AuthService) SendOTP(ctx context.Context, phone string) (devCode string, err error) {
	phone, err = profile.ValidatePhone(phone)
	if err != nil {
		return "", err
	}
	return s.otp.RequestOTP(ctx, phone)
}

// VerifyOTP consumes the code and issues a session: a full session when the
// phone already belongs to a user, a bridge session otherwise.
func (s *AuthService) VerifyOTP(ctx context.Context, phone, code string) (Issued, error) {
	phone, err := profile.ValidatePhone(phone)
	if err != nil {
		return Issued{}, err
	}
	if err := s.otp.VerifyOTP(ctx, phone, code); err != nil {
		return Issued{}, err
	}

	user, err := s.users.GetByPhone(ctx, phone)
	switch {
	case err == nil:
		return s.issue(ctx, phone, &user)
	case errors.Is(err, repo.ErrNotFound):
		return s.issue(ctx, phone, nil)
	default:
		return Issued{}, apperr.Internal("lookup user by phone", err)
	}
}

// CompleteRegistration creates the user for a bridge session and swaps the
// bridge session for a full one. User and activities are written atomically.
func (s *AuthService) CompleteRegistration(ctx context.Context, bridge model.Session, in profile.Input) (Issued, error) {
	issued, err := s.completeRegistration(ctx, bridge, in)
	s.metrics.RegistrationsTotal.WithLabelValues(metrics.Result(err)).Inc()
	return issued, err
}

func (s *AuthService) completeRegistration(ctx context.Context, bridge model.Session, in profile.Input) (Issued, error) {
	if bridge.Complete() {
		return Issued{}, apperr.ErrAlreadyRegistered
	}
	if strings.TrimSpace(in.PhoneNumber) != bridge.PhoneNumber {
		return Issued{}, apperr.ErrPhoneMismatch
	}
	if _, err := s.users.GetByPhone(ctx, bridge.PhoneNumber); err == nil {
		return Issued{}, apperr.ErrAlreadyRegistered
	} else if !errors.Is(err, repo.ErrNotFound) {
		return Issued{}, apperr.Internal("lookup user by phone", err)
	}

	user, activities, err := in.Build(s.now())
	if err != nil {
		return Issued{}, err
	}
	created, err := s.users.CreateWithActivities(ctx, user, activities)
	if err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return Issued{}, apperr.ErrAlreadyRegistered
		}
		return Issued{}, apperr.Internal("create user", err)
	}

	if err := s.sessions.Delete(ctx, bridge.ID); err != nil && !errors.Is(err, repo.ErrNotFound) {
		s.logger.WarnContext(ctx, "failed to delete bridge session",
			slog.String("session_id", bridge.ID.String()), slog.Any("error", err))
	}
	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", created.ID.String()), logging.Phone(created.PhoneNumber))
	return s.issue(ctx, created.PhoneNumber, &created)
}

// Authenticate resolves a token to its session, loading the user for full sessions
func (s *AuthService) Authenticate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, apperr.ErrUnauthenticated
	}
	session, err := s.sessions.GetActiveByTokenHash(ctx, HashToken(token), s.now())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Identity{}, apperr.ErrSessionExpired
		}
		return Identity{}, apperr.Internal("load session", err)
	}
	id := Identity{Session: session}
	if !session.Complete() {
		return id, nil
	}
	user, err := s.users.GetByID(ctx, *session.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Identity{}, apperr.ErrSessionExpired
		}
		return Identity{}, apperr.Internal("load session user", err)
	}
	id.User = &user
	return id, nil
}

// Logout deletes the session
func (s *AuthService) Logout(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return apperr.Internal("delete session", err)
	}
	return nil
}

func (s *AuthService) issue(ctx context.Context, phone string, user *model.User) (Issued, error) {
	token, hash, err := GenerateSessionToken()
	if err != nil {
		return Issued{}, apperr.Internal("generate session token", err)
	}
	now := s.now()
	session := model.Session{
		TokenHash:   hash,
		PhoneNumber: phone,
		Kind:        model.SessionOtpVerified,
		ExpiresAt:   now.Add(s.cfg.BridgeTTL),
	}
	if user != nil {
		session.UserID = &user.ID
		session.Kind = model.SessionProfileComplete
		session.ExpiresAt = now.Add(s.cfg.FullTTL)
	}
	created, err := s.sessions.Create(ctx, session)
	if err != nil {
		return Issued{}, apperr.Internal("create session", fmt.Errorf("kind %s: %w", session.Kind, err))
	}
	return Issued{Token: token, Session: created, User: user}, nil
}
