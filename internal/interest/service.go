// Package interest implements the interest ledger: a directed request from
// one user to another, one row per ordered pair, cycling
// pending → accepted | declined | withdrawn, with declined and withdrawn
// rows reactivated in place by a fresh send.
package interest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/playmate/server/internal/apperr"
	"github.com/playmate/server/internal/model"
	"github.com/playmate/server/internal/notify"
	"github.com/playmate/server/internal/observability/metrics"
	"github.com/playmate/server/internal/repo"
)

var (
	anyStatus = []model.InterestStatus{
		model.InterestPending, model.InterestAccepted, model.InterestDeclined, model.InterestWithdrawn,
	}
	pendingOnly = []model.InterestStatus{model.InterestPending}
)

// Config configures the daily send quota
type Config struct {
	DailyLimit int
	// Location defines the local midnight at which the quota resets
	Location *time.Location
}

// Service runs interest state transitions
type Service struct {
	interests repo.InterestRepo
	users     repo.UserRepo
	notifier  notify.Notifier
	cfg       Config
	logger    *slog.Logger
	metrics   *metrics.Registry
	now       func() time.Time
}

// NewService creates an interest service
func NewService(
	interests repo.InterestRepo,
	users repo.UserRepo,
	notifier notify.Notifier,
	cfg Config,
	logger *slog.Logger,
	m *metrics.Registry,
) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Service{
		interests: interests,
		users:     users,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

// WithClock replaces the service clock; used by tests
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// StartOfDay returns local midnight of the day containing t
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Send creates a pending interest from sender to receiver, or reactivates a
// declined/withdrawn one for the same ordered pair.
func (s *Service) Send(ctx context.Context, sender model.User, receiverID uuid.UUID) (model.Interest, error) {
	in, err := s.send(ctx, sender, receiverID)
	s.observe("send", err)
	return in, err
}

func (s *Service) send(ctx context.Context, sender model.User, receiverID uuid.UUID) (model.Interest, error) {
	if receiverID == uuid.Nil {
		return model.Interest{}, apperr.Validation("receiverId is required")
	}
	if receiverID == sender.ID {
		return model.Interest{}, apperr.Validation("cannot send interest to yourself")
	}
	now := s.now()

	sent, err := s.interests.CountSentSince(ctx, sender.ID, StartOfDay(now, s.cfg.Location))
	if err != nil {
		return model.Interest{}, apperr.Internal("count interests sent today", err)
	}
	if sent >= s.cfg.DailyLimit {
		return model.Interest{}, apperr.ErrDailyLimitExceeded
	}

	receiver, err := s.users.GetByID(ctx, receiverID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Interest{}, apperr.ErrNotFound
		}
		return model.Interest{}, apperr.Internal("load receiver", err)
	}
	if !receiver.IsActive {
		return model.Interest{}, apperr.ErrNotFound
	}

	in, err := s.interests.Upsert(ctx, sender.ID, receiverID, now)
	if err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return model.Interest{}, apperr.ErrInterestAlreadyActive
		}
		return model.Interest{}, apperr.Internal("save interest", err)
	}

	if err := s.notifier.InterestReceived(ctx, receiver, sender); err != nil {
		s.logger.WarnContext(ctx, "interest notification failed",
			slog.String("interest_id", in.ID.String()), slog.Any("error", err))
	}
	return in, nil
}

// Accept marks a pending interest accepted. Only the receiver may accept.
func (s *Service) Accept(ctx context.Context, actor uuid.UUID, interestID uuid.UUID) (model.Interest, error) {
	in, err := s.respond(ctx, actor, interestID, model.InterestAccepted)
	s.observe("accept", err)
	if err != nil {
		return model.Interest{}, err
	}
	s.notifyAccepted(ctx, in)
	return in, nil
}

// Decline marks a pending interest declined. Only the receiver may decline.
func (s *Service) Decline(ctx context.Context, actor uuid.UUID, interestID uuid.UUID) (model.Interest, error) {
	in, err := s.respond(ctx, actor, interestID, model.InterestDeclined)
	s.observe("decline", err)
	return in, err
}

// Withdraw marks an interest withdrawn from any status. Either party may withdraw.
func (s *Service) Withdraw(ctx context.Context, actor uuid.UUID, interestID uuid.UUID) (model.Interest, error) {
	in, err := s.withdraw(ctx, actor, interestID)
	s.observe("withdraw", err)
	return in, err
}

func (s *Service) withdraw(ctx context.Context, actor uuid.UUID, interestID uuid.UUID) (model.Interest, error) {
	current, err := s.load(ctx, interestID)
	if err != nil {
		return model.Interest{}, err
	}
	if current.SenderID != actor && current.ReceiverID != actor {
		return model.Interest{}, apperr.ErrNotFound
	}
	return s.transition(ctx, interestID, anyStatus, model.InterestWithdrawn)
}

func (s *Service) respond(ctx context.Context, actor uuid.UUID, interestID uuid.UUID, to model.InterestStatus) (model.Interest, error) {
	current, err := s.load(ctx, interestID)
	if err != nil {
		return model.Interest{}, err
	}
	if current.ReceiverID != actor {
		return model.Interest{}, apperr.ErrNotFound
	}
	if current.Status != model.InterestPending {
		return model.Interest{}, apperr.ErrAlreadyResponded
	}
	return s.transition(ctx, interestID, pendingOnly, to)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, from []model.InterestStatus, to model.InterestStatus) (model.Interest, error) {
	in, err := s.interests.Transition(ctx, id, from, to, s.now())
	switch {
	case err == nil:
		return in, nil
	case errors.Is(err, repo.ErrNotFound):
		return model.Interest{}, apperr.ErrNotFound
	case errors.Is(err, repo.ErrConflict):
		// lost a race with a concurrent response
		return model.Interest{}, apperr.ErrAlreadyResponded
	default:
		return model.Interest{}, apperr.Internal("update interest", err)
	}
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (model.Interest, error) {
	in, err := s.interests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Interest{}, apperr.ErrNotFound
		}
		return model.Interest{}, apperr.Internal("load interest", err)
	}
	return in, nil
}

func (s *Service) notifyAccepted(ctx context.Context, in model.Interest) {
	sender, err := s.users.GetByID(ctx, in.SenderID)
	if err != nil {
		s.logger.WarnContext(ctx, "accept notification skipped",
			slog.String("interest_id", in.ID.String()), slog.Any("error", err))
		return
	}
	receiver, err := s.users.GetByID(ctx, in.ReceiverID)
	if err != nil {
		s.logger.WarnContext(ctx, "accept notification skipped",
			slog.String("interest_id", in.ID.String()), slog.Any("error", err))
		return
	}
	if err := s.notifier.InterestAccepted(ctx, sender, receiver); err != nil {
		s.logger.WarnContext(ctx, "interest notification failed",
			slog.String("interest_id", in.ID.String()), slog.Any("error", err))
	}
}

// Received lists interests sent to user, newest first, with the sender's profile
func (s *Service) Received(ctx context.Context, userID uuid.UUID) ([]model.InterestWithUser, error) {
	out, err := s.interests.ListReceived(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("list received interests", err)
	}
	return out, nil
}

// Sent lists interests sent by user, newest first, with the receiver's profile
func (s *Service) Sent(ctx context.Context, userID uuid.UUID) ([]model.InterestWithUser, error) {
	out, err := s.interests.ListSent(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("list sent interests", err)
	}
	return out, nil
}

// PendingCount returns how many received interests await a response
func (s *Service) PendingCount(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := s.interests.CountPendingReceived(ctx, userID)
	if err != nil {
		return 0, apperr.Internal("count pending interests", err)
	}
	return n, nil
}

// CountToday returns how many interests user has sent since local midnight
func (s *Service) CountToday(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := s.interests.CountSentSince(ctx, userID, StartOfDay(s.now(), s.cfg.Location))
	if err != nil {
		return 0, apperr.Internal("count interests sent today", err)
	}
	return n, nil
}

// DailyLimit returns the configured per-day send quota
func (s *Service) DailyLimit() int { return s.cfg.DailyLimit }

func (s *Service) observe(action string, err error) {
	s.metrics.InterestTransitionsTotal.WithLabelValues(action, metrics.Result(err)).Inc()
}
