// Package janitor purges expired sessions and one-time codes on a fixed interval.
package janitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/playmate/server/internal/observability/metrics"
	"github.com/playmate/server/internal/repo"
)

// Janitor deletes expired rows. It holds no state between sweeps.
type Janitor struct {
	sessions repo.SessionRepo
	otps     repo.OtpRepo
	logger   *slog.Logger
	metrics  *metrics.Registry
	now      func() time.Time
}

func New(sessions repo.SessionRepo, otps repo.OtpRepo, logger *slog.Logger, m *metrics.Registry) *Janitor {
	return &Janitor{sessions: sessions, otps: otps, logger: logger, metrics: m, now: time.Now}
}

// WithClock replaces the janitor clock; used by tests
func (j *Janitor) WithClock(now func() time.Time) *Janitor {
	j.now = now
	return j
}

// Sweep runs one purge. A failure on one table does not skip the other.
func (j *Janitor) Sweep(ctx context.Context) (sessions, otps int64) {
	now := j.now()
	sessions, err := j.sessions.DeleteExpired(ctx, now)
	if err != nil {
		j.logger.WarnContext(ctx, "session sweep failed", slog.Any("error", err))
	}
	otps, err = j.otps.DeleteExpired(ctx, now)
	if err != nil {
		j.logger.WarnContext(ctx, "otp sweep failed", slog.Any("error", err))
	}
	j.metrics.SweepDeletedTotal.WithLabelValues("sessions").Add(float64(sessions))
	j.metrics.SweepDeletedTotal.WithLabelValues("otp_verifications").Add(float64(otps))
	if sessions > 0 || otps > 0 {
		j.logger.DebugContext(ctx, "sweep complete", slog.Int64("sessions", sessions), slog.Int64("otps", otps))
	}
	return sessions, otps
}

// Start sweeps every interval until ctx is done. It returns a channel closed when the loop exits.
func (j *Janitor) Start(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.Sweep(ctx)
			}
		}
	}()
	return done
}
