package interest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/playmate/server/internal/apperr"
	"github.com/playmate/server/internal/model"
	"github.com/playmate/server/internal/observability/logging"
	"github.com/playmate/server/internal/observability/metrics"
	"github.com/playmate/server/internal/repo/memrepo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	received int
	accepted int
	fail     bool
}

func (n *recordingNotifier) InterestReceived(context.Context, model.User, model.User) error {
	n.received++
	if n.fail {
		return errors.New("push failed")
	}
	return nil
}

func (n *recordingNotifier) InterestAccepted(context.Context, model.User, model.User) error {
	n.accepted++
	if n.fail {
		return errors.New("push failed")
	}
	return nil
}

type fixture struct {
	store    *memrepo.Store
	svc      *Service
	notifier *recordingNotifier
	now      time.Time
	loc      *time.Location
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loc := time.FixedZone("IST", 5*3600+1800)
	f := &fixture{
		store:    memrepo.New(),
		notifier: &recordingNotifier{},
		loc:      loc,
		now:      time.Date(2026, 4, 10, 15, 0, 0, 0, loc),
	}
	f.svc = NewService(f.store.Interests(), f.store.Users(), f.notifier,
		Config{DailyLimit: 10, Location: loc}, logging.Discard(), metrics.New("test")).
		WithClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) user(t *testing.T, n int) model.User {
	t.Helper()
	u, err := f.store.Users().CreateWithActivities(context.Background(), model.User{
		PhoneNumber: fmt.Sprintf("90000%05d", n),
		Name:        fmt.Sprintf("user %d", n),
		UserType:    model.UserTypePlayer,
		DateOfBirth: time.Date(1995, 1, 1, 0, 0, 0, 0, time.UTC),
		City:        "Pune",
		IsVisible:   true,
		IsActive:    true,
	}, []model.Activity{{Name: "Tennis", SkillLevel: model.SkillLearner}})
	require.NoError(t, err)
	return u
}

func TestSend_twiceIsConflictWithOneRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, 1), f.user(t, 2)

	in, err := f.svc.Send(ctx, a, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InterestPending, in.Status)
	assert.Equal(t, 1, f.notifier.received)

	_, err = f.svc.Send(ctx, a, b.ID)
	assert.ErrorIs(t, err, apperr.ErrInterestAlreadyActive)
	assert.Equal(t, 1, f.store.InterestCount())

	// the reverse pair is independent
	rev, err := f.svc.Send(ctx, b, a.ID)
	require.NoError(t, err)
	assert.NotEqual(t, in.ID, rev.ID)
	assert.Equal(t, 2, f.store.InterestCount())
}

func TestSend_rejectsSelfAndUnknownReceiver(t *testing.T) {
	f := newFixture(t)
	a := f.user(t, 1)

	_, err := f.svc.Send(context.Background(), a, a.ID)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.svc.Send(context.Background(), a, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSend_notificationFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	f.notifier.fail = true
	a, b := f.user(t, 1), f.user(t, 2)

	in, err := f.svc.Send(context.Background(), a, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InterestPending, in.Status)
}

func TestDeclineThenResendReusesRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, 1), f.user(t, 2)

	first, err := f.svc.Send(ctx, a, b.ID)
	require.NoError(t, err)
	declined, err := f.svc.Decline(ctx, b.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InterestDeclined, declined.Status)
	require.NotNil(t, declined.RespondedAt)

	f.now = f.now.Add(time.Hour)
	again, err := f.svc.Send(ctx, a, b.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, model.InterestPending, again.Status)
	assert.Nil(t, again.RespondedAt)
	assert.True(t, again.SentAt.Equal(f.now))
	assert.Equal(t, 1, f.store.InterestCount())
}

func TestWithdrawThenResendReusesRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, 1), f.user(t, 2)

	first, err := f.svc.Send(ctx, a, b.ID)
	require.NoError(t, err)
	_, err = f.svc.Withdraw(ctx, a.ID, first.ID)
	require.NoError(t, err)

	again, err := f.svc.Send(ctx, a, b.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, 1, f.store.InterestCount())
}

func TestAcceptDecline_onlyReceiver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b, c := f.user(t, 1), f.user(t, 2), f.user(t, 3)

	in, err := f.svc.Send(ctx, a, b.ID)
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, a.ID, in.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.svc.Decline(ctx, a.ID, in.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.svc.Accept(ctx, c.ID, in.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.svc.Withdraw(ctx, c.ID, in.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.svc.Accept(ctx, b.ID, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSecondResponseIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, 1), f.user(t, 2)

	in, err := f.svc.Send(ctx, a, b.ID)
	require.NoError(t, err)
	accepted, err := f.svc.Accept(ctx, b.ID, in.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InterestAccepted, accepted.Status)
	assert.Equal(t, 1, f.notifier.accepted)

	_, err = f.svc.Accept(ctx, b.ID, in.ID)
	assert.ErrorIs(t, err, apperr.ErrAlreadyResponded)
	_, err = f.svc.Decline(ctx, b.ID, in.ID)
	assert.ErrorIs(t, err, apperr.ErrAlreadyResponded)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// accepted blocks a resend
	_, err = f.svc.Send(ctx, a, b.ID)
	assert.ErrorIs(t, err, apperr.ErrInterestAlreadyActive)
}

func TestWithdraw_eitherPartyAnyStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, 1), f.user(t, 2)

	in, err := f.svc.Send(ctx, a, b.ID)
	require.NoError(t, err)
	_, err = f.svc.Accept(ctx, b.ID, in.ID)
	require.NoError(t, err)

	w, err := f.svc.Withdraw(ctx, b.ID, in.ID)
	require.NoError(t, err, "receiver may withdraw an accepted interest")
	assert.Equal(t, model.InterestWithdrawn, w.Status)

	w, err = f.svc.Withdraw(ctx, a.ID, in.ID)
	require.NoError(t, err, "withdrawn may be withdrawn again")
	assert.Equal(t, model.InterestWithdrawn, w.Status)
}

func TestDailyLimitResetsAtLocalMidnight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sender := f.user(t, 0)
	f.now = time.Date(2026, 4, 10, 23, 50, 0, 0, f.loc)

	for i := 1; i <= 10; i++ {
		_, err := f.svc.Send(ctx, sender, f.user(t, i).ID)
		require.NoError(t, err)
	}
	n, err := f.svc.CountToday(ctx, sender.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	extra := f.user(t, 11)
	_, err = f.svc.Send(ctx, sender, extra.ID)
	assert.ErrorIs(t, err, apperr.ErrDailyLimitExceeded)
	assert.Equal(t, http.StatusBadRequest, apperr.Status(err))

	f.now = time.Date(2026, 4, 11, 0, 0, 1, 0, f.loc)
	_, err = f.svc.Send(ctx, sender, extra.ID)
	require.NoError(t, err)
	n, err = f.svc.CountToday(ctx, sender.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDailyLimitCountsReactivations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, 1), f.user(t, 2)

	f.now = time.Date(2026, 4, 9, 22, 0, 0, 0, f.loc)
	in, err := f.svc.Send(ctx, a, b.ID)
	require.NoError(t, err)
	_, err = f.svc.Withdraw(ctx, a.ID, in.ID)
	require.NoError(t, err)

	f.now = time.Date(2026, 4, 10, 9, 0, 0, 0, f.loc)
	n, err := f.svc.CountToday(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = f.svc.Send(ctx, a, b.ID)
	require.NoError(t, err)
	n, err = f.svc.CountToday(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "a reactivated row counts toward today's quota")
}

func TestListsAndPendingCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b, c := f.user(t, 1), f.user(t, 2), f.user(t, 3)

	_, err := f.svc.Send(ctx, a, c.ID)
	require.NoError(t, err)
	f.now = f.now.Add(time.Minute)
	in, err := f.svc.Send(ctx, b, c.ID)
	require.NoError(t, err)

	received, err := f.svc.Received(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, received, 2)
	assert.Equal(t, b.ID, received[0].Counterpart.ID, "newest first")
	assert.Equal(t, a.ID, received[1].Counterpart.ID)
	assert.Len(t, received[0].Counterpart.Activities, 1)

	sent, err := f.svc.Sent(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, c.ID, sent[0].Counterpart.ID)

	n, err := f.svc.PendingCount(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = f.svc.Decline(ctx, c.ID, in.ID)
	require.NoError(t, err)
	n, err = f.svc.PendingCount(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("X", -5*3600)
	utc := time.Date(2026, 4, 11, 3, 0, 0, 0, time.UTC) // 22:00 on the 10th in X
	got := StartOfDay(utc, loc)
	assert.Equal(t, time.Date(2026, 4, 10, 0, 0, 0, 0, loc), got)
}
