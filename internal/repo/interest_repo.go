package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/playmate/server/internal/model"
)

const interestColumns = `i.id, i.sender_id, i.receiver_id, i.status, i.sent_at, i.responded_at`

type interestRepo struct {
	db *sql.DB
}

// NewInterestRepo creates a new InterestRepo instance
func NewInterestRepo(db *sql.DB) InterestRepo {
	return &interestRepo{db: db}
}

func scanInterest(row scanner, extra ...any) (model.Interest, error) {
	var in model.Interest
	var status string
	dest := append([]any{&in.ID, &in.SenderID, &in.ReceiverID, &status, &in.SentAt, &in.RespondedAt}, extra...)
	err := row.Scan(dest...)
	in.Status = model.InterestStatus(status)
	return in, err
}

// CountSentSince counts interests whose sent_at is at or after since
func (r *interestRepo) CountSentSince(ctx context.Context, senderID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM interests WHERE sender_id = $1 AND sent_at >= $2
	`, senderID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count sent interests: %w", err)
	}
	return count, nil
}

// Upsert inserts or reactivates the interest for the ordered pair in a single statement.
// The ON CONFLICT ... WHERE guard leaves pending/accepted rows untouched, in which
// case no row is returned.
func (r *interestRepo) Upsert(ctx context.Context, senderID, receiverID uuid.UUID, now time.Time) (model.Interest, error) {
	in, err := scanInterest(r.db.QueryRowContext(ctx, `
		INSERT INTO interests AS i (sender_id, receiver_id, status, sent_at)
		VALUES ($1, $2, 'pending', $3)
		ON CONFLICT (sender_id, receiver_id) DO UPDATE
		SET status = 'pending', sent_at = EXCLUDED.sent_at, responded_at = NULL
		WHERE i.status IN ('declined', 'withdrawn')
		RETURNING `+interestColumns,
		senderID, receiverID, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Interest{}, ErrConflict
		}
		return model.Interest{}, fmt.Errorf("upsert interest: %w", err)
	}
	return in, nil
}

// GetByID retrieves an interest by ID
func (r *interestRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Interest, error) {
	in, err := scanInterest(r.db.QueryRowContext(ctx, `SELECT `+interestColumns+` FROM interests i WHERE i.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Interest{}, ErrNotFound
		}
		return model.Interest{}, fmt.Errorf("query interest: %w", err)
	}
	return in, nil
}

// Transition conditionally updates the status; the guard is evaluated in the UPDATE itself
func (r *interestRepo) Transition(ctx context.Context, id uuid.UUID, from []model.InterestStatus, to model.InterestStatus, at time.Time) (model.Interest, error) {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}
	in, err := scanInterest(r.db.QueryRowContext(ctx, `
		UPDATE interests AS i
		SET status = $2, responded_at = $3
		WHERE i.id = $1 AND i.status = ANY($4)
		RETURNING `+interestColumns,
		id, string(to), at, pq.Array(allowed)))
	if err == nil {
		return in, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.Interest{}, fmt.Errorf("transition interest: %w", err)
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return model.Interest{}, err
	}
	return model.Interest{}, ErrConflict
}

// ListReceived returns interests received by the user with the sender's profile
func (r *interestRepo) ListReceived(ctx context.Context, userID uuid.UUID) ([]model.InterestWithUser, error) {
	return r.list(ctx, `
		SELECT `+interestColumns+`, `+userColumns+`
		FROM interests i JOIN users u ON u.id = i.sender_id
		WHERE i.receiver_id = $1
		ORDER BY i.sent_at DESC`, userID)
}

// ListSent returns interests sent by the user with the receiver's profile
func (r *interestRepo) ListSent(ctx context.Context, userID uuid.UUID) ([]model.InterestWithUser, error) {
	return r.list(ctx, `
		SELECT `+interestColumns+`, `+userColumns+`
		FROM interests i JOIN users u ON u.id = i.receiver_id
		WHERE i.sender_id = $1
		ORDER BY i.sent_at DESC`, userID)
}

func (r *interestRepo) list(ctx context.Context, query string, userID uuid.UUID) ([]model.InterestWithUser, error) {
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list interests: %w", err)
	}
	defer rows.Close()

	out := []model.InterestWithUser{}
	var ids []uuid.UUID
	for rows.Next() {
		var item model.InterestWithUser
		var u model.User
		var userType string
		in, err := scanInterest(rows,
			&u.ID, &u.PhoneNumber, &u.Email, &u.Name, &userType, &u.DateOfBirth, &u.Workplace,
			&u.Bio, &u.PhotoURL, &u.Latitude, &u.Longitude, &u.LocationName, &u.City, &u.Society,
			&u.IsVisible, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan interest: %w", err)
		}
		u.UserType = model.UserType(userType)
		item.Interest = in
		item.Counterpart = u
		out = append(out, item)
		ids = append(ids, u.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interests: %w", err)
	}

	byUser, err := loadActivities(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Counterpart.Activities = byUser[out[i].Counterpart.ID]
	}
	return out, nil
}

// CountPendingReceived returns the number of pending interests awaiting the user's response
func (r *interestRepo) CountPendingReceived(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM interests WHERE receiver_id = $1 AND status = 'pending'
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending interests: %w", err)
	}
	return count, nil
}

// HasAcceptedBetween reports whether an accepted interest exists in either direction
func (r *interestRepo) HasAcceptedBetween(ctx context.Context, a, b uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM interests
			WHERE status = 'accepted'
			  AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
		)
	`, a, b).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check accepted interest: %w", err)
	}
	return exists, nil
}
