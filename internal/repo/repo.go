package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/playmate/server/internal/model"
)

var (
	// ErrNotFound is returned when no row matches
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a uniqueness rule rejects a write
	ErrConflict = errors.New("conflict")
)

// UserRepo stores user profiles and their activities
type UserRepo interface {
	// CreateWithActivities inserts the user and all activities atomically.
	// Returns ErrConflict if the phone number is already registered.
	CreateWithActivities(ctx context.Context, user model.User, activities []model.Activity) (model.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.User, error)
	GetByPhone(ctx context.Context, phone string) (model.User, error)
	// Update writes the mutable profile fields. When activities is non-nil the
	// user's activities are replaced wholesale in the same transaction.
	Update(ctx context.Context, user model.User, activities *[]model.Activity) (model.User, error)
	SetPhotoURL(ctx context.Context, id uuid.UUID, photoURL *string) error
	Search(ctx context.Context, q model.SearchQuery) (model.SearchResult, error)
	// FilterOptions returns facets over the searchable population; a non-nil
	// viewer applies the same interest exclusion as Search.
	FilterOptions(ctx context.Context, viewer *uuid.UUID) (model.FilterOptions, error)
}

// InterestRepo stores interests, one row per ordered (sender, receiver) pair
type InterestRepo interface {
	CountSentSince(ctx context.Context, senderID uuid.UUID, since time.Time) (int, error)
	// Upsert inserts a pending interest or reactivates a declined/withdrawn
	// row for the same ordered pair. Returns ErrConflict if the existing row
	// is pending or accepted.
	Upsert(ctx context.Context, senderID, receiverID uuid.UUID, now time.Time) (model.Interest, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.Interest, error)
	// Transition moves an interest to status `to` only if its current status
	// is one of `from`. Returns ErrConflict when the guard fails.
	Transition(ctx context.Context, id uuid.UUID, from []model.InterestStatus, to model.InterestStatus, at time.Time) (model.Interest, error)
	ListReceived(ctx context.Context, userID uuid.UUID) ([]model.InterestWithUser, error)
	ListSent(ctx context.Context, userID uuid.UUID) ([]model.InterestWithUser, error)
	CountPendingReceived(ctx context.Context, userID uuid.UUID) (int, error)
	HasAcceptedBetween(ctx context.Context, a, b uuid.UUID) (bool, error)
}

// SessionRepo stores auth sessions keyed by token hash
type SessionRepo interface {
	Create(ctx context.Context, session model.Session) (model.Session, error)
	// GetActiveByTokenHash returns the session if it exists and has not expired at now
	GetActiveByTokenHash(ctx context.Context, tokenHash string, now time.Time) (model.Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// OtpRepo stores issued one-time codes
type OtpRepo interface {
	// Create stores a new code and invalidates older unverified codes for the phone
	Create(ctx context.Context, phone, codeHash string, expiresAt, now time.Time) (model.OtpVerification, error)
	// ConsumeLatest marks the most recent unverified, unexpired code for the
	// phone verified if its hash matches. Returns ErrNotFound otherwise.
	ConsumeLatest(ctx context.Context, phone, codeHash string, now time.Time) (model.OtpVerification, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ArticleRepo stores synced news articles
type ArticleRepo interface {
	// UpsertMany inserts or refreshes articles by external id and returns how many were written
	UpsertMany(ctx context.Context, articles []model.Article) (int, error)
	List(ctx context.Context, sport string, limit, offset int) ([]model.Article, int, error)
}

// querier is satisfied by *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
