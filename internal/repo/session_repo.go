package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/playmate/server/internal/model"
)

type sessionRepo struct {
	db *sql.DB
}

// NewSessionRepo creates a new SessionRepo instance
func NewSessionRepo(db *sql.DB) SessionRepo {
	return &sessionRepo{db: db}
}

// Create inserts a new session; only the token hash is stored
func (r *sessionRepo) Create(ctx context.Context, s model.Session) (model.Session, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO sessions (token_hash, phone_number, user_id, kind, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, s.TokenHash, s.PhoneNumber, s.UserID, string(s.Kind), s.ExpiresAt).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Session{}, ErrConflict
		}
		return model.Session{}, fmt.Errorf("insert session: %w", err)
	}
	return s, nil
}

// GetActiveByTokenHash returns the session if it exists and expires after now
func (r *sessionRepo) GetActiveByTokenHash(ctx context.Context, tokenHash string, now time.Time) (model.Session, error) {
	var s model.Session
	var kind string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, token_hash, phone_number, user_id, kind, expires_at, created_at
		FROM sessions
		WHERE token_hash = $1 AND expires_at > $2
	`, tokenHash, now).Scan(
		&s.ID,
		&s.TokenHash,
		&s.PhoneNumber,
		&s.UserID,
		&kind,
		&s.ExpiresAt,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Session{}, ErrNotFound
		}
		return model.Session{}, fmt.Errorf("find session: %w", err)
	}
	s.Kind = model.SessionKind(kind)
	return s, nil
}

// Delete removes a session
func (r *sessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpired purges sessions that expired at or before now
func (r *sessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
