package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/playmate/server/internal/model"
)

type otpRepo struct {
	db *sql.DB
}

// NewOtpRepo creates a new OtpRepo instance
func NewOtpRepo(db *sql.DB) OtpRepo {
	return &otpRepo{db: db}
}

// Create invalidates any outstanding codes for the phone and inserts a new one.
// Uses an advisory lock so concurrent sends for the same phone serialize.
func (r *otpRepo) Create(ctx context.Context, phone, codeHash string, expiresAt, now time.Time) (model.OtpVerification, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.OtpVerification{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(1, hashtext($1))`, phone); err != nil {
		return model.OtpVerification{}, fmt.Errorf("advisory lock: %w", err)
	}

	// Older codes stay as rows but can no longer match.
	_, err = tx.ExecContext(ctx, `
		UPDATE otp_verifications
		SET expires_at = $2
		WHERE phone_number = $1 AND verified = FALSE AND expires_at > $2
	`, phone, now)
	if err != nil {
		return model.OtpVerification{}, fmt.Errorf("invalidate previous codes: %w", err)
	}

	otp := model.OtpVerification{PhoneNumber: phone, CodeHash: codeHash, ExpiresAt: expiresAt}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO otp_verifications (phone_number, code_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, phone, codeHash, expiresAt, now).Scan(&otp.ID, &otp.CreatedAt)
	if err != nil {
		return model.OtpVerification{}, fmt.Errorf("insert otp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.OtpVerification{}, fmt.Errorf("commit: %w", err)
	}
	return otp, nil
}

// ConsumeLatest marks the newest matching unverified, unexpired code as verified.
// FOR UPDATE SKIP LOCKED makes two concurrent verifies with the same code race to one winner.
func (r *otpRepo) ConsumeLatest(ctx context.Context, phone, codeHash string, now time.Time) (model.OtpVerification, error) {
	var otp model.OtpVerification
	err := r.db.QueryRowContext(ctx, `
		UPDATE otp_verifications
		SET verified = TRUE
		WHERE id = (
			SELECT id FROM otp_verifications
			WHERE phone_number = $1 AND code_hash = $2 AND verified = FALSE AND expires_at > $3
			ORDER BY created_at DESC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, phone_number, code_hash, expires_at, verified, created_at
	`, phone, codeHash, now).Scan(
		&otp.ID,
		&otp.PhoneNumber,
		&otp.CodeHash,
		&otp.ExpiresAt,
		&otp.Verified,
		&otp.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.OtpVerification{}, ErrNotFound
		}
		return model.OtpVerification{}, fmt.Errorf("consume otp: %w", err)
	}
	return otp, nil
}

// DeleteExpired purges codes that expired at or before now
func (r *otpRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM otp_verifications WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired otps: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
