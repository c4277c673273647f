package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/serenify/server/internal/db"
	"github.com/serenify/server/internal/model"
)

// PendingRepo defines the interface for pending signup repository operations
type PendingRepo interface {
	Lock(ctx context.Context, email string) error
	Upsert(ctx context.Context, p model.PendingSignup) error
	GetByEmail(ctx context.Context, email string) (model.PendingSignup, error)
	UpdateOTP(ctx context.Context, email, code string, expiresAt time.Time) error
	Consume(ctx context.Context, email, code string) (model.PendingSignup, error)
}

type pendingRepo struct {
	db db.DBTX
}

// NewPendingRepo creates a new PendingRepo bound to a *sql.DB or *sql.Tx
func NewPendingRepo(conn db.DBTX) PendingRepo {
	return &pendingRepo{db: conn}
}

// Lock takes a transaction-scoped advisory lock on email. Upsert and Consume
// run under it so a signup never interleaves with a promotion of the same email.
func (r *pendingRepo) Lock(ctx context.Context, email string) error {
	if _, err := r.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock(2, hashtext($1))`, email); err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	return nil
}

// Upsert inserts the pending signup or, when one exists for the email, overwrites
// every column in a single statement. The latest attempt wins. Nothing is written
// when an account already holds the email or username; that returns ErrAccountExists.
func (r *pendingRepo) Upsert(ctx context.Context, p model.PendingSignup) error {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO pending_signups (email, username, password_hash, otp_code, otp_expires_at)
		SELECT $1::text, $2::text, $3::text, $4::text, $5::timestamptz
		WHERE NOT EXISTS (
			SELECT 1 FROM accounts WHERE email = $1::text OR username = $2::text
		)
		ON CONFLICT (email) DO UPDATE SET
			username = EXCLUDED.username,
			password_hash = EXCLUDED.password_hash,
			otp_code = EXCLUDED.otp_code,
			otp_expires_at = EXCLUDED.otp_expires_at,
			updated_at = now()
	`, p.Email, p.Username, p.PasswordHash, p.OTPCode, p.OTPExpiresAt)
	if err != nil {
		return fmt.Errorf("upsert pending signup: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("upsert pending signup: %w", err)
	}
	if n == 0 {
		return ErrAccountExists
	}
	return nil
}

// GetByEmail returns the pending signup for the email or ErrNotFound.
func (r *pendingRepo) GetByEmail(ctx context.Context, email string) (model.PendingSignup, error) {
	var p model.PendingSignup
	err := r.db.QueryRowContext(ctx, `
		SELECT email, username, password_hash, otp_code, otp_expires_at
		FROM pending_signups
		WHERE email = $1
	`, email).Scan(&p.Email, &p.Username, &p.PasswordHash, &p.OTPCode, &p.OTPExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.PendingSignup{}, ErrNotFound
		}
		return model.PendingSignup{}, fmt.Errorf("query pending signup: %w", err)
	}
	return p, nil
}

// UpdateOTP replaces only the code and its expiry; username and password hash are kept.
func (r *pendingRepo) UpdateOTP(ctx context.Context, email, code string, expiresAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE pending_signups
		SET otp_code = $2, otp_expires_at = $3, updated_at = now()
		WHERE email = $1
	`, email, code, expiresAt)
	if err != nil {
		return fmt.Errorf("update pending otp: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update pending otp: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Consume deletes the pending signup only if it still carries code and returns
// the deleted row. A concurrent resend or verification yields ErrNotFound.
func (r *pendingRepo) Consume(ctx context.Context, email, code string) (model.PendingSignup, error) {
	var p model.PendingSignup
	err := r.db.QueryRowContext(ctx, `
		DELETE FROM pending_signups
		WHERE email = $1 AND otp_code = $2
		RETURNING email, username, password_hash, otp_code, otp_expires_at
	`, email, code).Scan(&p.Email, &p.Username, &p.PasswordHash, &p.OTPCode, &p.OTPExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.PendingSignup{}, ErrNotFound
		}
		return model.PendingSignup{}, fmt.Errorf("consume pending signup: %w", err)
	}
	return p, nil
}
