package model

import (
	"time"

	"github.com/google/uuid"
)

// Account is a verified user. Rows are created once, on successful OTP verification.
type Account struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Public returns the projection that is safe to hand to clients.
func (a Account) Public() PublicAccount {
	return PublicAccount{
		ID:       a.ID,
		Username: a.Username,
		Email:    a.Email,
	}
}

// PublicAccount is an Account without its credentials
type PublicAccount struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

// PendingSignup is an unverified signup, keyed by email. At most one exists per email.
type PendingSignup struct {
	Email        string
	Username     string
	PasswordHash string
	OTPCode      string
	OTPExpiresAt time.Time
}

// Expired reports whether the OTP window has closed at now.
func (p PendingSignup) Expired(now time.Time) bool {
	return now.After(p.OTPExpiresAt)
}
