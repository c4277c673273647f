package repo

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrAccountExists     = errors.New("account already exists")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrDuplicateUsername = errors.New("username already registered")
)

const uniqueViolation = pq.ErrorCode("23505")

// Constraint names from the accounts migration.
const (
	accountsEmailKey    = "accounts_email_key"
	accountsUsernameKey = "accounts_username_key"
)

// mapUniqueViolation turns a Postgres unique violation on accounts into the
// matching sentinel and returns any other error unchanged.
func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return err
	}
	switch pqErr.Constraint {
	case accountsEmailKey:
		return ErrDuplicateEmail
	case accountsUsernameKey:
		return ErrDuplicateUsername
	default:
		return err
	}
}
