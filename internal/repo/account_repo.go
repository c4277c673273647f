package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/serenify/server/internal/db"
	"github.com/serenify/server/internal/model"
)

// AccountRepo defines the interface for account repository operations
type AccountRepo interface {
	Exists(ctx context.Context, username, email string) (bool, error)
	FindByIdentifier(ctx context.Context, identifier string) (model.Account, error)
	Create(ctx context.Context, account model.Account) (model.Account, error)
}

type accountRepo struct {
	db db.DBTX
}

// NewAccountRepo creates a new AccountRepo bound to a *sql.DB or *sql.Tx
func NewAccountRepo(conn db.DBTX) AccountRepo {
	return &accountRepo{db: conn}
}

// Exists reports whether any account holds the username or the email.
func (r *accountRepo) Exists(ctx context.Context, username, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM accounts WHERE username = $1 OR email = $2
		)
	`, username, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check account exists: %w", err)
	}
	return exists, nil
}

// FindByIdentifier matches the identifier against username or (lower-cased) email.
func (r *accountRepo) FindByIdentifier(ctx context.Context, identifier string) (model.Account, error) {
	var account model.Account
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM accounts
		WHERE username = $1 OR email = lower($1)
		LIMIT 1
	`, identifier).Scan(
		&account.ID,
		&account.Username,
		&account.Email,
		&account.PasswordHash,
		&account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Account{}, ErrNotFound
		}
		return model.Account{}, fmt.Errorf("query account: %w", err)
	}
	return account, nil
}

// Create inserts the account. Unique violations map to ErrDuplicateEmail or ErrDuplicateUsername.
func (r *accountRepo) Create(ctx context.Context, account model.Account) (model.Account, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO accounts (id, username, email, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, account.ID, account.Username, account.Email, account.PasswordHash).Scan(&account.CreatedAt)
	if err != nil {
		if mapped := mapUniqueViolation(err); errors.Is(mapped, ErrDuplicateEmail) || errors.Is(mapped, ErrDuplicateUsername) {
			return model.Account{}, mapped
		}
		return model.Account{}, fmt.Errorf("insert account: %w", err)
	}
	return account, nil
}
