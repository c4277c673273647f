package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/serenify/server/internal/db"
	"github.com/serenify/server/internal/model"
)

// Store is the Postgres-backed credential store used by the registration service.
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store
func NewStore(conn *sql.DB) *Store {
	return &Store{db: conn}
}

func (s *Store) AccountExists(ctx context.Context, username, email string) (bool, error) {
	return NewAccountRepo(s.db).Exists(ctx, username, email)
}

func (s *Store) FindAccount(ctx context.Context, identifier string) (model.Account, error) {
	return NewAccountRepo(s.db).FindByIdentifier(ctx, identifier)
}

// UpsertPending writes the pending signup under the email lock. It returns
// ErrAccountExists when an account already holds the email or username.
func (s *Store) UpsertPending(ctx context.Context, p model.PendingSignup) error {
	return db.WithTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		pending := NewPendingRepo(tx)
		if err := pending.Lock(ctx, p.Email); err != nil {
			return err
		}
		return pending.Upsert(ctx, p)
	})
}

func (s *Store) GetPending(ctx context.Context, email string) (model.PendingSignup, error) {
	return NewPendingRepo(s.db).GetByEmail(ctx, email)
}

func (s *Store) RefreshPendingOTP(ctx context.Context, email, code string, expiresAt time.Time) error {
	return NewPendingRepo(s.db).UpdateOTP(ctx, email, code, expiresAt)
}

// PromotePending moves the pending signup matching email and code into accounts
// in one transaction: the row is deleted, then the account inserted. Any failure
// rolls both back, so a pending row never disappears without its account.
func (s *Store) PromotePending(ctx context.Context, email, code string) (model.Account, error) {
	var account model.Account
	err := db.WithTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		pending := NewPendingRepo(tx)
		if err := pending.Lock(ctx, email); err != nil {
			return err
		}
		p, err := pending.Consume(ctx, email, code)
		if err != nil {
			return err
		}

		account, err = NewAccountRepo(tx).Create(ctx, model.Account{
			ID:           uuid.New(),
			Username:     p.Username,
			Email:        p.Email,
			PasswordHash: p.PasswordHash,
		})
		return err
	})
	if err != nil {
		return model.Account{}, err
	}
	return account, nil
}
