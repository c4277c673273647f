package repo

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serenify/server/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, mock
}

func TestMapUniqueViolation(t *testing.T) {
	assert.ErrorIs(t, mapUniqueViolation(&pq.Error{Code: "23505", Constraint: "accounts_email_key"}), ErrDuplicateEmail)
	assert.ErrorIs(t, mapUniqueViolation(&pq.Error{Code: "23505", Constraint: "accounts_username_key"}), ErrDuplicateUsername)

	other := &pq.Error{Code: "23505", Constraint: "pending_signups_pkey"}
	assert.Same(t, other, mapUniqueViolation(other))

	notUnique := &pq.Error{Code: "23503"}
	assert.Same(t, notUnique, mapUniqueViolation(notUnique))

	plain := errors.New("conn reset")
	assert.Equal(t, plain, mapUniqueViolation(plain))
}

func TestAccountRepo_Exists(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery(`SELECT EXISTS \(\s*SELECT 1 FROM accounts WHERE username = \$1 OR email = \$2\s*\)`).
		WithArgs("jane", "jane@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := NewAccountRepo(conn).Exists(context.Background(), "jane", "jane@x.com")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_FindByIdentifier(t *testing.T) {
	conn, mock := newMock(t)
	id := uuid.New()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, username, email, password_hash, created_at\s+FROM accounts\s+WHERE username = \$1 OR email = lower\(\$1\)`).
		WithArgs("Jane@X.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "created_at"}).
			AddRow(id.String(), "jane", "jane@x.com", "hash", created))

	got, err := NewAccountRepo(conn).FindByIdentifier(context.Background(), "Jane@X.com")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "jane", got.Username)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.Equal(t, created, got.CreatedAt)
}

func TestAccountRepo_FindByIdentifier_NotFound(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery(`FROM accounts`).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := NewAccountRepo(conn).FindByIdentifier(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAccountRepo_Create_DuplicateEmail(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery(`INSERT INTO accounts \(id, username, email, password_hash\)`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "accounts_email_key"})

	_, err := NewAccountRepo(conn).Create(context.Background(), model.Account{ID: uuid.New(), Username: "jane", Email: "jane@x.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestAccountRepo_Create_DBError(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery(`INSERT INTO accounts`).WillReturnError(errors.New("db down"))

	_, err := NewAccountRepo(conn).Create(context.Background(), model.Account{ID: uuid.New()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert account: db down")
}

func TestPendingRepo_Upsert(t *testing.T) {
	conn, mock := newMock(t)
	exp := time.Now().Add(10 * time.Minute)

	mock.ExpectExec(`INSERT INTO pending_signups .*WHERE NOT EXISTS \( SELECT 1 FROM accounts WHERE email = \$1::text OR username = \$2::text \) ON CONFLICT \(email\) DO UPDATE SET\s+username = EXCLUDED.username,\s+password_hash = EXCLUDED.password_hash,\s+otp_code = EXCLUDED.otp_code,\s+otp_expires_at = EXCLUDED.otp_expires_at`).
		WithArgs("jane@x.com", "jane", "hash", "012345", exp).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewPendingRepo(conn).Upsert(context.Background(), model.PendingSignup{
		Email: "jane@x.com", Username: "jane", PasswordHash: "hash", OTPCode: "012345", OTPExpiresAt: exp,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPendingRepo_Upsert_AccountExists(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO pending_signups`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewPendingRepo(conn).Upsert(context.Background(), model.PendingSignup{
		Email: "jane@x.com", Username: "jane", PasswordHash: "hash", OTPCode: "012345", OTPExpiresAt: time.Now(),
	})
	assert.ErrorIs(t, err, ErrAccountExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpsertPending_LocksEmail(t *testing.T) {
	conn, mock := newMock(t)
	exp := time.Now().Add(10 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(2, hashtext\(\$1\)\)`).
		WithArgs("jane@x.com").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO pending_signups`).
		WithArgs("jane@x.com", "jane", "hash", "012345", exp).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := NewStore(conn).UpsertPending(context.Background(), model.PendingSignup{
		Email: "jane@x.com", Username: "jane", PasswordHash: "hash", OTPCode: "012345", OTPExpiresAt: exp,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpsertPending_AccountExistsRollsBack(t *testing.T) {
	conn, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO pending_signups`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := NewStore(conn).UpsertPending(context.Background(), model.PendingSignup{Email: "jane@x.com", Username: "jane"})
	assert.ErrorIs(t, err, ErrAccountExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPendingRepo_GetByEmail_NotFound(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery(`FROM pending_signups\s+WHERE email = \$1`).WithArgs("none@x.com").WillReturnError(sql.ErrNoRows)

	_, err := NewPendingRepo(conn).GetByEmail(context.Background(), "none@x.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPendingRepo_UpdateOTP(t *testing.T) {
	conn, mock := newMock(t)
	exp := time.Now().Add(10 * time.Minute)

	mock.ExpectExec(`UPDATE pending_signups\s+SET otp_code = \$2, otp_expires_at = \$3`).
		WithArgs("jane@x.com", "654321", exp).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE pending_signups`).
		WithArgs("none@x.com", "654321", exp).
		WillReturnResult(sqlmock.NewResult(0, 0))

	r := NewPendingRepo(conn)
	require.NoError(t, r.UpdateOTP(context.Background(), "jane@x.com", "654321", exp))
	assert.ErrorIs(t, r.UpdateOTP(context.Background(), "none@x.com", "654321", exp), ErrNotFound)
}

func TestStore_PromotePending(t *testing.T) {
	conn, mock := newMock(t)
	exp := time.Now().Add(time.Minute)
	created := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).WithArgs("jane@x.com").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`DELETE FROM pending_signups\s+WHERE email = \$1 AND otp_code = \$2\s+RETURNING`).
		WithArgs("jane@x.com", "123456").
		WillReturnRows(sqlmock.NewRows([]string{"email", "username", "password_hash", "otp_code", "otp_expires_at"}).
			AddRow("jane@x.com", "jane", "hash", "123456", exp))
	mock.ExpectQuery(`INSERT INTO accounts`).
		WithArgs(sqlmock.AnyArg(), "jane", "jane@x.com", "hash").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))
	mock.ExpectCommit()

	account, err := NewStore(conn).PromotePending(context.Background(), "jane@x.com", "123456")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, account.ID)
	assert.Equal(t, "jane", account.Username)
	assert.Equal(t, "jane@x.com", account.Email)
	assert.Equal(t, created, account.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_PromotePending_NoMatchingRow(t *testing.T) {
	conn, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).WithArgs("jane@x.com").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`DELETE FROM pending_signups`).
		WithArgs("jane@x.com", "000000").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := NewStore(conn).PromotePending(context.Background(), "jane@x.com", "000000")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_PromotePending_DuplicateRollsBack(t *testing.T) {
	conn, mock := newMock(t)
	exp := time.Now().Add(time.Minute)

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).WithArgs("jane@x.com").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`DELETE FROM pending_signups`).
		WillReturnRows(sqlmock.NewRows([]string{"email", "username", "password_hash", "otp_code", "otp_expires_at"}).
			AddRow("jane@x.com", "jane", "hash", "123456", exp))
	mock.ExpectQuery(`INSERT INTO accounts`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "accounts_username_key"})
	mock.ExpectRollback()

	_, err := NewStore(conn).PromotePending(context.Background(), "jane@x.com", "123456")
	assert.ErrorIs(t, err, ErrDuplicateUsername)
	require.NoError(t, mock.ExpectationsWereMet())
}
