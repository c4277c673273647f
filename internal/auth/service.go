package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/serenify/server/internal/logger"
	"github.com/serenify/server/internal/model"
	"github.com/serenify/server/internal/repo"
)

const (
	defaultOTPTTL        = 10 * time.Minute
	defaultNotifyTimeout = 15 * time.Second

	otpSubject = "Your OTP for Serenify.co Signup"
)

// Store is the credential store the service runs against. UpsertPending and
// PromotePending must be atomic and serialized per email, and UpsertPending must
// refuse (repo.ErrAccountExists) when an account holds the email or username.
// The service holds no locks of its own.
type Store interface {
	AccountExists(ctx context.Context, username, email string) (bool, error)
	FindAccount(ctx context.Context, identifier string) (model.Account, error)
	UpsertPending(ctx context.Context, p model.PendingSignup) error
	GetPending(ctx context.Context, email string) (model.PendingSignup, error)
	RefreshPendingOTP(ctx context.Context, email, code string, expiresAt time.Time) error
	PromotePending(ctx context.Context, email, code string) (model.Account, error)
}

// Notifier delivers a message to an email address.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Service orchestrates signup, OTP resend, OTP verification and login.
type Service struct {
	store         Store
	hasher        Hasher
	notifier      Notifier
	logger        *slog.Logger
	otpTTL        time.Duration
	notifyTimeout time.Duration
	now           func() time.Time
	generateCode  func() (string, error)
	dummyHash     string
}

// Option configures a Service.
type Option func(*Service)

// WithOTPTTL sets how long an issued code stays valid.
func WithOTPTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.otpTTL = d
		}
	}
}

// WithNotifyTimeout bounds a single Notifier call.
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithCodeGenerator(gen func() (string, error)) Option {
	return func(s *Service) {
		if gen != nil {
			s.generateCode = gen
		}
	}
}

// NewService creates a new registration service
func NewService(store Store, hasher Hasher, notifier Notifier, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:         store,
		hasher:        hasher,
		notifier:      notifier,
		logger:        log,
		otpTTL:        defaultOTPTTL,
		notifyTimeout: defaultNotifyTimeout,
		now:           time.Now,
		generateCode:  GenerateOTP,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Compared against on unknown identifiers so both login failures cost one hash check.
	if h, err := hasher.Hash("serenify-unknown-account"); err == nil {
		s.dummyHash = h
	} else {
		log.Warn("dummy password hash unavailable", slog.String("error", err.Error()))
	}
	return s
}

// Signup validates the request, rejects taken usernames/emails, stores (or
// overwrites) the pending signup and then sends the code.
func (s *Service) Signup(ctx context.Context, req SignupRequest) error {
	req = req.normalize()
	if err := req.validate(); err != nil {
		return err
	}

	exists, err := s.store.AccountExists(ctx, req.Username, req.Email)
	if err != nil {
		return fmt.Errorf("check existing account: %w", err)
	}
	if exists {
		return newError(ErrConflict, msgAccountExists)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return err
	}

	code, err := s.generateCode()
	if err != nil {
		return err
	}

	pending := model.PendingSignup{
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hash,
		OTPCode:      code,
		OTPExpiresAt: s.now().Add(s.otpTTL),
	}
	if err := s.store.UpsertPending(ctx, pending); err != nil {
		// A verification for this email or username committed after the check above.
		if errors.Is(err, repo.ErrAccountExists) {
			return newError(ErrConflict, msgAccountExists)
		}
		return fmt.Errorf("store pending signup: %w", err)
	}
	s.logger.Info("pending signup stored", slog.String("email", logger.MaskEmail(req.Email)))

	return s.deliver(ctx, pending.Username, pending.Email, code)
}

// ResendOTP rotates the code on an existing pending signup and sends it again.
func (s *Service) ResendOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return newError(ErrValidation, "Email is required")
	}

	pending, err := s.store.GetPending(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return newError(ErrNotFound, msgNoPendingSignup)
		}
		return fmt.Errorf("load pending signup: %w", err)
	}

	code, err := s.freshCode(pending.OTPCode)
	if err != nil {
		return err
	}

	if err := s.store.RefreshPendingOTP(ctx, email, code, s.now().Add(s.otpTTL)); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return newError(ErrNotFound, msgNoPendingSignup)
		}
		return fmt.Errorf("refresh pending otp: %w", err)
	}
	s.logger.Info("otp reissued", slog.String("email", logger.MaskEmail(email)))

	return s.deliver(ctx, pending.Username, email, code)
}

// VerifyOTP checks the code and, on success, turns the pending signup into an account.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) (model.PublicAccount, error) {
	email = normalizeEmail(email)
	if email == "" || code == "" {
		return model.PublicAccount{}, newError(ErrValidation, "Email and OTP are required")
	}

	pending, err := s.store.GetPending(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.PublicAccount{}, newError(ErrNotFound, msgNoPendingSignup)
		}
		return model.PublicAccount{}, fmt.Errorf("load pending signup: %w", err)
	}

	if pending.Expired(s.now()) {
		return model.PublicAccount{}, newError(ErrExpired, msgOTPExpired)
	}
	if !validCodeFormat(code) || !codesEqual(code, pending.OTPCode) {
		return model.PublicAccount{}, newError(ErrInvalidCode, msgInvalidOTP)
	}

	account, err := s.store.PromotePending(ctx, email, pending.OTPCode)
	switch {
	case err == nil:
	case errors.Is(err, repo.ErrDuplicateEmail):
		return model.PublicAccount{}, newError(ErrAlreadyVerified, msgAlreadyVerified)
	case errors.Is(err, repo.ErrDuplicateUsername):
		return model.PublicAccount{}, newError(ErrConflict, msgUsernameTaken)
	case errors.Is(err, repo.ErrNotFound):
		return model.PublicAccount{}, s.promoteMiss(ctx, email)
	default:
		return model.PublicAccount{}, fmt.Errorf("promote pending signup: %w", err)
	}

	s.logger.Info("account verified",
		slog.String("account_id", account.ID.String()),
		slog.String("email", logger.MaskEmail(email)),
	)
	return account.Public(), nil
}

// promoteMiss explains why the pending row vanished between read and promote:
// a resend rotated the code, or another verification consumed it.
func (s *Service) promoteMiss(ctx context.Context, email string) error {
	if _, err := s.store.GetPending(ctx, email); err == nil {
		return newError(ErrInvalidCode, msgInvalidOTP)
	}
	return newError(ErrNotFound, msgNoPendingSignup)
}

// Login matches identifier against username or email. Unknown identifiers and
// wrong passwords fail with the same error.
func (s *Service) Login(ctx context.Context, identifier, password string) (model.PublicAccount, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return model.PublicAccount{}, newError(ErrValidation, msgFieldsRequired)
	}

	account, err := s.store.FindAccount(ctx, identifier)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return model.PublicAccount{}, fmt.Errorf("find account: %w", err)
		}
		if s.dummyHash != "" {
			_, _ = s.hasher.Verify(password, s.dummyHash)
		}
		return model.PublicAccount{}, newError(ErrInvalidCredentials, msgInvalidCredentials)
	}

	ok, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		s.logger.Error("stored password hash unusable",
			slog.String("account_id", account.ID.String()),
			slog.String("error", err.Error()),
		)
	}
	if !ok {
		return model.PublicAccount{}, newError(ErrInvalidCredentials, msgInvalidCredentials)
	}

	s.logger.Info("login succeeded", slog.String("account_id", account.ID.String()))
	return account.Public(), nil
}

// freshCode returns a code different from previous so the old one stops verifying.
func (s *Service) freshCode(previous string) (string, error) {
	for i := 0; i < 5; i++ {
		code, err := s.generateCode()
		if err != nil {
			return "", err
		}
		if code != previous {
			return code, nil
		}
	}
	return "", fmt.Errorf("generate otp: no fresh code after 5 attempts")
}

// deliver runs after the pending row is committed; a send failure never rolls it back.
func (s *Service) deliver(ctx context.Context, username, email, code string) error {
	ctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()

	if err := s.notifier.Send(ctx, email, otpSubject, otpBody(username, code, s.otpTTL)); err != nil {
		s.logger.Error("otp delivery failed",
			slog.String("email", logger.MaskEmail(email)),
			slog.String("error", err.Error()),
		)
		return &Error{Kind: ErrDelivery, Message: msgDeliveryFailed, Err: err}
	}
	return nil
}

func otpBody(username, code string, ttl time.Duration) string {
	return fmt.Sprintf("Hello %s,\n\nYour One-Time Password (OTP) is: %s\nIt will expire in %d minutes.\n\nThank you!",
		username, code, int(ttl.Minutes()))
}
