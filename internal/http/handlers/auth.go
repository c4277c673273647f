package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/serenify/server/internal/auth"
	"github.com/serenify/server/internal/logger"
	"github.com/serenify/server/internal/model"
)

const maxBodyBytes = 1 << 20

// Registrar is the registration flow the handlers drive.
type Registrar interface {
	Signup(ctx context.Context, req auth.SignupRequest) error
	ResendOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) (model.PublicAccount, error)
	Login(ctx context.Context, identifier, password string) (model.PublicAccount, error)
}

// Observer records the outcome of each operation.
type Observer interface {
	Observe(operation, outcome string, started time.Time)
}

// AuthHandler handles the signup, OTP and login endpoints
type AuthHandler struct {
	registrar Registrar
	observer  Observer
	logger    *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(registrar Registrar, observer Observer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{registrar: registrar, observer: observer, logger: logger}
}

// signupRequest is the request body for POST /api/signup
type signupRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// resendRequest is the request body for POST /api/resend-otp
type resendRequest struct {
	Email string `json:"email"`
}

// verifyRequest is the request body for POST /api/verify-otp
type verifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// loginRequest is the request body for POST /api/login. Identifier wins over
// email, email over username.
type loginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

func (r loginRequest) identifier() string {
	for _, v := range []string{r.Identifier, r.Email, r.Username} {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

type messageResponse struct {
	Message string `json:"message"`
}

type loginResponse struct {
	Message string              `json:"message"`
	User    model.PublicAccount `json:"user"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HandleSignup handles POST /api/signup
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	var req signupRequest
	if !h.decode(w, r, "signup", started, &req) {
		return
	}

	err := h.registrar.Signup(r.Context(), auth.SignupRequest{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		h.fail(w, r, "signup", started, err)
		return
	}
	h.observer.Observe("signup", "ok", started)
	respondWithJSON(w, http.StatusOK, messageResponse{Message: "OTP sent to your email"})
}

// HandleResendOTP handles POST /api/resend-otp
func (h *AuthHandler) HandleResendOTP(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	var req resendRequest
	if !h.decode(w, r, "resend_otp", started, &req) {
		return
	}

	if err := h.registrar.ResendOTP(r.Context(), req.Email); err != nil {
		h.fail(w, r, "resend_otp", started, err)
		return
	}
	h.observer.Observe("resend_otp", "ok", started)
	respondWithJSON(w, http.StatusOK, messageResponse{Message: "A new OTP has been sent to your email"})
}

// HandleVerifyOTP handles POST /api/verify-otp
func (h *AuthHandler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	var req verifyRequest
	if !h.decode(w, r, "verify_otp", started, &req) {
		return
	}

	if _, err := h.registrar.VerifyOTP(r.Context(), req.Email, req.OTP); err != nil {
		h.fail(w, r, "verify_otp", started, err)
		return
	}
	h.observer.Observe("verify_otp", "ok", started)
	respondWithJSON(w, http.StatusCreated, messageResponse{Message: "Account verified successfully! You can now log in."})
}

// HandleLogin handles POST /api/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	var req loginRequest
	if !h.decode(w, r, "login", started, &req) {
		return
	}

	account, err := h.registrar.Login(r.Context(), req.identifier(), req.Password)
	if err != nil {
		h.fail(w, r, "login", started, err)
		return
	}
	h.observer.Observe("login", "ok", started)
	respondWithJSON(w, http.StatusOK, loginResponse{Message: "Login successful", User: account})
}

// decode reads a JSON body of at most maxBodyBytes. It writes the 400 itself.
func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, op string, started time.Time, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.observer.Observe(op, auth.ErrValidation.Error(), started)
		respondWithError(w, http.StatusBadRequest, auth.ErrValidation.Error(), "Invalid request body")
		return false
	}
	return true
}

// fail maps err to a status. Unclassified errors are logged and hidden behind a generic 500.
func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request, op string, started time.Time, err error) {
	status, kind := classify(err)
	h.observer.Observe(op, kind, started)

	msg := auth.Message(err)
	if status == http.StatusInternalServerError || msg == "" {
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Server error")
		return
	}

	h.logger.InfoContext(r.Context(), "request rejected",
		slog.String("operation", op),
		slog.String("kind", kind),
		slog.String("error", maskErr(err)),
	)
	respondWithError(w, status, kind, msg)
}

var statusByKind = []struct {
	kind   error
	status int
}{
	{auth.ErrValidation, http.StatusBadRequest},
	{auth.ErrConflict, http.StatusConflict},
	{auth.ErrNotFound, http.StatusNotFound},
	{auth.ErrExpired, http.StatusGone},
	{auth.ErrInvalidCode, http.StatusBadRequest},
	{auth.ErrAlreadyVerified, http.StatusConflict},
	{auth.ErrDelivery, http.StatusBadGateway},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized},
}

func classify(err error) (int, string) {
	for _, m := range statusByKind {
		if errors.Is(err, m.kind) {
			return m.status, m.kind.Error()
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// maskErr keeps addresses out of logs when a cause happens to carry one.
func maskErr(err error) string {
	fields := strings.Fields(err.Error())
	for i, f := range fields {
		if strings.Contains(f, "@") {
			fields[i] = logger.MaskEmail(f)
		}
	}
	return strings.Join(fields, " ")
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, kind, message string) {
	respondWithJSON(w, statusCode, errorResponse{Error: kind, Message: message})
}

func respondWithJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
