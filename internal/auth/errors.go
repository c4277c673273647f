package auth

import "errors"

// Outcome kinds. Match them with errors.Is.
var (
	ErrValidation         = errors.New("validation_error")
	ErrConflict           = errors.New("conflict")
	ErrNotFound           = errors.New("not_found")
	ErrExpired            = errors.New("expired")
	ErrInvalidCode        = errors.New("invalid_code")
	ErrAlreadyVerified    = errors.New("already_verified")
	ErrDelivery           = errors.New("delivery_error")
	ErrInvalidCredentials = errors.New("invalid_credentials")
)

// Error is an expected, user-facing failure. Message is suitable for direct display.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func newError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Messages shown to users.
const (
	msgFieldsRequired     = "All fields are required"
	msgPasswordMismatch   = "Passwords do not match"
	msgAccountExists      = "Email or username already exists"
	msgUsernameTaken      = "Username is already taken. Please sign up again with a different username."
	msgNoPendingSignup    = "Invalid request. Please sign up again."
	msgOTPExpired         = "OTP has expired. Please request a new one."
	msgInvalidOTP         = "Invalid OTP."
	msgAlreadyVerified    = "Account is already verified. You can log in."
	msgDeliveryFailed     = "Error sending OTP email"
	msgInvalidCredentials = "Invalid credentials"
)

// Message returns the display message carried by err, or "" when err is not an *Error.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}
