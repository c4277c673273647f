package auth

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// bcrypt ignores everything past 72 bytes.
const maxPasswordBytes = 72

// Usernames cannot contain '@' or whitespace so an identifier is never both a username and an email.
var usernamePattern = regexp.MustCompile(`^[^@\s]+$`)

// SignupRequest is the Signup intent.
type SignupRequest struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r SignupRequest) normalize() SignupRequest {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = normalizeEmail(r.Email)
	return r
}

// validate checks presence and confirmation first so those failures carry
// their own messages, then the format rules.
func (r SignupRequest) validate() error {
	if r.Username == "" || r.Email == "" || r.Password == "" || r.ConfirmPassword == "" {
		return newError(ErrValidation, msgFieldsRequired)
	}
	if r.Password != r.ConfirmPassword {
		return newError(ErrValidation, msgPasswordMismatch)
	}

	err := validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Length(1, 64), validation.Match(usernamePattern).Error("must not contain @ or spaces")),
		validation.Field(&r.Email, validation.Length(3, 254), is.Email.Error("must be a valid email address")),
		validation.Field(&r.Password, validation.By(maxBytes(maxPasswordBytes))),
	)
	if err != nil {
		return &Error{Kind: ErrValidation, Message: formatMessage(err)}
	}
	return nil
}

func maxBytes(n int) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if len(s) > n {
			return errors.New("is too long")
		}
		return nil
	}
}

// formatMessage turns ozzo field errors into "Email must be a valid email address".
func formatMessage(err error) string {
	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return "Invalid input"
	}
	for _, field := range []string{"Username", "Email", "Password"} {
		if fe, ok := fieldErrs[field]; ok && fe != nil {
			return field + " " + fe.Error()
		}
	}
	return "Invalid input"
}
