package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"

	"github.com/serenify/server/internal/config"
	"github.com/serenify/server/internal/logger"
)

// ErrNotConfigured is returned when SMTP settings are incomplete.
var ErrNotConfigured = errors.New("smtp not configured")

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPNotifier sends plain-text mail through an SMTP relay.
type SMTPNotifier struct {
	cfg    config.SMTPConfig
	dialer dialer
	logger *slog.Logger
}

// NewSMTPNotifier builds a notifier from cfg. The caller bounds each Send with ctx.
func NewSMTPNotifier(cfg config.SMTPConfig, log *slog.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass),
		logger: log,
	}
}

// Send delivers the message or returns when ctx is done, whichever comes first.
// An abandoned send may still complete in the background.
func (n *SMTPNotifier) Send(ctx context.Context, to, subject, body string) error {
	if !n.cfg.Configured() {
		return ErrNotConfigured
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	done := make(chan error, 1)
	go func() {
		done <- n.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send email: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("send email: %w", ctx.Err())
	}

	n.logger.Info("email sent", slog.String("to", logger.MaskEmail(to)))
	return nil
}
