package notify

import (
	"context"
	"log/slog"

	"github.com/serenify/server/internal/logger"
)

// Notifier is the send capability every notifier in this package provides.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogNotifier writes messages to the log instead of sending them. Used when
// no SMTP relay is configured outside production.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: log}
}

func (n *LogNotifier) Send(_ context.Context, to, subject, body string) error {
	n.logger.Warn("email not sent, smtp disabled",
		slog.String("to", logger.MaskEmail(to)),
		slog.String("subject", subject),
		slog.String("body", body),
	)
	return nil
}

// DevFallback hides delivery failures from callers when enabled: the message,
// code included, goes to the log at WARN and Send reports success. Disabled,
// it passes errors through unchanged. It must never be enabled in production.
type DevFallback struct {
	next    Notifier
	enabled bool
	logger  *slog.Logger
}

func NewDevFallback(next Notifier, enabled bool, log *slog.Logger) *DevFallback {
	return &DevFallback{next: next, enabled: enabled, logger: log}
}

func (f *DevFallback) Send(ctx context.Context, to, subject, body string) error {
	err := f.next.Send(ctx, to, subject, body)
	if err == nil || !f.enabled {
		return err
	}
	f.logger.Warn("email delivery failed, message logged instead",
		slog.String("to", logger.MaskEmail(to)),
		slog.String("subject", subject),
		slog.String("body", body),
		slog.String("error", err.Error()),
	)
	return nil
}
