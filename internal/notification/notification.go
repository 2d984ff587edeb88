package notification

import (
	"context"
	"errors"
	"log/slog"
)

const (
	// KindTransferCredited is sent to a recipient after a verification commits.
	KindTransferCredited = "transfer_credited"
)

// ErrUndeliverable marks a destination the notifier cannot reach at all
// (for example a phone number handed to the mail notifier). It is never retried.
var ErrUndeliverable = errors.New("undeliverable destination")

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Subject     string
	Body        string
	// Link is an optional URL rendered by notifiers that support it.
	Link string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger. It is the fallback when
// SMTP is not configured, mirroring how the dashboard link is surfaced in logs.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		slog.String("kind", message.Kind),
		slog.String("destination", message.Destination),
		slog.String("subject", message.Subject),
		slog.String("link", message.Link),
	)
	return nil
}
