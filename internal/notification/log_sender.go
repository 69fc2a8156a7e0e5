package notification

import (
	"context"
	"log/slog"
)

// LogSender is a Sender that writes to the log instead of a gateway.
// Used in development and as the default when no gateway is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a log-backed sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, channel Channel, recipient, subject, body string) error {
	s.logger.Info("notification (log sender)",
		"channel", channel,
		"recipient", recipient,
		"subject", subject,
	)
	return nil
}
