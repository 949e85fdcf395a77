package notifier

import (
	"context"
	"log/slog"
)

// LogNotifier writes messages to the log instead of delivering them.
// Used in development and dry-run modes where no mail API is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Send logs the message and always succeeds.
func (n *LogNotifier) Send(ctx context.Context, recipient, subject, body string) error {
	n.logger.Info("dry-run mail",
		"recipient", recipient,
		"subject", subject,
		"body_length", len(body),
	)
	return nil
}
