package notify

import (
	"context"
	"log/slog"
)

// LogSender writes messages to the log instead of delivering them.
// It backs both channels in development.
type LogSender struct {
	channel Channel
	logger  *slog.Logger
}

func NewLogSender(channel Channel, logger *slog.Logger) *LogSender {
	return &LogSender{channel: channel, logger: logger}
}

func (s *LogSender) Channel() Channel {
	return s.channel
}

func (s *LogSender) Send(ctx context.Context, target Target, msg Message) error {
	address := target.Address
	if address == "" {
		address = "N/A"
	}
	s.logger.InfoContext(ctx, "notification (log sink)",
		"channel", s.channel,
		"to", address,
		"name", target.Name,
		"subject", msg.Subject,
		"body", msg.Text,
		"link", msg.Link,
	)
	return nil
}
