package notify

import (
	"log/slog"

	"github.com/hugh/poolparty/pkg/config"
)

// FromConfig builds a Notifier with one sender per channel according to
// the configured providers.
func FromConfig(cfg *config.NotifyConfig, logger *slog.Logger) (*Notifier, error) {
	var senders []Sender

	switch cfg.EmailProvider {
	case "smtp":
		s, err := NewSMTPSender(cfg.SMTPURL, cfg.EmailFrom)
		if err != nil {
			return nil, err
		}
		senders = append(senders, s)
	default:
		senders = append(senders, NewLogSender(ChannelEmail, logger))
	}

	switch cfg.WhatsAppProvider {
	case "meta":
		senders = append(senders, NewMetaWhatsAppSender(cfg.WhatsAppAPIBaseURL, cfg.WhatsAppAPIToken, cfg.WhatsAppPhoneID))
	default:
		senders = append(senders, NewLogSender(ChannelWhatsApp, logger))
	}

	return New(logger, cfg.Timeout(), senders...), nil
}
