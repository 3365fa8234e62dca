package notify

import (
	"context"

	"github.com/novellus/pilates-booking/pkg/logging"
)

// EmailProviderConfig selects and configures an email backend.
type EmailProviderConfig struct {
	Provider       string // sendgrid, brevo, ses or auto
	SendGridAPIKey string
	BrevoAPIKey    string
	FromEmail      string
	FromName       string
	AWS            AWSOptions
}

// NewEmailSender picks the configured provider. Missing credentials fall
// back to the stub sender with a warning so the API still serves bookings.
func NewEmailSender(ctx context.Context, cfg EmailProviderConfig, logger *logging.Logger) EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	sendgridSender := func() EmailSender {
		if s := NewSendGridSender(SendGridConfig{APIKey: cfg.SendGridAPIKey, FromEmail: cfg.FromEmail, FromName: cfg.FromName}, logger); s != nil {
			return s
		}
		return nil
	}
	brevoSender := func() EmailSender {
		if s := NewBrevoSender(BrevoConfig{APIKey: cfg.BrevoAPIKey, FromEmail: cfg.FromEmail, FromName: cfg.FromName}, logger); s != nil {
			return s
		}
		return nil
	}

	var sender EmailSender
	switch cfg.Provider {
	case "sendgrid":
		sender = sendgridSender()
	case "brevo":
		sender = brevoSender()
	case "ses":
		client, err := NewSESClient(ctx, cfg.AWS)
		if err != nil {
			logger.Warn("ses client unavailable", "error", err)
			break
		}
		sender = NewSESSender(client, SESConfig{FromEmail: cfg.FromEmail, FromName: cfg.FromName}, logger)
	default:
		if sender = sendgridSender(); sender == nil {
			sender = brevoSender()
		}
	}

	if sender == nil {
		logger.Warn("email provider not configured, using stub sender", "provider", cfg.Provider)
		return NewStubEmailSender(logger)
	}
	logger.Info("email provider configured", "provider", cfg.Provider)
	return sender
}
