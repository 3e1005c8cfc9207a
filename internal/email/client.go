// Package email provides outbound email delivery for automations and alerts.
// Delivery goes through Brevo's transactional API by default, or directly via
// SMTP when a server is configured. With email disabled a noop sender keeps
// the rest of the system fully functional.
package email

import (
	"context"

	"brokerage_backend/platform/config"
)

// Sender delivers automation and alert emails.
type Sender interface {
	SendAutomationEmail(ctx context.Context, toEmail, subject, htmlContent string) error
}

// NoopSender drops all email. Used when email is disabled in configuration.
type NoopSender struct{}

func (NoopSender) SendAutomationEmail(ctx context.Context, toEmail, subject, htmlContent string) error {
	return nil
}

// NewSender picks the sender implementation from configuration: SMTP when a
// host is set, Brevo when an API key is set, noop otherwise.
func NewSender(cfg config.EmailConfig) Sender {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}
	}
	if cfg.GetSMTPHost() != "" {
		return NewSMTPSender(cfg)
	}
	if cfg.GetBrevoAPIKey() != "" {
		return NewBrevoSender(cfg)
	}
	return NoopSender{}
}
