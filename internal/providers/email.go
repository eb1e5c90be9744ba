package providers

import (
	"expiry-notifier/internal/config"
	"expiry-notifier/pkg/email"
)

// NewMailer returns the SMTP sender described by cfg.
func NewMailer(cfg config.Config) *email.Sender {
	return email.NewSender(cfg.Email.SMTPServer, cfg.Email.SMTPPort, cfg.Email.Username, cfg.Email.Password, cfg.Email.FromName)
}
