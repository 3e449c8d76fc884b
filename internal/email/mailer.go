// Package email sends plain-text notification mail.
package email

import (
	"context"
	"log/slog"
)

// SMTPMailer delivers through a fixed SMTP relay.
type SMTPMailer struct {
	Settings  SMTPSettings
	FromName  string
	FromEmail string
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	return SendSMTP(ctx, m.Settings, Message{
		FromName:  m.FromName,
		FromEmail: m.FromEmail,
		ToEmail:   to,
		Subject:   subject,
		TextBody:  body,
	})
}

// LogMailer only logs outgoing mail. Used when no SMTP host is configured.
type LogMailer struct {
	Logger *slog.Logger
}

func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "email not sent (smtp disabled)", "to", to, "subject", subject, "body_len", len(body))
	return nil
}
