// Package mailer delivers magic-link login emails.
package mailer

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

type Mailer interface {
	SendLoginLink(ctx context.Context, to, link string) error
}

// ResendMailer sends through Resend. Without an API key it only logs the
// link, which is what local development wants.
type ResendMailer struct {
	client *resend.Client
	from   string
	logger *zap.Logger
}

func NewResendMailer(apiKey, from string, logger *zap.Logger) *ResendMailer {
	m := &ResendMailer{from: from, logger: logger}
	if apiKey != "" {
		m.client = resend.NewClient(apiKey)
	}
	return m
}

func (m *ResendMailer) SendLoginLink(ctx context.Context, to, link string) error {
	if m.client == nil {
		m.logger.Warn("RESEND_API_KEY not set, skipping email send",
			zap.String("to", to), zap.String("link", link))
		return nil
	}

	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: "Your BenefitMetrics login link",
		Html:    fmt.Sprintf(loginTemplate, link),
	}

	sent, err := m.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	m.logger.Info("Login email sent", zap.String("id", sent.Id), zap.String("to", to))
	return nil
}

const loginTemplate = `
<div style="font-family: sans-serif; max-width: 480px; margin: 0 auto; padding: 24px;">
	<h2 style="color: #1f2937;">Welcome to BenefitMetrics</h2>
	<p>Tap the button below to sign in and pick up your onboarding where you left off:</p>
	<a href="%s" style="display: inline-block; background: #0f766e; color: white; padding: 12px 24px; border-radius: 8px; text-decoration: none; font-weight: 600;">
		Open BenefitMetrics
	</a>
	<p style="color: #6b7280; font-size: 14px; margin-top: 16px;">
		This link expires in 15 minutes and can only be used once.
	</p>
	<p style="color: #9ca3af; font-size: 12px;">
		If you didn't request this, you can safely ignore this email.
	</p>
</div>
`
