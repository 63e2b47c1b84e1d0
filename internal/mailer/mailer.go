package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/star4ce/star4ce-backend/internal"
)

// Mailer sends transactional email. Callers treat delivery as best effort;
// operations never fail because an email could not be sent.
type Mailer interface {
	SendVerificationCode(ctx context.Context, toEmail, code string) error
	SendPasswordResetCode(ctx context.Context, toEmail, code string) error
	SendSurveyInvite(ctx context.Context, toEmail, code, surveyURL string) error
	SendApprovalNotice(ctx context.Context, toEmail, dealershipName string) error
}

type SendGridMailer struct {
	client      *sendgrid.Client
	fromAddress string
	fromName    string
	logger      *slog.Logger
}

func NewSendGridMailer(apiKey, fromAddress, fromName string, logger *slog.Logger) *SendGridMailer {
	return &SendGridMailer{
		client:      sendgrid.NewSendClient(apiKey),
		fromAddress: fromAddress,
		fromName:    fromName,
		logger:      logger,
	}
}

func (m *SendGridMailer) send(ctx context.Context, toEmail, subject, plainText, htmlBody string) error {
	from := mail.NewEmail(m.fromName, m.fromAddress)
	to := mail.NewEmail("", toEmail)
	message := mail.NewSingleEmail(from, subject, to, plainText, htmlBody)

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		m.logger.Error("failed to send email", "to", toEmail, "subject", subject, "error", err)
		return internal.NewExternalError("email delivery failed", internal.ErrCodeEmailDeliveryFailed, err)
	}

	if resp.StatusCode >= 400 {
		m.logger.Error("sendgrid rejected email", "to", toEmail, "subject", subject, "status_code", resp.StatusCode)
		return internal.NewExternalError(
			fmt.Sprintf("email provider returned status %d", resp.StatusCode),
			internal.ErrCodeEmailDeliveryFailed, nil)
	}

	m.logger.Info("email sent", "to", toEmail, "subject", subject)
	return nil
}

func (m *SendGridMailer) SendVerificationCode(ctx context.Context, toEmail, code string) error {
	subject := "Verify your Star4ce account"
	plainText := fmt.Sprintf("Your verification code is %s. It expires in 1 hour.", code)
	htmlBody := fmt.Sprintf(
		"<p>Welcome to Star4ce.</p><p>Your verification code is <strong>%s</strong>. It expires in 1 hour.</p>",
		code)
	return m.send(ctx, toEmail, subject, plainText, htmlBody)
}

func (m *SendGridMailer) SendPasswordResetCode(ctx context.Context, toEmail, code string) error {
	subject := "Reset your Star4ce password"
	plainText := fmt.Sprintf("Your password reset code is %s. It expires in 10 minutes.", code)
	htmlBody := fmt.Sprintf(
		"<p>Your password reset code is <strong>%s</strong>. It expires in 10 minutes.</p><p>If you did not request this, you can ignore this email.</p>",
		code)
	return m.send(ctx, toEmail, subject, plainText, htmlBody)
}

func (m *SendGridMailer) SendSurveyInvite(ctx context.Context, toEmail, code, surveyURL string) error {
	subject := "You're invited to share your feedback"
	plainText := fmt.Sprintf("Use access code %s to take the survey: %s", code, surveyURL)
	htmlBody := fmt.Sprintf(
		"<p>You've been invited to take an employee experience survey.</p><p>Your one-time access code is <strong>%s</strong>.</p><p><a href=%q>Take the survey</a></p>",
		code, surveyURL)
	return m.send(ctx, toEmail, subject, plainText, htmlBody)
}

func (m *SendGridMailer) SendApprovalNotice(ctx context.Context, toEmail, dealershipName string) error {
	subject := "Your Star4ce account has been approved"
	plainText := fmt.Sprintf("Your account has been approved for %s. You can now sign in.", dealershipName)
	htmlBody := fmt.Sprintf(
		"<p>Your account has been approved for <strong>%s</strong>.</p><p>You can now sign in and access your dashboard.</p>",
		dealershipName)
	return m.send(ctx, toEmail, subject, plainText, htmlBody)
}

// NoopMailer logs instead of sending. Used in development and tests where no
// SendGrid key is configured.
type NoopMailer struct {
	logger *slog.Logger
}

func NewNoopMailer(logger *slog.Logger) *NoopMailer {
	return &NoopMailer{logger: logger}
}

func (m *NoopMailer) SendVerificationCode(ctx context.Context, toEmail, code string) error {
	m.logger.Info("noop mailer: verification code", "to", toEmail, "code", code)
	return nil
}

func (m *NoopMailer) SendPasswordResetCode(ctx context.Context, toEmail, code string) error {
	m.logger.Info("noop mailer: password reset code", "to", toEmail, "code", code)
	return nil
}

func (m *NoopMailer) SendSurveyInvite(ctx context.Context, toEmail, code, surveyURL string) error {
	m.logger.Info("noop mailer: survey invite", "to", toEmail, "code", code, "survey_url", surveyURL)
	return nil
}

func (m *NoopMailer) SendApprovalNotice(ctx context.Context, toEmail, dealershipName string) error {
	m.logger.Info("noop mailer: approval notice", "to", toEmail, "dealership", dealershipName)
	return nil
}
