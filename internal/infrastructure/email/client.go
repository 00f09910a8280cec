// Package email sends the transactional emails of the widget backend.
package email

import (
	"fmt"

	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/email/templates"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/logging"
	"github.com/resendlabs/resend-go"
)

// Service sends emails. Tests and key-less development setups use a different implementation.
type Service interface {
	SendVerificationEmail(to string, props templates.VerificationProps) error
}

// ResendClient sends through the Resend API.
type ResendClient struct {
	client    *resend.Client
	fromEmail string
	fromName  string
	logger    *logging.ChanneledLogger
}

// NewService returns a Resend-backed service, or a logging-only one when apiKey is empty.
func NewService(apiKey, fromEmail, fromName string, logger *logging.ChanneledLogger) Service {
	if apiKey == "" {
		logger.Email().Warn("RESEND_API_KEY not set, verification emails will only be logged")
		return &LogService{logger: logger}
	}
	if fromEmail == "" {
		fromEmail = "noreply@example.com"
	}
	return &ResendClient{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
		logger:    logger,
	}
}

func (c *ResendClient) SendVerificationEmail(to string, props templates.VerificationProps) error {
	props.Email = to
	subject, html, err := templates.VerificationEmail(props)
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", c.fromName, c.fromEmail),
		To:      []string{to},
		Subject: subject,
		Html:    html,
	}
	sent, err := c.client.Emails.Send(params)
	if err != nil {
		c.logger.Email().Error("Verification email failed", "to", logging.SanitizeEmail(to), "error", err.Error())
		return fmt.Errorf("failed to send verification email via Resend: %w", err)
	}
	c.logger.Email().Info("Verification email sent", "to", logging.SanitizeEmail(to), "id", sent.Id)
	return nil
}

// LogService renders the email and logs the link instead of sending it.
type LogService struct {
	logger *logging.ChanneledLogger
}

func (s *LogService) SendVerificationEmail(to string, props templates.VerificationProps) error {
	props.Email = to
	if _, _, err := templates.VerificationEmail(props); err != nil {
		return err
	}
	s.logger.Email().Info("Verification email not sent", "to", logging.SanitizeEmail(to), "verifyUrl", props.VerifyURL)
	return nil
}
