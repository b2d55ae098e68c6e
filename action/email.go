package action

import (
	"context"
	"strings"
)

const (
	SendEmailAction = "send_email"

	defaultEmailSubject = "Hello from the job service"
	defaultEmailBody    = "This is a test email sent from a background job."
)

// Mailer is satisfied by infra.MailerClient.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type SendEmailPayload struct {
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (p *SendEmailPayload) SetDefaults() {
	p.Email = strings.TrimSpace(p.Email)
	if p.Subject == "" {
		p.Subject = defaultEmailSubject
	}
	if p.Body == "" {
		p.Body = defaultEmailBody
	}
}

type SendEmailResult struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
}

// SendEmail delivers the body as HTML to a single recipient.
func SendEmail(mailer Mailer) func(ctx context.Context, p SendEmailPayload, progress Progress) (SendEmailResult, error) {
	return func(ctx context.Context, p SendEmailPayload, _ Progress) (SendEmailResult, error) {
		if err := mailer.Send(ctx, p.Email, p.Subject, p.Body); err != nil {
			return SendEmailResult{}, NewError("SMTPError", err.Error())
		}
		return SendEmailResult{Recipient: p.Email, Subject: p.Subject}, nil
	}
}
