package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tnqbao/gau-job-orchestrator/config"
	"github.com/wneessen/go-mail"
)

type SmtpConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
	StartTLS bool
}

// MailerClient dials the SMTP server once per message.
type MailerClient struct {
	cfg SmtpConfig
}

func InitMailerClient(cfg *config.EnvConfig) *MailerClient {
	return NewMailerClient(SmtpConfig{
		Host:     cfg.Mail.Server,
		Port:     cfg.Mail.Port,
		From:     cfg.Mail.From,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		StartTLS: cfg.Mail.StartTLS,
	})
}

func NewMailerClient(cfg SmtpConfig) *MailerClient {
	return &MailerClient{cfg: cfg}
}

func (m *MailerClient) buildMessage(to, subject, htmlBody string) (*mail.Msg, error) {
	if to == "" {
		return nil, errors.New("mailer: no recipient")
	}
	if m.cfg.From == "" {
		return nil, errors.New("mailer: MAIL_FROM is not configured")
	}

	// header injection
	subject = strings.NewReplacer("\r", "", "\n", "").Replace(subject)

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("mailer: set from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("mailer: set to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)
	return msg, nil
}

func (m *MailerClient) Send(ctx context.Context, to, subject, htmlBody string) error {
	msg, err := m.buildMessage(to, subject, htmlBody)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	if m.cfg.StartTLS {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("mailer: create client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	return nil
}
