// Package email delivers outbound email over the studio's SMTP account.
package email

import (
	"context"
	"fmt"
	"net"
	"time"

	"inkflow_backend/platform/config"

	gomail "github.com/wneessen/go-mail"
)

// Sender delivers email via a direct SMTP connection using go-mail.
// A nil Sender is valid and reports itself as not configured.
type Sender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSender creates an SMTP sender from config, or nil when SMTP is not set up.
func NewSender(cfg config.EmailConfig) *Sender {
	if !cfg.IsEmailEnabled() {
		return nil
	}
	return &Sender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
	}
}

// IsConfigured reports whether the sender can deliver mail.
func (s *Sender) IsConfigured() bool {
	return s != nil && s.host != ""
}

// Send delivers a plain-text email.
func (s *Sender) Send(ctx context.Context, toEmail, subject, body string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("smtp sender not configured")
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
