package utils

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"homewright/config"

	"github.com/cenkalti/backoff/v4"
	"gopkg.in/gomail.v2"
)

// OutboundEmail is one rendered message ready for delivery. DedupeKey
// becomes the Message-Id so downstream systems can spot a duplicate
// delivery of the same queue item.
type OutboundEmail struct {
	To        string
	ToName    string
	Subject   string
	HTMLBody  string
	TextBody  string
	DedupeKey string
}

// Mailer delivers drip emails over SMTP.
type Mailer struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
	domain   string
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		dialer:   gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
		from:     cfg.FromEmail,
		fromName: cfg.FromName,
		domain:   cfg.SMTPHost,
	}
}

func (m *Mailer) Send(email OutboundEmail) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.from, m.fromName)
	msg.SetAddressHeader("To", email.To, email.ToName)
	msg.SetHeader("Subject", email.Subject)
	if email.DedupeKey != "" {
		msg.SetHeader("Message-Id", fmt.Sprintf("<%s@%s>", email.DedupeKey, m.domain))
	}

	if email.TextBody != "" {
		msg.SetBody("text/plain", email.TextBody)
		if email.HTMLBody != "" {
			msg.AddAlternative("text/html", email.HTMLBody)
		}
	} else {
		msg.SetBody("text/html", email.HTMLBody)
	}

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send error: %w", err)
	}
	return nil
}

// SendWithRetry retries transient SMTP failures with exponential
// backoff, bounded by attempts, all within the caller's tick.
func (m *Mailer) SendWithRetry(ctx context.Context, email OutboundEmail, attempts int) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)

	return backoff.Retry(func() error {
		return m.Send(email)
	}, policy)
}

// RenderBody executes an email template body against subscriber data.
// Template bodies are authored in-house, so a parse error is a seed bug
// and surfaces as a send failure.
func RenderBody(src string, data interface{}) (string, error) {
	if src == "" {
		return "", nil
	}
	tmpl, err := template.New("email").Parse(src)
	if err != nil {
		return "", fmt.Errorf("template parse error: %w", err)
	}
	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return "", fmt.Errorf("template execution error: %w", err)
	}
	return body.String(), nil
}
