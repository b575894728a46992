package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"

	mail "gopkg.in/gomail.v2"

	"github.com/ignite/campaign-mailer/internal/domain"
)

// SMTPTransport delivers messages over a direct SMTP connection using
// gomail. A fresh connection is dialed per message; the dispatcher already
// paces sends, so connection reuse buys little and keeps failure isolation
// simple.
type SMTPTransport struct {
	cfg *domain.EmailConfiguration

	// dial is swappable in tests.
	dial func(m *mail.Message) error
}

// NewSMTP creates an SMTP transport from the configuration.
func NewSMTP(cfg *domain.EmailConfiguration) *SMTPTransport {
	t := &SMTPTransport{cfg: cfg}
	t.dial = t.dialAndSend
	return t
}

func (t *SMTPTransport) Name() string { return t.cfg.Name }

// Send builds the MIME message and delivers it. The blocking dial runs in a
// goroutine so ctx cancellation and deadlines are honored even when the SMTP
// server stalls.
func (t *SMTPTransport) Send(ctx context.Context, msg *Message) error {
	m := mail.NewMessage()
	m.SetAddressHeader("From", msg.FromEmail, msg.FromName)
	m.SetAddressHeader("To", msg.To, msg.ToName)
	m.SetHeader("Subject", msg.Subject)

	if msg.IsHTML {
		m.SetBody("text/html", msg.Body)
	} else {
		m.SetBody("text/plain", msg.Body)
	}

	for _, a := range msg.Attachments {
		content := a.Content
		m.Attach(a.Filename, mail.SetCopyFunc(func(w io.Writer) error {
			_, err := io.Copy(w, bytes.NewReader(content))
			return err
		}))
	}

	done := make(chan error, 1)
	go func() { done <- t.dial(m) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", msg.To, err)
		}
		return nil
	}
}

func (t *SMTPTransport) dialAndSend(m *mail.Message) error {
	d := mail.NewDialer(t.cfg.SMTPHost, t.cfg.SMTPPort, t.cfg.Username, t.cfg.Password)
	if t.cfg.UseSSL {
		d.SSL = true
	}
	if t.cfg.UseTLS || t.cfg.UseSSL {
		d.TLSConfig = &tls.Config{ServerName: t.cfg.SMTPHost}
	}
	return d.DialAndSend(m)
}
