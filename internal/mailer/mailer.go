package mailer

import (
	"fmt"

	mail "gopkg.in/mail.v2"
)

const (
	FromName   = "Soko"
	maxRetries = 3
)

type Client interface {
	Send(to, subject, body string) error
}

// SMTPMailer delivers plain-text operational mail (admin alerts about failed
// payments). Delivery is retried a few times; the caller treats any final
// error as log-and-move-on.
type SMTPMailer struct {
	dialer    *mail.Dialer
	fromEmail string
}

func NewSMTPMailer(host string, port int, username, password, fromEmail string) *SMTPMailer {
	return &SMTPMailer{
		dialer:    mail.NewDialer(host, port, username, password),
		fromEmail: fromEmail,
	}
}

func (m *SMTPMailer) Send(to, subject, body string) error {
	msg := mail.NewMessage()
	msg.SetAddressHeader("From", m.fromEmail, FromName)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if err := m.dialer.DialAndSend(msg); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("failed to send email after %d attempts: %w", maxRetries, lastErr)
}
