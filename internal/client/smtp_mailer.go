package client

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPMailer delivers notification emails over plain SMTP. Auth is PLAIN
// when a username is configured, anonymous otherwise (the relays inside the
// corporate network accept unauthenticated senders).
type SMTPMailer struct {
	host     string
	port     int
	from     string
	username string
	password string
}

// NewSMTPMailer creates a new SMTP mailer.
func NewSMTPMailer(host string, port int, from, username, password string) *SMTPMailer {
	return &SMTPMailer{
		host:     host,
		port:     port,
		from:     from,
		username: username,
		password: password,
	}
}

// Send delivers one HTML email. cc may be nil.
func (m *SMTPMailer) Send(ctx context.Context, to string, cc *string, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	recipients := []string{to}

	var msg strings.Builder
	msg.WriteString("From: " + m.from + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	if cc != nil && *cc != "" {
		msg.WriteString("Cc: " + *cc + "\r\n")
		recipients = append(recipients, *cc)
	}
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	addr := fmt.Sprintf("%s:%d", m.host, m.port)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	if err := smtp.SendMail(addr, auth, m.from, recipients, []byte(msg.String())); err != nil {
		return fmt.Errorf("failed to send mail via %s: %w", addr, err)
	}

	return nil
}
