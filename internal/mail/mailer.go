// Package mail delivers account emails: password-reset and
// email-verification links pointing back at the web client.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/Jjzme2/Organizer-App/internal/obs"
)

// SMTPMailer sends plain-text mail through a single SMTP relay. Links embed
// the raw token in the path, matching the client's /reset-password/:token and
// /verify-email/:token routes.
type SMTPMailer struct {
	addr          string
	from          string
	clientBaseURL string
	send          func(addr, from string, to []string, msg []byte) error
}

// NewSMTPMailer builds a mailer for host:port. clientBaseURL is the public
// origin of the web client, without a trailing slash.
func NewSMTPMailer(host string, port int, from, clientBaseURL string) *SMTPMailer {
	return &SMTPMailer{
		addr:          fmt.Sprintf("%s:%d", host, port),
		from:          from,
		clientBaseURL: strings.TrimRight(clientBaseURL, "/"),
		send: func(addr, from string, to []string, msg []byte) error {
			return smtp.SendMail(addr, nil, from, to, msg)
		},
	}
}

// SendPasswordReset mails a single-use password-reset link.
func (m *SMTPMailer) SendPasswordReset(_ context.Context, to, resetToken string) error {
	link := m.clientBaseURL + "/reset-password/" + resetToken
	body := "You requested a password reset.\r\n\r\n" +
		"Open the link below to choose a new password. The link expires in one hour\r\n" +
		"and works only once:\r\n\r\n" + link + "\r\n\r\n" +
		"If you did not request this, you can ignore this email.\r\n"
	return m.deliver(to, "Reset your password", body)
}

// SendVerification mails an email-verification link.
func (m *SMTPMailer) SendVerification(_ context.Context, to, emailToken string) error {
	link := m.clientBaseURL + "/verify-email/" + emailToken
	body := "Welcome! Please confirm your email address by opening the link below:\r\n\r\n" +
		link + "\r\n\r\n" +
		"The link expires in 24 hours.\r\n"
	return m.deliver(to, "Verify your email", body)
}

func (m *SMTPMailer) deliver(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		m.from, to, subject, body)
	if err := m.send(m.addr, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("mail: sending %q to %s: %w", subject, to, err)
	}
	return nil
}

// LogMailer writes the links to the log instead of sending mail. It is the
// default when no SMTP host is configured, which keeps local development
// working without a relay.
type LogMailer struct {
	clientBaseURL string
}

// NewLogMailer builds the development mailer.
func NewLogMailer(clientBaseURL string) *LogMailer {
	return &LogMailer{clientBaseURL: strings.TrimRight(clientBaseURL, "/")}
}

func (m *LogMailer) SendPasswordReset(_ context.Context, to, resetToken string) error {
	obs.LogEvent("info", "password reset link (mail disabled)", map[string]any{
		"to":   to,
		"link": m.clientBaseURL + "/reset-password/" + resetToken,
	})
	return nil
}

func (m *LogMailer) SendVerification(_ context.Context, to, emailToken string) error {
	obs.LogEvent("info", "verification link (mail disabled)", map[string]any{
		"to":   to,
		"link": m.clientBaseURL + "/verify-email/" + emailToken,
	})
	return nil
}
