package services

import (
	"fmt"
	"net/smtp"
	"strings"

	"docindex-platform/internal/config"
)

// EmailSender delivers a multipart text/HTML message.
type EmailSender interface {
	SendEmail(recipients []string, subject, htmlBody, textBody string) error
}

type SMTPEmailSender struct {
	host string
	port string
	user string
	pass string
	from string
}

func NewSMTPEmailSender(cfg *config.Config) *SMTPEmailSender {
	return &SMTPEmailSender{
		host: cfg.SMTPHost,
		port: cfg.SMTPPort,
		user: cfg.SMTPUser,
		pass: cfg.SMTPPass,
		from: cfg.SMTPFrom,
	}
}

func (s *SMTPEmailSender) SendEmail(recipients []string, subject, htmlBody, textBody string) error {
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients")
	}

	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.pass, s.host)
	}

	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return smtp.SendMail(addr, auth, s.from, recipients, composeMessage(s.from, recipients, subject, htmlBody, textBody))
}

func composeMessage(from string, recipients []string, subject, htmlBody, textBody string) []byte {
	message := fmt.Sprintf(`From: %s
To: %s
Subject: %s
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="boundary123"

--boundary123
Content-Type: text/plain; charset=UTF-8

%s

--boundary123
Content-Type: text/html; charset=UTF-8

%s

--boundary123--`,
		from,
		strings.Join(recipients, ", "),
		subject,
		textBody,
		htmlBody)
	return []byte(strings.ReplaceAll(message, "\n", "\r\n"))
}
