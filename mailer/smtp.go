package mailer

import (
	"context"
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail"
)

// SMTPConfig carries the dialer settings.
type SMTPConfig struct {
	Host               string
	Port               int
	From               string
	User               string
	Pass               string
	TLSMode            string // "auto" | "starttls" | "ssl" | "none"
	InsecureSkipVerify bool
	// BaseURL is the public address links in outgoing mail point at.
	BaseURL string
}

// SMTPSender delivers transactional mail over SMTP. It satisfies the root
// package's Mailer interface.
type SMTPSender struct {
	cfg SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.TLSMode == "" {
		cfg.TLSMode = "auto"
	}
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) SendVerification(ctx context.Context, to, name, token string) error {
	link := fmt.Sprintf("%s/api/auth/verify-email?token=%s", s.cfg.BaseURL, token)
	html := fmt.Sprintf(`<p>Hi %s,</p>
<p>Welcome! Please confirm your email address by clicking the link below:</p>
<p><a href="%s">Verify my email</a></p>
<p>The link expires in 24 hours. If you did not create an account you can ignore this message.</p>`, name, link)
	text := fmt.Sprintf("Hi %s,\n\nPlease confirm your email address:\n%s\n\nThe link expires in 24 hours.", name, link)

	return s.send(ctx, to, "Verify your email address", html, text)
}

func (s *SMTPSender) SendPasswordReset(ctx context.Context, to, name, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", s.cfg.BaseURL, token)
	html := fmt.Sprintf(`<p>Hi %s,</p>
<p>We received a request to reset your password. Click the link below to choose a new one:</p>
<p><a href="%s">Reset my password</a></p>
<p>The link expires in 10 minutes. If you did not request a reset you can ignore this message.</p>`, name, link)
	text := fmt.Sprintf("Hi %s,\n\nReset your password here:\n%s\n\nThe link expires in 10 minutes.", name, link)

	return s.send(ctx, to, "Reset your password", html, text)
}

func (s *SMTPSender) send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	m := mail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)

	if textBody != "" {
		m.SetBody("text/plain", textBody)
	}
	if htmlBody != "" {
		if textBody == "" {
			m.SetBody("text/html", htmlBody)
		} else {
			m.AddAlternative("text/html", htmlBody)
		}
	}

	d := mail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.User, s.cfg.Pass)
	d.TLSConfig = &tls.Config{
		ServerName:         s.cfg.Host,
		InsecureSkipVerify: s.cfg.InsecureSkipVerify,
	}

	switch s.cfg.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.TLSConfig = &tls.Config{InsecureSkipVerify: s.cfg.InsecureSkipVerify}
	default:
		// "auto"/"starttls": the dialer negotiates STARTTLS when offered
	}

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}
