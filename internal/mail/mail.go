package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	netmail "net/mail"
	"net/smtp"
	"strconv"
	"time"

	"gitlab.com/dirk.krummacker/contacts-api/internal/config"
)

const (
	subject     = "Confirm your email!"
	dialTimeout = 10 * time.Second
)

//go:embed templates/confirm_email.html
var templates embed.FS

var confirmTemplate = template.Must(template.ParseFS(templates, "templates/confirm_email.html"))

// TokenIssuer creates the verification token placed in the confirmation link.
type TokenIssuer interface {
	CreateEmailToken(email string) (string, error)
}

// SMTPSender delivers confirmation emails through an SMTP relay.
type SMTPSender struct {
	cfg     config.Mail
	tokens  TokenIssuer
	deliver func(ctx context.Context, to string, msg []byte) error
}

// NewSMTPSender creates a sender for the configured relay.
func NewSMTPSender(cfg config.Mail, tokens TokenIssuer) *SMTPSender {
	s := &SMTPSender{cfg: cfg, tokens: tokens}
	s.deliver = s.sendSMTP
	return s
}

// SendConfirmation mails a verification link to a freshly registered user. host is the base URL
// of the service, including the trailing slash. Failures are logged and never returned, so that
// registration does not depend on the mail relay.
func (s *SMTPSender) SendConfirmation(ctx context.Context, email, username, host string) {
	msg, err := s.buildMessage(email, username, host)
	if err != nil {
		slog.Error("building confirmation email failed", "email", email, "error", err)
		return
	}
	if err := s.deliver(ctx, email, msg); err != nil {
		slog.Error("sending confirmation email failed", "email", email, "error", err)
		return
	}
	slog.Info("confirmation email sent", "email", email)
}

func (s *SMTPSender) buildMessage(email, username, host string) ([]byte, error) {
	token, err := s.tokens.CreateEmailToken(email)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	data := struct{ Host, Username, Token string }{host, username, token}
	if err := confirmTemplate.Execute(&body, data); err != nil {
		return nil, fmt.Errorf("rendering template: %w", err)
	}

	from := netmail.Address{Name: s.cfg.FromName, Address: s.cfg.From}
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from.String())
	fmt.Fprintf(&msg, "To: %s\r\n", email)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

// sendSMTP uses implicit TLS on port 465 and upgrades with STARTTLS everywhere else, if the
// server offers it.
func (s *SMTPSender) sendSMTP(ctx context.Context, to string, msg []byte) error {
	addr := net.JoinHostPort(s.cfg.Server, strconv.Itoa(s.cfg.Port))
	tlsConfig := &tls.Config{ServerName: s.cfg.Server}

	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	if s.cfg.Port == 465 {
		conn = tls.Client(conn, tlsConfig)
	}

	client, err := smtp.NewClient(conn, s.cfg.Server)
	if err != nil {
		conn.Close()
		return err
	}
	defer client.Close()

	if s.cfg.Port != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return err
			}
		}
	}
	if s.cfg.Username != "" {
		if err := client.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Server)); err != nil {
			return err
		}
	}
	if err := client.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}
