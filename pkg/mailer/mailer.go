// Package mailer is the outbound notification gateway.
package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/votify/backend/config"
)

// Sender delivers a message to an address. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// dialTimeout bounds the SMTP connection attempt; delivery failures are the
// caller's problem to retry, never to block on.
const dialTimeout = 10 * time.Second

// SMTP sends mail through a configured SMTP relay.
type SMTP struct {
	cfg    config.EmailConfig
	logger *zap.Logger
}

// NewSMTP creates an SMTP sender from config.
func NewSMTP(cfg config.EmailConfig, logger *zap.Logger) *SMTP {
	return &SMTP{cfg: cfg, logger: logger}
}

// Send delivers one message. The context deadline bounds the whole exchange.
func (s *SMTP) Send(ctx context.Context, to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.cfg.SMTPHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if s.cfg.SMTPUser != "" {
		auth := smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPass, s.cfg.SMTPHost)
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}

	if err := client.Mail(s.cfg.FromAddress); err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	msg := buildMessage(s.cfg.FromName, s.cfg.FromAddress, to, subject, body)
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}
	return client.Quit()
}

func buildMessage(fromName, fromAddr, to, subject, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %q <%s>\r\n", fromName, fromAddr)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return b.String()
}

// LogOnly logs messages instead of sending them. Used when SMTP is not
// configured (local development).
type LogOnly struct {
	logger *zap.Logger
}

// NewLogOnly creates a sender that only logs.
func NewLogOnly(logger *zap.Logger) *LogOnly {
	return &LogOnly{logger: logger}
}

// Send logs the message and reports success.
func (l *LogOnly) Send(_ context.Context, to, subject, body string) error {
	l.logger.Info("email (log only)",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("body_len", len(body)))
	return nil
}
