// Package notify delivers export notifications.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"dynquery/internal/domain"
)

// SMTPNotifier sends plain-text mail through an SMTP relay.
type SMTPNotifier struct {
	addr string
	auth smtp.Auth
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPNotifier creates a notifier for host:port. Credentials are
// optional.
func NewSMTPNotifier(host string, port int, user, password string) *SMTPNotifier {
	n := &SMTPNotifier{
		addr: net.JoinHostPort(host, strconv.Itoa(port)),
		send: smtp.SendMail,
	}
	if user != "" {
		n.auth = smtp.PlainAuth("", user, password, host)
	}
	return n
}

// Notify implements domain.Notifier.
func (n *SMTPNotifier) Notify(ctx context.Context, msg domain.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return domain.ErrValidation("notification has no recipient")
	}
	if err := n.send(n.addr, n.auth, msg.From, []string{msg.To}, BuildMessage(msg, time.Now())); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}

// BuildMessage renders an RFC 5322 plain-text message.
func BuildMessage(msg domain.Notification, now time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Content)
	return []byte(b.String())
}

func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

// LogNotifier logs notifications instead of sending them.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements domain.Notifier.
func (n *LogNotifier) Notify(_ context.Context, msg domain.Notification) error {
	n.logger.Info("notification", "to", msg.To, "from", msg.From, "subject", msg.Subject, "content", msg.Content)
	return nil
}

var (
	_ domain.Notifier = (*SMTPNotifier)(nil)
	_ domain.Notifier = (*LogNotifier)(nil)
)
