package notification

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/dafibh/condo/condo-backend/internal/config"
	"github.com/dafibh/condo/condo-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// sendMailFunc matches smtp.SendMail
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier delivers notices through an SMTP relay
type SMTPNotifier struct {
	addr     string
	host     string
	from     string
	auth     smtp.Auth
	sendMail sendMailFunc
	logger   zerolog.Logger
}

// NewSMTPNotifier creates a notifier for the configured relay
func NewSMTPNotifier(cfg config.SMTPConfig, logger zerolog.Logger) *SMTPNotifier {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPNotifier{
		addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		host:     cfg.Host,
		from:     cfg.From,
		auth:     auth,
		sendMail: smtp.SendMail,
		logger:   logger.With().Str("component", "smtp_notifier").Logger(),
	}
}

// Send delivers a plain text message. smtp.SendMail ignores ctx, so a
// cancelled ctx only prevents the attempt from starting.
func (n *SMTPNotifier) Send(ctx context.Context, recipient, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if recipient == "" {
		return fmt.Errorf("%w: recipient is required", domain.ErrInvalidInput)
	}

	msg := buildMessage(n.from, recipient, subject, body, n.host, time.Now())
	if err := n.sendMail(n.addr, n.auth, n.from, []string{recipient}, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}

	n.logger.Debug().Str("recipient", recipient).Str("subject", subject).Msg("Notice sent")
	return nil
}

func buildMessage(from, to, subject, body, host string, date time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", date.Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Message-ID: <%s@%s>\r\n", uuid.New().String(), host)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))
	return b.Bytes()
}

// LogNotifier writes notices to the log. Used when no relay is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a new LogNotifier
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "log_notifier").Logger()}
}

// Send logs the message
func (n *LogNotifier) Send(ctx context.Context, recipient, subject, body string) error {
	n.logger.Info().
		Str("recipient", recipient).
		Str("subject", subject).
		Str("body", body).
		Msg("Notice")
	return nil
}

var (
	_ domain.Notifier = (*SMTPNotifier)(nil)
	_ domain.Notifier = (*LogNotifier)(nil)
)
