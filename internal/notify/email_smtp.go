package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/sudn2014/telegram-bot-teams/pkg/logging"
)

// SMTPConfig holds relay settings. Port 587 with STARTTLS is the default.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender delivers mail through an authenticated SMTP relay.
type SMTPSender struct {
	addr      string
	auth      smtp.Auth
	fromEmail string
	fromName  string
	send      sendMailFunc
	now       func() time.Time
	logger    *logging.Logger
}

// NewSMTPSender creates an SMTP sender; it returns nil when no host is set.
func NewSMTPSender(cfg SMTPConfig, logger *logging.Logger) *SMTPSender {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	from := cfg.FromEmail
	if from == "" {
		from = cfg.Username
	}
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPSender{
		addr:      net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		auth:      auth,
		fromEmail: from,
		fromName:  cfg.FromName,
		send:      smtp.SendMail,
		now:       time.Now,
		logger:    logger,
	}
}

// Send renders a plain-text MIME message and hands it to the relay.
// smtp.SendMail upgrades to STARTTLS when the server offers it.
func (s *SMTPSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.send == nil {
		return errors.New("notify: smtp sender not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := mail.ParseAddress(msg.To); err != nil {
		return fmt.Errorf("notify: invalid recipient %q: %w", msg.To, err)
	}

	raw := s.render(msg)
	if err := s.send(s.addr, s.auth, s.fromEmail, []string{msg.To}, raw); err != nil {
		return fmt.Errorf("notify: smtp send failed: %w", err)
	}
	s.logger.Info("email sent via smtp", "to", msg.To, "subject", msg.Subject, "relay", s.addr)
	return nil
}

func (s *SMTPSender) render(msg EmailMessage) []byte {
	var buf bytes.Buffer
	from := mail.Address{Name: s.fromName, Address: s.fromEmail}
	to := mail.Address{Name: msg.ToName, Address: msg.To}

	fmt.Fprintf(&buf, "From: %s\r\n", from.String())
	fmt.Fprintf(&buf, "To: %s\r\n", to.String())
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	buf.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	buf.WriteString(strings.ReplaceAll(strings.ReplaceAll(msg.Body, "\r\n", "\n"), "\n", "\r\n"))
	return buf.Bytes()
}

var _ EmailSender = (*SMTPSender)(nil)
