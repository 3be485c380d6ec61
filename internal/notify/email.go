package notify

import (
	"context"

	"github.com/sudn2014/telegram-bot-teams/pkg/logging"
)

const defaultFromName = "Teams Community Bot"

// EmailSender delivers one message. SendGrid, SES, SMTP and the stub all
// satisfy it.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is a single-recipient email. Body is plain text and always
// sent; HTML is added as an alternative part only when set.
type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Body    string
	HTML    string
}

// StubEmailSender logs instead of sending. It is selected when no mail
// provider has credentials, so intake keeps working in local runs.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(_ context.Context, msg EmailMessage) error {
	s.logger.Info("mail provider not configured, confirmation not sent", "to", msg.To, "subject", msg.Subject)
	return nil
}

var _ EmailSender = (*StubEmailSender)(nil)
