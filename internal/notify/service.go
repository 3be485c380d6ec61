package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/sudn2014/telegram-bot-teams/internal/contacts"
	"github.com/sudn2014/telegram-bot-teams/pkg/logging"
)

// WelcomeSubject is the fixed subject of the submission confirmation email.
const WelcomeSubject = "Welcome to Teams Community - Confirmation from Bot"

// Service sends the confirmation email for a completed intake.
type Service struct {
	email      EmailSender
	inviteLink string
	logger     *logging.Logger
}

// NewService creates a notification service. inviteLink is optional; when
// empty the email promises a manual follow-up instead.
func NewService(email EmailSender, inviteLink string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:      email,
		inviteLink: strings.TrimSpace(inviteLink),
		logger:     logger,
	}
}

// NotifySubmission emails the submitter a copy of their details.
func (s *Service) NotifySubmission(ctx context.Context, rec contacts.Record) error {
	if s == nil || s.email == nil {
		return fmt.Errorf("notify: email sender not configured")
	}
	msg := WelcomeEmail(rec, s.inviteLink)
	if err := s.email.Send(ctx, msg); err != nil {
		return err
	}
	s.logger.Debug("submission confirmation sent", "to", rec.Email)
	return nil
}

// WelcomeEmail builds the confirmation message for rec.
func WelcomeEmail(rec contacts.Record, inviteLink string) EmailMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s!\n\n", rec.Name)
	b.WriteString("Thanks for joining our Telegram group and providing your details. We've received everything:\n")
	fmt.Fprintf(&b, "- Name: %s\n", rec.Name)
	fmt.Fprintf(&b, "- Email: %s\n", rec.Email)
	fmt.Fprintf(&b, "- Phone: %s\n\n", rec.Phone)
	if inviteLink != "" {
		fmt.Fprintf(&b, "You can join our Microsoft Teams community here: %s\n", inviteLink)
	} else {
		b.WriteString("We'll add you to our Microsoft Teams community shortly (usually within 24 hours).\n")
	}
	b.WriteString("If you have questions, reply to this email or DM the bot.\n\n")
	b.WriteString("Best,\nYour Teams Admin\n")

	return EmailMessage{
		To:      rec.Email,
		ToName:  rec.Name,
		Subject: WelcomeSubject,
		Body:    b.String(),
	}
}
