package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudn2014/telegram-bot-teams/internal/contacts"
)

type recordingSender struct {
	sent []EmailMessage
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg EmailMessage) error {
	r.sent = append(r.sent, msg)
	return r.err
}

var alice = contacts.Record{
	Name:        "Alice",
	Email:       "alice@x.com",
	Phone:       "555-1111",
	SubmittedAt: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
}

func TestWelcomeEmailPromisesFollowUpWithoutLink(t *testing.T) {
	msg := WelcomeEmail(alice, "")

	assert.Equal(t, "alice@x.com", msg.To)
	assert.Equal(t, "Alice", msg.ToName)
	assert.Equal(t, WelcomeSubject, msg.Subject)
	assert.Contains(t, msg.Body, "- Name: Alice\n")
	assert.Contains(t, msg.Body, "- Email: alice@x.com\n")
	assert.Contains(t, msg.Body, "- Phone: 555-1111\n")
	assert.Contains(t, msg.Body, "within 24 hours")
}

func TestWelcomeEmailIncludesInviteLink(t *testing.T) {
	msg := WelcomeEmail(alice, "https://teams.live.com/l/community/abc")
	assert.Contains(t, msg.Body, "https://teams.live.com/l/community/abc")
	assert.NotContains(t, msg.Body, "within 24 hours")
}

func TestServiceNotifySubmission(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, " https://invite ", nil)

	require.NoError(t, svc.NotifySubmission(context.Background(), alice))
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Body, "https://invite\n")
}

func TestServiceNotifySubmissionErrors(t *testing.T) {
	svc := NewService(&recordingSender{err: errors.New("relay down")}, "", nil)
	assert.ErrorContains(t, svc.NotifySubmission(context.Background(), alice), "relay down")

	assert.Error(t, NewService(nil, "", nil).NotifySubmission(context.Background(), alice))

	var nilSvc *Service
	assert.Error(t, nilSvc.NotifySubmission(context.Background(), alice))
}
