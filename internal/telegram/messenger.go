package telegram

import (
	"context"

	"github.com/sudn2014/telegram-bot-teams/internal/intake"
)

type messageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string, replyTo int64) (Message, error)
}

// Messenger sends agent replies through the Bot API.
type Messenger struct {
	client messageSender
}

func NewMessenger(client messageSender) *Messenger {
	return &Messenger{client: client}
}

func (m *Messenger) Send(ctx context.Context, chatID int64, text string, replyTo int64) error {
	_, err := m.client.SendMessage(ctx, chatID, text, replyTo)
	return err
}

var _ intake.Replier = (*Messenger)(nil)
