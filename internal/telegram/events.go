package telegram

import (
	"strings"

	"github.com/sudn2014/telegram-bot-teams/internal/intake"
)

// ToEvents classifies one update. Joins yield one event per member, /start
// (optionally addressed as /start@botname) yields EventStart, and other
// private text yields EventMessage. Anything else is dropped.
func ToEvents(u Update) []intake.Event {
	m := u.Message
	if m == nil {
		return nil
	}
	private := m.Chat.Type == ChatTypePrivate

	if len(m.NewChatMembers) > 0 {
		events := make([]intake.Event, 0, len(m.NewChatMembers))
		for _, member := range m.NewChatMembers {
			events = append(events, intake.Event{
				Kind:      intake.EventMemberJoined,
				ChatID:    m.Chat.ID,
				Private:   private,
				MessageID: m.MessageID,
				Member: intake.Member{
					ID:        member.ID,
					Username:  member.Username,
					FirstName: member.FirstName,
					IsBot:     member.IsBot,
				},
			})
		}
		return events
	}

	if m.From == nil {
		return nil
	}
	base := intake.Event{
		ChatID:    m.Chat.ID,
		Private:   private,
		UserID:    m.From.ID,
		MessageID: m.MessageID,
		Text:      m.Text,
	}
	if isCommand(m.Text, "start") {
		base.Kind = intake.EventStart
		return []intake.Event{base}
	}
	if private && m.Text != "" {
		base.Kind = intake.EventMessage
		return []intake.Event{base}
	}
	return nil
}

func isCommand(text, name string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return strings.EqualFold(cmd, "/"+name)
}
