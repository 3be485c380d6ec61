package intake

// EventKind classifies an inbound chat event.
type EventKind string

const (
	// EventStart is the /start command, sent from any chat.
	EventStart EventKind = "start"
	// EventMessage is a plain text message in a private chat.
	EventMessage EventKind = "message"
	// EventMemberJoined is one member joining a group chat.
	EventMemberJoined EventKind = "member_joined"
)

// Member describes a user who joined a group.
type Member struct {
	ID        int64
	Username  string
	FirstName string
	IsBot     bool
}

// DisplayName prefers the username, then the first name.
func (m Member) DisplayName() string {
	switch {
	case m.Username != "":
		return m.Username
	case m.FirstName != "":
		return m.FirstName
	default:
		return "User"
	}
}

// Event is one unit of work for the agent.
type Event struct {
	Kind      EventKind
	ChatID    int64
	Private   bool
	UserID    int64
	MessageID int64
	Text      string
	// Member is set for EventMemberJoined.
	Member Member
}
