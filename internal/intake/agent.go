// Package intake runs the conversational form that collects a user's name,
// email and phone over chat and appends the result to the shared queue.
package intake

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sudn2014/telegram-bot-teams/internal/contacts"
	"github.com/sudn2014/telegram-bot-teams/internal/observability/metrics"
	"github.com/sudn2014/telegram-bot-teams/internal/queue"
	"github.com/sudn2014/telegram-bot-teams/pkg/logging"
)

const (
	PromptWelcome      = "Welcome! Reply with your full name to request Teams access."
	PromptJoinFirst    = "Join the group first, then reply with your full name."
	PromptEmail        = "Thanks! Now your email:"
	PromptInvalidEmail = "That doesn't look like a valid email (e.g., user@example.com). Please try again:"
	PromptPhone        = "Last: your phone number:"
	PromptSaveFailed   = "Sorry, we couldn't save your details right now. Please try again later with /start."
)

// ConfirmationText is sent once a submission has been recorded.
func ConfirmationText(rec contacts.Record) string {
	return fmt.Sprintf("Thanks! We've noted your details (%s, %s, %s). You'll be added to Teams soon. Check your email for confirmation.",
		rec.Name, rec.Email, rec.Phone)
}

// GroupWelcomeText greets a member who just joined the monitored group.
func GroupWelcomeText(m Member) string {
	return fmt.Sprintf("Welcome, %s! To join Teams, first message me privately with '/start', then reply with your full name, email, and phone (one at a time).",
		m.DisplayName())
}

// Replier sends a text message, optionally as a reply to messageID.
type Replier interface {
	Send(ctx context.Context, chatID int64, text string, replyTo int64) error
}

// Notifier delivers the submission confirmation out of band.
type Notifier interface {
	NotifySubmission(ctx context.Context, rec contacts.Record) error
}

// Agent drives each user's conversation through name, email and phone.
// Events are handled one at a time.
type Agent struct {
	sessions    SessionStore
	replier     Replier
	log         queue.Log
	notifier    Notifier
	groupChatID int64
	botID       int64
	now         func() time.Time
	logger      *logging.Logger
	metrics     *metrics.IntakeMetrics
}

func NewAgent(sessions SessionStore, replier Replier, log queue.Log, groupChatID int64, logger *logging.Logger) *Agent {
	if logger == nil {
		logger = logging.Default()
	}
	if sessions == nil {
		sessions = NewMemorySessionStore()
	}
	return &Agent{
		sessions:    sessions,
		replier:     replier,
		log:         log,
		groupChatID: groupChatID,
		now:         time.Now,
		logger:      logger,
	}
}

func (a *Agent) WithNotifier(n Notifier) *Agent {
	a.notifier = n
	return a
}

// WithBotID makes the agent ignore its own join events.
func (a *Agent) WithBotID(id int64) *Agent {
	a.botID = id
	return a
}

func (a *Agent) WithClock(now func() time.Time) *Agent {
	if now != nil {
		a.now = now
	}
	return a
}

func (a *Agent) WithMetrics(m *metrics.IntakeMetrics) *Agent {
	a.metrics = m
	return a
}

// Run handles events until the channel closes or ctx is done. An event that
// has started is always finished before cancellation is checked again.
func (a *Agent) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			a.Handle(context.WithoutCancel(ctx), ev)
		}
	}
}

// Handle processes exactly one event. Failures are logged, never returned.
func (a *Agent) Handle(ctx context.Context, ev Event) {
	a.metrics.ObserveEvent(string(ev.Kind))
	switch ev.Kind {
	case EventMemberJoined:
		a.handleJoin(ctx, ev)
	case EventStart:
		a.handleStart(ctx, ev)
	case EventMessage:
		if ev.Private {
			a.handleMessage(ctx, ev)
		}
	}
}

func (a *Agent) handleJoin(ctx context.Context, ev Event) {
	if ev.ChatID != a.groupChatID {
		return
	}
	if ev.Member.IsBot || (a.botID != 0 && ev.Member.ID == a.botID) {
		return
	}
	a.send(ctx, ev.ChatID, GroupWelcomeText(ev.Member), ev.MessageID)
}

func (a *Agent) handleStart(ctx context.Context, ev Event) {
	_, exists, err := a.sessions.Get(ctx, ev.UserID)
	if err != nil {
		a.logger.Error("session lookup failed", "user_id", ev.UserID, "error", err)
		return
	}
	if exists {
		return
	}
	if !a.startSession(ctx, ev.UserID) {
		return
	}
	a.send(ctx, ev.ChatID, PromptWelcome, ev.MessageID)
}

func (a *Agent) handleMessage(ctx context.Context, ev Event) {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return
	}
	a.logger.Debug("private message received", "user_id", ev.UserID, "text", contacts.ScrubPII(text))

	session, exists, err := a.sessions.Get(ctx, ev.UserID)
	if err != nil {
		a.logger.Error("session lookup failed", "user_id", ev.UserID, "error", err)
		return
	}
	if !exists {
		if a.startSession(ctx, ev.UserID) {
			a.send(ctx, ev.ChatID, PromptJoinFirst, 0)
		}
		return
	}

	switch session.State {
	case StateCollectingName:
		session.Name = text
		session.State = StateCollectingEmail
		if a.save(ctx, session) {
			a.send(ctx, ev.ChatID, PromptEmail, 0)
		}
	case StateCollectingEmail:
		if !contacts.ValidEmail(text) {
			a.send(ctx, ev.ChatID, PromptInvalidEmail, 0)
			return
		}
		session.Email = contacts.NormalizeEmail(text)
		session.State = StateCollectingPhone
		if a.save(ctx, session) {
			a.send(ctx, ev.ChatID, PromptPhone, 0)
		}
	case StateCollectingPhone:
		session.Phone = text
		a.complete(ctx, ev.ChatID, session)
	default:
		a.logger.Warn("discarding session in unknown state", "user_id", ev.UserID, "state", session.State)
		a.discard(ctx, ev.UserID)
	}
}

func (a *Agent) complete(ctx context.Context, chatID int64, session *Session) {
	defer a.discard(ctx, session.UserID)

	rec, err := contacts.NewRecord(session.Name, session.Email, session.Phone, a.now())
	if err != nil {
		a.logger.Error("completed session is invalid", "user_id", session.UserID, "error", err)
		a.send(ctx, chatID, PromptSaveFailed, 0)
		return
	}

	if a.notifier != nil {
		if err := a.notifier.NotifySubmission(ctx, rec); err != nil {
			a.metrics.ObserveNotification("failed")
			a.logger.Error("welcome email failed", "email", rec.Email, "error", err)
		} else {
			a.metrics.ObserveNotification("sent")
		}
	}

	if err := a.log.Append(ctx, rec); err != nil {
		a.logger.Error("queue append failed; submission lost", "user_id", session.UserID, "email", rec.Email, "error", err)
		a.send(ctx, chatID, PromptSaveFailed, 0)
		return
	}

	a.send(ctx, chatID, ConfirmationText(rec), 0)
	a.metrics.ObserveSessionCompleted()
	a.logger.Info("submission recorded", "user_id", session.UserID, "email", rec.Email, "phone_hash", contacts.HashPhone(rec.Phone))
}

func (a *Agent) startSession(ctx context.Context, userID int64) bool {
	return a.save(ctx, &Session{
		UserID:    userID,
		State:     StateCollectingName,
		StartedAt: a.now().UTC(),
	})
}

func (a *Agent) save(ctx context.Context, session *Session) bool {
	if err := a.sessions.Put(ctx, session); err != nil {
		a.logger.Error("session save failed", "user_id", session.UserID, "state", session.State, "error", err)
		return false
	}
	return true
}

func (a *Agent) discard(ctx context.Context, userID int64) {
	if err := a.sessions.Delete(ctx, userID); err != nil {
		a.logger.Error("session delete failed", "user_id", userID, "error", err)
	}
}

func (a *Agent) send(ctx context.Context, chatID int64, text string, replyTo int64) {
	if a.replier == nil {
		return
	}
	if err := a.replier.Send(ctx, chatID, text, replyTo); err != nil {
		a.logger.Warn("chat send failed", "chat_id", chatID, "error", err)
	}
}
