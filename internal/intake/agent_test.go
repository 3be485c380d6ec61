package intake

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudn2014/telegram-bot-teams/internal/contacts"
)

const (
	groupID int64 = -1001234567890
	aliceID int64 = 42
)

type sentMessage struct {
	ChatID  int64
	Text    string
	ReplyTo int64
}

type recordingReplier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (r *recordingReplier) Send(ctx context.Context, chatID int64, text string, replyTo int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMessage{ChatID: chatID, Text: text, ReplyTo: replyTo})
	return r.err
}

func (r *recordingReplier) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sent))
	for _, m := range r.sent {
		out = append(out, m.Text)
	}
	return out
}

type memoryLog struct {
	records []contacts.Record
	err     error
}

func (l *memoryLog) Append(ctx context.Context, rec contacts.Record) error {
	if l.err != nil {
		return l.err
	}
	l.records = append(l.records, rec)
	return nil
}

type stubNotifier struct {
	calls int
	err   error
}

func (n *stubNotifier) NotifySubmission(ctx context.Context, rec contacts.Record) error {
	n.calls++
	return n.err
}

var fixedNow = time.Date(2024, 1, 2, 8, 30, 0, 0, time.UTC)

type harness struct {
	agent    *Agent
	store    *MemorySessionStore
	replier  *recordingReplier
	log      *memoryLog
	notifier *stubNotifier
}

func newHarness() *harness {
	h := &harness{
		store:    NewMemorySessionStore(),
		replier:  &recordingReplier{},
		log:      &memoryLog{},
		notifier: &stubNotifier{},
	}
	h.agent = NewAgent(h.store, h.replier, h.log, groupID, nil).
		WithNotifier(h.notifier).
		WithBotID(7).
		WithClock(func() time.Time { return fixedNow })
	return h
}

func private(text string) Event {
	return Event{Kind: EventMessage, ChatID: aliceID, Private: true, UserID: aliceID, Text: text}
}

func (h *harness) state(t *testing.T) State {
	t.Helper()
	s, ok, err := h.store.Get(context.Background(), aliceID)
	require.NoError(t, err)
	require.True(t, ok, "expected an open session")
	return s.State
}

func TestFullConversationAppendsOneRecord(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	h.agent.Handle(ctx, Event{Kind: EventStart, ChatID: aliceID, Private: true, UserID: aliceID, MessageID: 10})
	assert.Equal(t, StateCollectingName, h.state(t))

	h.agent.Handle(ctx, private("  Alice Smith "))
	assert.Equal(t, StateCollectingEmail, h.state(t))

	h.agent.Handle(ctx, private("Alice@X.com"))
	assert.Equal(t, StateCollectingPhone, h.state(t))

	h.agent.Handle(ctx, private("555-1111"))

	require.Len(t, h.log.records, 1)
	assert.Equal(t, contacts.Record{Name: "Alice Smith", Email: "alice@x.com", Phone: "555-1111", SubmittedAt: fixedNow}, h.log.records[0])
	assert.Equal(t, 0, h.store.Len())
	assert.Equal(t, 1, h.notifier.calls)

	assert.Equal(t, []string{
		PromptWelcome,
		PromptEmail,
		PromptPhone,
		ConfirmationText(h.log.records[0]),
	}, h.replier.texts())
	assert.Equal(t, int64(10), h.replier.sent[0].ReplyTo)
}

func TestInvalidEmailKeepsState(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.agent.Handle(ctx, Event{Kind: EventStart, ChatID: aliceID, UserID: aliceID})
	h.agent.Handle(ctx, private("Alice"))

	h.agent.Handle(ctx, private("not-an-email"))

	assert.Equal(t, StateCollectingEmail, h.state(t))
	texts := h.replier.texts()
	assert.Equal(t, PromptInvalidEmail, texts[len(texts)-1])
}

func TestWhitespaceInputIsIgnored(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	h.agent.Handle(ctx, private("   "))
	assert.Equal(t, 0, h.store.Len())
	assert.Empty(t, h.replier.sent)

	h.agent.Handle(ctx, Event{Kind: EventStart, ChatID: aliceID, UserID: aliceID})
	h.agent.Handle(ctx, private("Alice"))
	h.agent.Handle(ctx, private("alice@x.com"))
	sent := len(h.replier.sent)

	h.agent.Handle(ctx, private(" \t "))

	assert.Equal(t, StateCollectingPhone, h.state(t))
	assert.Empty(t, h.log.records)
	assert.Len(t, h.replier.sent, sent)
}

func TestFirstPrivateMessageStartsSession(t *testing.T) {
	h := newHarness()

	h.agent.Handle(context.Background(), private("hello"))

	assert.Equal(t, StateCollectingName, h.state(t))
	assert.Equal(t, []string{PromptJoinFirst}, h.replier.texts())
}

func TestStartIsNoOpWithOpenSession(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.agent.Handle(ctx, Event{Kind: EventStart, ChatID: aliceID, UserID: aliceID})
	h.agent.Handle(ctx, private("Alice"))

	h.agent.Handle(ctx, Event{Kind: EventStart, ChatID: aliceID, UserID: aliceID})

	assert.Equal(t, StateCollectingEmail, h.state(t))
	assert.Len(t, h.replier.sent, 2)
}

func TestGroupMessagesAreIgnored(t *testing.T) {
	h := newHarness()

	h.agent.Handle(context.Background(), Event{Kind: EventMessage, ChatID: groupID, UserID: aliceID, Text: "hi all"})

	assert.Equal(t, 0, h.store.Len())
	assert.Empty(t, h.replier.sent)
}

func TestMemberJoinedWelcome(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	h.agent.Handle(ctx, Event{Kind: EventMemberJoined, ChatID: groupID, MessageID: 99, Member: Member{ID: 1, Username: "alice"}})
	h.agent.Handle(ctx, Event{Kind: EventMemberJoined, ChatID: groupID, Member: Member{ID: 2, FirstName: "Bob"}})
	h.agent.Handle(ctx, Event{Kind: EventMemberJoined, ChatID: groupID, Member: Member{ID: 3}})
	h.agent.Handle(ctx, Event{Kind: EventMemberJoined, ChatID: groupID, Member: Member{ID: 7, Username: "self_bot", IsBot: true}})
	h.agent.Handle(ctx, Event{Kind: EventMemberJoined, ChatID: -5, Member: Member{ID: 4, Username: "elsewhere"}})

	require.Len(t, h.replier.sent, 3)
	assert.Equal(t, sentMessage{ChatID: groupID, Text: GroupWelcomeText(Member{Username: "alice"}), ReplyTo: 99}, h.replier.sent[0])
	assert.Contains(t, h.replier.sent[1].Text, "Welcome, Bob!")
	assert.Contains(t, h.replier.sent[2].Text, "Welcome, User!")
	assert.Equal(t, 0, h.store.Len())
}

func TestNotificationFailureStillRecords(t *testing.T) {
	h := newHarness()
	h.notifier.err = errors.New("smtp down")
	ctx := context.Background()

	h.agent.Handle(ctx, Event{Kind: EventStart, ChatID: aliceID, UserID: aliceID})
	h.agent.Handle(ctx, private("Alice"))
	h.agent.Handle(ctx, private("alice@x.com"))
	h.agent.Handle(ctx, private("555"))

	assert.Len(t, h.log.records, 1)
	assert.Equal(t, 0, h.store.Len())
}

func TestAppendFailureDiscardsSession(t *testing.T) {
	h := newHarness()
	h.log.err = errors.New("disk full")
	ctx := context.Background()

	h.agent.Handle(ctx, Event{Kind: EventStart, ChatID: aliceID, UserID: aliceID})
	h.agent.Handle(ctx, private("Alice"))
	h.agent.Handle(ctx, private("alice@x.com"))
	h.agent.Handle(ctx, private("555"))

	assert.Equal(t, 0, h.store.Len())
	texts := h.replier.texts()
	assert.Equal(t, PromptSaveFailed, texts[len(texts)-1])
}

func TestConfirmationFailureDoesNotRollBack(t *testing.T) {
	h := newHarness()
	h.replier.err = errors.New("blocked by user")
	ctx := context.Background()

	h.agent.Handle(ctx, Event{Kind: EventStart, ChatID: aliceID, UserID: aliceID})
	h.agent.Handle(ctx, private("Alice"))
	h.agent.Handle(ctx, private("alice@x.com"))
	h.agent.Handle(ctx, private("555"))

	assert.Len(t, h.log.records, 1)
	assert.Equal(t, 0, h.store.Len())
}

func TestRunStopsWhenChannelCloses(t *testing.T) {
	h := newHarness()
	events := make(chan Event, 3)
	events <- Event{Kind: EventStart, ChatID: aliceID, UserID: aliceID}
	events <- private("Alice")
	close(events)

	done := make(chan struct{})
	go func() {
		h.agent.Run(context.Background(), events)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after channel closed")
	}
	assert.Equal(t, StateCollectingEmail, h.state(t))
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.agent.Run(ctx, make(chan Event))
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
