package intake

import (
	"context"
	"sync"
	"time"
)

// State is the field a session is currently collecting.
type State string

const (
	StateCollectingName  State = "collecting_name"
	StateCollectingEmail State = "collecting_email"
	StateCollectingPhone State = "collecting_phone"
)

// Session is the in-progress form for one user.
type Session struct {
	UserID    int64     `json:"user_id"`
	State     State     `json:"state"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// SessionStore holds at most one session per user.
type SessionStore interface {
	Get(ctx context.Context, userID int64) (*Session, bool, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, userID int64) error
}

// MemorySessionStore keeps sessions in process memory; they do not survive
// a restart.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[int64]Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[int64]Session)}
}

func (m *MemorySessionStore) Get(_ context.Context, userID int64) (*Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, false, nil
	}
	return &s, true, nil
}

func (m *MemorySessionStore) Put(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.UserID] = *s
	return nil
}

func (m *MemorySessionStore) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

// Len reports the number of open sessions.
func (m *MemorySessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
