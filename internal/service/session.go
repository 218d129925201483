package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"caradvisor/internal/model"
)

// Session holds the dialogue state for one interactive session.
// A session has a single writer: HandleTurn locks it for the whole turn.
type Session struct {
	mu sync.Mutex

	ID         string
	Profile    model.Profile
	Pending    *model.PendingAsk
	Transcript []model.Message
	Done       bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (s *Session) appendMessage(role, content string) {
	s.Transcript = append(s.Transcript, model.Message{Role: role, Content: content})
	s.UpdatedAt = time.Now()
}

// SessionManager owns all live sessions in the process
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	registry *model.Registry
}

// NewSessionManager creates a session manager over a slot registry
func NewSessionManager(registry *model.Registry) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		registry: registry,
	}
}

// GetOrCreate returns the session for id, creating it in the greeting state
// when unknown. An empty id allocates a fresh session.
func (m *SessionManager) GetOrCreate(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id != "" {
		if s, ok := m.sessions[id]; ok {
			return s
		}
	} else {
		id = uuid.NewString()
	}

	s := m.newSession(id)
	m.sessions[id] = s
	return s
}

// Get returns an existing session
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Reset discards all state for a session and reinitializes the greeting
// state. Resetting an unknown session just creates it, so the operation is
// idempotent.
func (m *SessionManager) Reset(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	s := m.newSession(id)
	m.sessions[id] = s
	return s
}

// newSession builds the initial state: empty profile, no pending ask, and a
// greeting that names the first required question as context.
func (m *SessionManager) newSession(id string) *Session {
	now := time.Now()
	s := &Session{
		ID:        id,
		Profile:   make(model.Profile),
		CreatedAt: now,
		UpdatedAt: now,
	}

	greeting := "Hi! I'm the used-car advisor."
	if first, ok := m.registry.FirstRequired(); ok {
		greeting = fmt.Sprintf("Hi! I'm the used-car advisor. Let's start with a short question - %s",
			lowerFirst(first.Prompt))
	}
	s.appendMessage("assistant", greeting)

	return s
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	if r[0] >= 'A' && r[0] <= 'Z' {
		r[0] += 'a' - 'A'
	}
	return string(r)
}
