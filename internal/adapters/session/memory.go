// Package session provides conversation history stores.
// Clean Architecture: Adapters implementing ports.SessionStore.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/0xcro3dile/courserag/internal/domain/entities"
)

// DefaultMaxHistory is the number of exchanges kept per session.
const DefaultMaxHistory = 2

// message is one stored turn.
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu         sync.Mutex
	maxHistory int
	sessions   map[string][]message
}

// NewMemoryStore creates a store keeping maxHistory exchanges per session.
func NewMemoryStore(maxHistory int) *MemoryStore {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &MemoryStore{
		maxHistory: maxHistory,
		sessions:   make(map[string][]message),
	}
}

// CreateSession registers a new empty session.
func (s *MemoryStore) CreateSession(ctx context.Context) (string, error) {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = nil
	return id, nil
}

// AddMessage appends one turn, creating the session if needed.
func (s *MemoryStore) AddMessage(ctx context.Context, sessionID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.append(sessionID, message{Role: role, Content: content})
	return nil
}

// AddExchange appends a user turn and the assistant's reply atomically.
func (s *MemoryStore) AddExchange(ctx context.Context, sessionID, userMessage, assistantMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.append(sessionID, message{Role: entities.RoleUser, Content: userMessage})
	s.append(sessionID, message{Role: entities.RoleAssistant, Content: assistantMessage})
	return nil
}

// append must be called with mu held.
func (s *MemoryStore) append(sessionID string, m message) {
	msgs := append(s.sessions[sessionID], m)
	if limit := s.maxHistory * 2; len(msgs) > limit {
		msgs = append([]message(nil), msgs[len(msgs)-limit:]...)
	}
	s.sessions[sessionID] = msgs
}

// History returns the formatted history, or "" for unknown sessions.
func (s *MemoryStore) History(ctx context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return formatHistory(s.sessions[sessionID]), nil
}

// Clear drops all messages of a session.
func (s *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func formatHistory(msgs []message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		label := "User"
		if m.Role == entities.RoleAssistant {
			label = "Assistant"
		}
		lines = append(lines, label+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}
