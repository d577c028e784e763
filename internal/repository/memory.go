package repository

import (
	"context"
	"errors"
	"sync"

	"faq-agent/internal/domain"
)

// Memory keeps transcripts in process memory for the lifetime of the server.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	turns    map[string][]domain.Turn
}

func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]domain.Session),
		turns:    make(map[string][]domain.Turn),
	}
}

func (m *Memory) CreateSession(_ context.Context, session domain.Session) error {
	if session.ID == "" {
		return errors.New("repository: session id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID]; !ok {
		m.sessions[session.ID] = session
	}
	return nil
}

// AppendTurn appends to the session transcript, creating the session if it is unknown.
func (m *Memory) AppendTurn(_ context.Context, sessionID string, turn domain.Turn) error {
	if sessionID == "" {
		return errors.New("repository: session id is required")
	}
	turn.Citations = append([]domain.Citation{}, turn.Citations...)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		m.sessions[sessionID] = domain.Session{ID: sessionID, CreatedAt: turn.CreatedAt}
	}
	m.turns[sessionID] = append(m.turns[sessionID], turn)
	return nil
}

// Transcript returns a copy of up to limit of the most recent turns.
func (m *Memory) Transcript(_ context.Context, sessionID string, limit int) ([]domain.Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	turns := m.turns[sessionID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	copied := make([]domain.Turn, len(turns))
	for i, t := range turns {
		t.Citations = append([]domain.Citation{}, t.Citations...)
		copied[i] = t
	}
	return copied, nil
}

func (m *Memory) DeleteSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	delete(m.turns, sessionID)
	return nil
}
