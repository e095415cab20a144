package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nexuscore/agentcore/internal/agent"
	"github.com/nexuscore/agentcore/pkg/models"
)

var _ agent.SessionStore = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store, suitable for local runs, the CLI, and
// tests. It is not durable across restarts.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	archived map[string]bool
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*models.Session),
		archived: make(map[string]bool),
	}
}

func (m *MemoryStore) Create(ctx context.Context, agentID, channel string) (*models.Session, error) {
	now := time.Now()
	s := &models.Session{
		ID:           uuid.NewString(),
		AgentID:      agentID,
		Channel:      channel,
		StartedAt:    now,
		LastActivity: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = cloneSession(s)
	return cloneSession(s), nil
}

func (m *MemoryStore) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(s), nil
}

func (m *MemoryStore) Append(ctx context.Context, sessionID string, msgs ...*models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		s = &models.Session{ID: sessionID, StartedAt: time.Now()}
		m.sessions[sessionID] = s
	}
	for _, msg := range msgs {
		s.Messages = append(s.Messages, msg.Clone())
	}
	s.LastActivity = time.Now()
	delete(m.archived, sessionID)
	return nil
}

func (m *MemoryStore) ReplaceMessages(ctx context.Context, sessionID string, msgs []*models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		s = &models.Session{ID: sessionID, StartedAt: time.Now()}
		m.sessions[sessionID] = s
	}
	replaced := make([]*models.Message, len(msgs))
	for i, msg := range msgs {
		replaced[i] = msg.Clone()
	}
	s.Messages = replaced
	s.LastActivity = time.Now()
	return nil
}

func (m *MemoryStore) ArchiveIdle(ctx context.Context, idleFor time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-idleFor)

	m.mu.Lock()
	defer m.mu.Unlock()

	var archived []string
	for id, s := range m.sessions {
		if m.archived[id] {
			continue
		}
		if s.LastActivity.Before(cutoff) {
			m.archived[id] = true
			archived = append(archived, id)
		}
	}
	return archived, nil
}

func cloneSession(s *models.Session) *models.Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = make([]*models.Message, len(s.Messages))
	for i, msg := range s.Messages {
		c.Messages[i] = msg.Clone()
	}
	if s.Metadata != nil {
		c.Metadata = make(map[string]any, len(s.Metadata))
		for k, v := range s.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
