package session

import (
	"context"
	"database/sql"
	"sync"
)

// MemoryStore keeps sessions in process memory. They do not survive a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Record)}
}

func (m *MemoryStore) Save(ctx context.Context, sessionID string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = rec
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, sessionID string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		return Record{}, sql.ErrNoRows
	}
	return rec, nil
}

func (m *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return sql.ErrNoRows
	}
	delete(m.sessions, sessionID)
	return nil
}

func (m *MemoryStore) Revoke(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, rec := range m.sessions {
		if rec.Token == token {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
