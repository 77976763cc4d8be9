// Package store provides the session repository implementations: a
// process-wide in-memory store and a Postgres-backed document store. Both
// honor the same contract: get-by-id and save, atomic per session document.
package store

import (
	"context"
	"fmt"
	"sync"

	"finsim/internal/session"
)

// Memory keeps sessions in a process-wide map. Every read and write deep
// copies the document, so callers never alias state held by the store.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]*session.Session)}
}

func (m *Memory) GetByID(_ context.Context, id string) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", session.ErrNotFound, id)
	}
	return sess.Clone(), nil
}

func (m *Memory) Save(_ context.Context, sess *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess.Clone()
	return nil
}

func (m *Memory) ListIDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids, nil
}

// Reset drops every session. Teardown hook for tests.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string]*session.Session)
}
