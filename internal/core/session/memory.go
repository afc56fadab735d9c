package session

import (
	"context"
	"sync"
)

// MemoryStore keeps session transcripts in process memory. It backs local runs
// and tests; deployments that need durable history use the postgres store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]Turn
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]Turn)}
}

// Append adds a turn to the session's transcript.
func (s *MemoryStore) Append(ctx context.Context, sessionID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], Turn{Role: role, Content: content})
	return nil
}

// Load returns the most recent limit turns in chronological order.
func (s *MemoryStore) Load(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.sessions[sessionID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}

	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
