package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store exposes per-user conversation history for the bridge.
//
// FetchRecent returns the chronologically last limit turns for the user;
// an unknown user yields an empty slice, not an error. Append always adds
// to the end of the user's history, creating the record if absent.
// Duplicate role+content pairs are kept: a user resending the same
// greeting twice produces two turns.
type Store interface {
	FetchRecent(ctx context.Context, userID string, limit int) ([]Turn, error)
	Append(ctx context.Context, userID string, turn Turn) error
}

// MemoryStore implements Store with an in-memory map, suitable for local
// runs and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	histories map[string][]Turn
}

// NewMemoryStore bootstraps an empty in-memory history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		histories: make(map[string][]Turn),
	}
}

// FetchRecent returns the last limit turns for the user in original order.
func (s *MemoryStore) FetchRecent(_ context.Context, userID string, limit int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.histories[userID]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}

	copied := make([]Turn, len(history))
	copy(copied, history)
	return copied, nil
}

// Append adds one turn to the end of the user's history, creating the
// record on first write.
func (s *MemoryStore) Append(_ context.Context, userID string, turn Turn) error {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.histories[userID] = append(s.histories[userID], turn)
	s.mu.Unlock()
	return nil
}
