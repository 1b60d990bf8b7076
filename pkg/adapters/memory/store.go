package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/strata/pkg/domain"
)

// Store implements ports.CheckpointStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Checkpoint
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Checkpoint),
	}
}

// Save keeps a deep copy of the checkpoint, so later edits to cp do not leak in.
func (s *Store) Save(ctx context.Context, id string, cp *domain.Checkpoint) error {
	if id == "" {
		return domain.NewValidationError("id", "checkpoint id is empty", id)
	}
	copied := cp.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = copied
	return nil
}

// Load returns a deep copy so callers can't mutate the stored checkpoint.
func (s *Store) Load(ctx context.Context, id string) (*domain.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.data[id]
	if !ok {
		return nil, domain.ErrCheckpointNotFound
	}
	return cp.Clone(), nil
}

// Delete removes the checkpoint.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// List returns the stored checkpoint IDs, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
