// Package inmemory provides a map-backed checkpoint store.
package inmemory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/papercomputeco/cspr/pkg/checkpoint"
)

// Store implements checkpoint.Store using an in-memory map.
type Store struct {
	mu          sync.RWMutex
	checkpoints map[string]checkpoint.Checkpoint
}

var _ checkpoint.Store = (*Store)(nil)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		checkpoints: make(map[string]checkpoint.Checkpoint),
	}
}

// Load returns the event id stored under key.
func (s *Store) Load(_ context.Context, key string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.checkpoints[key]
	if !ok {
		return 0, checkpoint.NotFoundError{Key: key}
	}
	return cp.EventID, nil
}

// Save stores eventID under key unless a higher id is already stored.
func (s *Store) Save(_ context.Context, key string, eventID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cp, ok := s.checkpoints[key]; ok && cp.EventID >= eventID {
		return nil
	}

	s.checkpoints[key] = checkpoint.Checkpoint{
		Key:       key,
		EventID:   eventID,
		UpdatedAt: time.Now().UTC(),
	}
	return nil
}

// List returns all checkpoints ordered by key.
func (s *Store) List(_ context.Context) ([]checkpoint.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]checkpoint.Checkpoint, 0, len(s.checkpoints))
	for _, key := range slices.Sorted(maps.Keys(s.checkpoints)) {
		result = append(result, s.checkpoints[key])
	}
	return result, nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
