// Package memory provides an in-process CheckpointStore.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/smallnest/threadgraph/store"
)

// CheckpointStore keeps checkpoints in a map. Values are deep-copied on the
// way in and out so callers can never alias stored history.
type CheckpointStore struct {
	mu      sync.RWMutex
	threads map[string]*store.Checkpoint
}

var _ store.CheckpointStore = (*CheckpointStore)(nil)

// NewCheckpointStore creates an empty store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{threads: make(map[string]*store.Checkpoint)}
}

func (s *CheckpointStore) Get(_ context.Context, threadID string) (*store.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.threads[threadID]
	if !ok {
		return nil, store.NotFound(threadID)
	}
	return cp.Clone(), nil
}

func (s *CheckpointStore) Put(_ context.Context, cp *store.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := 0
	if old, ok := s.threads[cp.ThreadID]; ok {
		current = old.Version
	}
	if cp.Version != current+1 {
		return store.Conflict(cp.ThreadID, cp.Version)
	}
	s.threads[cp.ThreadID] = cp.Clone()
	return nil
}

func (s *CheckpointStore) Delete(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.threads, threadID)
	return nil
}

func (s *CheckpointStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.threads))
	for id := range s.threads {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
