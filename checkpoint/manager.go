package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallnest/threadgraph/log"
	"github.com/smallnest/threadgraph/state"
	"github.com/smallnest/threadgraph/store"
)

var (
	// ErrEmptyThreadID is returned for operations without a thread ID.
	ErrEmptyThreadID = errors.New("empty thread id")

	// ErrInvalidState is returned by Save when the history breaks the
	// tool-call ordering rules.
	ErrInvalidState = errors.New("refusing to save invalid state")

	// ErrConflict is returned by Save when another writer committed the
	// thread after the Load the save is based on.
	ErrConflict = errors.New("thread was modified concurrently")
)

// Snapshot is the committed state of a thread as seen by Load.
type Snapshot struct {
	State   state.ConversationState
	Version int
}

// Manager loads and saves per-thread conversation state and hands out
// per-thread locks so that only one run mutates a thread at a time.
type Manager struct {
	store  store.CheckpointStore
	locker Locker
	logger log.Logger
	now    func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithLocker replaces the default in-process locker, e.g. with a Redis locker
// when several processes share a store.
func WithLocker(l Locker) Option {
	return func(m *Manager) { m.locker = l }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager wraps s.
func NewManager(s store.CheckpointStore, opts ...Option) *Manager {
	m := &Manager{
		store:  s,
		locker: NewLocalLocker(),
		logger: log.GetDefaultLogger(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Store returns the backing store.
func (m *Manager) Store() store.CheckpointStore {
	return m.store
}

// Lock acquires the thread's lock. The caller must call the returned
// function exactly once.
func (m *Manager) Lock(ctx context.Context, threadID string) (func(), error) {
	if threadID == "" {
		return nil, ErrEmptyThreadID
	}
	unlock, err := m.locker.Lock(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("lock thread %s: %w", threadID, err)
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := unlock(ctx); err != nil {
			m.logger.Warn("failed to release lock for thread %s: %v", threadID, err)
		}
	}, nil
}

// Load returns the last committed state. A thread that was never saved loads
// as an empty state at version 0.
func (m *Manager) Load(ctx context.Context, threadID string) (Snapshot, error) {
	if threadID == "" {
		return Snapshot{}, ErrEmptyThreadID
	}
	cp, err := m.store.Get(ctx, threadID)
	if err != nil {
		if errors.Is(err, store.ErrCheckpointNotFound) {
			return Snapshot{}, nil
		}
		return Snapshot{}, fmt.Errorf("load thread %s: %w", threadID, err)
	}
	return Snapshot{State: cp.State, Version: cp.Version}, nil
}

// Save commits st as the thread's state at version prev+1, where prev is the
// version returned by the Load this save follows. If the thread is no longer
// at prev, nothing is written and the error wraps ErrConflict.
func (m *Manager) Save(ctx context.Context, threadID string, prev int, st state.ConversationState) (int, error) {
	if threadID == "" {
		return 0, ErrEmptyThreadID
	}
	if err := st.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidState, err)
	}

	cp := &store.Checkpoint{
		ThreadID:  threadID,
		State:     st,
		Version:   prev + 1,
		UpdatedAt: m.now(),
	}
	if err := m.store.Put(ctx, cp); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return 0, fmt.Errorf("save thread %s: %w: %w", threadID, ErrConflict, err)
		}
		return 0, fmt.Errorf("save thread %s: %w", threadID, err)
	}
	m.logger.Debug("saved thread %s at version %d (%d messages)", threadID, cp.Version, st.Len())
	return cp.Version, nil
}

// Delete removes the thread's history.
func (m *Manager) Delete(ctx context.Context, threadID string) error {
	if threadID == "" {
		return ErrEmptyThreadID
	}
	if err := m.store.Delete(ctx, threadID); err != nil {
		return fmt.Errorf("delete thread %s: %w", threadID, err)
	}
	return nil
}

// Threads lists every thread with a committed checkpoint.
func (m *Manager) Threads(ctx context.Context) ([]string, error) {
	ids, err := m.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	return ids, nil
}
