package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/smallnest/threadgraph/state"
)

var (
	// ErrCheckpointNotFound is returned by Get when a thread has no checkpoint.
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrVersionConflict is returned by Put when the stored version is not
	// the one the write was based on.
	ErrVersionConflict = errors.New("checkpoint version conflict")
)

// Checkpoint is the last committed conversation of one thread.
type Checkpoint struct {
	ThreadID  string                  `json:"thread_id"`
	State     state.ConversationState `json:"state"`
	Version   int                     `json:"version"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// Clone returns a deep copy so callers never share message slices with a store.
func (c *Checkpoint) Clone() *Checkpoint {
	if c == nil {
		return nil
	}
	cp := *c
	cp.State = c.State.Clone()
	return &cp
}

// CheckpointStore persists one checkpoint per thread. Implementations must be
// safe for concurrent use. Writes are version-conditional, so two writers that
// loaded the same version cannot both commit.
type CheckpointStore interface {
	// Get returns the checkpoint for threadID or ErrCheckpointNotFound.
	Get(ctx context.Context, threadID string) (*Checkpoint, error)

	// Put replaces the checkpoint for cp.ThreadID in a single write. It
	// succeeds only if the stored version is cp.Version-1, a missing thread
	// counting as version 0, and returns ErrVersionConflict otherwise.
	Put(ctx context.Context, cp *Checkpoint) error

	// Delete removes a thread. Deleting a missing thread is not an error.
	Delete(ctx context.Context, threadID string) error

	// List returns all thread IDs in ascending order.
	List(ctx context.Context) ([]string, error)
}

// Marshal encodes a checkpoint for byte-oriented backends.
func Marshal(cp *Checkpoint) ([]byte, error) {
	data, err := json.Marshal(cp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a checkpoint written by Marshal.
func Unmarshal(data []byte) (*Checkpoint, error) {
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// Conflict wraps ErrVersionConflict with the thread and the attempted version.
func Conflict(threadID string, version int) error {
	return fmt.Errorf("%w: thread %s at version %d", ErrVersionConflict, threadID, version)
}

// NotFound wraps ErrCheckpointNotFound with the thread ID.
func NotFound(threadID string) error {
	return fmt.Errorf("%w: %s", ErrCheckpointNotFound, threadID)
}
