package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/threadgraph/store"
	"github.com/smallnest/threadgraph/store/storetest"
)

func newStore(t *testing.T) *CheckpointStore {
	t.Helper()
	s, err := NewCheckpointStore(Options{Path: filepath.Join(t.TempDir(), "threads.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCheckpointStore_Conformance(t *testing.T) {
	storetest.Run(t, newStore(t))
}

func TestCheckpointStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "threads.db")
	ctx := context.Background()

	s, err := NewCheckpointStore(Options{Path: path, TableName: "cp"})
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, &store.Checkpoint{ThreadID: "t1", State: storetest.SampleState(), Version: 1}))
	require.NoError(t, s.Close())

	reopened, err := NewCheckpointStore(Options{Path: path, TableName: "cp"})
	require.NoError(t, err)
	defer reopened.Close()

	cp, err := reopened.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, cp.Version)
	assert.Equal(t, storetest.SampleState(), cp.State)
	assert.False(t, cp.UpdatedAt.IsZero())
}

func TestNewCheckpointStore_EmptyPath(t *testing.T) {
	_, err := NewCheckpointStore(Options{})
	assert.Error(t, err)
}

func TestCheckpointStore_SharedFileRejectsStaleWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "threads.db")
	ctx := context.Background()

	first, err := NewCheckpointStore(Options{Path: path})
	require.NoError(t, err)
	defer first.Close()
	second, err := NewCheckpointStore(Options{Path: path})
	require.NoError(t, err)
	defer second.Close()

	// Both handles start from an empty thread; only one first commit wins.
	require.NoError(t, first.Put(ctx, &store.Checkpoint{ThreadID: "t1", State: storetest.SampleState(), Version: 1}))
	err = second.Put(ctx, &store.Checkpoint{ThreadID: "t1", Version: 1})
	assert.ErrorIs(t, err, store.ErrVersionConflict)

	require.NoError(t, second.Put(ctx, &store.Checkpoint{ThreadID: "t1", State: storetest.SampleState(), Version: 2}))
	err = first.Put(ctx, &store.Checkpoint{ThreadID: "t1", Version: 2})
	assert.ErrorIs(t, err, store.ErrVersionConflict)

	cp, err := first.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, cp.Version)
	assert.Len(t, cp.State.Messages, 4)
}
