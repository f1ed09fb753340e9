package checkpoint

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/threadgraph/log"
	"github.com/smallnest/threadgraph/state"
	"github.com/smallnest/threadgraph/store"
	"github.com/smallnest/threadgraph/store/memory"
)

func newManager() *Manager {
	return NewManager(memory.NewCheckpointStore(), WithLogger(log.NoOpLogger{}))
}

func TestManager_LoadMissingThreadIsEmpty(t *testing.T) {
	t.Parallel()

	snap, err := newManager().Load(context.Background(), "new")
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Version)
	assert.Empty(t, snap.State.Messages)
}

func TestManager_SaveIncrementsVersion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newManager()
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	st := state.ConversationState{Messages: []state.Message{
		state.NewUserMessage("hi"), state.NewAssistantMessage("hello"),
	}}
	v, err := m.Save(ctx, "t1", 0, st)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	snap, err := m.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Version)
	assert.Equal(t, st, snap.State)

	v, err = m.Save(ctx, "t1", snap.Version, st)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	cp, err := m.Store().Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, fixed, cp.UpdatedAt)
}

func TestManager_SaveRejectsStaleVersion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newManager()
	first := state.ConversationState{Messages: []state.Message{
		state.NewUserMessage("from A"), state.NewAssistantMessage("A answer"),
	}}
	second := state.ConversationState{Messages: []state.Message{
		state.NewUserMessage("from B"), state.NewAssistantMessage("B answer"),
	}}

	// Both writers loaded the empty thread.
	_, err := m.Save(ctx, "t1", 0, first)
	require.NoError(t, err)
	_, err = m.Save(ctx, "t1", 0, second)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, store.ErrVersionConflict)

	snap, err := m.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Version)
	assert.Equal(t, first, snap.State)
}

func TestManager_SaveRejectsInvalidState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newManager()

	orphan := state.ConversationState{Messages: []state.Message{
		state.NewUserMessage("hi"),
		state.NewToolResultMessage("nope", "x", "result"),
	}}
	_, err := m.Save(ctx, "t1", 0, orphan)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, err, state.ErrInvalidHistory)

	_, err = m.Store().Get(ctx, "t1")
	assert.ErrorIs(t, err, store.ErrCheckpointNotFound)
}

func TestManager_EmptyThreadID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newManager()

	_, err := m.Load(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyThreadID)
	_, err = m.Save(ctx, "", 0, state.ConversationState{})
	assert.ErrorIs(t, err, ErrEmptyThreadID)
	assert.ErrorIs(t, m.Delete(ctx, ""), ErrEmptyThreadID)
	_, err = m.Lock(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyThreadID)
}

func TestManager_DeleteAndThreads(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newManager()
	st := state.ConversationState{Messages: []state.Message{state.NewUserMessage("x")}}

	for _, id := range []string{"b", "a"} {
		_, err := m.Save(ctx, id, 0, st)
		require.NoError(t, err)
	}
	ids, err := m.Threads(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	require.NoError(t, m.Delete(ctx, "a"))
	ids, err = m.Threads(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)
}

type failingStore struct {
	store.CheckpointStore
}

func (failingStore) Get(context.Context, string) (*store.Checkpoint, error) {
	return nil, errors.New("backend down")
}

func TestManager_LoadPropagatesBackendErrors(t *testing.T) {
	t.Parallel()

	m := NewManager(failingStore{memory.NewCheckpointStore()}, WithLogger(log.NoOpLogger{}))
	_, err := m.Load(context.Background(), "t1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
}

func TestManager_LockSerializesReadModifyWrite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newManager()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(ctx, "shared")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			snap, err := m.Load(ctx, "shared")
			if !assert.NoError(t, err) {
				return
			}
			next := state.ConversationState{Messages: state.AppendMessages(snap.State.Messages, []state.Message{
				state.NewUserMessage("q"), state.NewAssistantMessage("a"),
			})}
			_, err = m.Save(ctx, "shared", snap.Version, next)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	snap, err := m.Load(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, writers, snap.Version)
	assert.Len(t, snap.State.Messages, 2*writers, "no lost updates")
}

type recordingLocker struct {
	locked, unlocked atomic.Int32
}

func (r *recordingLocker) Lock(ctx context.Context, key string) (func(context.Context) error, error) {
	r.locked.Add(1)
	return func(context.Context) error {
		r.unlocked.Add(1)
		return errors.New("release failed")
	}, nil
}

func TestManager_WithLocker(t *testing.T) {
	t.Parallel()

	rl := &recordingLocker{}
	m := NewManager(memory.NewCheckpointStore(), WithLocker(rl), WithLogger(log.NoOpLogger{}))

	unlock, err := m.Lock(context.Background(), "t")
	require.NoError(t, err)
	unlock()

	assert.EqualValues(t, 1, rl.locked.Load())
	assert.EqualValues(t, 1, rl.unlocked.Load())
}
