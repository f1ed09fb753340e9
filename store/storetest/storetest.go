// Package storetest holds a conformance suite every CheckpointStore backend runs.
package storetest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/threadgraph/state"
	"github.com/smallnest/threadgraph/store"
)

// SampleState is a four-message conversation with a tool round trip.
func SampleState() state.ConversationState {
	return state.ConversationState{Messages: []state.Message{
		state.NewUserMessage("current time?"),
		state.NewAssistantMessage("", state.ToolCall{
			ID: "call_1", Name: "get_current_time",
			Arguments: map[string]any{"tz": "UTC", "opts": map[string]any{"24h": true}, "n": 2.5},
		}),
		state.NewToolResultMessage("call_1", "get_current_time", "12:00"),
		state.NewAssistantMessage("It is 12:00 UTC."),
	}}
}

// Run exercises a fresh, empty store.
func Run(t *testing.T, s store.CheckpointStore) {
	ctx := context.Background()

	t.Run("missing thread", func(t *testing.T) {
		_, err := s.Get(ctx, "nope")
		assert.ErrorIs(t, err, store.ErrCheckpointNotFound)
		assert.NoError(t, s.Delete(ctx, "nope"))
	})

	t.Run("round trip", func(t *testing.T) {
		cp := &store.Checkpoint{
			ThreadID:  "t1",
			State:     SampleState(),
			Version:   1,
			UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
		}
		require.NoError(t, s.Put(ctx, cp))

		got, err := s.Get(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, "t1", got.ThreadID)
		assert.Equal(t, 1, got.Version)
		assert.True(t, cp.UpdatedAt.Equal(got.UpdatedAt))
		assert.Equal(t, SampleState(), got.State)
	})

	t.Run("put replaces", func(t *testing.T) {
		next := SampleState()
		next.Messages = append(next.Messages, state.NewUserMessage("thanks"))
		require.NoError(t, s.Put(ctx, &store.Checkpoint{ThreadID: "t1", State: next, Version: 2, UpdatedAt: time.Now()}))

		got, err := s.Get(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, 2, got.Version)
		assert.Len(t, got.State.Messages, 5)
	})

	t.Run("stale version is rejected", func(t *testing.T) {
		stale := []int{1, 2, 4}
		for _, v := range stale {
			err := s.Put(ctx, &store.Checkpoint{ThreadID: "t1", State: state.ConversationState{}, Version: v})
			assert.ErrorIs(t, err, store.ErrVersionConflict, "version %d", v)
		}
		err := s.Put(ctx, &store.Checkpoint{ThreadID: "fresh", State: SampleState(), Version: 2})
		assert.ErrorIs(t, err, store.ErrVersionConflict)
		_, err = s.Get(ctx, "fresh")
		assert.ErrorIs(t, err, store.ErrCheckpointNotFound)

		got, err := s.Get(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, 2, got.Version)
		assert.Len(t, got.State.Messages, 5)
	})

	t.Run("racing writers on one version", func(t *testing.T) {
		const writers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			committed int
		)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.Put(ctx, &store.Checkpoint{ThreadID: "race", State: SampleState(), Version: 1})
				if err == nil {
					mu.Lock()
					committed++
					mu.Unlock()
					return
				}
				assert.ErrorIs(t, err, store.ErrVersionConflict)
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, committed)
		require.NoError(t, s.Delete(ctx, "race"))
	})

	t.Run("delete restarts versions", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, &store.Checkpoint{ThreadID: "again", State: SampleState(), Version: 1}))
		require.NoError(t, s.Delete(ctx, "again"))
		require.NoError(t, s.Put(ctx, &store.Checkpoint{ThreadID: "again", State: SampleState(), Version: 1}))
		require.NoError(t, s.Delete(ctx, "again"))
	})

	t.Run("opaque thread ids", func(t *testing.T) {
		ids := []string{"user/42", "ünïcödé thread", "../escape", "a:b:c", strings.Repeat("long-", 40)}
		for _, id := range ids {
			require.NoError(t, s.Put(ctx, &store.Checkpoint{ThreadID: id, State: SampleState(), Version: 1}))
		}
		for _, id := range ids {
			got, err := s.Get(ctx, id)
			require.NoError(t, err, id)
			assert.Equal(t, id, got.ThreadID)
		}
		listed, err := s.List(ctx)
		require.NoError(t, err)
		assert.Subset(t, listed, ids)
		for _, id := range ids {
			require.NoError(t, s.Delete(ctx, id))
		}
	})

	t.Run("list and delete", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, &store.Checkpoint{ThreadID: "t0", State: SampleState(), Version: 1}))

		ids, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"t0", "t1"}, ids)

		require.NoError(t, s.Delete(ctx, "t0"))
		_, err = s.Get(ctx, "t0")
		assert.ErrorIs(t, err, store.ErrCheckpointNotFound)

		ids, err = s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"t1"}, ids)
	})

	t.Run("concurrent distinct threads", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id := fmt.Sprintf("c%02d", i)
				assert.NoError(t, s.Put(ctx, &store.Checkpoint{ThreadID: id, State: SampleState(), Version: 1}))
				assert.NoError(t, s.Put(ctx, &store.Checkpoint{ThreadID: id, State: SampleState(), Version: 2}))
				got, err := s.Get(ctx, id)
				if assert.NoError(t, err) {
					assert.Equal(t, 2, got.Version)
				}
			}(i)
		}
		wg.Wait()

		ids, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, ids, 17)
	})
}
