package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/threadgraph/store"
	"github.com/smallnest/threadgraph/store/storetest"
)

func newMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return mr
}

func TestCheckpointStore_Conformance(t *testing.T) {
	mr := newMiniredis(t)
	s := NewCheckpointStore(Options{Addr: mr.Addr()})
	defer s.Close()

	storetest.Run(t, s)
}

func TestCheckpointStore_KeyLayout(t *testing.T) {
	mr := newMiniredis(t)
	s := NewCheckpointStore(Options{Addr: mr.Addr(), Prefix: "app:"})
	defer s.Close()

	require.NoError(t, s.Put(context.Background(), &store.Checkpoint{ThreadID: "t1", State: storetest.SampleState(), Version: 1}))

	assert.True(t, mr.Exists("app:thread:t1"))
	members, err := mr.Members("app:threads")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, members)
}

func TestCheckpointStore_TTLExpiryPrunesIndex(t *testing.T) {
	mr := newMiniredis(t)
	s := NewCheckpointStore(Options{Addr: mr.Addr(), TTL: time.Minute})
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, &store.Checkpoint{ThreadID: "short", Version: 1}))
	assert.Equal(t, time.Minute, mr.TTL(DefaultPrefix+"thread:short"))

	mr.FastForward(2 * time.Minute)

	_, err := s.Get(ctx, "short")
	assert.ErrorIs(t, err, store.ErrCheckpointNotFound)

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	members, _ := mr.Members(DefaultPrefix + "threads")
	assert.Empty(t, members)
}

func TestCheckpointStore_ConnectionError(t *testing.T) {
	mr := newMiniredis(t)
	s := NewCheckpointStore(Options{Addr: mr.Addr()})
	defer s.Close()

	mr.Close()
	_, err := s.Get(context.Background(), "t1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrCheckpointNotFound)
}

func TestLocker_LockUnlock(t *testing.T) {
	mr := newMiniredis(t)
	client := NewClient(Options{Addr: mr.Addr()})
	defer client.Close()

	locker := NewLocker(client, "test:", 5*time.Second)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:t1"))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:t1"))
}

func TestLocker_Contention(t *testing.T) {
	mr := newMiniredis(t)
	client := NewClient(Options{Addr: mr.Addr()})
	defer client.Close()

	first := NewLocker(client, "test:", 5*time.Second)
	second := NewLocker(client, "test:", 5*time.Second)
	ctx := context.Background()

	unlock1, err := first.Lock(ctx, "shared")
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, err = second.Lock(short, "shared")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	acquired := make(chan struct{})
	go func() {
		unlock2, err := second.Lock(ctx, "shared")
		if assert.NoError(t, err) {
			close(acquired)
			_ = unlock2(ctx)
		}
	}()

	time.Sleep(60 * time.Millisecond)
	require.NoError(t, unlock1(ctx))

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second locker never acquired the lock")
	}
}

func TestLocker_StaleUnlockDoesNotReleaseNewHolder(t *testing.T) {
	mr := newMiniredis(t)
	client := NewClient(Options{Addr: mr.Addr()})
	defer client.Close()

	locker := NewLocker(client, "test:", time.Second)
	ctx := context.Background()

	unlockOld, err := locker.Lock(ctx, "t")
	require.NoError(t, err)

	// The old holder's lock expires and someone else takes it.
	mr.FastForward(2 * time.Second)
	unlockNew, err := locker.Lock(ctx, "t")
	require.NoError(t, err)

	require.NoError(t, unlockOld(ctx))
	assert.True(t, mr.Exists("test:lock:t"), "stale unlock must not delete the new holder's key")

	require.NoError(t, unlockNew(ctx))
	assert.False(t, mr.Exists("test:lock:t"))
}

func TestCheckpointStore_StaleWriteIsRejected(t *testing.T) {
	mr := newMiniredis(t)
	s := NewCheckpointStore(Options{Addr: mr.Addr()})
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, &store.Checkpoint{ThreadID: "t", State: storetest.SampleState(), Version: 1}))
	require.NoError(t, s.Put(ctx, &store.Checkpoint{ThreadID: "t", State: storetest.SampleState(), Version: 2}))

	// A writer that still believes version 1 is current must not overwrite 2.
	err := s.Put(ctx, &store.Checkpoint{ThreadID: "t", Version: 2})
	assert.ErrorIs(t, err, store.ErrVersionConflict)

	got, err := s.Get(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Len(t, got.State.Messages, 4)
}

func TestLocker_RenewsWhileHeld(t *testing.T) {
	mr := newMiniredis(t)
	client := NewClient(Options{Addr: mr.Addr()})
	defer client.Close()

	ttl := 300 * time.Millisecond
	locker := NewLocker(client, "test:", ttl)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "t")
	require.NoError(t, err)

	// Most of the TTL elapses while the run is still going.
	mr.FastForward(250 * time.Millisecond)
	assert.Eventually(t, func() bool {
		return mr.TTL("test:lock:t") > 200*time.Millisecond
	}, 2*time.Second, 10*time.Millisecond, "held lock was not renewed")
	assert.True(t, mr.Exists("test:lock:t"))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:t"))
}

func TestLocker_RenewalStopsOnceLost(t *testing.T) {
	mr := newMiniredis(t)
	client := NewClient(Options{Addr: mr.Addr()})
	defer client.Close()

	ttl := 300 * time.Millisecond
	locker := NewLocker(client, "test:", ttl)
	ctx := context.Background()

	unlockOld, err := locker.Lock(ctx, "t")
	require.NoError(t, err)
	mr.FastForward(time.Second)
	require.False(t, mr.Exists("test:lock:t"))

	require.NoError(t, mr.Set("test:lock:t", "someone-else"))
	time.Sleep(250 * time.Millisecond)

	got, err := mr.Get("test:lock:t")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
	assert.Zero(t, mr.TTL("test:lock:t"), "the old holder must not extend a foreign lock")

	require.NoError(t, unlockOld(ctx))
	assert.True(t, mr.Exists("test:lock:t"))
}
