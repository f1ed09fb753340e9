// Package redis provides a Redis-backed CheckpointStore and a distributed
// per-thread Locker.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smallnest/threadgraph/store"
)

// DefaultPrefix namespaces every key written by this package.
const DefaultPrefix = "threadgraph:"

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // Key prefix, default "threadgraph:"
	TTL      time.Duration // Expiration for idle threads, default 0 (no expiration)
}

// CheckpointStore keeps each thread's checkpoint as a JSON string and tracks
// thread IDs in a set for List.
type CheckpointStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ store.CheckpointStore = (*CheckpointStore)(nil)

// NewClient opens a client from opts.
func NewClient(opts Options) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

// NewCheckpointStore creates a store with its own client.
func NewCheckpointStore(opts Options) *CheckpointStore {
	return NewCheckpointStoreWithClient(NewClient(opts), opts.Prefix, opts.TTL)
}

// NewCheckpointStoreWithClient shares an existing client, e.g. with a Locker.
func NewCheckpointStoreWithClient(client redis.UniversalClient, prefix string, ttl time.Duration) *CheckpointStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &CheckpointStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *CheckpointStore) threadKey(id string) string {
	return s.prefix + "thread:" + id
}

func (s *CheckpointStore) indexKey() string {
	return s.prefix + "threads"
}

func (s *CheckpointStore) Get(ctx context.Context, threadID string) (*store.Checkpoint, error) {
	data, err := s.client.Get(ctx, s.threadKey(threadID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.NotFound(threadID)
		}
		return nil, fmt.Errorf("failed to load checkpoint from redis: %w", err)
	}
	return store.Unmarshal(data)
}

// Put writes the value and index entry in one MULTI/EXEC transaction,
// guarded by WATCH on the thread key so a concurrent commit aborts it.
func (s *CheckpointStore) Put(ctx context.Context, cp *store.Checkpoint) error {
	data, err := store.Marshal(cp)
	if err != nil {
		return err
	}
	key := s.threadKey(cp.ThreadID)

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current := 0
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			old, err := store.Unmarshal(raw)
			if err != nil {
				return err
			}
			current = old.Version
		}
		if cp.Version != current+1 {
			return store.Conflict(cp.ThreadID, cp.Version)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			pipe.SAdd(ctx, s.indexKey(), cp.ThreadID)
			return nil
		})
		return err
	}, key)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrVersionConflict):
		return err
	case errors.Is(err, redis.TxFailedErr):
		return store.Conflict(cp.ThreadID, cp.Version)
	default:
		return fmt.Errorf("failed to save checkpoint to redis: %w", err)
	}
}

func (s *CheckpointStore) Delete(ctx context.Context, threadID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.threadKey(threadID))
		pipe.SRem(ctx, s.indexKey(), threadID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// List returns indexed thread IDs whose value still exists. Index entries of
// threads that expired through the TTL are pruned on the way.
func (s *CheckpointStore) List(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	if len(ids) == 0 {
		return []string{}, nil
	}

	pipe := s.client.Pipeline()
	exists := make([]*redis.IntCmd, len(ids))
	for i, id := range ids {
		exists[i] = pipe.Exists(ctx, s.threadKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to check threads: %w", err)
	}

	live := make([]string, 0, len(ids))
	var stale []any
	for i, id := range ids {
		if exists[i].Val() > 0 {
			live = append(live, id)
		} else {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := s.client.SRem(ctx, s.indexKey(), stale...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune thread index: %w", err)
		}
	}

	sort.Strings(live)
	return live, nil
}

// Close closes the underlying client.
func (s *CheckpointStore) Close() error {
	return s.client.Close()
}
