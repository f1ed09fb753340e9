// Package postgres provides a PostgreSQL-backed CheckpointStore.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smallnest/threadgraph/store"
)

// DBPool is the subset of pgxpool.Pool the store uses, so tests can pass a mock.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Options configures the Postgres connection.
type Options struct {
	ConnString string
	TableName  string // Default "threadgraph_checkpoints"
}

const defaultTable = "threadgraph_checkpoints"

// CheckpointStore keeps one row per thread.
type CheckpointStore struct {
	pool      DBPool
	tableName string
}

var _ store.CheckpointStore = (*CheckpointStore)(nil)

// NewCheckpointStore connects and creates the table if it does not exist.
func NewCheckpointStore(ctx context.Context, opts Options) (*CheckpointStore, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	s := NewCheckpointStoreWithPool(pool, opts.TableName)
	if err := s.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewCheckpointStoreWithPool uses an existing pool without touching the schema.
func NewCheckpointStoreWithPool(pool DBPool, tableName string) *CheckpointStore {
	if tableName == "" {
		tableName = defaultTable
	}
	return &CheckpointStore{pool: pool, tableName: tableName}
}

// InitSchema creates the checkpoint table if it doesn't exist.
func (s *CheckpointStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			thread_id TEXT PRIMARY KEY,
			state JSONB NOT NULL,
			version INTEGER NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *CheckpointStore) Close() {
	s.pool.Close()
}

func (s *CheckpointStore) Get(ctx context.Context, threadID string) (*store.Checkpoint, error) {
	query := fmt.Sprintf(`SELECT thread_id, state, version, updated_at FROM %s WHERE thread_id = $1`, s.tableName)

	var (
		cp        store.Checkpoint
		stateJSON []byte
	)
	err := s.pool.QueryRow(ctx, query, threadID).Scan(&cp.ThreadID, &stateJSON, &cp.Version, &cp.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.NotFound(threadID)
		}
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	if err := json.Unmarshal(stateJSON, &cp.State); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &cp, nil
}

// Put inserts the first version of a thread and otherwise updates the row
// only while it still holds the previous version.
func (s *CheckpointStore) Put(ctx context.Context, cp *store.Checkpoint) error {
	if cp.Version < 1 {
		return store.Conflict(cp.ThreadID, cp.Version)
	}
	stateJSON, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	var (
		query string
		args  = []any{cp.ThreadID, stateJSON, cp.Version, cp.UpdatedAt}
	)
	if cp.Version == 1 {
		query = fmt.Sprintf(`
			INSERT INTO %s (thread_id, state, version, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (thread_id) DO NOTHING
		`, s.tableName)
	} else {
		query = fmt.Sprintf(`
			UPDATE %s SET state = $2, version = $3, updated_at = $4
			WHERE thread_id = $1 AND version = $5
		`, s.tableName)
		args = append(args, cp.Version-1)
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.Conflict(cp.ThreadID, cp.Version)
	}
	return nil
}

func (s *CheckpointStore) Delete(ctx context.Context, threadID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE thread_id = $1", s.tableName)
	if _, err := s.pool.Exec(ctx, query, threadID); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

func (s *CheckpointStore) List(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("SELECT thread_id FROM %s ORDER BY thread_id ASC", s.tableName)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan thread row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating thread rows: %w", err)
	}
	return ids, nil
}
