// Package sqlite provides a SQLite-backed CheckpointStore.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/smallnest/threadgraph/store"
)

// Options configures the SQLite database.
type Options struct {
	Path      string
	TableName string // Default "threadgraph_checkpoints"
}

const defaultTable = "threadgraph_checkpoints"

// CheckpointStore keeps one row per thread.
type CheckpointStore struct {
	db        *sql.DB
	tableName string
}

var _ store.CheckpointStore = (*CheckpointStore)(nil)

// NewCheckpointStore opens the database and creates the table.
func NewCheckpointStore(opts Options) (*CheckpointStore, error) {
	if opts.Path == "" {
		return nil, errors.New("sqlite store: empty path")
	}
	// WAL with a busy timeout lets concurrent writers of distinct threads wait
	// instead of failing with SQLITE_BUSY.
	db, err := sql.Open("sqlite3", opts.Path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = defaultTable
	}
	s := &CheckpointStore{db: db, tableName: tableName}

	if err := s.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// InitSchema creates the necessary table if it doesn't exist.
func (s *CheckpointStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			thread_id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			version INTEGER NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *CheckpointStore) Close() error {
	return s.db.Close()
}

func (s *CheckpointStore) Get(ctx context.Context, threadID string) (*store.Checkpoint, error) {
	query := fmt.Sprintf(`SELECT thread_id, state, version, updated_at FROM %s WHERE thread_id = ?`, s.tableName)

	var (
		cp        store.Checkpoint
		stateJSON string
	)
	err := s.db.QueryRowContext(ctx, query, threadID).Scan(&cp.ThreadID, &stateJSON, &cp.Version, &cp.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound(threadID)
		}
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	if err := json.Unmarshal([]byte(stateJSON), &cp.State); err != nil {
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

	updated := cp.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	var (
		query string
		args  = []any{cp.ThreadID, string(stateJSON), cp.Version, updated.UTC()}
	)
	if cp.Version == 1 {
		query = fmt.Sprintf(`
			INSERT INTO %s (thread_id, state, version, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (thread_id) DO NOTHING
		`, s.tableName)
	} else {
		query = fmt.Sprintf(`
			UPDATE %s SET state = ?2, version = ?3, updated_at = ?4
			WHERE thread_id = ?1 AND version = ?5
		`, s.tableName)
		args = append(args, cp.Version-1)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	if n == 0 {
		return store.Conflict(cp.ThreadID, cp.Version)
	}
	return nil
}

func (s *CheckpointStore) Delete(ctx context.Context, threadID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE thread_id = ?", s.tableName)
	if _, err := s.db.ExecContext(ctx, query, threadID); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

func (s *CheckpointStore) List(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("SELECT thread_id FROM %s ORDER BY thread_id ASC", s.tableName)

	rows, err := s.db.QueryContext(ctx, query)
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
