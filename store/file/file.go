// Package file provides a CheckpointStore that keeps one JSON file per thread.
package file

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/smallnest/threadgraph/store"
)

const (
	ext = ".json"

	// hashedPrefix marks files named by the SHA-256 of their thread ID. The
	// dot never occurs in base64url, so the two naming schemes cannot collide.
	hashedPrefix = "sha256."

	// maxEncodedName keeps file names well under the common 255-byte NAME_MAX.
	maxEncodedName = 200
)

// CheckpointStore writes each thread to <dir>/<encoded-id>.json. Thread IDs
// are base64url-encoded so any string is a safe file name; IDs too long for
// that are named by their SHA-256 and recovered from the file content.
//
// The version check in Put is serialized by an in-process mutex, so a
// directory must not be shared by several processes.
type CheckpointStore struct {
	dir string
	mu  sync.Mutex
}

var _ store.CheckpointStore = (*CheckpointStore)(nil)

// NewCheckpointStore creates dir if needed.
func NewCheckpointStore(dir string) (*CheckpointStore, error) {
	if dir == "" {
		return nil, errors.New("file store: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &CheckpointStore{dir: dir}, nil
}

func fileName(threadID string) string {
	name := base64.RawURLEncoding.EncodeToString([]byte(threadID))
	if len(name) > maxEncodedName {
		sum := sha256.Sum256([]byte(threadID))
		name = hashedPrefix + hex.EncodeToString(sum[:])
	}
	return name + ext
}

func (s *CheckpointStore) path(threadID string) string {
	return filepath.Join(s.dir, fileName(threadID))
}

func (s *CheckpointStore) Get(_ context.Context, threadID string) (*store.Checkpoint, error) {
	data, err := os.ReadFile(s.path(threadID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, store.NotFound(threadID)
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	return store.Unmarshal(data)
}

// Put writes to a temp file in the same directory and renames it over the
// target, so readers see either the old or the new checkpoint.
func (s *CheckpointStore) Put(ctx context.Context, cp *store.Checkpoint) error {
	data, err := store.Marshal(cp)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := 0
	old, err := s.Get(ctx, cp.ThreadID)
	switch {
	case err == nil:
		current = old.Version
	case !errors.Is(err, store.ErrCheckpointNotFound):
		return err
	}
	if cp.Version != current+1 {
		return store.Conflict(cp.ThreadID, cp.Version)
	}

	tmp, err := os.CreateTemp(s.dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, s.path(cp.ThreadID)); err != nil {
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	return nil
}

func (s *CheckpointStore) Delete(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(threadID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

func (s *CheckpointStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ext) || strings.HasPrefix(name, ".") {
			continue
		}
		stem := strings.TrimSuffix(name, ext)
		if strings.HasPrefix(stem, hashedPrefix) {
			data, err := os.ReadFile(filepath.Join(s.dir, name))
			if err != nil {
				continue
			}
			cp, err := store.Unmarshal(data)
			if err != nil || fileName(cp.ThreadID) != name {
				continue
			}
			ids = append(ids, cp.ThreadID)
			continue
		}
		raw, err := base64.RawURLEncoding.DecodeString(stem)
		if err != nil {
			continue
		}
		ids = append(ids, string(raw))
	}
	sort.Strings(ids)
	return ids, nil
}
