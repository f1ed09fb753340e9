// Package store defines checkpoint persistence for conversation threads.
//
// Each thread has at most one checkpoint: its last committed conversation
// state and a monotonically increasing version. Backends live in
// subpackages:
//
//   - memory: process-local map, the default
//   - file: one JSON document per thread, written by atomic rename
//   - redis: JSON values plus a thread index set, with optional TTL
//   - postgres: a JSONB row per thread, upserted
//   - sqlite: a TEXT row per thread, upserted
//
// Stores never see partial runs. The checkpoint manager writes only after a
// run has finished successfully.
package store
