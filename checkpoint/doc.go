// Package checkpoint manages per-thread conversation state on top of a
// store.CheckpointStore.
//
// A run follows Lock, Load, execute, Save, unlock. Holding the thread's lock
// across the whole sequence makes runs on one thread linearizable, while
// runs on different threads proceed in parallel. Save is only called after a
// run succeeds, so a failed or timed-out run leaves the previous checkpoint
// untouched.
package checkpoint
