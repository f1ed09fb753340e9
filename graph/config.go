package graph

// Config holds per-invocation settings.
type Config[S any] struct {
	// MaxSteps bounds the number of node executions in one run.
	// Zero means DefaultMaxSteps.
	MaxSteps int

	// RunID identifies the run in listener events. Generated when empty.
	RunID string

	// Listeners receive node events for this invocation in addition to the
	// runnable's own listeners.
	Listeners []NodeListener[S]
}

func (c *Config[S]) maxSteps() int {
	if c == nil || c.MaxSteps <= 0 {
		return DefaultMaxSteps
	}
	return c.MaxSteps
}
