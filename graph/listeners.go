package graph

import (
	"context"
	"time"
)

// NodeEvent represents the kind of event emitted around a node execution.
type NodeEvent string

const (
	// NodeEventStart is emitted before a node executes.
	NodeEventStart NodeEvent = "start"

	// NodeEventComplete is emitted after a node's delta has been merged.
	NodeEventComplete NodeEvent = "complete"

	// NodeEventError is emitted when a node fails after all retries.
	NodeEventError NodeEvent = "error"
)

// NodeEventInfo describes a single node event.
type NodeEventInfo[S any] struct {
	Event     NodeEvent
	Node      string
	Step      int
	RunID     string
	State     S
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

// NodeListener observes node executions.
// Listeners are invoked synchronously on the run's goroutine and must not block.
type NodeListener[S any] interface {
	OnNodeEvent(ctx context.Context, info NodeEventInfo[S])
}

// NodeListenerFunc is a function adapter for NodeListener.
type NodeListenerFunc[S any] func(ctx context.Context, info NodeEventInfo[S])

// OnNodeEvent implements NodeListener.
func (f NodeListenerFunc[S]) OnNodeEvent(ctx context.Context, info NodeEventInfo[S]) {
	f(ctx, info)
}

func notifyListeners[S any](ctx context.Context, listeners []NodeListener[S], info NodeEventInfo[S]) {
	if len(listeners) == 0 {
		return
	}
	info.Timestamp = time.Now()
	for _, l := range listeners {
		notifyOne(ctx, l, info)
	}
}

func notifyOne[S any](ctx context.Context, l NodeListener[S], info NodeEventInfo[S]) {
	defer func() {
		// A misbehaving listener must not take the run down with it.
		_ = recover()
	}()
	l.OnNodeEvent(ctx, info)
}
