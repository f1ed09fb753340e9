package agent

import (
	"time"

	"github.com/smallnest/threadgraph/graph"
	"github.com/smallnest/threadgraph/log"
	"github.com/smallnest/threadgraph/state"
	"github.com/smallnest/threadgraph/tool"
)

// DefaultRunTimeout bounds a run when the caller passes no timeout.
const DefaultRunTimeout = 2 * time.Minute

// DefaultThreadID is used when Run is called with an empty thread ID.
const DefaultThreadID = "default"

type options struct {
	systemPrompt string
	toolTimeout  time.Duration
	runTimeout   time.Duration
	maxSteps     int
	retryPolicy  *graph.RetryPolicy
	logger       log.Logger
	toolObserver func(tool.Result)
	runObserver  func(outcome string, d time.Duration)
	listeners    []graph.NodeListener[state.ConversationState]
}

func defaultOptions() options {
	return options{
		toolTimeout: tool.DefaultTimeout,
		runTimeout:  DefaultRunTimeout,
		maxSteps:    graph.DefaultMaxSteps,
		logger:      log.GetDefaultLogger(),
	}
}

// Option configures an agent.
type Option func(*options)

// WithSystemPrompt sets the instructions sent ahead of the history on every
// model call. The prompt is never stored in the thread.
func WithSystemPrompt(prompt string) Option {
	return func(o *options) { o.systemPrompt = prompt }
}

// WithToolTimeout bounds each individual tool call.
func WithToolTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.toolTimeout = d
		}
	}
}

// WithRunTimeout sets the timeout Run uses when called with a zero timeout.
func WithRunTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.runTimeout = d
		}
	}
}

// WithMaxSteps overrides the node execution bound of a run.
func WithMaxSteps(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSteps = n
		}
	}
}

// WithRetryPolicy retries failing nodes according to p.
func WithRetryPolicy(p *graph.RetryPolicy) Option {
	return func(o *options) { o.retryPolicy = p }
}

func WithLogger(l log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithToolObserver is called after every tool invocation.
func WithToolObserver(fn func(tool.Result)) Option {
	return func(o *options) { o.toolObserver = fn }
}

// WithRunObserver is called once per Run with its outcome and duration.
func WithRunObserver(fn func(outcome string, d time.Duration)) Option {
	return func(o *options) { o.runObserver = fn }
}

// WithListeners attaches node listeners to the compiled graph.
func WithListeners(listeners ...graph.NodeListener[state.ConversationState]) Option {
	return func(o *options) { o.listeners = append(o.listeners, listeners...) }
}
