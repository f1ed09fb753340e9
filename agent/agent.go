package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smallnest/threadgraph/checkpoint"
	"github.com/smallnest/threadgraph/graph"
	"github.com/smallnest/threadgraph/log"
	"github.com/smallnest/threadgraph/model"
	"github.com/smallnest/threadgraph/state"
	"github.com/smallnest/threadgraph/tool"
)

// RunResult is what a successful Run hands back.
type RunResult struct {
	ThreadID string
	RunID    string

	// Message is the final assistant message of the run.
	Message state.Message

	// MessageCount is the length of the committed history.
	MessageCount int

	// Appended holds every message the run added, starting with the user message.
	Appended []state.Message

	Steps   int
	Version int
}

// Agent runs the compiled graph against persisted threads.
type Agent struct {
	runnable *graph.Runnable[state.ConversationState]
	manager  *checkpoint.Manager
	registry *tool.Registry
	opts     options
}

// New compiles the agent graph and binds it to a checkpoint manager.
func New(m model.ChatModel, registry *tool.Registry, manager *checkpoint.Manager, opts ...Option) (*Agent, error) {
	if manager == nil {
		return nil, errors.New("agent: nil checkpoint manager")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if registry == nil {
		registry, _ = tool.NewRegistry()
	}
	r, err := buildGraph(m, registry, &o)
	if err != nil {
		return nil, err
	}
	return &Agent{runnable: r, manager: manager, registry: registry, opts: o}, nil
}

// Graph returns the compiled graph.
func (a *Agent) Graph() *graph.Runnable[state.ConversationState] {
	return a.runnable
}

// Tools returns the registry offered to the model.
func (a *Agent) Tools() *tool.Registry {
	return a.registry
}

// Run appends userText to the thread, drives the graph to completion and
// commits the resulting history. Nothing is committed unless the whole run
// succeeds. A zero timeout selects the configured default.
//
// Runs on the same thread are serialized; runs on different threads proceed
// independently.
func (a *Agent) Run(ctx context.Context, threadID, userText string, timeout time.Duration) (*RunResult, error) {
	if threadID == "" {
		threadID = DefaultThreadID
	}
	if strings.TrimSpace(userText) == "" {
		return nil, ErrEmptyMessage
	}
	if timeout <= 0 {
		timeout = a.opts.runTimeout
	}

	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := a.run(runCtx, threadID, userText)
	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s: %w", ErrRunTimeout, timeout, err)
	}

	outcome := Outcome(err)
	if a.opts.runObserver != nil {
		a.opts.runObserver(outcome, time.Since(start))
	}
	if err != nil {
		a.opts.logger.Warn("thread %s: run failed (%s): %v", threadID, outcome, err)
		return nil, err
	}
	a.opts.logger.Info("thread %s: run %s finished in %d steps, %d messages",
		threadID, res.RunID, res.Steps, res.MessageCount)
	return res, nil
}

func (a *Agent) run(ctx context.Context, threadID, userText string) (*RunResult, error) {
	unlock, err := a.manager.Lock(ctx, threadID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	snap, err := a.manager.Load(ctx, threadID)
	if err != nil {
		return nil, err
	}

	input, err := a.runnable.Schema().Update(snap.State, state.ConversationState{
		Messages: []state.Message{state.NewUserMessage(userText)},
	})
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	steps := 0
	counter := graph.NodeListenerFunc[state.ConversationState](func(_ context.Context, info graph.NodeEventInfo[state.ConversationState]) {
		if info.Event == graph.NodeEventComplete {
			steps++
		}
	})

	out, err := a.runnable.InvokeWithConfig(ctx, input, &graph.Config[state.ConversationState]{
		MaxSteps:  a.opts.maxSteps,
		RunID:     runID,
		Listeners: []graph.NodeListener[state.ConversationState]{counter},
	})
	if err != nil {
		return nil, err
	}

	appended := out.Clone().Messages[snap.State.Len():]
	version, out, err := a.commit(ctx, threadID, snap, out, appended)
	if err != nil {
		return nil, err
	}

	final, _ := out.Last()
	return &RunResult{
		ThreadID:     threadID,
		RunID:        runID,
		Message:      final,
		MessageCount: out.Len(),
		Appended:     appended,
		Steps:        steps,
		Version:      version,
	}, nil
}

// commit saves out on top of base. When another writer committed the thread
// in the meantime, the run's own turn is appended to the newer history and
// saved again, up to maxCommitAttempts times.
func (a *Agent) commit(ctx context.Context, threadID string, base checkpoint.Snapshot, out state.ConversationState, turn []state.Message) (int, state.ConversationState, error) {
	for attempt := 1; ; attempt++ {
		version, err := a.manager.Save(ctx, threadID, base.Version, out)
		if err == nil {
			return version, out, nil
		}
		if !errors.Is(err, checkpoint.ErrConflict) || attempt == maxCommitAttempts {
			return 0, out, err
		}

		a.opts.logger.Warn("thread %s: version %d was superseded, appending run to newer history", threadID, base.Version+1)
		base, err = a.manager.Load(ctx, threadID)
		if err != nil {
			return 0, out, err
		}
		out = state.ConversationState{Messages: state.AppendMessages(base.State.Messages, turn)}
	}
}

// History returns the committed messages of a thread. Unknown threads have
// an empty history.
func (a *Agent) History(ctx context.Context, threadID string) ([]state.Message, error) {
	if threadID == "" {
		threadID = DefaultThreadID
	}
	snap, err := a.manager.Load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if snap.State.Messages == nil {
		return []state.Message{}, nil
	}
	return snap.State.Messages, nil
}

// Clear deletes a thread, waiting for any run on it to finish first.
func (a *Agent) Clear(ctx context.Context, threadID string) error {
	if threadID == "" {
		threadID = DefaultThreadID
	}
	unlock, err := a.manager.Lock(ctx, threadID)
	if err != nil {
		return err
	}
	defer unlock()
	return a.manager.Delete(ctx, threadID)
}

// Threads lists the threads with committed history.
func (a *Agent) Threads(ctx context.Context) ([]string, error) {
	return a.manager.Threads(ctx)
}

// Logger returns the agent's logger.
func (a *Agent) Logger() log.Logger {
	return a.opts.logger
}
