package agent

import (
	"context"
	"errors"

	"github.com/smallnest/threadgraph/graph"
	"github.com/smallnest/threadgraph/log"
	"github.com/smallnest/threadgraph/model"
	"github.com/smallnest/threadgraph/state"
	"github.com/smallnest/threadgraph/tool"
)

// CreateReactAgent compiles the reasoning/tool loop:
//
//	START -> agent -(tools)-> tools -> agent
//	         agent -(terminal)-> END
//
// The registry may be empty, in which case the model is offered no tools.
func CreateReactAgent(m model.ChatModel, registry *tool.Registry, opts ...Option) (*graph.Runnable[state.ConversationState], error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return buildGraph(m, registry, &o)
}

func buildGraph(m model.ChatModel, registry *tool.Registry, o *options) (*graph.Runnable[state.ConversationState], error) {
	if m == nil {
		return nil, errors.New("agent: nil chat model")
	}
	if registry == nil {
		registry, _ = tool.NewRegistry()
	}

	g := graph.NewStateGraph[state.ConversationState]()
	g.SetSchema(state.NewMessagesSchema())
	g.AddNode(NodeAgent, "asks the model for the next assistant message",
		NewReasoningNode(m, registry, o.systemPrompt, o.logger))
	g.AddNode(NodeTools, "executes the pending tool calls",
		NewToolNode(registry, o.toolTimeout, o.toolObserver, o.logger))
	g.SetEntryPoint(NodeAgent)
	g.AddConditionalEdges(NodeAgent, ShouldContinue, map[string]string{
		LabelTools:    NodeTools,
		LabelTerminal: graph.END,
	})
	g.AddEdge(NodeTools, NodeAgent)
	if o.retryPolicy != nil {
		g.SetRetryPolicy(o.retryPolicy)
	}

	r, err := g.Compile()
	if err != nil {
		return nil, err
	}
	listeners := append([]graph.NodeListener[state.ConversationState]{logListener(o.logger)}, o.listeners...)
	return r.WithListeners(listeners...), nil
}

func logListener(logger log.Logger) graph.NodeListener[state.ConversationState] {
	return graph.NodeListenerFunc[state.ConversationState](func(_ context.Context, info graph.NodeEventInfo[state.ConversationState]) {
		switch info.Event {
		case graph.NodeEventStart:
			logger.Debug("run %s step %d: %s started", info.RunID, info.Step, info.Node)
		case graph.NodeEventComplete:
			logger.Debug("run %s step %d: %s finished in %s (%d messages)", info.RunID, info.Step, info.Node, info.Duration, info.State.Len())
		case graph.NodeEventError:
			logger.Error("run %s step %d: %s failed after %s: %v", info.RunID, info.Step, info.Node, info.Duration, info.Err)
		}
	})
}
