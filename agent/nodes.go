package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/smallnest/threadgraph/graph"
	"github.com/smallnest/threadgraph/log"
	"github.com/smallnest/threadgraph/model"
	"github.com/smallnest/threadgraph/state"
	"github.com/smallnest/threadgraph/tool"
)

// NewReasoningNode returns the node that asks the model for the next
// assistant message. Its delta is always exactly that one message.
func NewReasoningNode(m model.ChatModel, registry *tool.Registry, systemPrompt string, logger log.Logger) graph.NodeFunc[state.ConversationState] {
	if logger == nil {
		logger = log.NoOpLogger{}
	}
	descriptors := registry.Descriptors()

	return func(ctx context.Context, st state.ConversationState) (state.ConversationState, error) {
		reply, err := m.Generate(ctx, model.Request{
			System:   systemPrompt,
			Messages: st.Clone().Messages,
			Tools:    descriptors,
		})
		if err != nil {
			return state.ConversationState{}, fmt.Errorf("%w: %w", ErrModelCall, err)
		}

		msg, err := normalizeReply(reply)
		if err != nil {
			return state.ConversationState{}, fmt.Errorf("%w: %w", ErrModelCall, err)
		}
		if msg.HasToolCalls() {
			logger.Debug("model requested %d tool call(s)", len(msg.ToolCalls))
		}
		return state.ConversationState{Messages: []state.Message{msg}}, nil
	}
}

// normalizeReply forces the assistant role and fills in missing or repeated
// call IDs so the reply always forms a valid history.
func normalizeReply(reply state.Message) (state.Message, error) {
	calls := make([]state.ToolCall, 0, len(reply.ToolCalls))
	seen := make(map[string]bool, len(reply.ToolCalls))
	for _, c := range reply.ToolCalls {
		if c.Name == "" {
			return state.Message{}, fmt.Errorf("%w: tool call without a name", model.ErrMalformedResponse)
		}
		if c.ID == "" || seen[c.ID] {
			c.ID = "call_" + uuid.NewString()
		}
		seen[c.ID] = true
		if c.Arguments == nil {
			c.Arguments = map[string]any{}
		}
		calls = append(calls, c)
	}
	return state.NewAssistantMessage(reply.Content, calls...), nil
}

// NewToolNode returns the node that executes every tool call of the last
// assistant message, in order, and returns one tool-result message per call.
// Tool failures become result messages; only cancellation of ctx aborts.
func NewToolNode(registry *tool.Registry, perCallTimeout time.Duration, observe func(tool.Result), logger log.Logger) graph.NodeFunc[state.ConversationState] {
	if logger == nil {
		logger = log.NoOpLogger{}
	}

	return func(ctx context.Context, st state.ConversationState) (state.ConversationState, error) {
		last, ok := st.Last()
		if !ok || !last.HasToolCalls() {
			logger.Error("tool node reached without pending tool calls (%d messages in state)", st.Len())
			return state.ConversationState{}, ErrNoPendingToolCalls
		}

		results := make([]state.Message, 0, len(last.ToolCalls))
		for _, call := range last.ToolCalls {
			res := registry.Invoke(ctx, call, perCallTimeout)
			if observe != nil {
				observe(res)
			}
			if res.Outcome == tool.OutcomeCancelled {
				return state.ConversationState{}, fmt.Errorf("tool %s: %w", call.Name, ctx.Err())
			}
			if res.Outcome.Failed() {
				logger.Warn("tool %s (%s) %s: %s", call.Name, call.ID, res.Outcome, res.Content)
			} else {
				logger.Debug("tool %s (%s) ok in %s", call.Name, call.ID, res.Duration)
			}
			results = append(results, res.Message())
		}
		return state.ConversationState{Messages: results}, nil
	}
}
