package agent

import (
	"context"

	"github.com/smallnest/threadgraph/state"
)

// Node names and route labels of the agent graph.
const (
	NodeAgent = "agent"
	NodeTools = "tools"

	LabelTools    = "tools"
	LabelTerminal = "terminal"
)

// ShouldContinue routes on the last message only: an assistant message with
// tool calls goes to the tool node, anything else ends the run.
func ShouldContinue(_ context.Context, st state.ConversationState) string {
	last, ok := st.Last()
	if !ok {
		return LabelTerminal
	}
	if last.HasToolCalls() {
		return LabelTools
	}
	return LabelTerminal
}
