// Package graph provides the graph definition and execution engine for threadgraph.
//
// A StateGraph is built once at startup: named nodes, a designated entry point,
// unconditional edges and conditional edges whose routing function returns a
// label that is looked up in a label-to-target map. Compile validates the
// definition and returns a Runnable, which is read-only and shared by all runs.
//
// # Execution
//
// Invoking a Runnable starts at the entry node and repeats
//
//	execute node -> merge delta via StateSchema -> evaluate outgoing edge
//
// until the END marker is reached. Nodes return deltas, never full replacement
// states; the StateSchema decides how a delta is combined with the current state.
//
// Every run is bounded by Config.MaxSteps (DefaultMaxSteps when zero). The bound
// is checked before each node execution, so a graph that keeps cycling fails
// with a *RecursionError matching ErrNotConverged instead of looping forever.
//
// Node failures abort the run with a *NodeError; an optional RetryPolicy
// re-attempts a failing node first. Cancellation of the context is observed
// between steps. Whenever a run fails, the zero state is returned.
//
// # Observability
//
// NodeListener implementations receive start, complete and error events for
// every node execution, and DrawMermaid renders the compiled graph.
//
// # Example
//
//	g := graph.NewStateGraph[state.ConversationState]()
//	g.SetSchema(state.NewMessagesSchema())
//	g.AddNode("agent", "reasoning", reason)
//	g.AddNode("tools", "tool dispatch", dispatch)
//	g.SetEntryPoint("agent")
//	g.AddConditionalEdges("agent", route, map[string]string{
//		"tools":    "tools",
//		"terminal": graph.END,
//	})
//	g.AddEdge("tools", "agent")
//
//	runnable, err := g.Compile()
//	if err != nil {
//		return err
//	}
//	final, err := runnable.InvokeWithConfig(ctx, initial, &graph.Config[state.ConversationState]{MaxSteps: 25})
package graph
