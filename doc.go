// Threadgraph - a tool-using chat agent as a small state graph
//
// Threadgraph runs a conversation as a graph of two nodes. The reasoning node
// asks a chat model for the next assistant message; the tool node executes
// the tool calls that message requests and appends one result per call. A
// conditional edge loops between them until the model answers without tool
// calls. Every conversation thread is checkpointed after each successful run,
// so a later run on the same thread continues where the last one ended.
//
// # Quick Start
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"time"
//
//		"github.com/smallnest/threadgraph/agent"
//		"github.com/smallnest/threadgraph/checkpoint"
//		"github.com/smallnest/threadgraph/model/openai"
//		"github.com/smallnest/threadgraph/store/memory"
//		"github.com/smallnest/threadgraph/tool"
//	)
//
//	func main() {
//		llm := openai.New(openai.WithAPIKey("sk-..."))
//		registry, _ := tool.NewRegistry(myWeatherTool)
//		a, _ := agent.New(llm, registry, checkpoint.NewManager(memory.NewCheckpointStore()))
//
//		res, err := a.Run(context.Background(), "t1", "What's the weather in Paris?", 30*time.Second)
//		if err != nil {
//			panic(err)
//		}
//		fmt.Println(res.Message.Content)
//	}
//
// # Packages
//
//   - state: messages, tool calls and the append-only ConversationState
//   - graph: generic StateGraph with conditional edges, a step bound, retries and listeners
//   - tool: tool registry with schema validation and error absorption
//   - model: ChatModel interface with OpenAI, Anthropic and langchaingo adapters
//   - agent: reasoning and tool nodes, routing, and the Run entry point
//   - checkpoint: per-thread load/save with per-thread locking
//   - store: checkpoint backends (memory, file, redis, postgres, sqlite)
//   - metrics: Prometheus collectors for nodes, tools and runs
//   - server, cmd/threadgraph: HTTP and command-line surfaces
//
// # Failure Model
//
// A run either commits all of its messages or none. Model errors, exceeding
// the step bound (25 node executions by default) and the run timeout abort
// the run. Tool errors do not: unknown tools, invalid arguments, failing or
// panicking tools and per-call timeouts come back to the model as tool
// results starting with "Error:".
package threadgraph
