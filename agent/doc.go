// Package agent wires a chat model and a tool registry into a two-node graph
// and runs it against persisted conversation threads.
//
// Each Run loads the thread, appends the user message, alternates between the
// reasoning node and the tool node until the model answers without tool calls,
// and commits the grown history in one write. Model failures, step-bound
// exhaustion and timeouts abort the run and leave the thread untouched. Tool
// failures never abort a run; they are reported back to the model as tool
// results.
//
//	llm := openai.New(openai.WithAPIKey(key))
//	registry, _ := tool.NewRegistry(weather)
//	a, _ := agent.New(llm, registry, checkpoint.NewManager(memory.NewCheckpointStore()))
//	res, err := a.Run(ctx, "t1", "what's the weather in Paris?", 30*time.Second)
package agent
