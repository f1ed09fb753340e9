// Package state defines the conversation record that flows through an agent graph.
//
// A ConversationState is an ordered, append-only sequence of Messages. Each
// Message is tagged with a Role (user, assistant or tool); assistant messages may
// carry ToolCalls and tool messages answer exactly one of them by call id.
//
// Nodes never replace the state. They return a delta which a Reducer merges
// into the existing history; AppendMessages is the default rule:
//
//	schema := state.NewMessagesSchema()
//	next, _ := schema.Update(current, state.ConversationState{
//		Messages: []state.Message{state.NewAssistantMessage("hello")},
//	})
package state
