package state

import (
	"errors"
	"fmt"
)

// ErrInvalidHistory is returned by Validate when the message sequence breaks
// the tool-call ordering rules.
var ErrInvalidHistory = errors.New("invalid conversation history")

// ConversationState is the graph state shared between steps of a run.
// Messages only ever grow; nodes return deltas that are merged by a Reducer.
type ConversationState struct {
	Messages []Message `json:"messages"`
}

// Len returns the number of messages.
func (s ConversationState) Len() int {
	return len(s.Messages)
}

// Last returns the most recently appended message.
func (s ConversationState) Last() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Clone returns a deep copy of the state.
func (s ConversationState) Clone() ConversationState {
	if s.Messages == nil {
		return ConversationState{}
	}
	out := ConversationState{Messages: make([]Message, len(s.Messages))}
	for i, m := range s.Messages {
		out.Messages[i] = m.Clone()
	}
	return out
}

// Validate checks the causal ordering of the history: every tool-result must
// answer exactly one still-pending call of the closest preceding assistant message.
func (s ConversationState) Validate() error {
	var pending map[string]bool
	for i, m := range s.Messages {
		switch m.Role {
		case RoleUser:
			pending = nil
		case RoleAssistant:
			pending = make(map[string]bool, len(m.ToolCalls))
			for _, c := range m.ToolCalls {
				if c.ID == "" {
					return fmt.Errorf("%w: message %d has a tool call without id", ErrInvalidHistory, i)
				}
				if pending[c.ID] {
					return fmt.Errorf("%w: message %d repeats tool call id %q", ErrInvalidHistory, i, c.ID)
				}
				pending[c.ID] = true
			}
		case RoleTool:
			if !pending[m.ToolCallID] {
				return fmt.Errorf("%w: message %d answers unknown or already answered call %q", ErrInvalidHistory, i, m.ToolCallID)
			}
			delete(pending, m.ToolCallID)
		default:
			return fmt.Errorf("%w: message %d has unknown role %q", ErrInvalidHistory, i, m.Role)
		}
	}
	return nil
}

// Reducer combines the existing message sequence with a node's delta.
type Reducer func(existing, delta []Message) []Message

// AppendMessages is the default Reducer: existing followed by delta, in order,
// with no deduplication. The result never aliases either input.
func AppendMessages(existing, delta []Message) []Message {
	out := make([]Message, 0, len(existing)+len(delta))
	out = append(out, existing...)
	out = append(out, delta...)
	return out
}

// MessagesSchema merges node deltas into a ConversationState using Reducer.
type MessagesSchema struct {
	Reducer Reducer
}

// NewMessagesSchema returns a schema using AppendMessages.
func NewMessagesSchema() *MessagesSchema {
	return &MessagesSchema{Reducer: AppendMessages}
}

// Init returns an empty state.
func (s *MessagesSchema) Init() ConversationState {
	return ConversationState{}
}

// Update merges delta into current.
func (s *MessagesSchema) Update(current, delta ConversationState) (ConversationState, error) {
	reducer := s.Reducer
	if reducer == nil {
		reducer = AppendMessages
	}
	return ConversationState{Messages: reducer(current.Messages, delta.Messages)}, nil
}
