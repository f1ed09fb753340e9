package state

import (
	"fmt"
	"maps"
)

// Role tags the variant of a Message.
type Role string

const (
	// RoleUser marks input supplied by the caller.
	RoleUser Role = "user"
	// RoleAssistant marks output produced by the completion service.
	RoleAssistant Role = "assistant"
	// RoleTool marks the result of a tool invocation.
	RoleTool Role = "tool"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

// ToolCall is a request, embedded in an assistant message, to invoke a named tool.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Message is a single entry of a conversation.
// Messages are treated as immutable once appended to a ConversationState.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// ToolCalls is only set on assistant messages.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID and Name are only set on tool-result messages.
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`

	// IsError marks a tool result reporting a failed invocation.
	IsError bool `json:"is_error,omitempty"`
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message optionally carrying tool calls.
func NewAssistantMessage(content string, calls ...ToolCall) Message {
	msg := Message{Role: RoleAssistant, Content: content}
	if len(calls) > 0 {
		msg.ToolCalls = make([]ToolCall, len(calls))
		for i, c := range calls {
			msg.ToolCalls[i] = c.clone()
		}
	}
	return msg
}

// NewToolResultMessage creates a tool-result message answering the call with callID.
func NewToolResultMessage(callID, name, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID, Name: name}
}

// HasToolCalls reports whether m is an assistant message requesting tool invocations.
func (m Message) HasToolCalls() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

// Clone returns a deep copy of m.
func (m Message) Clone() Message {
	out := m
	if m.ToolCalls != nil {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, c := range m.ToolCalls {
			out.ToolCalls[i] = c.clone()
		}
	}
	return out
}

func (m Message) String() string {
	switch m.Role {
	case RoleUser:
		return fmt.Sprintf("user: %s", m.Content)
	case RoleAssistant:
		if len(m.ToolCalls) > 0 {
			names := make([]string, len(m.ToolCalls))
			for i, c := range m.ToolCalls {
				names[i] = c.Name
			}
			return fmt.Sprintf("assistant: %s %v", m.Content, names)
		}
		return fmt.Sprintf("assistant: %s", m.Content)
	case RoleTool:
		return fmt.Sprintf("tool[%s:%s]: %s", m.Name, m.ToolCallID, m.Content)
	default:
		return fmt.Sprintf("%s: %s", m.Role, m.Content)
	}
}

func (c ToolCall) clone() ToolCall {
	out := c
	if c.Arguments != nil {
		out.Arguments = deepCopyMap(c.Arguments)
	}
	return out
}

// CopyArguments returns a deep copy of a tool-call argument map. A nil map
// becomes an empty one.
func CopyArguments(in map[string]any) map[string]any {
	if in == nil {
		return map[string]any{}
	}
	return deepCopyMap(in)
}

func deepCopyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	maps.Copy(out, in)
	for k, v := range out {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cp := make([]any, len(val))
		for i, e := range val {
			cp[i] = deepCopyValue(e)
		}
		return cp
	default:
		return val
	}
}
