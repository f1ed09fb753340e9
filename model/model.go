package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/smallnest/threadgraph/state"
	"github.com/smallnest/threadgraph/tool"
)

var (
	// ErrMalformedResponse is returned by adapters when the provider's reply
	// cannot be turned into an assistant message.
	ErrMalformedResponse = errors.New("malformed model response")

	// ErrUnknownRole is returned by adapters asked to send a message whose
	// role they cannot map.
	ErrUnknownRole = errors.New("unknown message role")
)

// Request is a single completion call.
type Request struct {
	// System is an optional instruction sent ahead of the history.
	System   string
	Messages []state.Message
	Tools    []tool.Descriptor
}

// ChatModel turns a message history into the next assistant message, which
// either answers or requests tool calls.
type ChatModel interface {
	Generate(ctx context.Context, req Request) (state.Message, error)
}

// ChatModelFunc adapts a function to ChatModel.
type ChatModelFunc func(ctx context.Context, req Request) (state.Message, error)

func (f ChatModelFunc) Generate(ctx context.Context, req Request) (state.Message, error) {
	return f(ctx, req)
}

// Options are the provider-neutral generation settings shared by adapters.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// ParseArguments decodes a JSON-object argument string. An empty string is an
// empty argument map.
func ParseArguments(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("%w: tool arguments are not a JSON object: %v", ErrMalformedResponse, err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// FormatArguments encodes arguments as a JSON object string.
func FormatArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}
