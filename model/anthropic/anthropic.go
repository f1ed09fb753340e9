// Package anthropic adapts the Anthropic Messages API to model.ChatModel.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/smallnest/threadgraph/model"
	"github.com/smallnest/threadgraph/state"
	"github.com/smallnest/threadgraph/tool"
)

const (
	// DefaultModel is used when no model name is configured.
	DefaultModel = string(anthropic.ModelClaude3_5Sonnet20241022)
	// DefaultMaxTokens is required by the API, so it is always sent.
	DefaultMaxTokens = 4096
)

// Model wraps the Anthropic Messages API.
type Model struct {
	client *anthropic.Client
	opts   model.Options
}

var _ model.ChatModel = (*Model)(nil)

// New creates a model with its own client. requestOpts are passed to the SDK,
// e.g. option.WithAPIKey or option.WithBaseURL.
func New(opts model.Options, requestOpts ...option.RequestOption) *Model {
	client := anthropic.NewClient(requestOpts...)
	return NewFromClient(&client, opts)
}

// NewFromClient wraps an existing client.
func NewFromClient(client *anthropic.Client, opts model.Options) *Model {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	return &Model{client: client, opts: opts}
}

// Generate sends one Messages request and converts the reply's text and
// tool_use blocks into an assistant message.
func (m *Model) Generate(ctx context.Context, req model.Request) (state.Message, error) {
	msgs, err := buildMessages(req.Messages)
	if err != nil {
		return state.Message{}, err
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.opts.Model),
		Messages:  msgs,
		MaxTokens: int64(m.opts.MaxTokens),
	}
	if m.opts.Temperature > 0 {
		params.Temperature = anthropic.Float(m.opts.Temperature)
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return state.Message{}, fmt.Errorf("anthropic messages: %w", err)
	}

	var (
		text  string
		calls []state.ToolCall
	)
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text += block.AsText().Text
		case "tool_use":
			use := block.AsToolUse()
			args, err := decodeInput(use.Input)
			if err != nil {
				return state.Message{}, fmt.Errorf("tool call %s: %w", use.Name, err)
			}
			calls = append(calls, state.ToolCall{ID: use.ID, Name: use.Name, Arguments: args})
		}
	}
	return state.NewAssistantMessage(text, calls...), nil
}

func decodeInput(input any) (map[string]any, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMalformedResponse, err)
	}
	return model.ParseArguments(string(data))
}

// buildMessages converts the history. Tool results become tool_result blocks
// in a user turn, and consecutive blocks of the same role share one message
// since the API requires alternating roles.
func buildMessages(history []state.Message) ([]anthropic.MessageParam, error) {
	type turn struct {
		assistant bool
		blocks    []anthropic.ContentBlockParamUnion
	}
	var turns []turn
	add := func(assistant bool, blocks ...anthropic.ContentBlockParamUnion) {
		if len(blocks) == 0 {
			return
		}
		if n := len(turns); n > 0 && turns[n-1].assistant == assistant {
			turns[n-1].blocks = append(turns[n-1].blocks, blocks...)
			return
		}
		turns = append(turns, turn{assistant: assistant, blocks: blocks})
	}

	for _, msg := range history {
		switch msg.Role {
		case state.RoleUser:
			if msg.Content != "" {
				add(false, anthropic.NewTextBlock(msg.Content))
			}
		case state.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, state.CopyArguments(tc.Arguments), tc.Name))
			}
			add(true, blocks...)
		case state.RoleTool:
			add(false, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, msg.IsError))
		default:
			return nil, fmt.Errorf("%w: %q", model.ErrUnknownRole, msg.Role)
		}
	}

	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		if t.assistant {
			out = append(out, anthropic.NewAssistantMessage(t.blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(t.blocks...))
		}
	}
	return out, nil
}

func buildTools(descs []tool.Descriptor) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(descs))
	for _, d := range descs {
		schema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
		if props, ok := d.Parameters["properties"]; ok {
			schema.Properties = props
		}
		switch req := d.Parameters["required"].(type) {
		case []string:
			schema.Required = req
		case []any:
			for _, r := range req {
				if s, ok := r.(string); ok {
					schema.Required = append(schema.Required, s)
				}
			}
		}

		u := anthropic.ToolUnionParamOfTool(schema, d.Name)
		if d.Description != "" && u.OfTool != nil {
			u.OfTool.Description = anthropic.String(d.Description)
		}
		out = append(out, u)
	}
	return out
}
