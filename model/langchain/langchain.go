// Package langchain adapts any langchaingo llms.Model to model.ChatModel.
package langchain

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/threadgraph/model"
	"github.com/smallnest/threadgraph/state"
)

// Model wraps a langchaingo model.
type Model struct {
	llm  llms.Model
	opts model.Options
}

var _ model.ChatModel = (*Model)(nil)

// New wraps llm. Zero-valued options are not sent.
func New(llm llms.Model, opts model.Options) *Model {
	return &Model{llm: llm, opts: opts}
}

// Generate calls GenerateContent with the converted history and tools.
func (m *Model) Generate(ctx context.Context, req model.Request) (state.Message, error) {
	var callOpts []llms.CallOption
	if m.opts.Model != "" {
		callOpts = append(callOpts, llms.WithModel(m.opts.Model))
	}
	if m.opts.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(m.opts.Temperature))
	}
	if m.opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(m.opts.MaxTokens))
	}
	if len(req.Tools) > 0 {
		defs := make([]llms.Tool, 0, len(req.Tools))
		for _, d := range req.Tools {
			defs = append(defs, llms.Tool{
				Type: "function",
				Function: &llms.FunctionDefinition{
					Name:        d.Name,
					Description: d.Description,
					Parameters:  d.Parameters,
				},
			})
		}
		callOpts = append(callOpts, llms.WithTools(defs))
	}

	msgs, err := ToMessageContent(req.System, req.Messages)
	if err != nil {
		return state.Message{}, err
	}
	resp, err := m.llm.GenerateContent(ctx, msgs, callOpts...)
	if err != nil {
		return state.Message{}, fmt.Errorf("langchain generate: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return state.Message{}, fmt.Errorf("%w: no choices", model.ErrMalformedResponse)
	}

	choice := resp.Choices[0]
	calls := make([]state.ToolCall, 0, len(choice.ToolCalls))
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			return state.Message{}, fmt.Errorf("%w: tool call %s has no function", model.ErrMalformedResponse, tc.ID)
		}
		args, err := model.ParseArguments(tc.FunctionCall.Arguments)
		if err != nil {
			return state.Message{}, fmt.Errorf("tool call %s: %w", tc.FunctionCall.Name, err)
		}
		calls = append(calls, state.ToolCall{ID: tc.ID, Name: tc.FunctionCall.Name, Arguments: args})
	}
	return state.NewAssistantMessage(choice.Content, calls...), nil
}

// ToMessageContent converts a history, with an optional leading system
// instruction, to langchaingo messages.
func ToMessageContent(system string, history []state.Message) ([]llms.MessageContent, error) {
	out := make([]llms.MessageContent, 0, len(history)+1)
	if system != "" {
		out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	for _, msg := range history {
		switch msg.Role {
		case state.RoleUser:
			out = append(out, llms.TextParts(llms.ChatMessageTypeHuman, msg.Content))
		case state.RoleAssistant:
			mc := llms.MessageContent{Role: llms.ChatMessageTypeAI}
			if msg.Content != "" {
				mc.Parts = append(mc.Parts, llms.TextPart(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				mc.Parts = append(mc.Parts, llms.ToolCall{
					ID:   tc.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      tc.Name,
						Arguments: model.FormatArguments(tc.Arguments),
					},
				})
			}
			out = append(out, mc)
		case state.RoleTool:
			out = append(out, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: msg.ToolCallID,
					Name:       msg.Name,
					Content:    msg.Content,
				}},
			})
		default:
			return nil, fmt.Errorf("%w: %q", model.ErrUnknownRole, msg.Role)
		}
	}
	return out, nil
}
