// Package openai adapts the OpenAI chat completions API to model.ChatModel.
package openai

import (
	"context"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/smallnest/threadgraph/model"
	"github.com/smallnest/threadgraph/state"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = goopenai.GPT4oMini

// Model calls the chat completions endpoint.
type Model struct {
	client *goopenai.Client
	opts   model.Options
}

var _ model.ChatModel = (*Model)(nil)

// Option configures the adapter.
type Option func(*config)

type config struct {
	apiKey  string
	baseURL string
	opts    model.Options
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option { return func(c *config) { c.apiKey = key } }

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option { return func(c *config) { c.baseURL = url } }

// WithModel sets the model name.
func WithModel(name string) Option { return func(c *config) { c.opts.Model = name } }

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option { return func(c *config) { c.opts.Temperature = t } }

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) Option { return func(c *config) { c.opts.MaxTokens = n } }

// New creates an adapter with its own client.
func New(opts ...Option) *Model {
	cfg := config{opts: model.Options{Model: DefaultModel}}
	for _, o := range opts {
		o(&cfg)
	}

	clientCfg := goopenai.DefaultConfig(cfg.apiKey)
	if cfg.baseURL != "" {
		clientCfg.BaseURL = cfg.baseURL
	}
	return NewFromClient(goopenai.NewClientWithConfig(clientCfg), cfg.opts)
}

// NewFromClient wraps an existing client.
func NewFromClient(client *goopenai.Client, opts model.Options) *Model {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	return &Model{client: client, opts: opts}
}

// Generate sends the history and tool descriptors and returns the reply.
func (m *Model) Generate(ctx context.Context, req model.Request) (state.Message, error) {
	msgs, err := toMessages(req)
	if err != nil {
		return state.Message{}, err
	}
	chatReq := goopenai.ChatCompletionRequest{
		Model:       m.opts.Model,
		Messages:    msgs,
		Temperature: float32(m.opts.Temperature),
		MaxTokens:   m.opts.MaxTokens,
	}
	for _, d := range req.Tools {
		chatReq.Tools = append(chatReq.Tools, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}

	resp, err := m.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return state.Message{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return state.Message{}, fmt.Errorf("%w: no choices", model.ErrMalformedResponse)
	}

	choice := resp.Choices[0].Message
	calls := make([]state.ToolCall, 0, len(choice.ToolCalls))
	for _, tc := range choice.ToolCalls {
		args, err := model.ParseArguments(tc.Function.Arguments)
		if err != nil {
			return state.Message{}, fmt.Errorf("tool call %s: %w", tc.Function.Name, err)
		}
		calls = append(calls, state.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}
	return state.NewAssistantMessage(choice.Content, calls...), nil
}

func toMessages(req model.Request) ([]goopenai.ChatCompletionMessage, error) {
	out := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		out = append(out, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case state.RoleUser:
			out = append(out, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: msg.Content})
		case state.RoleAssistant:
			am := goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleAssistant, Content: msg.Content}
			for _, tc := range msg.ToolCalls {
				am.ToolCalls = append(am.ToolCalls, goopenai.ToolCall{
					ID:   tc.ID,
					Type: goopenai.ToolTypeFunction,
					Function: goopenai.FunctionCall{
						Name:      tc.Name,
						Arguments: model.FormatArguments(tc.Arguments),
					},
				})
			}
			out = append(out, am)
		case state.RoleTool:
			out = append(out, goopenai.ChatCompletionMessage{
				Role:       goopenai.ChatMessageRoleTool,
				Content:    msg.Content,
				Name:       msg.Name,
				ToolCallID: msg.ToolCallID,
			})
		default:
			return nil, fmt.Errorf("%w: %q", model.ErrUnknownRole, msg.Role)
		}
	}
	return out, nil
}
