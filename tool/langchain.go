package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tmc/langchaingo/tools"
)

// langchainTool exposes a langchaingo tool, which takes a single string input,
// as a Tool with one required "input" argument.
type langchainTool struct {
	inner tools.Tool
}

// FromLangchain wraps a langchaingo tool.
func FromLangchain(t tools.Tool) Tool {
	return &langchainTool{inner: t}
}

func (t *langchainTool) Name() string        { return t.inner.Name() }
func (t *langchainTool) Description() string { return t.inner.Description() }

func (t *langchainTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"input": map[string]any{
				"type":        "string",
				"description": "the input to the tool",
			},
		},
		"required": []any{"input"},
	}
}

func (t *langchainTool) Call(ctx context.Context, args map[string]any) (string, error) {
	input, ok := args["input"].(string)
	if !ok {
		// Fall back to the whole object so tools that parse JSON still work.
		data, err := json.Marshal(args)
		if err != nil {
			return "", fmt.Errorf("encode input: %w", err)
		}
		input = string(data)
	}
	return t.inner.Call(ctx, input)
}
