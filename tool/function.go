package tool

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// FunctionTool adapts a plain function to the Tool interface.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(ctx context.Context, args map[string]any) (string, error)
}

var _ Tool = (*FunctionTool)(nil)

// NewFunctionTool creates a tool from fn. parameters is a JSON schema for the
// argument object and may be nil.
func NewFunctionTool(name, description string, parameters map[string]any, fn func(ctx context.Context, args map[string]any) (string, error)) *FunctionTool {
	return &FunctionTool{name: name, description: description, parameters: parameters, fn: fn}
}

func (t *FunctionTool) Name() string               { return t.name }
func (t *FunctionTool) Description() string        { return t.description }
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

func (t *FunctionTool) Call(ctx context.Context, args map[string]any) (string, error) {
	if t.fn == nil {
		return "", fmt.Errorf("tool %s has no implementation", t.name)
	}
	return t.fn(ctx, args)
}

// NewTypedTool creates a tool whose arguments are decoded into T before fn is
// called. Fields are matched by their json tag and weakly typed input is
// accepted, so a model sending "3" for an int field still decodes.
func NewTypedTool[T any](name, description string, parameters map[string]any, fn func(ctx context.Context, args T) (string, error)) *FunctionTool {
	return NewFunctionTool(name, description, parameters, func(ctx context.Context, raw map[string]any) (string, error) {
		var args T
		if err := DecodeArguments(raw, &args); err != nil {
			return "", err
		}
		return fn(ctx, args)
	})
}

// DecodeArguments decodes a raw argument map into out, which must be a pointer.
func DecodeArguments(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}
