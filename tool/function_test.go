package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLangchainTool struct {
	lastInput string
}

func (f *fakeLangchainTool) Name() string        { return "echo" }
func (f *fakeLangchainTool) Description() string { return "echoes its input" }
func (f *fakeLangchainTool) Call(ctx context.Context, input string) (string, error) {
	f.lastInput = input
	return "echo: " + input, nil
}

func TestDecodeArguments_WeaklyTyped(t *testing.T) {
	var out struct {
		City  string  `json:"city"`
		Days  int     `json:"days"`
		Ratio float64 `json:"ratio"`
	}
	err := DecodeArguments(map[string]any{"city": "Lima", "days": "3", "ratio": 0.5}, &out)
	require.NoError(t, err)
	assert.Equal(t, "Lima", out.City)
	assert.Equal(t, 3, out.Days)
	assert.InDelta(t, 0.5, out.Ratio, 1e-9)
}

func TestDecodeArguments_Error(t *testing.T) {
	var out struct {
		Days int `json:"days"`
	}
	err := DecodeArguments(map[string]any{"days": "three"}, &out)
	assert.ErrorContains(t, err, "decode arguments")
}

func TestNewTypedTool(t *testing.T) {
	type args struct {
		A float64 `json:"a"`
		B float64 `json:"b"`
	}
	add := NewTypedTool("add", "adds two numbers", nil, func(ctx context.Context, in args) (string, error) {
		if in.A+in.B == 3 {
			return "3", nil
		}
		return "?", nil
	})

	assert.Equal(t, "add", add.Name())
	assert.Equal(t, "adds two numbers", add.Description())
	assert.Nil(t, add.Parameters())

	out, err := add.Call(context.Background(), map[string]any{"a": 1, "b": 2.0})
	require.NoError(t, err)
	assert.Equal(t, "3", out)
}

func TestFunctionTool_NoImplementation(t *testing.T) {
	_, err := NewFunctionTool("empty", "", nil, nil).Call(context.Background(), nil)
	assert.Error(t, err)
}

func TestFromLangchain(t *testing.T) {
	inner := &fakeLangchainTool{}
	wrapped := FromLangchain(inner)

	assert.Equal(t, "echo", wrapped.Name())
	assert.Equal(t, "echoes its input", wrapped.Description())
	assert.Equal(t, []any{"input"}, wrapped.Parameters()["required"])

	out, err := wrapped.Call(context.Background(), map[string]any{"input": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", out)

	_, err = wrapped.Call(context.Background(), map[string]any{"x": 1.0})
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, inner.lastInput)
}

func TestFromLangchain_RegistryValidatesInput(t *testing.T) {
	reg, err := NewRegistry(FromLangchain(&fakeLangchainTool{}))
	require.NoError(t, err)

	res := reg.Invoke(context.Background(), callOf("echo", map[string]any{}), 0)
	assert.Equal(t, OutcomeInvalidArguments, res.Outcome)

	res = reg.Invoke(context.Background(), callOf("echo", map[string]any{"input": "x"}), 0)
	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, "echo: x", res.Content)
}
