package tool

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smallnest/threadgraph/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var citySchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"city": map[string]any{"type": "string"},
		"days": map[string]any{"type": "integer", "minimum": 1},
	},
	"required": []any{"city"},
}

type weatherArgs struct {
	City string `json:"city"`
	Days int    `json:"days"`
}

func newWeatherTool() *FunctionTool {
	return NewTypedTool("get_weather", "weather for a city", citySchema,
		func(ctx context.Context, args weatherArgs) (string, error) {
			if args.Days == 0 {
				args.Days = 1
			}
			return args.City + ": sunny for " + strings.Repeat("*", args.Days), nil
		})
}

func TestRegistry_InvokeOK(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(newWeatherTool())
	require.NoError(t, err)

	res := reg.Invoke(context.Background(), state.ToolCall{
		ID: "call_1", Name: "get_weather", Arguments: map[string]any{"city": "Paris", "days": 2},
	}, time.Second)

	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.False(t, res.Outcome.Failed())
	assert.Equal(t, "Paris: sunny for **", res.Content)

	msg := res.Message()
	assert.False(t, msg.IsError)
	assert.Equal(t, state.RoleTool, msg.Role)
	assert.Equal(t, "call_1", msg.ToolCallID)
	assert.Equal(t, "get_weather", msg.Name)
}

func TestRegistry_UnknownTool(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(newWeatherTool())
	require.NoError(t, err)

	res := reg.Invoke(context.Background(), state.ToolCall{ID: "c", Name: "foo"}, time.Second)
	assert.Equal(t, OutcomeUnknownTool, res.Outcome)
	assert.True(t, strings.HasPrefix(res.Content, "Error:"))
	assert.Contains(t, res.Content, `unknown tool "foo"`)
	assert.Contains(t, res.Content, "get_weather")
	assert.Equal(t, "c", res.CallID)
}

func TestRegistry_InvalidArguments(t *testing.T) {
	t.Parallel()

	called := false
	strict := NewFunctionTool("strict", "", citySchema, func(ctx context.Context, args map[string]any) (string, error) {
		called = true
		return "", nil
	})
	reg, err := NewRegistry(strict)
	require.NoError(t, err)

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing required", map[string]any{}},
		{"wrong type", map[string]any{"city": 42}},
		{"below minimum", map[string]any{"city": "Oslo", "days": 0}},
		{"unknown key", map[string]any{"city": "Paris", "citty": "x"}},
	}
	for _, tt := range tests {
		res := reg.Invoke(context.Background(), state.ToolCall{ID: "x", Name: "strict", Arguments: tt.args}, time.Second)
		assert.Equal(t, OutcomeInvalidArguments, res.Outcome, tt.name)
		assert.Contains(t, res.Content, "Error: invalid arguments for tool strict", tt.name)
		assert.True(t, res.Message().IsError, tt.name)
	}
	assert.False(t, called, "tool must not run with invalid arguments")
}

func TestRegistry_AdditionalProperties(t *testing.T) {
	t.Parallel()

	nested := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"where": map[string]any{
				"type":       "object",
				"properties": map[string]any{"city": map[string]any{"type": "string"}},
			},
		},
	}
	open := map[string]any{
		"type":                 "object",
		"properties":           map[string]any{"city": map[string]any{"type": "string"}},
		"additionalProperties": true,
	}
	echo := func(ctx context.Context, args map[string]any) (string, error) { return "ok", nil }
	reg, err := NewRegistry(
		NewFunctionTool("nested", "", nested, echo),
		NewFunctionTool("open", "", open, echo),
		NewFunctionTool("anything", "", nil, echo),
	)
	require.NoError(t, err)

	tests := []struct {
		name string
		call state.ToolCall
		want Outcome
	}{
		{"nested unknown key", callOf("nested", map[string]any{"where": map[string]any{"city": "Oslo", "zip": "0150"}}), OutcomeInvalidArguments},
		{"nested known keys", callOf("nested", map[string]any{"where": map[string]any{"city": "Oslo"}}), OutcomeOK},
		{"explicitly open", callOf("open", map[string]any{"city": "Oslo", "extra": 1}), OutcomeOK},
		{"no declared properties", callOf("anything", map[string]any{"extra": 1}), OutcomeOK},
	}
	for _, tt := range tests {
		res := reg.Invoke(context.Background(), tt.call, time.Second)
		assert.Equal(t, tt.want, res.Outcome, tt.name)
	}
}

func TestRegistry_ToolErrorIsAbsorbed(t *testing.T) {
	t.Parallel()

	failing := NewFunctionTool("fail", "", nil, func(ctx context.Context, args map[string]any) (string, error) {
		return "", errors.New("upstream unavailable")
	})
	reg, err := NewRegistry(failing)
	require.NoError(t, err)

	res := reg.Invoke(context.Background(), state.ToolCall{ID: "1", Name: "fail"}, time.Second)
	assert.Equal(t, OutcomeError, res.Outcome)
	assert.Equal(t, "Error: upstream unavailable", res.Content)
}

func TestRegistry_PanicIsAbsorbed(t *testing.T) {
	t.Parallel()

	panicky := NewFunctionTool("panicky", "", nil, func(ctx context.Context, args map[string]any) (string, error) {
		panic("nil map write")
	})
	reg, err := NewRegistry(panicky)
	require.NoError(t, err)

	res := reg.Invoke(context.Background(), state.ToolCall{ID: "1", Name: "panicky"}, time.Second)
	assert.Equal(t, OutcomePanic, res.Outcome)
	assert.Contains(t, res.Content, "panicked: nil map write")
}

func TestRegistry_PerCallTimeout(t *testing.T) {
	t.Parallel()

	slow := NewFunctionTool("slow", "", nil, func(ctx context.Context, args map[string]any) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	reg, err := NewRegistry(slow)
	require.NoError(t, err)

	res := reg.Invoke(context.Background(), state.ToolCall{ID: "1", Name: "slow"}, 20*time.Millisecond)
	assert.Equal(t, OutcomeTimeout, res.Outcome)
	assert.Contains(t, res.Content, "timed out after 20ms")
}

func TestRegistry_ParentCancelled(t *testing.T) {
	t.Parallel()

	slow := NewFunctionTool("slow", "", nil, func(ctx context.Context, args map[string]any) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	reg, err := NewRegistry(slow)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	res := reg.Invoke(ctx, state.ToolCall{ID: "1", Name: "slow"}, time.Minute)
	assert.Equal(t, OutcomeCancelled, res.Outcome)
}

func TestRegistry_ToolCannotMutateCallArguments(t *testing.T) {
	t.Parallel()

	mutating := NewFunctionTool("mut", "", nil, func(ctx context.Context, args map[string]any) (string, error) {
		args["injected"] = true
		return "ok", nil
	})
	reg, err := NewRegistry(mutating)
	require.NoError(t, err)

	call := state.ToolCall{ID: "1", Name: "mut", Arguments: map[string]any{"a": "b"}}
	reg.Invoke(context.Background(), call, time.Second)
	assert.NotContains(t, call.Arguments, "injected")
}

func TestNewRegistry_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(newWeatherTool(), newWeatherTool())
	assert.ErrorIs(t, err, ErrDuplicateTool)

	_, err = NewRegistry(NewFunctionTool("", "", nil, nil))
	assert.Error(t, err)

	_, err = NewRegistry(NewFunctionTool("bad", "", map[string]any{"type": "not-a-type"}, nil))
	assert.Error(t, err)
}

func TestRegistry_Descriptors(t *testing.T) {
	t.Parallel()

	noArgs := NewFunctionTool("get_current_time", "current time", nil, func(ctx context.Context, args map[string]any) (string, error) {
		return "12:00", nil
	})
	reg, err := NewRegistry(noArgs, newWeatherTool())
	require.NoError(t, err)

	descs := reg.Descriptors()
	require.Len(t, descs, 2)
	assert.Equal(t, "get_current_time", descs[0].Name)
	assert.Equal(t, "object", descs[0].Parameters["type"], "nil parameters are advertised as an empty object")
	assert.Equal(t, "get_weather", descs[1].Name)
	assert.Equal(t, []string{"get_current_time", "get_weather"}, reg.Names())
	assert.Equal(t, 2, reg.Len())

	_, ok := reg.Lookup("get_weather")
	assert.True(t, ok)
	_, ok = reg.Lookup("nope")
	assert.False(t, ok)
}

func TestRegistry_NilRegistry(t *testing.T) {
	t.Parallel()

	var reg *Registry
	assert.Equal(t, 0, reg.Len())
	assert.Nil(t, reg.Descriptors())

	res := reg.Invoke(context.Background(), state.ToolCall{ID: "1", Name: "x"}, time.Second)
	assert.Equal(t, OutcomeUnknownTool, res.Outcome)
}

func TestRegistry_ConcurrentInvoke(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(newWeatherTool())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := reg.Invoke(context.Background(), state.ToolCall{
				ID: "c", Name: "get_weather", Arguments: map[string]any{"city": "Rome"},
			}, time.Second)
			assert.Equal(t, OutcomeOK, res.Outcome)
		}()
	}
	wg.Wait()
}

func callOf(name string, args map[string]any) state.ToolCall {
	return state.ToolCall{ID: "call_" + name, Name: name, Arguments: args}
}
