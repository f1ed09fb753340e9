package tool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/smallnest/threadgraph/state"
)

// DefaultTimeout bounds a single tool call when the caller passes zero.
const DefaultTimeout = 30 * time.Second

// ErrDuplicateTool is returned by NewRegistry when two tools share a name.
var ErrDuplicateTool = errors.New("duplicate tool name")

// Result is the outcome of dispatching one ToolCall.
type Result struct {
	CallID   string
	Name     string
	Content  string
	Outcome  Outcome
	Duration time.Duration
}

// Message wraps the result as a tool-result message answering its call.
func (r Result) Message() state.Message {
	msg := state.NewToolResultMessage(r.CallID, r.Name, r.Content)
	msg.IsError = r.Outcome.Failed()
	return msg
}

type entry struct {
	tool   Tool
	schema *argumentSchema
	desc   Descriptor
}

// Registry is an immutable, name-indexed set of tools. It is safe for
// concurrent use once constructed.
type Registry struct {
	byName map[string]entry
	order  []string
}

// NewRegistry validates every tool's schema and indexes the tools by name.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{byName: make(map[string]entry, len(tools))}
	for _, t := range tools {
		if t == nil {
			return nil, errors.New("nil tool")
		}
		name := t.Name()
		if name == "" {
			return nil, errors.New("tool with empty name")
		}
		if _, exists := r.byName[name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTool, name)
		}

		params := t.Parameters()
		schema, err := compileSchema(params)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", name, err)
		}
		if params == nil {
			params = emptyObjectSchema()
		}

		r.byName[name] = entry{
			tool:   t,
			schema: schema,
			desc:   Descriptor{Name: name, Description: t.Description(), Parameters: params},
		}
		r.order = append(r.order, name)
	}
	return r, nil
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Names returns tool names sorted alphabetically.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	e, ok := r.byName[name]
	return e.tool, ok
}

// Descriptors returns the descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	if r == nil {
		return nil
	}
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name].desc)
	}
	return out
}

// Invoke dispatches a single call. It never returns an error: unknown tools,
// invalid arguments, tool failures, panics and timeouts are all reported in
// the Result content, prefixed with "Error:".
//
// If ctx itself is done the result is marked OutcomeCancelled; callers should
// treat that as the run being aborted rather than a tool failure.
func (r *Registry) Invoke(ctx context.Context, call state.ToolCall, timeout time.Duration) Result {
	start := time.Now()
	res := Result{CallID: call.ID, Name: call.Name}
	finish := func(outcome Outcome, content string) Result {
		res.Outcome = outcome
		res.Content = content
		res.Duration = time.Since(start)
		return res
	}

	var (
		e  entry
		ok bool
	)
	if r != nil {
		e, ok = r.byName[call.Name]
	}
	if !ok {
		return finish(OutcomeUnknownTool, fmt.Sprintf("Error: unknown tool %q; available tools: %v", call.Name, r.Names()))
	}

	if err := e.schema.validate(call.Arguments); err != nil {
		return finish(OutcomeInvalidArguments, fmt.Sprintf("Error: invalid arguments for tool %s: %v", call.Name, err))
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type reply struct {
		out      string
		err      error
		panicked any
	}
	done := make(chan reply, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- reply{panicked: p}
			}
		}()
		out, err := e.tool.Call(callCtx, state.CopyArguments(call.Arguments))
		done <- reply{out: out, err: err}
	}()

	select {
	case rep := <-done:
		switch {
		case rep.panicked != nil:
			return finish(OutcomePanic, fmt.Sprintf("Error: tool %s panicked: %v", call.Name, rep.panicked))
		case rep.err != nil:
			if ctx.Err() != nil {
				return finish(OutcomeCancelled, fmt.Sprintf("Error: tool %s cancelled: %v", call.Name, ctx.Err()))
			}
			if errors.Is(rep.err, context.DeadlineExceeded) && callCtx.Err() != nil {
				return finish(OutcomeTimeout, fmt.Sprintf("Error: tool %s timed out after %s", call.Name, timeout))
			}
			return finish(OutcomeError, fmt.Sprintf("Error: %v", rep.err))
		default:
			return finish(OutcomeOK, rep.out)
		}
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return finish(OutcomeCancelled, fmt.Sprintf("Error: tool %s cancelled: %v", call.Name, ctx.Err()))
		}
		return finish(OutcomeTimeout, fmt.Sprintf("Error: tool %s timed out after %s", call.Name, timeout))
	}
}
