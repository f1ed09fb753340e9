package tool

import (
	"context"
)

// Tool is a named function the model may call with a JSON-object argument map.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON schema of the argument object, or nil when
	// the tool takes no arguments.
	Parameters() map[string]any
	Call(ctx context.Context, args map[string]any) (string, error)
}

// Descriptor is the model-facing view of a registered tool.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Outcome classifies a single tool invocation.
type Outcome string

const (
	OutcomeOK               Outcome = "ok"
	OutcomeUnknownTool      Outcome = "unknown_tool"
	OutcomeInvalidArguments Outcome = "invalid_arguments"
	OutcomeError            Outcome = "error"
	OutcomeTimeout          Outcome = "timeout"
	OutcomePanic            Outcome = "panic"
	OutcomeCancelled        Outcome = "cancelled"
)

// Failed reports whether the outcome is anything other than success.
func (o Outcome) Failed() bool {
	return o != OutcomeOK
}

// emptyObjectSchema is advertised for tools that declare no parameters.
func emptyObjectSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}
