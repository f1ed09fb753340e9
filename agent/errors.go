package agent

import (
	"context"
	"errors"

	"github.com/smallnest/threadgraph/checkpoint"
	"github.com/smallnest/threadgraph/graph"
)

// maxCommitAttempts bounds how often a run re-appends its turn after losing a
// commit race.
const maxCommitAttempts = 3

var (
	// ErrModelCall marks a failed or malformed completion call. It aborts the run.
	ErrModelCall = errors.New("model call failed")

	// ErrRunTimeout is returned when a run exceeds its deadline.
	ErrRunTimeout = errors.New("run timed out")

	// ErrNoPendingToolCalls is returned when the tool node runs without an
	// assistant message carrying tool calls. It indicates a routing bug.
	ErrNoPendingToolCalls = errors.New("tool dispatch without pending tool calls")

	// ErrEmptyMessage is returned by Run for blank user input.
	ErrEmptyMessage = errors.New("empty user message")
)

// Run outcomes reported to observers and metrics.
const (
	OutcomeOK           = "ok"
	OutcomeModelError   = "model_error"
	OutcomeNotConverged = "not_converged"
	OutcomeTimeout      = "timeout"
	OutcomeCancelled    = "cancelled"
	OutcomeConflict     = "conflict"
	OutcomeError        = "error"
)

// Outcome classifies an error returned by Run.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrRunTimeout):
		return OutcomeTimeout
	case errors.Is(err, graph.ErrNotConverged):
		return OutcomeNotConverged
	case errors.Is(err, ErrModelCall):
		return OutcomeModelError
	case errors.Is(err, checkpoint.ErrConflict):
		return OutcomeConflict
	case errors.Is(err, context.Canceled):
		return OutcomeCancelled
	default:
		return OutcomeError
	}
}
