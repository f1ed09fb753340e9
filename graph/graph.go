package graph

import (
	"context"
	"errors"
	"fmt"
)

// END is a special constant used to represent the terminal marker of the graph.
const END = "END"

// DefaultMaxSteps bounds the number of node executions per run when Config.MaxSteps is zero.
const DefaultMaxSteps = 25

var (
	// ErrEntryPointNotSet is returned when the entry point of the graph is not set.
	ErrEntryPointNotSet = errors.New("entry point not set")

	// ErrNodeNotFound is returned when a node is not found in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNoOutgoingEdge is returned when no outgoing edge is found for a node.
	ErrNoOutgoingEdge = errors.New("no outgoing edge found for node")

	// ErrDuplicateEdge is returned when a node declares more than one outgoing edge.
	ErrDuplicateEdge = errors.New("node already has an outgoing edge")

	// ErrUnknownRoute is returned when a routing function yields a label without a target.
	ErrUnknownRoute = errors.New("routing function returned an unmapped label")

	// ErrNotConverged is returned when a run exceeds its step bound without reaching END.
	ErrNotConverged = errors.New("graph did not converge")
)

// NodeFunc processes the current state and returns a delta to be merged into it.
type NodeFunc[S any] func(ctx context.Context, state S) (S, error)

// RouteFunc inspects the post-merge state and returns a label selecting the next edge.
type RouteFunc[S any] func(ctx context.Context, state S) string

// Node represents a node in the graph.
type Node[S any] struct {
	// Name is the unique identifier for the node.
	Name string

	// Description describes the functionality of the node.
	Description string

	// Function is the function associated with the node.
	Function NodeFunc[S]
}

// Edge represents an unconditional edge in the graph.
type Edge struct {
	// From is the name of the node from which the edge originates.
	From string

	// To is the name of the node to which the edge points, or END.
	To string
}

// ConditionalEdge selects the next node by evaluating Route and looking the
// resulting label up in Targets.
type ConditionalEdge[S any] struct {
	From    string
	Route   RouteFunc[S]
	Targets map[string]string
}

// RecursionError is returned when a run hits its step limit.
type RecursionError struct {
	// Limit is the configured maximum number of node executions.
	Limit int
	// Node is the node that would have executed next.
	Node string
}

func (e *RecursionError) Error() string {
	return fmt.Sprintf("graph did not converge: step limit %d reached before node %s", e.Limit, e.Node)
}

// Is lets errors.Is match ErrNotConverged.
func (e *RecursionError) Is(target error) bool {
	return target == ErrNotConverged
}

// NodeError wraps a failure returned by a node function.
type NodeError struct {
	Node string
	Step int
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("error in node %s (step %d): %v", e.Node, e.Step, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}
