package graph

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
)

// StateGraph is the mutable builder for a graph definition over state type S.
//
// Example usage:
//
//	g := graph.NewStateGraph[state.ConversationState]()
//	g.SetSchema(state.NewMessagesSchema())
//	g.AddNode("agent", "calls the model", agentFn)
//	g.AddNode("tools", "runs requested tools", toolsFn)
//	g.SetEntryPoint("agent")
//	g.AddConditionalEdges("agent", route, map[string]string{"tools": "tools", "terminal": graph.END})
//	g.AddEdge("tools", "agent")
//	runnable, err := g.Compile()
type StateGraph[S any] struct {
	// nodes is a map of node names to their corresponding Node objects
	nodes map[string]Node[S]

	// edges contains the unconditional edge for each "From" node
	edges map[string]Edge

	// conditionalEdges contains the conditional edge for each "From" node
	conditionalEdges map[string]ConditionalEdge[S]

	// entryPoint is the name of the entry point node in the graph
	entryPoint string

	// retryPolicy defines retry behavior for failed nodes
	retryPolicy *RetryPolicy

	// schema defines the state merge rule
	schema StateSchema[S]

	// buildErr records the first builder misuse, reported by Compile
	buildErr error
}

// NewStateGraph creates a new instance of StateGraph.
// Without a schema, node output replaces the state.
func NewStateGraph[S any]() *StateGraph[S] {
	return &StateGraph[S]{
		nodes:            make(map[string]Node[S]),
		edges:            make(map[string]Edge),
		conditionalEdges: make(map[string]ConditionalEdge[S]),
	}
}

// AddNode adds a new node to the state graph with the given name, description and function
func (g *StateGraph[S]) AddNode(name string, description string, fn NodeFunc[S]) {
	if name == "" || name == END {
		g.fail(fmt.Errorf("invalid node name %q", name))
		return
	}
	if _, exists := g.nodes[name]; exists {
		g.fail(fmt.Errorf("node %s already registered", name))
		return
	}
	g.nodes[name] = Node[S]{
		Name:        name,
		Description: description,
		Function:    fn,
	}
}

// AddEdge adds an unconditional edge between the "from" and "to" nodes
func (g *StateGraph[S]) AddEdge(from, to string) {
	if g.hasOutgoing(from) {
		g.fail(fmt.Errorf("%w: %s", ErrDuplicateEdge, from))
		return
	}
	g.edges[from] = Edge{From: from, To: to}
}

// AddConditionalEdges adds a conditional edge where route selects a label and
// targets maps each label to a node name or END.
func (g *StateGraph[S]) AddConditionalEdges(from string, route RouteFunc[S], targets map[string]string) {
	if g.hasOutgoing(from) {
		g.fail(fmt.Errorf("%w: %s", ErrDuplicateEdge, from))
		return
	}
	if route == nil || len(targets) == 0 {
		g.fail(fmt.Errorf("conditional edge from %s needs a route and at least one target", from))
		return
	}
	g.conditionalEdges[from] = ConditionalEdge[S]{
		From:    from,
		Route:   route,
		Targets: maps.Clone(targets),
	}
}

// SetEntryPoint sets the entry point node name for the state graph
func (g *StateGraph[S]) SetEntryPoint(name string) {
	g.entryPoint = name
}

// SetRetryPolicy sets the retry policy for the graph
func (g *StateGraph[S]) SetRetryPolicy(policy *RetryPolicy) {
	g.retryPolicy = policy
}

// SetSchema sets the state schema for the graph
func (g *StateGraph[S]) SetSchema(schema StateSchema[S]) {
	g.schema = schema
}

func (g *StateGraph[S]) hasOutgoing(from string) bool {
	_, uncond := g.edges[from]
	_, cond := g.conditionalEdges[from]
	return uncond || cond
}

func (g *StateGraph[S]) fail(err error) {
	if g.buildErr == nil {
		g.buildErr = err
	}
}

// Compile validates the graph and returns an immutable Runnable.
func (g *StateGraph[S]) Compile() (*Runnable[S], error) {
	if g.buildErr != nil {
		return nil, g.buildErr
	}
	if g.entryPoint == "" {
		return nil, ErrEntryPointNotSet
	}
	if _, ok := g.nodes[g.entryPoint]; !ok {
		return nil, fmt.Errorf("%w: entry point %s", ErrNodeNotFound, g.entryPoint)
	}

	known := func(name string) bool {
		_, ok := g.nodes[name]
		return ok || name == END
	}

	for from, e := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("%w: edge source %s", ErrNodeNotFound, from)
		}
		if !known(e.To) {
			return nil, fmt.Errorf("%w: edge target %s", ErrNodeNotFound, e.To)
		}
	}
	for from, ce := range g.conditionalEdges {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("%w: conditional edge source %s", ErrNodeNotFound, from)
		}
		for label, to := range ce.Targets {
			if !known(to) {
				return nil, fmt.Errorf("%w: target %s for label %q", ErrNodeNotFound, to, label)
			}
		}
	}
	for name := range g.nodes {
		if !g.hasOutgoing(name) {
			return nil, fmt.Errorf("%w: %s", ErrNoOutgoingEdge, name)
		}
	}

	var schema StateSchema[S] = ReplaceSchema[S]{}
	if g.schema != nil {
		schema = g.schema
	}

	conditional := make(map[string]ConditionalEdge[S], len(g.conditionalEdges))
	for from, ce := range g.conditionalEdges {
		ce.Targets = maps.Clone(ce.Targets)
		conditional[from] = ce
	}

	var policy *RetryPolicy
	if g.retryPolicy != nil {
		p := *g.retryPolicy
		policy = &p
	}

	return &Runnable[S]{
		nodes:            maps.Clone(g.nodes),
		edges:            maps.Clone(g.edges),
		conditionalEdges: conditional,
		entryPoint:       g.entryPoint,
		schema:           schema,
		retryPolicy:      policy,
	}, nil
}

// Runnable is a compiled, read-only graph definition. It is safe for
// concurrent use by any number of runs.
type Runnable[S any] struct {
	nodes            map[string]Node[S]
	edges            map[string]Edge
	conditionalEdges map[string]ConditionalEdge[S]
	entryPoint       string
	schema           StateSchema[S]
	retryPolicy      *RetryPolicy
	listeners        []NodeListener[S]
}

// WithListeners returns a copy of the runnable that notifies the given listeners
// on every invocation.
func (r *Runnable[S]) WithListeners(listeners ...NodeListener[S]) *Runnable[S] {
	cp := *r
	cp.listeners = append(append([]NodeListener[S]{}, r.listeners...), listeners...)
	return &cp
}

// Schema returns the merge rule used by the runnable.
func (r *Runnable[S]) Schema() StateSchema[S] {
	return r.schema
}

// EntryPoint returns the name of the entry node.
func (r *Runnable[S]) EntryPoint() string {
	return r.entryPoint
}

// Invoke executes the compiled state graph with the given input state.
func (r *Runnable[S]) Invoke(ctx context.Context, initialState S) (S, error) {
	return r.InvokeWithConfig(ctx, initialState, nil)
}

// InvokeWithConfig executes the graph starting at the entry point until END is
// reached. The input state is used as-is; callers merge new input beforehand.
//
// On any failure the zero state is returned together with the error, so no
// partially merged delta can escape the run.
func (r *Runnable[S]) InvokeWithConfig(ctx context.Context, initialState S, config *Config[S]) (S, error) {
	var zero S

	maxSteps := config.maxSteps()
	listeners := r.listeners
	runID := ""
	if config != nil {
		runID = config.RunID
		listeners = append(append([]NodeListener[S]{}, r.listeners...), config.Listeners...)
	}
	if runID == "" {
		runID = uuid.NewString()
	}

	state := initialState
	current := r.entryPoint
	steps := 0

	for current != END {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("run %s cancelled before node %s: %w", runID, current, err)
		}
		if steps >= maxSteps {
			return zero, &RecursionError{Limit: maxSteps, Node: current}
		}
		steps++

		node, ok := r.nodes[current]
		if !ok {
			return zero, fmt.Errorf("%w: %s", ErrNodeNotFound, current)
		}

		notifyListeners(ctx, listeners, NodeEventInfo[S]{Event: NodeEventStart, Node: current, Step: steps, RunID: runID, State: state})
		start := time.Now()

		delta, err := executeWithRetry(ctx, r.retryPolicy, node, state)
		if err != nil {
			notifyListeners(ctx, listeners, NodeEventInfo[S]{
				Event: NodeEventError, Node: current, Step: steps, RunID: runID,
				State: state, Err: err, Duration: time.Since(start),
			})
			return zero, &NodeError{Node: current, Step: steps, Err: err}
		}

		state, err = r.schema.Update(state, delta)
		if err != nil {
			return zero, fmt.Errorf("schema update failed after node %s: %w", current, err)
		}

		notifyListeners(ctx, listeners, NodeEventInfo[S]{
			Event: NodeEventComplete, Node: current, Step: steps, RunID: runID,
			State: state, Duration: time.Since(start),
		})

		current, err = r.next(ctx, current, state)
		if err != nil {
			return zero, err
		}
	}

	return state, nil
}

// next determines the node following from, evaluating conditional routes
// against the post-merge state.
func (r *Runnable[S]) next(ctx context.Context, from string, state S) (string, error) {
	if ce, ok := r.conditionalEdges[from]; ok {
		label := ce.Route(ctx, state)
		to, ok := ce.Targets[label]
		if !ok {
			return "", fmt.Errorf("%w: %q from %s", ErrUnknownRoute, label, from)
		}
		return to, nil
	}
	if e, ok := r.edges[from]; ok {
		return e.To, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoOutgoingEdge, from)
}
