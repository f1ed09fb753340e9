package graph

// StateSchema defines the structure and update logic for the graph state.
// Update merges a node's delta into the current state.
type StateSchema[S any] interface {
	// Init returns the initial state.
	Init() S

	// Update merges the delta into the current state.
	Update(current, delta S) (S, error)
}

// ReplaceSchema is the fallback schema: the delta replaces the current state.
type ReplaceSchema[S any] struct{}

// Init returns the zero state.
func (ReplaceSchema[S]) Init() S {
	var zero S
	return zero
}

// Update returns delta.
func (ReplaceSchema[S]) Update(_, delta S) (S, error) {
	return delta, nil
}
