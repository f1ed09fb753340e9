package graph

import (
	"fmt"
	"sort"
	"strings"
)

// MermaidOptions defines configuration for Mermaid diagram generation
type MermaidOptions struct {
	// Direction of the flowchart (e.g., "TD", "LR")
	Direction string
}

// DrawMermaid generates a Mermaid diagram representation of the compiled graph
func (r *Runnable[S]) DrawMermaid() string {
	return r.DrawMermaidWithOptions(MermaidOptions{Direction: "TD"})
}

// DrawMermaidWithOptions generates a Mermaid diagram with custom options.
// Output is deterministic: nodes, edges and labels are sorted.
func (r *Runnable[S]) DrawMermaidWithOptions(opts MermaidOptions) string {
	var sb strings.Builder

	direction := opts.Direction
	if direction == "" {
		direction = "TD"
	}
	fmt.Fprintf(&sb, "flowchart %s\n", direction)

	sb.WriteString("    START([\"START\"])\n")
	sb.WriteString("    style START fill:#90EE90\n")

	names := make([]string, 0, len(r.nodes))
	for name := range r.nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	hasEnd := false
	for _, name := range names {
		fmt.Fprintf(&sb, "    %s[\"%s\"]\n", name, name)
		if e, ok := r.edges[name]; ok && e.To == END {
			hasEnd = true
		}
		if ce, ok := r.conditionalEdges[name]; ok {
			for _, to := range ce.Targets {
				if to == END {
					hasEnd = true
				}
			}
		}
	}
	if hasEnd {
		sb.WriteString("    END([\"END\"])\n")
		sb.WriteString("    style END fill:#FFB6C1\n")
	}

	fmt.Fprintf(&sb, "    START --> %s\n", r.entryPoint)
	for _, name := range names {
		if e, ok := r.edges[name]; ok {
			fmt.Fprintf(&sb, "    %s --> %s\n", e.From, e.To)
			continue
		}
		ce, ok := r.conditionalEdges[name]
		if !ok {
			continue
		}
		labels := make([]string, 0, len(ce.Targets))
		for label := range ce.Targets {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			fmt.Fprintf(&sb, "    %s -.->|%s| %s\n", name, label, ce.Targets[label])
		}
	}

	fmt.Fprintf(&sb, "    style %s fill:#87CEEB\n", r.entryPoint)
	return sb.String()
}
