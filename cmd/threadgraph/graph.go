package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smallnest/threadgraph/graph"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the agent graph as a Mermaid flowchart",
	RunE: func(cmd *cobra.Command, args []string) error {
		direction, _ := cmd.Flags().GetString("direction")
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Print(a.agent.Graph().DrawMermaidWithOptions(graph.MermaidOptions{Direction: direction}))
		return nil
	},
}

func init() {
	graphCmd.Flags().String("direction", "TD", "Flowchart direction (TD or LR)")
	rootCmd.AddCommand(graphCmd)
}
