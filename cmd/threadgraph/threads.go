package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the committed messages of a thread",
	RunE: func(cmd *cobra.Command, args []string) error {
		thread, _ := cmd.Flags().GetString("thread")
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		msgs, err := a.agent.History(cmd.Context(), thread)
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			fmt.Printf("thread %q is empty\n", thread)
			return nil
		}
		p := newPrinter(os.Stdout)
		for _, m := range msgs {
			p.message(m)
		}
		return nil
	},
}

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "List threads with committed history",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ids, err := a.agent.Threads(cmd.Context())
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete a thread",
	RunE: func(cmd *cobra.Command, args []string) error {
		thread, _ := cmd.Flags().GetString("thread")
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.agent.Clear(cmd.Context(), thread); err != nil {
			return err
		}
		fmt.Printf("cleared thread %q\n", thread)
		return nil
	},
}

func init() {
	addThreadFlag(historyCmd)
	addThreadFlag(clearCmd)
	rootCmd.AddCommand(historyCmd, threadsCmd, clearCmd)
}
