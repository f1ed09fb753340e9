package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask MESSAGE...",
	Short: "Run one message on a thread and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		thread, _ := cmd.Flags().GetString("thread")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		verbose, _ := cmd.Flags().GetBool("verbose")

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.agent.Run(cmd.Context(), thread, strings.Join(args, " "), timeout)
		if err != nil {
			return err
		}
		if verbose {
			p := newPrinter(os.Stdout)
			for _, m := range res.Appended {
				p.message(m)
			}
			fmt.Printf("(%d steps, %d messages in thread)\n", res.Steps, res.MessageCount)
			return nil
		}
		if res.Message.Content == "" {
			return errors.New("model returned an empty answer")
		}
		fmt.Println(res.Message.Content)
		return nil
	},
}

func init() {
	addThreadFlag(askCmd)
	askCmd.Flags().Duration("timeout", 0, "Run timeout (default from config)")
	askCmd.Flags().BoolP("verbose", "v", false, "Print tool calls and results")
	rootCmd.AddCommand(askCmd)
}
