package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation on a thread",
	RunE: func(cmd *cobra.Command, args []string) error {
		thread, _ := cmd.Flags().GetString("thread")
		ctx := cmd.Context()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		p := newPrinter(os.Stdout)
		interactive := term.IsTerminal(int(os.Stdin.Fd()))
		if interactive {
			fmt.Printf("thread %q, type /exit to quit, /history to show the thread\n", thread)
		}

		scanner := bufio.NewScanner(os.Stdin)
		for {
			if interactive {
				fmt.Print("> ")
			}
			if !scanner.Scan() {
				return scanner.Err()
			}
			line := strings.TrimSpace(scanner.Text())

			switch line {
			case "":
				continue
			case "/exit", "/quit":
				return nil
			case "/history":
				msgs, err := a.agent.History(ctx, thread)
				if err != nil {
					p.error(err)
					continue
				}
				for _, m := range msgs {
					p.message(m)
				}
				continue
			}

			res, err := a.agent.Run(ctx, thread, line, 0)
			if err != nil {
				if ctx.Err() != nil {
					return err
				}
				p.error(err)
				continue
			}
			for _, m := range res.Appended[1:] {
				p.message(m)
			}
		}
	},
}

func init() {
	addThreadFlag(chatCmd)
	rootCmd.AddCommand(chatCmd)
}

