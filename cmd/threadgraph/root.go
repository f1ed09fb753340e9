package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smallnest/threadgraph/config"
	"github.com/smallnest/threadgraph/log"
)

var (
	configPath string
	logLevel   string
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:           "threadgraph",
	Short:         "Tool-using chat agent with per-thread checkpoints",
	Long:          `threadgraph drives a model/tool loop as a small state graph and persists every conversation thread after each successful run.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.LogLevel = logLevel
		}
		level, err := log.ParseLevel(loaded.LogLevel)
		if err != nil {
			return err
		}
		log.SetOutput(os.Stderr, level)
		cfg = loaded
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("THREADGRAPH_CONFIG"), "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error, none)")
}

func addThreadFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("thread", "t", "default", "Conversation thread ID")
}
