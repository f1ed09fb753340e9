package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/smallnest/threadgraph/log"
	"github.com/smallnest/threadgraph/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the agent over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		opts := []server.Option{server.WithLogger(log.GetDefaultLogger())}
		if cfg.Server.Metrics {
			opts = append(opts, server.WithMetrics(a.metrics.Handler()))
		}
		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           server.NewHandler(a.agent, opts...),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			log.Info("listening on %s (store: %s, provider: %s)", srv.Addr, cfg.Store.Backend, cfg.Model.Provider)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-cmd.Context().Done():
			log.Info("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Engine.RunTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				log.Warn("graceful shutdown did not complete: %v", err)
				return srv.Close()
			}
			return nil
		}
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}
