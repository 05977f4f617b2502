package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/convorag/internal/discovery"
	"github.com/Aman-CERP/convorag/internal/logging"
	"github.com/Aman-CERP/convorag/internal/mcp"
	"github.com/Aman-CERP/convorag/internal/watcher"
)

func newServeCmd() *cobra.Command {
	var (
		transport string
		addr      string
		resources bool
		watch     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		Long: `Serve context, memory, ingestion and discovery tools over the Model
Context Protocol.

With the stdio transport nothing but protocol messages is written to
stdout; logs go to ~/.convorag/logs/convorag.log.`,
		Example: `  convorag serve
  convorag serve --transport http --addr 127.0.0.1:8765`,
		Annotations: map[string]string{skipCLILogging: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			level := cfg.Server.LogLevel
			if debugMode {
				level = "debug"
			}
			cleanup, err := logging.SetupServerMode(level)
			if err != nil {
				return fmt.Errorf("failed to setup logging: %w", err)
			}
			loggingCleanup = cleanup

			if transport == "" {
				transport = cfg.Server.Transport
			}

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			srv, err := mcp.NewServer(a.orch)
			if err != nil {
				return err
			}
			if resources {
				if _, err := srv.RegisterPoolResources(ctx); err != nil {
					slog.Warn("pool resources unavailable", slog.String("error", err.Error()))
				}
			}
			if !cmd.Flags().Changed("watch") {
				watch = cfg.Discovery.Watch
			}
			if watch && a.orch.Discovery() != nil {
				disc := a.orch.Discovery()
				refresh := func(ctx context.Context) error {
					if resources {
						_, err := srv.RefreshPoolResources(ctx)
						return err
					}
					return disc.Rebuild(ctx)
				}
				stop, err := watchPool(ctx, disc.Pool(), refresh)
				if err != nil {
					slog.Warn("pool watcher unavailable", slog.String("error", err.Error()))
				} else {
					defer stop()
				}
			}
			return srv.Serve(ctx, transport, addr)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "", "Transport: stdio or http (default from config)")
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8765", "Listen address for the http transport")
	cmd.Flags().BoolVar(&resources, "resources", true, "Expose pool files as MCP resources")
	cmd.Flags().BoolVar(&watch, "watch", false, "Refresh the pool index when pool files change (default from config)")
	return cmd
}

// watchPool calls refresh after each debounced batch of pool changes. The
// returned func stops the watcher.
func watchPool(ctx context.Context, pool string, refresh func(context.Context) error) (func(), error) {
	w, err := watcher.New(watcher.Options{Watch: []string{discovery.IgnoreFileName}})
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx, pool); err != nil {
		return nil, err
	}

	go func() {
		for batch := range w.Events() {
			slog.Debug("pool changed", slog.Int("events", len(batch)), slog.String("first", batch[0].Path))
			if err := refresh(ctx); err != nil {
				slog.Warn("pool refresh failed", slog.String("error", err.Error()))
			}
		}
	}()

	slog.Info("watching pool", slog.String("pool", pool))
	return func() { _ = w.Stop() }, nil
}
