package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/flowmetric/assetpulse/internal/api"
	"github.com/flowmetric/assetpulse/internal/config"
	"github.com/flowmetric/assetpulse/internal/events"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the assetpulse REST API server.

The server exposes asset liveness resolution, run queries, and ingest
endpoints, plus an SSE stream of run and materialization events.

Examples:
  # Start with defaults (localhost:8080)
  assetpulse serve

  # Start on custom host and port
  assetpulse serve --host 0.0.0.0 --port 3000`,
	RunE: runServe,
}

var (
	serveHost string
	servePort int
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "",
		"Host address to bind to (overrides config)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0,
		"Port to listen on (overrides config)")
}

func runServe(cobraCmd *cobra.Command, _ []string) error {
	logger := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	eventBus := events.New(cfg.Events.BufferSize)
	defer eventBus.Close()

	server := api.NewServer(store, eventBus,
		api.WithLogger(logger),
		api.WithCORSOrigins(cfg.Server.CORSOrigins),
	)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	ctx, stop := signal.NotifyContext(cobraCmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Config changes are detected and validated live, but the store and
	// listener stay bound to their startup settings.
	if used := viper.ConfigFileUsed(); used != "" {
		watcher, werr := config.Watch(used,
			func(updated *config.Config) {
				logger.Info("config file reloaded", "path", used, "log_level", updated.Log.Level)
			},
			func(werr error) {
				logger.Warn("config reload failed", "error", werr)
			},
		)
		if werr != nil {
			logger.Warn("config watcher unavailable", "error", werr)
		} else {
			defer func() { _ = watcher.Close() }()
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(ctx, addr)
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down server")
		return nil
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return fmt.Errorf("server: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
