package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"aristotle/internal/app"
	"aristotle/internal/config"
	"aristotle/internal/db"
	"aristotle/internal/logger"
	"aristotle/internal/trace"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	logger.Init()
	rootCmd := &cobra.Command{
		Use:           "aristotle",
		Short:         "Aristotle designs learning paths with a team of AI agents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.toml")

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(gatewayCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup loads config, starts tracing and opens the search cache when enabled.
// The returned cleanup must be called before exit.
func setup(ctx context.Context) (*config.Config, *app.Builder, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	shutdownTrace, err := trace.Init(ctx, cfg.Trace)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initializing tracing: %w", err)
	}
	cleanup := func() {
		if err := shutdownTrace(context.Background()); err != nil {
			slog.Warn("trace shutdown failed", "error", err)
		}
	}

	var opts []app.Option
	if cfg.Search.Cache.Enabled {
		database, err := db.Open(cfg.DB.Path)
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("opening database: %w", err)
		}
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			cleanup()
			return nil, nil, nil, fmt.Errorf("migrating database: %w", err)
		}
		opts = append(opts, app.WithDB(database))
		traceCleanup := cleanup
		cleanup = func() {
			database.Close()
			traceCleanup()
		}
	}

	builder, err := app.NewBuilder(cfg, opts...)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return cfg, builder, cleanup, nil
}
