package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	// Migrations and seeders register themselves from init().
	_ "github.com/shashiranjanraj/storefront/database/migrations"
	_ "github.com/shashiranjanraj/storefront/database/seeders"

	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/pkg/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "storefront",
	Short:         "Storefront order and payment service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Server
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routeListCmd)

	// Database
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(migrateRollbackCmd)
	rootCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(seedCmd)

	// Workers
	rootCmd.AddCommand(queueWorkCmd)
	rootCmd.AddCommand(queueFailedCmd)
	rootCmd.AddCommand(reconcileCmd)
}

// loadConfig reads configuration and installs the logger. The returned func
// flushes log sinks and must be deferred.
func loadConfig(ctx context.Context) (config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	flush, err := app.SetupLogger(ctx, cfg)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, flush, nil
}

// boot loads configuration and builds the full application.
func boot(ctx context.Context) (*app.App, func(), error) {
	cfg, flush, err := loadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.Boot(ctx, cfg)
	if err != nil {
		flush()
		return nil, nil, err
	}
	return a, func() {
		_ = a.Close()
		flush()
	}, nil
}
