// Package cmd defines the CLI commands for the shopcrawl executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pricewatch/shopcrawl/internal/app"
	"github.com/pricewatch/shopcrawl/internal/config"
)

var cfgFile string

// appKeyType is the key for storing the App in the command context.
type appKeyType struct{}

var appKey appKeyType

// newApp is the application factory. It is a variable so tests can swap in
// a mock factory.
var newApp = func(ctx context.Context, cfg config.Config) (*app.App, error) {
	return app.New(ctx, cfg)
}

// newRootCmd creates the root command. Config is loaded and the application
// is assembled in PersistentPreRunE so every subcommand finds a ready app in
// its context.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shopcrawl",
		Short: "Catalog scraper for paginated product listings",
		Long: `shopcrawl crawls a paginated product catalog, extracts title, price and
image for every listed product, deduplicates against a price cache, and
persists accepted records and images locally.`,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			application, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("initialize application: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, application))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if application, ok := cmd.Context().Value(appKey).(*app.App); ok && application != nil {
				if err := application.Close(); err != nil {
					application.Logger.Warn("shutdown cleanup failed", zap.Error(err))
				}
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); environment variables override")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCrawlCmd())

	return cmd
}

func resolveApp(ctx context.Context) (*app.App, error) {
	application, ok := ctx.Value(appKey).(*app.App)
	if !ok || application == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return application, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "shopcrawl: %v\n", err)
		os.Exit(1)
	}
}
