package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pricewatch/shopcrawl/internal/scraper"
)

func newCrawlCmd() *cobra.Command {
	var (
		pages int
		proxy string
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run a single crawl and exit",
		Long: `Runs one crawl of the configured catalog without starting the HTTP
server. Flags override the configured page limit and proxy.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			logger := application.Logger

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			settings := scraper.Settings{
				LimitPages: application.Config.Scrape.LimitPages,
				Proxy:      application.Config.Scrape.Proxy,
			}
			if cmd.Flags().Changed("pages") {
				settings.LimitPages = pages
			}
			if cmd.Flags().Changed("proxy") {
				settings.Proxy = proxy
			}

			result, err := application.Runner.Run(ctx, settings)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Warn("crawl interrupted",
						zap.Int("accepted", len(result.Accepted)),
					)
					return nil
				}
				return fmt.Errorf("run crawl: %w", err)
			}

			logger.Info("crawl finished",
				zap.Int("accepted", len(result.Accepted)),
				zap.Int("pages_fetched", result.Counters.PagesFetched),
				zap.Int("pages_failed", result.Counters.PagesFailed),
			)
			return nil
		},
	}

	cmd.Flags().IntVar(&pages, "pages", 0, "number of catalog pages to crawl")
	cmd.Flags().StringVar(&proxy, "proxy", "", "proxy URL for page fetches")

	return cmd
}
