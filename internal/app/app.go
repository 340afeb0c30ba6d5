// Package app assembles the service from configuration: it owns the
// resource handles (cache, store, logger) and their shutdown order.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	memorycache "github.com/pricewatch/shopcrawl/internal/cache/memory"
	rediscache "github.com/pricewatch/shopcrawl/internal/cache/redis"
	"github.com/pricewatch/shopcrawl/internal/config"
	"github.com/pricewatch/shopcrawl/internal/export"
	"github.com/pricewatch/shopcrawl/internal/extract"
	collyfetcher "github.com/pricewatch/shopcrawl/internal/fetcher/colly"
	"github.com/pricewatch/shopcrawl/internal/images"
	"github.com/pricewatch/shopcrawl/internal/logging"
	"github.com/pricewatch/shopcrawl/internal/metrics"
	"github.com/pricewatch/shopcrawl/internal/notify"
	"github.com/pricewatch/shopcrawl/internal/scraper"
	"github.com/pricewatch/shopcrawl/internal/store/postgres"
	"github.com/pricewatch/shopcrawl/internal/store/sqlite"
)

// App holds the wired pipeline and the resources behind it.
type App struct {
	Config config.Config
	Logger *zap.Logger
	Runner *scraper.Runner

	cache scraper.PriceCache
	store scraper.ProductStore
}

// New builds every component from the config. Resources opened here are
// released by Close, in reverse order of acquisition.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	metrics.Init()

	cache, err := buildCache(cfg)
	if err != nil {
		logger.Sync() //nolint:errcheck
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		cache.Close()
		logger.Sync() //nolint:errcheck
		return nil, err
	}

	saver, err := images.New(images.Config{Dir: cfg.Images.Dir})
	if err != nil {
		store.Close()
		cache.Close()
		logger.Sync() //nolint:errcheck
		return nil, err
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:   cfg.Scrape.UserAgent,
		Timeout:     cfg.FetchTimeout(),
		MaxAttempts: cfg.HTTP.MaxAttempts,
		RetryDelay:  cfg.RetryDelay(),
	})

	runner := scraper.NewRunner(
		fetcher,
		extract.New(),
		cache,
		store,
		saver,
		export.NewJSON(cfg.Export.Path),
		notify.NewLog(logger),
		scraper.RunnerConfig{
			BaseURL:     cfg.Scrape.BaseURL,
			Concurrency: cfg.Scrape.Concurrency,
		},
		logger,
	)

	return &App{
		Config: cfg,
		Logger: logger,
		Runner: runner,
		cache:  cache,
		store:  store,
	}, nil
}

func buildCache(cfg config.Config) (scraper.PriceCache, error) {
	switch cfg.Cache.Provider {
	case "redis":
		cache, err := rediscache.New(rediscache.Config{
			Address:  cfg.Cache.Redis.Address,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis cache: %w", err)
		}
		return cache, nil
	case "memory":
		return memorycache.New(), nil
	default:
		return nil, fmt.Errorf("unknown cache provider: %s", cfg.Cache.Provider)
	}
}

func buildStore(ctx context.Context, cfg config.Config) (scraper.ProductStore, error) {
	switch cfg.Store.Provider {
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:      cfg.Store.Postgres.DSN,
			Table:    cfg.Store.Postgres.Table,
			MaxConns: cfg.Store.Postgres.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres store: %w", err)
		}
		return store, nil
	case "sqlite":
		store, err := sqlite.New(ctx, sqlite.Config{Path: cfg.Store.SQLite.Path})
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store provider: %s", cfg.Store.Provider)
	}
}

// Close releases the store, the cache, and finally flushes the logger.
func (a *App) Close() error {
	var firstErr error
	if err := a.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close store: %w", err)
	}
	if err := a.cache.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close cache: %w", err)
	}
	a.Logger.Sync() //nolint:errcheck
	return firstErr
}
