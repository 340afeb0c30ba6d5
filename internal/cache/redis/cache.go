// Package redis implements the price cache on a Redis key-value store.
// Keys are product titles, values the last persisted price. Entries carry
// no TTL: the cache is durable state shared across runs.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration.
type Config struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ErrEmptyAddress is returned when the Redis address is not configured.
var ErrEmptyAddress = errors.New("redis address is required")

const connectionTimeout = 5 * time.Second

// Cache is a Redis-backed price cache.
type Cache struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection with a ping.
func New(cfg Config) (*Cache, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Cache{client: client}, nil
}

// NewWithClient wraps an existing client, primarily for tests.
func NewWithClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Get returns the last persisted price for the title. The second return is
// false when the title has never been cached.
func (c *Cache) Get(ctx context.Context, title string) (float64, bool, error) {
	val, err := c.client.Get(ctx, title).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis get %q: %w", title, err)
	}
	price, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse cached price for %q: %w", title, err)
	}
	return price, true, nil
}

// Set overwrites the cached price for the title unconditionally.
func (c *Cache) Set(ctx context.Context, title string, price float64) error {
	val := strconv.FormatFloat(price, 'f', -1, 64)
	if err := c.client.Set(ctx, title, val, 0).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", title, err)
	}
	return nil
}

// Close releases the underlying client.
func (c *Cache) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}
