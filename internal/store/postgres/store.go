// Package postgres provides a Postgres-backed product store for deployments
// that already run a relational cluster.
package postgres

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pricewatch/shopcrawl/internal/scraper"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool.
type Config struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store appends product records into Postgres.
type Store struct {
	pool  rowQuerier
	table string
}

// New creates a Postgres-backed store using the provided config. The table
// is expected to exist with an auto-incrementing id column.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.postgres.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "products"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: table}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool rowQuerier, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "products"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Append inserts one accepted record and returns its surrogate key.
func (s *Store) Append(ctx context.Context, p scraper.Product) (int64, error) {
	query := fmt.Sprintf(
		`INSERT INTO %s (product_title, product_price, path_to_image) VALUES ($1, $2, $3) RETURNING id`,
		s.table,
	)
	var id int64
	if err := s.pool.QueryRow(ctx, query, p.Title, p.Price, p.ImagePath).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert product: %w", err)
	}
	return id, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
