// Package sqlite provides the default SQLite-backed product store.
package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure-Go sqlite driver

	"github.com/pricewatch/shopcrawl/internal/scraper"
)

// Config controls the SQLite store.
type Config struct {
	// Path is the database file, or ":memory:" for an ephemeral store.
	Path string `mapstructure:"path"`
}

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	product_title TEXT,
	product_price REAL,
	path_to_image TEXT
)`

// Store appends product records to the products table.
type Store struct {
	db *sqlx.DB
}

// New opens the database, verifies the connection, and creates the products
// table if absent.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store.sqlite.path is required")
	}
	db, err := sqlx.ConnectContext(ctx, "sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	// SQLite allows a single writer; serialize access through one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create products table: %w", err)
	}
	return &Store{db: db}, nil
}

// Append inserts one accepted record and returns its surrogate key.
func (s *Store) Append(ctx context.Context, p scraper.Product) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO products (product_title, product_price, path_to_image) VALUES (?, ?, ?)`,
		p.Title, p.Price, p.ImagePath,
	)
	if err != nil {
		return 0, fmt.Errorf("insert product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inserted id: %w", err)
	}
	return id, nil
}

// Close shuts down the connection pool.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}
