// Package scraper defines the core types and interfaces for the catalog
// ingestion engine. It includes the product record model, per-run settings,
// and the Runner orchestrator that drives the page loop.
package scraper

import (
	"errors"
	"fmt"
)

// Sentinel values emitted when a product container is missing a field.
// Downstream consumers of the export depend on these exact strings.
const (
	NoNameFound  = "No name found"
	NoImageFound = "No image found"
)

// Settings holds the per-run configuration requested by the caller.
// It is immutable for the duration of one crawl run.
type Settings struct {
	// LimitPages is the number of catalog pages to visit, starting at page 1.
	LimitPages int `json:"limit_pages"`
	// Proxy is an optional proxy endpoint applied to every page request.
	Proxy string `json:"proxy,omitempty"`
}

// ErrInvalidSettings marks settings rejected before a run starts.
var ErrInvalidSettings = errors.New("invalid scrape settings")

// Validate rejects settings that cannot produce a meaningful run.
func (s Settings) Validate() error {
	if s.LimitPages < 1 {
		return fmt.Errorf("%w: limit_pages must be >= 1, got %d", ErrInvalidSettings, s.LimitPages)
	}
	return nil
}

// Candidate is a product extracted from one page, not yet checked against
// the price cache. Missing fields have already been degraded to sentinels
// by the extractor; an absent image is a zero ImageURL.
type Candidate struct {
	Title    string
	Price    float64
	ImageURL string
}

// Product is an accepted record as persisted and exported. The JSON field
// names mirror the products table columns.
type Product struct {
	ID        int64   `json:"-"`
	Title     string  `json:"product_title"`
	Price     float64 `json:"product_price"`
	ImagePath string  `json:"path_to_image"`
}

// Result is the outcome of one run: the accepted records in ascending page
// order, plus per-run counters. It is discarded after being returned.
type Result struct {
	Accepted []Product
	Counters Counters
}

// Counters tracks page and candidate outcomes for one run.
type Counters struct {
	PagesFetched int
	PagesFailed  int
	Extracted    int
	Skipped      int
}
