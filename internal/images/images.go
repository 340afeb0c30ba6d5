// Package images downloads product images and writes them to a local
// directory, naming files deterministically from the product title.
package images

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Config controls the image saver.
type Config struct {
	// Dir is the images directory, created if absent.
	Dir string `mapstructure:"dir"`
	// Timeout bounds each image download.
	Timeout time.Duration
}

// Saver implements scraper.ImageSaver over a resty client.
type Saver struct {
	dir    string
	client *resty.Client
}

// New creates the images directory if needed and builds the HTTP client.
func New(cfg Config) (*Saver, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("images directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create images directory: %w", err)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Saver{
		dir:    cfg.Dir,
		client: resty.New().SetTimeout(timeout),
	}, nil
}

// Client exposes the underlying resty client so tests can hook its transport.
func (s *Saver) Client() *resty.Client {
	return s.client
}

// Save downloads the image and writes it to <dir>/<normalized-title>.jpg,
// returning the local path. There is no retry: a failed download is
// reported to the caller, which records the sentinel path instead.
func (s *Saver) Save(ctx context.Context, imageURL string, title string) (string, error) {
	resp, err := s.client.R().SetContext(ctx).Get(imageURL)
	if err != nil {
		return "", fmt.Errorf("download image %s: %w", imageURL, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("download image %s: status %d", imageURL, resp.StatusCode())
	}

	path := filepath.Join(s.dir, Filename(title))
	if err := os.WriteFile(path, resp.Body(), 0o600); err != nil {
		return "", fmt.Errorf("write image file: %w", err)
	}
	return path, nil
}

// Filename derives the image file name from a title: lowercase, spaces
// replaced with underscores, fixed .jpg extension. Titles that normalize
// identically share a file.
func Filename(title string) string {
	return strings.ToLower(strings.ReplaceAll(title, " ", "_")) + ".jpg"
}
