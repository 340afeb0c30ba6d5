// Package export serializes a run's accepted records for external
// consumers. The output file is overwritten on every run.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pricewatch/shopcrawl/internal/scraper"
)

// JSONExporter writes the run result as an indented JSON array.
type JSONExporter struct {
	path string
}

// NewJSON builds an exporter targeting the given file path.
func NewJSON(path string) *JSONExporter {
	return &JSONExporter{path: path}
}

// Export writes the accepted records. An empty run produces an empty array,
// not null.
func (e *JSONExporter) Export(products []scraper.Product) error {
	if products == nil {
		products = []scraper.Product{}
	}
	data, err := json.MarshalIndent(products, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal products: %w", err)
	}
	if dir := filepath.Dir(e.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create export directory: %w", err)
		}
	}
	if err := os.WriteFile(e.path, data, 0o600); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}
