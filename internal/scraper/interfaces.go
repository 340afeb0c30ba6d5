package scraper

import "context"

// PageFetcher retrieves the raw bytes of one catalog page. Implementations
// own retry/backoff; a returned error means the page is exhausted and the
// run should move on to the next one.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string, proxy string) ([]byte, error)
}

// Extractor parses raw page markup into zero or more candidates. It never
// fails: malformed or missing sub-elements degrade to sentinel values.
type Extractor interface {
	Extract(page []byte) []Candidate
}

// PriceCache maps product titles to the last persisted price. The second
// return of Get reports whether the title was present.
type PriceCache interface {
	Get(ctx context.Context, title string) (float64, bool, error)
	Set(ctx context.Context, title string, price float64) error
	Close() error
}

// ProductStore appends accepted records to durable storage. Append returns
// the surrogate key and must not return before the write is acknowledged.
type ProductStore interface {
	Append(ctx context.Context, p Product) (int64, error)
	Close() error
}

// ImageSaver downloads a product image and stores it under a name derived
// from the title, returning the local path.
type ImageSaver interface {
	Save(ctx context.Context, imageURL string, title string) (string, error)
}

// Exporter serializes the accepted records of a completed run.
type Exporter interface {
	Export(products []Product) error
}

// Notifier delivers the end-of-run summary message.
type Notifier interface {
	Notify(message string)
}
