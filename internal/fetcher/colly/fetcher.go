// Package collyfetcher implements the page fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/pricewatch/shopcrawl/internal/metrics"
)

// Config controls collector and retry behavior.
type Config struct {
	UserAgent string
	// Timeout bounds each individual fetch attempt.
	Timeout time.Duration
	// MaxAttempts is the total attempt budget per page, first try included.
	MaxAttempts int
	// RetryDelay is the fixed pause before each retry.
	RetryDelay time.Duration
}

// FetchError reports a page that could not be fetched, carrying the number
// of attempts actually made. The orchestrator skips the page and continues
// the run.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher implements scraper.PageFetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher. Defaults: 3 attempts per page with a fixed
// 3 second delay between them.
func New(cfg Config) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 3 * time.Second
	}

	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// FetchPage retrieves one page, applying the proxy (if any) to every
// attempt. Transport failures and non-200 statuses are retried up to the
// attempt budget; exhaustion returns a FetchError.
func (f *Fetcher) FetchPage(ctx context.Context, url string, proxy string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			metrics.ObserveFetchRetry()
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("fetch %s canceled: %w", url, ctx.Err())
			case <-time.After(f.cfg.RetryDelay):
			}
		}

		body, err := f.fetchOnce(ctx, url, proxy)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable(err) {
			return nil, &FetchError{URL: url, Attempts: attempt, Err: lastErr}
		}
	}
	return nil, &FetchError{URL: url, Attempts: f.cfg.MaxAttempts, Err: lastErr}
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string, proxy string) ([]byte, error) {
	collector := f.baseCollector.Clone()
	collector.IgnoreRobotsTxt = true
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)
	if proxy != "" {
		if err := collector.SetProxy(proxy); err != nil {
			return nil, fmt.Errorf("set proxy %s: %w", proxy, err)
		}
	}

	var (
		body     []byte
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("visit %s: %w", url, err)
		}
		if fetchErr != nil {
			return nil, fetchErr
		}
		return body, nil
	}
}

// retryable rules out cancellation; everything else (transport faults,
// non-200 statuses) gets another attempt.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
