package scraper

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pricewatch/shopcrawl/internal/metrics"
)

// RunnerConfig controls the page loop.
type RunnerConfig struct {
	// BaseURL is the catalog root; pages are fetched from {base}/page/{n}/.
	BaseURL string
	// Concurrency is the number of parallel page fetches. 1 means the
	// strictly sequential loop.
	Concurrency int
}

// Runner drives one crawl run: it iterates pages, extracts candidates,
// applies the price-cache acceptance rule, and persists accepted records.
// Fetch and extraction may run on a small worker pool, but the
// decide/store/cache sequence is always executed by the run goroutine in
// ascending page order, so accept cycles for a title never interleave.
type Runner struct {
	fetcher   PageFetcher
	extractor Extractor
	cache     PriceCache
	store     ProductStore
	images    ImageSaver
	exporter  Exporter
	notifier  Notifier
	cfg       RunnerConfig
	logger    *zap.Logger
}

// NewRunner wires the pipeline components together.
func NewRunner(
	fetcher PageFetcher,
	extractor Extractor,
	cache PriceCache,
	store ProductStore,
	images ImageSaver,
	exporter Exporter,
	notifier Notifier,
	cfg RunnerConfig,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Runner{
		fetcher:   fetcher,
		extractor: extractor,
		cache:     cache,
		store:     store,
		images:    images,
		exporter:  exporter,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
	}
}

// pageOutcome carries the extraction result (or fetch failure) of one page.
type pageOutcome struct {
	num        int
	candidates []Candidate
	err        error
}

// Run executes one crawl across pages 1..settings.LimitPages. A page whose
// fetch exhausts its retries is skipped, never fatal; a store write failure
// aborts the run. The returned Result lists accepted records in ascending
// page order.
func (r *Runner) Run(ctx context.Context, settings Settings) (Result, error) {
	if err := settings.Validate(); err != nil {
		return Result{}, err
	}
	// The derived cancel tears the fetch pipeline down when Run returns
	// early, so a store fault cannot strand workers mid-send.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	var result Result

	for outcome := range r.fetchPages(ctx, settings) {
		if outcome.err != nil {
			result.Counters.PagesFailed++
			metrics.ObservePage("failed")
			r.logger.Warn("page fetch failed, skipping",
				zap.Int("page", outcome.num),
				zap.Error(outcome.err),
			)
			continue
		}
		result.Counters.PagesFetched++
		metrics.ObservePage("fetched")

		for _, cand := range outcome.candidates {
			result.Counters.Extracted++
			product, accepted, err := r.processCandidate(ctx, cand)
			if err != nil {
				return result, err
			}
			if !accepted {
				result.Counters.Skipped++
				metrics.ObserveCandidate("skipped")
				continue
			}
			metrics.ObserveCandidate("accepted")
			result.Accepted = append(result.Accepted, product)
		}
	}

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("run canceled: %w", err)
	}

	if err := r.exporter.Export(result.Accepted); err != nil {
		return result, fmt.Errorf("export run results: %w", err)
	}
	r.notifier.Notify(fmt.Sprintf("Scraped %d products.", len(result.Accepted)))
	metrics.ObserveRunDuration(time.Since(start))

	r.logger.Info("run complete",
		zap.Int("accepted", len(result.Accepted)),
		zap.Int("pages_fetched", result.Counters.PagesFetched),
		zap.Int("pages_failed", result.Counters.PagesFailed),
		zap.Int("skipped", result.Counters.Skipped),
	)
	return result, nil
}

// processCandidate applies the acceptance rule: accept iff the title is not
// cached or the cached price differs. The image is saved before the store
// append so the stored record carries the final path.
func (r *Runner) processCandidate(ctx context.Context, cand Candidate) (Product, bool, error) {
	cached, known, err := r.cache.Get(ctx, cand.Title)
	if err != nil {
		// A cache fault must not drop records; treat the title as unseen.
		r.logger.Warn("price cache read failed", zap.String("title", cand.Title), zap.Error(err))
		known = false
	}
	if known && cached == cand.Price {
		return Product{}, false, nil
	}

	imagePath := NoImageFound
	if cand.ImageURL != "" {
		path, saveErr := r.images.Save(ctx, cand.ImageURL, cand.Title)
		if saveErr != nil {
			r.logger.Warn("image save failed",
				zap.String("title", cand.Title),
				zap.String("image_url", cand.ImageURL),
				zap.Error(saveErr),
			)
		} else {
			imagePath = path
		}
	}

	product := Product{
		Title:     cand.Title,
		Price:     cand.Price,
		ImagePath: imagePath,
	}
	id, err := r.store.Append(ctx, product)
	if err != nil {
		return Product{}, false, fmt.Errorf("append product %q: %w", cand.Title, err)
	}
	product.ID = id

	if err := r.cache.Set(ctx, cand.Title, cand.Price); err != nil {
		r.logger.Warn("price cache write failed", zap.String("title", cand.Title), zap.Error(err))
	}
	return product, true, nil
}

// fetchPages streams page outcomes in ascending page order. Workers fetch
// and extract in parallel; a reorder stage buffers out-of-order completions.
// Cancellation stops issuing new pages while in-flight fetches drain.
func (r *Runner) fetchPages(ctx context.Context, settings Settings) <-chan pageOutcome {
	workers := r.cfg.Concurrency
	if workers > settings.LimitPages {
		workers = settings.LimitPages
	}

	nums := make(chan int)
	go func() {
		defer close(nums)
		for n := 1; n <= settings.LimitPages; n++ {
			select {
			case <-ctx.Done():
				return
			case nums <- n:
			}
		}
	}()

	results := make(chan pageOutcome, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range nums {
				select {
				case results <- r.fetchOne(ctx, settings, n):
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	out := make(chan pageOutcome)
	go func() {
		defer close(out)
		pending := make(map[int]pageOutcome)
		next := 1
		for res := range results {
			pending[res.num] = res
			for {
				p, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				next++
				select {
				case out <- p:
				case <-ctx.Done():
					return
				}
			}
		}
		// A canceled run can leave gaps; emit the stragglers in order.
		rest := make([]int, 0, len(pending))
		for n := range pending {
			rest = append(rest, n)
		}
		sort.Ints(rest)
		for _, n := range rest {
			select {
			case out <- pending[n]:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (r *Runner) fetchOne(ctx context.Context, settings Settings, n int) pageOutcome {
	url := pageURL(r.cfg.BaseURL, n)
	body, err := r.fetcher.FetchPage(ctx, url, settings.Proxy)
	if err != nil {
		return pageOutcome{num: n, err: err}
	}
	return pageOutcome{num: n, candidates: r.extractor.Extract(body)}
}

func pageURL(base string, n int) string {
	return fmt.Sprintf("%s/page/%d/", strings.TrimRight(base, "/"), n)
}
