package scraper

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeFetcher struct {
	mu        sync.Mutex
	urls      []string
	proxies   []string
	failPages map[int]error
}

func (f *fakeFetcher) FetchPage(_ context.Context, url string, proxy string) ([]byte, error) {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.proxies = append(f.proxies, proxy)
	f.mu.Unlock()

	n := pageNumFromURL(url)
	if err, ok := f.failPages[n]; ok {
		return nil, err
	}
	return []byte(fmt.Sprintf("page-%d", n)), nil
}

func pageNumFromURL(url string) int {
	trimmed := strings.TrimSuffix(url, "/")
	n, _ := strconv.Atoi(trimmed[strings.LastIndex(trimmed, "/")+1:])
	return n
}

// fakeExtractor maps raw page bodies to preset candidates.
type fakeExtractor struct {
	pages map[string][]Candidate
}

func (e *fakeExtractor) Extract(page []byte) []Candidate {
	return e.pages[string(page)]
}

type fakeCache struct {
	mu     sync.Mutex
	prices map[string]float64
	getErr error
	setErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{prices: make(map[string]float64)}
}

func (c *fakeCache) Get(_ context.Context, title string) (float64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return 0, false, c.getErr
	}
	price, ok := c.prices[title]
	return price, ok, nil
}

func (c *fakeCache) Set(_ context.Context, title string, price float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.prices[title] = price
	return nil
}

func (c *fakeCache) Close() error { return nil }

func (c *fakeCache) cached(title string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	price, ok := c.prices[title]
	return price, ok
}

type fakeStore struct {
	mu        sync.Mutex
	appended  []Product
	nextID    int64
	appendErr error
}

func (s *fakeStore) Append(_ context.Context, p Product) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return 0, s.appendErr
	}
	s.nextID++
	s.appended = append(s.appended, p)
	return s.nextID, nil
}

func (s *fakeStore) Close() error { return nil }

type fakeImages struct {
	mu      sync.Mutex
	saved   []string
	saveErr error
}

func (f *fakeImages) Save(_ context.Context, imageURL string, title string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.saved = append(f.saved, imageURL)
	return "images/" + strings.ToLower(strings.ReplaceAll(title, " ", "_")) + ".jpg", nil
}

type fakeExporter struct {
	mu       sync.Mutex
	exported [][]Product
	err      error
}

func (e *fakeExporter) Export(products []Product) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.exported = append(e.exported, products)
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *fakeNotifier) Notify(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

type runnerFixture struct {
	fetcher   *fakeFetcher
	extractor *fakeExtractor
	cache     *fakeCache
	store     *fakeStore
	images    *fakeImages
	exporter  *fakeExporter
	notifier  *fakeNotifier
}

func newFixture() *runnerFixture {
	return &runnerFixture{
		fetcher:   &fakeFetcher{failPages: make(map[int]error)},
		extractor: &fakeExtractor{pages: make(map[string][]Candidate)},
		cache:     newFakeCache(),
		store:     &fakeStore{},
		images:    &fakeImages{},
		exporter:  &fakeExporter{},
		notifier:  &fakeNotifier{},
	}
}

func (f *runnerFixture) runner(cfg RunnerConfig) *Runner {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://shop.example.com"
	}
	return NewRunner(
		f.fetcher, f.extractor, f.cache, f.store, f.images,
		f.exporter, f.notifier, cfg, zap.NewNop(),
	)
}

func TestRun_RejectsInvalidSettings(t *testing.T) {
	t.Parallel()

	f := newFixture()
	_, err := f.runner(RunnerConfig{}).Run(context.Background(), Settings{LimitPages: 0})
	require.ErrorIs(t, err, ErrInvalidSettings)
	require.Empty(t, f.fetcher.urls)
}

func TestRun_AcceptsNewTitles(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.extractor.pages["page-1"] = []Candidate{
		{Title: "Widget A", Price: 10, ImageURL: "https://cdn/a.jpg"},
		{Title: "Widget B", Price: 20, ImageURL: "https://cdn/b.jpg"},
	}

	result, err := f.runner(RunnerConfig{}).Run(context.Background(), Settings{LimitPages: 1})
	require.NoError(t, err)
	require.Len(t, result.Accepted, 2)
	require.Equal(t, "Widget A", result.Accepted[0].Title)
	require.Equal(t, int64(1), result.Accepted[0].ID)
	require.Equal(t, "images/widget_a.jpg", result.Accepted[0].ImagePath)
	require.Equal(t, 2, result.Counters.Extracted)
	require.Equal(t, 0, result.Counters.Skipped)

	price, ok := f.cache.cached("Widget B")
	require.True(t, ok)
	require.Equal(t, 20.0, price)
}

func TestRun_SkipsUnchangedCachedPrice(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.cache.prices["Widget B"] = 20
	f.extractor.pages["page-1"] = []Candidate{
		{Title: "Widget A", Price: 10},
		{Title: "Widget B", Price: 20},
	}

	result, err := f.runner(RunnerConfig{}).Run(context.Background(), Settings{LimitPages: 1})
	require.NoError(t, err)
	require.Len(t, result.Accepted, 1)
	require.Equal(t, "Widget A", result.Accepted[0].Title)
	require.Equal(t, 1, result.Counters.Skipped)
	require.Len(t, f.store.appended, 1)
}

func TestRun_ReacceptsChangedPrice(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.cache.prices["Widget B"] = 18
	f.extractor.pages["page-1"] = []Candidate{{Title: "Widget B", Price: 20}}

	result, err := f.runner(RunnerConfig{}).Run(context.Background(), Settings{LimitPages: 1})
	require.NoError(t, err)
	require.Len(t, result.Accepted, 1)

	price, ok := f.cache.cached("Widget B")
	require.True(t, ok)
	require.Equal(t, 20.0, price)
}

func TestRun_VisitsPagesInBound(t *testing.T) {
	t.Parallel()

	f := newFixture()
	result, err := f.runner(RunnerConfig{BaseURL: "https://shop.example.com/"}).
		Run(context.Background(), Settings{LimitPages: 3, Proxy: "http://proxy:8080"})
	require.NoError(t, err)
	require.Equal(t, 3, result.Counters.PagesFetched)

	require.ElementsMatch(t, []string{
		"https://shop.example.com/page/1/",
		"https://shop.example.com/page/2/",
		"https://shop.example.com/page/3/",
	}, f.fetcher.urls)
	for _, proxy := range f.fetcher.proxies {
		require.Equal(t, "http://proxy:8080", proxy)
	}
}

func TestRun_FailedPageIsSkippedNotFatal(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.fetcher.failPages[2] = errors.New("fetch exhausted")
	f.extractor.pages["page-1"] = []Candidate{{Title: "From Page 1", Price: 1}}
	f.extractor.pages["page-3"] = []Candidate{{Title: "From Page 3", Price: 3}}

	result, err := f.runner(RunnerConfig{}).Run(context.Background(), Settings{LimitPages: 3})
	require.NoError(t, err)
	require.Equal(t, 2, result.Counters.PagesFetched)
	require.Equal(t, 1, result.Counters.PagesFailed)
	require.Len(t, result.Accepted, 2)
}

func TestRun_StoreFailureAbortsRun(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.store.appendErr = errors.New("disk full")
	f.extractor.pages["page-1"] = []Candidate{{Title: "Widget A", Price: 10}}

	_, err := f.runner(RunnerConfig{}).Run(context.Background(), Settings{LimitPages: 1})
	require.Error(t, err)
	require.Contains(t, err.Error(), `append product "Widget A"`)

	// The price must not be cached when the write failed.
	_, ok := f.cache.cached("Widget A")
	require.False(t, ok)
	require.Empty(t, f.exporter.exported)
	require.Empty(t, f.notifier.messages)
}

func TestRun_StoreFailureTearsDownPipeline(t *testing.T) {
	f := newFixture()
	f.store.appendErr = errors.New("disk full")
	for n := 1; n <= 6; n++ {
		f.extractor.pages[fmt.Sprintf("page-%d", n)] = []Candidate{
			{Title: fmt.Sprintf("Item %d", n), Price: float64(n)},
		}
	}
	runner := f.runner(RunnerConfig{Concurrency: 2})

	before := runtime.NumGoroutine()
	for i := 0; i < 20; i++ {
		_, err := runner.Run(context.Background(), Settings{LimitPages: 6})
		require.Error(t, err)
	}
	// The producer, workers and reorder goroutine must all exit once the
	// run aborts; repeated failed runs must not accumulate goroutines.
	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+5
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRun_ImageFailureDegradesToSentinel(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.images.saveErr = errors.New("image host down")
	f.extractor.pages["page-1"] = []Candidate{{Title: "Widget A", Price: 10, ImageURL: "https://cdn/a.jpg"}}

	result, err := f.runner(RunnerConfig{}).Run(context.Background(), Settings{LimitPages: 1})
	require.NoError(t, err)
	require.Len(t, result.Accepted, 1)
	require.Equal(t, NoImageFound, result.Accepted[0].ImagePath)
	require.Len(t, f.store.appended, 1)
	require.Equal(t, NoImageFound, f.store.appended[0].ImagePath)
}

func TestRun_MissingImageURLSkipsDownload(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.extractor.pages["page-1"] = []Candidate{{Title: "Widget A", Price: 10}}

	result, err := f.runner(RunnerConfig{}).Run(context.Background(), Settings{LimitPages: 1})
	require.NoError(t, err)
	require.Equal(t, NoImageFound, result.Accepted[0].ImagePath)
	require.Empty(t, f.images.saved)
}

func TestRun_CacheReadErrorTreatsTitleAsUnseen(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.cache.getErr = errors.New("cache unavailable")
	f.extractor.pages["page-1"] = []Candidate{{Title: "Widget A", Price: 10}}

	result, err := f.runner(RunnerConfig{}).Run(context.Background(), Settings{LimitPages: 1})
	require.NoError(t, err)
	require.Len(t, result.Accepted, 1)
}

func TestRun_ExportAndNotifyAfterCompletion(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.extractor.pages["page-1"] = []Candidate{
		{Title: "Widget A", Price: 10},
		{Title: "Widget B", Price: 20},
	}

	_, err := f.runner(RunnerConfig{}).Run(context.Background(), Settings{LimitPages: 1})
	require.NoError(t, err)
	require.Len(t, f.exporter.exported, 1)
	require.Len(t, f.exporter.exported[0], 2)
	require.Equal(t, []string{"Scraped 2 products."}, f.notifier.messages)
}

func TestRun_ExportFailureIsFatal(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.exporter.err = errors.New("read-only filesystem")

	_, err := f.runner(RunnerConfig{}).Run(context.Background(), Settings{LimitPages: 1})
	require.Error(t, err)
	require.Contains(t, err.Error(), "export run results")
	require.Empty(t, f.notifier.messages)
}

func TestRun_ConcurrentFetchPreservesPageOrder(t *testing.T) {
	t.Parallel()

	f := newFixture()
	const pages = 8
	for n := 1; n <= pages; n++ {
		f.extractor.pages[fmt.Sprintf("page-%d", n)] = []Candidate{
			{Title: fmt.Sprintf("Item %02d", n), Price: float64(n)},
		}
	}

	result, err := f.runner(RunnerConfig{Concurrency: 3}).
		Run(context.Background(), Settings{LimitPages: pages})
	require.NoError(t, err)
	require.Len(t, result.Accepted, pages)
	for i, p := range result.Accepted {
		require.Equal(t, fmt.Sprintf("Item %02d", i+1), p.Title)
	}
}

func TestRun_CanceledContext(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.runner(RunnerConfig{}).Run(ctx, Settings{LimitPages: 5})
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPageURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://x.test/shop/page/1/", pageURL("https://x.test/shop/", 1))
	require.Equal(t, "https://x.test/shop/page/12/", pageURL("https://x.test/shop", 12))
}
