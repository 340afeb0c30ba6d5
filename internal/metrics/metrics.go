// Package metrics exposes Prometheus collectors for the scraper service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scraperPagesTotal         *prometheus.CounterVec
	scraperFetchRetriesTotal  prometheus.Counter
	scraperCandidatesTotal    *prometheus.CounterVec
	scraperRunDurationSeconds prometheus.Histogram
	httpRequestsTotal         *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scraperPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_pages_total",
				Help: "Total catalog pages processed, labeled by outcome (fetched/failed).",
			},
			[]string{"outcome"},
		)

		scraperFetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_fetch_retries_total",
				Help: "Total page fetch retry attempts after a transport failure or non-200.",
			},
		)

		scraperCandidatesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_candidates_total",
				Help: "Total extracted product candidates, labeled by decision (accepted/skipped).",
			},
			[]string{"decision"},
		)

		scraperRunDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scraper_run_duration_seconds",
				Help:    "Histogram of full crawl run durations.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total API requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage increments the page counter for the given outcome.
func ObservePage(outcome string) {
	if scraperPagesTotal != nil {
		scraperPagesTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveFetchRetry counts one retry attempt.
func ObserveFetchRetry() {
	if scraperFetchRetriesTotal != nil {
		scraperFetchRetriesTotal.Inc()
	}
}

// ObserveCandidate increments the candidate counter for the given decision.
func ObserveCandidate(decision string) {
	if scraperCandidatesTotal != nil {
		scraperCandidatesTotal.WithLabelValues(decision).Inc()
	}
}

// ObserveRunDuration records the duration of a completed run.
func ObserveRunDuration(d time.Duration) {
	if scraperRunDurationSeconds != nil {
		scraperRunDurationSeconds.Observe(d.Seconds())
	}
}

// ObserveHTTPRequest increments the API request counter.
func ObserveHTTPRequest(method string, code string) {
	if httpRequestsTotal != nil {
		httpRequestsTotal.WithLabelValues(method, code).Inc()
	}
}
