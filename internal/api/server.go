// Package api exposes the HTTP interface for the scraper service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pricewatch/shopcrawl/internal/config"
	"github.com/pricewatch/shopcrawl/internal/metrics"
	"github.com/pricewatch/shopcrawl/internal/scraper"
)

// ScrapeRunner executes one crawl run. Satisfied by *scraper.Runner.
type ScrapeRunner interface {
	Run(ctx context.Context, settings scraper.Settings) (scraper.Result, error)
}

// Server wires HTTP handlers to the runner.
type Server struct {
	router chi.Router
	runner ScrapeRunner
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes. The scrape
// endpoint sits behind bearer-token auth when auth is enabled; health and
// metrics stay open.
func NewServer(runner ScrapeRunner, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		runner: runner,
		cfg:    cfg,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(cfg.RequestTimeout()))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(bearerAuthMiddleware(cfg.Auth.Token))
		}
		r.Post("/scrape", s.scrape)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type scrapeRequest struct {
	LimitPages *int    `json:"limit_pages"`
	Proxy      *string `json:"proxy"`
}

type scrapeResponse struct {
	Accepted int               `json:"accepted"`
	Products []scraper.Product `json:"products"`
}

func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	settings := scraper.Settings{
		LimitPages: s.cfg.Scrape.LimitPages,
		Proxy:      s.cfg.Scrape.Proxy,
	}
	if req.LimitPages != nil {
		settings.LimitPages = *req.LimitPages
	}
	if req.Proxy != nil {
		settings.Proxy = *req.Proxy
	}

	result, err := s.runner.Run(r.Context(), settings)
	if err != nil {
		switch {
		case errors.Is(err, scraper.ErrInvalidSettings):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			writeError(w, http.StatusRequestTimeout, "scrape run canceled")
		default:
			s.logger.Error("scrape run failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "scrape run failed")
		}
		return
	}

	products := result.Accepted
	if products == nil {
		products = []scraper.Product{}
	}
	writeJSON(w, http.StatusOK, scrapeResponse{
		Accepted: len(products),
		Products: products,
	})
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			metrics.ObserveHTTPRequest(r.Method, strconv.Itoa(ww.status))
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// timeoutMiddleware puts a deadline on the request context and leaves the
// response to the handler, so a timed-out scrape run is reported through
// the regular JSON error path.
func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerAuthMiddleware rejects requests without the configured token before
// the core pipeline is ever invoked.
func bearerAuthMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token != expected {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
