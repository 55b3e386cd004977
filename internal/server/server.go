// Package server exposes the lookup and scraping pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/model"
	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/ratelimit"
	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/store"
)

// LookupService resolves an email to a LinkedIn profile URL.
type LookupService interface {
	Lookup(ctx context.Context, req model.LookupRequest) model.LookupResult
}

// ScrapeService scrapes LinkedIn profiles through the actor runner.
type ScrapeService interface {
	Scrape(ctx context.Context, linkedinURL, pool string) model.ScrapeResult
	ScrapeBulk(ctx context.Context, urls []string, pool string) model.BulkScrapeResult
}

// UsageReporter reports per-pool daily scrape usage.
type UsageReporter interface {
	Stats(ctx context.Context) (map[string]ratelimit.PoolStats, error)
}

// StatsStore reports subscriber coverage counts.
type StatsStore interface {
	SubscriberStats(ctx context.Context) (*store.SubscriberStats, error)
}

// Config tunes the HTTP server.
type Config struct {
	Port           int
	APIKey         string
	AllowedOrigins []string
}

// Deps are the services the server fronts. Lookup is required; the rest
// may be nil, which turns the corresponding routes into 503s.
type Deps struct {
	Lookup  LookupService
	Scraper ScrapeService
	Usage   UsageReporter
	Stats   StatsStore
}

// Server is the HTTP API for the lookup and scraping pipeline.
type Server struct {
	router *chi.Mux
	server *http.Server
	cfg    Config
	deps   Deps
}

// New creates a Server and registers its routes.
func New(cfg Config, deps Deps) *Server {
	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		deps:   deps,
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(middleware.RealIP)
	s.router.Use(RequestID)
	s.router.Use(RequestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", APIKeyHeader, RequestIDHeader},
		MaxAge:         300,
	}))

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(APIKey(cfg.APIKey))

		r.Get("/lookup/{email}", s.handleLookup)
		r.Post("/lookup", s.handleLookupPost)
		r.Post("/scraper/profile", s.handleScrape)
		r.Post("/scraper/bulk", s.handleScrapeBulk)
		r.Get("/scraper/stats", s.handleScraperStats)
		r.Get("/subscribers/stats", s.handleSubscriberStats)
	})

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout: 30 * time.Second,
		// Bulk scrapes hold the response for the full actor wait.
		WriteTimeout: 20 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	zap.L().Info("starting server", zap.Int("port", s.cfg.Port))
	return s.server.ListenAndServe()
}

// Shutdown stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	zap.L().Info("shutting down server")
	return s.server.Shutdown(ctx)
}
