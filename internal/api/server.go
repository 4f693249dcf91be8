// Package api serves the lookup surface: domain risk checks, whitelist
// queries, and on-demand analysis.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/adoralabs/dropwatch/internal/metrics"
	"github.com/adoralabs/dropwatch/internal/models"
	"github.com/adoralabs/dropwatch/internal/urlfilter"
)

// RiskLookup is the read side of the risk store.
type RiskLookup interface {
	LookupDomain(ctx context.Context, domain string) (*models.DomainRisk, error)
}

// Analyzer runs an on-demand scrape and score for one URL.
type Analyzer interface {
	AnalyzeURL(ctx context.Context, rawURL string) (models.Verdict, error)
}

type Server struct {
	risk      RiskLookup
	analyzer  Analyzer
	whitelist *urlfilter.WhitelistIndex
	cache     *Cache
	logger    *slog.Logger
}

// New wires the handler set. analyzer and cache may be nil: without an
// analyzer POST /analyze returns 503, without a cache every check hits the
// database.
func New(risk RiskLookup, analyzer Analyzer, whitelist *urlfilter.WhitelistIndex, cache *Cache) *Server {
	return &Server{
		risk:      risk,
		analyzer:  analyzer,
		whitelist: whitelist,
		cache:     cache,
		logger:    slog.Default().With("component", "api"),
	}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Get("/check", s.handleCheck)
	r.Get("/whitelist/domains", s.handleWhitelistDomains)
	r.Get("/whitelist/check/{domain}", s.handleWhitelistCheck)
	r.Post("/analyze", s.handleAnalyze)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
