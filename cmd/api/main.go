// Command api serves the domain lookup API consumed by the browser
// extension: risk checks, whitelist queries, and on-demand analysis.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/adoralabs/dropwatch/internal/analysis"
	"github.com/adoralabs/dropwatch/internal/api"
	"github.com/adoralabs/dropwatch/internal/browser"
	"github.com/adoralabs/dropwatch/internal/config"
	"github.com/adoralabs/dropwatch/internal/database"
	"github.com/adoralabs/dropwatch/internal/logging"
	"github.com/adoralabs/dropwatch/internal/orchestrator"
	"github.com/adoralabs/dropwatch/internal/scraper"
	"github.com/adoralabs/dropwatch/internal/urlfilter"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	whitelist, err := urlfilter.LoadWhitelist(cfg.DataDir)
	if err != nil {
		slog.Error("failed to load whitelist", "error", err)
		os.Exit(1)
	}

	var cache *api.Cache
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, lookups are uncached", "error", err)
	} else {
		cache = api.NewCache(rdb, cfg.Redis.CacheTTL)
	}

	analyzer, cleanup := buildAnalyzer(ctx, cfg, db, whitelist)
	defer cleanup()

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      api.New(db, analyzer, whitelist, cache).Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		slog.Info("api listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
}

// buildAnalyzer wires the on-demand analysis path. It needs both browser and
// model credentials; without either the endpoint stays disabled and the rest
// of the API works normally.
func buildAnalyzer(ctx context.Context, cfg *config.Config, db *database.DB, whitelist *urlfilter.WhitelistIndex) (api.Analyzer, func()) {
	client, err := analysis.NewClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		slog.Warn("on-demand analysis disabled", "error", err)
		return nil, func() {}
	}

	b := browser.New(&browser.Options{
		Headless:       cfg.Browser.Headless,
		Timeout:        cfg.Browser.NavTimeout,
		ViewportWidth:  1280,
		ViewportHeight: 800,
	})
	if err := b.Start(); err != nil {
		slog.Warn("on-demand analysis disabled, browser failed to start", "error", err)
		return nil, func() {}
	}

	sc := scraper.New(b, &scraper.Options{
		NavTimeout:  cfg.Browser.NavTimeout,
		SettleDelay: cfg.Browser.SettleDelay,
		HardTimeout: cfg.Batch.ScrapeTimeout,
	})
	scorer := analysis.NewScorer(client, &analysis.ScorerOptions{
		RetryAttempts: cfg.Gemini.RetryAttempts,
		BaseDelay:     cfg.Gemini.BaseDelay,
		CallDelay:     cfg.Gemini.CallDelay,
	})

	orch := orchestrator.New(db, sc, scorer, urlfilter.NewFilter(whitelist), orchestrator.Options{
		BatchSize:  cfg.Batch.BatchSize,
		MaxRuntime: cfg.Batch.MaxRuntime,
	})
	return orch, func() { _ = b.Stop() }
}
