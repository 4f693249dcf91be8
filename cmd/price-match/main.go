// Command price-match finds overseas listings for products sold by flagged
// domains. Each product URL is attempted once; -retry-failed re-runs only
// previously failed URLs.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/adoralabs/dropwatch/internal/analysis"
	"github.com/adoralabs/dropwatch/internal/browser"
	"github.com/adoralabs/dropwatch/internal/config"
	"github.com/adoralabs/dropwatch/internal/database"
	"github.com/adoralabs/dropwatch/internal/lockfile"
	"github.com/adoralabs/dropwatch/internal/logging"
	"github.com/adoralabs/dropwatch/internal/mailer"
	"github.com/adoralabs/dropwatch/internal/orchestrator"
	"github.com/adoralabs/dropwatch/internal/scraper"
)

func main() {
	retryFailed := flag.Bool("retry-failed", false, "retry previously failed product URLs instead of new ones")
	lockPath := flag.String("lock", "/tmp/price_match.lock", "lock file path")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging)

	lock, err := lockfile.Acquire(*lockPath)
	if err != nil {
		if errors.Is(err, lockfile.ErrAlreadyRunning) {
			slog.Info("previous run still active, exiting")
			os.Exit(0)
		}
		slog.Error("failed to acquire lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Unlike scoring there is no rule-based fallback here; without grounded
	// search the run can do nothing.
	client, err := analysis.NewClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		slog.Error("gemini client required", "error", err)
		os.Exit(1)
	}

	db, err := database.New(ctx, cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	b := browser.New(&browser.Options{
		Headless:       cfg.Browser.Headless,
		Timeout:        cfg.Browser.NavTimeout,
		ViewportWidth:  1280,
		ViewportHeight: 800,
	})
	if err := b.Start(); err != nil {
		slog.Error("failed to start browser", "error", err)
		os.Exit(1)
	}
	defer b.Stop()

	sc := scraper.New(b, &scraper.Options{
		NavTimeout:  cfg.Browser.NavTimeout,
		SettleDelay: cfg.Browser.SettleDelay,
		HardTimeout: cfg.Batch.ScrapeTimeout,
	})

	matcher := analysis.NewMatcher(client, &analysis.ScorerOptions{
		RetryAttempts: cfg.Gemini.RetryAttempts,
		BaseDelay:     cfg.Gemini.BaseDelay,
		CallDelay:     cfg.Gemini.CallDelay,
	})

	run := orchestrator.NewPriceMatcher(db, sc, matcher, orchestrator.Options{
		MaxRuntime: cfg.Batch.MaxRuntime,
	})

	summary, err := run.Run(ctx, *retryFailed)
	if err != nil {
		slog.Error("price match run failed", "error", err)
		os.Exit(1)
	}

	m := mailer.New(cfg.Email)
	if err := m.SendPriceMatchSummary(summary.Attempted, summary.Matched, summary.Records); err != nil {
		slog.Warn("failed to send summary email", "error", err)
	}
}
