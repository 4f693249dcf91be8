// Command batch-analyze runs one pass over the unscored ad backlog: filter,
// scrape, score, persist, aggregate domain risk. Intended to be cron-driven.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adoralabs/dropwatch/internal/analysis"
	"github.com/adoralabs/dropwatch/internal/browser"
	"github.com/adoralabs/dropwatch/internal/config"
	"github.com/adoralabs/dropwatch/internal/database"
	"github.com/adoralabs/dropwatch/internal/lockfile"
	"github.com/adoralabs/dropwatch/internal/logging"
	"github.com/adoralabs/dropwatch/internal/mailer"
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

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	lock, err := lockfile.Acquire(cfg.Batch.LockFile)
	if err != nil {
		if errors.Is(err, lockfile.ErrAlreadyRunning) {
			slog.Info("previous batch still running, exiting")
			os.Exit(0)
		}
		slog.Error("failed to acquire lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

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

	// Missing credentials degrade to rule-based scoring instead of aborting.
	var client *analysis.Client
	if client, err = analysis.NewClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model); err != nil {
		slog.Warn("gemini unavailable, using rule-based scoring", "error", err)
		client = nil
	}
	scorer := analysis.NewScorer(client, &analysis.ScorerOptions{
		RetryAttempts: cfg.Gemini.RetryAttempts,
		BaseDelay:     cfg.Gemini.BaseDelay,
		CallDelay:     cfg.Gemini.CallDelay,
	})

	orch := orchestrator.New(db, sc, scorer, urlfilter.NewFilter(whitelist), orchestrator.Options{
		BatchSize:  cfg.Batch.BatchSize,
		MaxRuntime: cfg.Batch.MaxRuntime,
	})

	summary, err := orch.Run(ctx)
	if err != nil {
		slog.Error("batch failed", "error", err)
		os.Exit(1)
	}

	m := mailer.New(cfg.Email)
	report := mailer.BatchSummary{
		Processed:    summary.Processed,
		Flagged:      summary.Flagged,
		Skipped:      summary.Skipped,
		ScrapeErrors: summary.ScrapeErrors,
		APIErrors:    summary.APIErrors,
		Elapsed:      summary.Elapsed.Round(time.Second).String(),
	}
	for _, f := range summary.FlaggedSites {
		report.FlaggedSites = append(report.FlaggedSites, mailer.FlaggedSite{
			Domain: f.Domain, Score: f.Score, Reason: f.Reason,
		})
	}
	if err := m.SendBatchSummary(report); err != nil {
		slog.Warn("failed to send summary email", "error", err)
	}
}
