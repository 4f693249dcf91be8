package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/adoralabs/dropwatch/internal/analysis"
	"github.com/adoralabs/dropwatch/internal/database"
	"github.com/adoralabs/dropwatch/internal/models"
)

// MatchStore is the persistence surface the price-match run needs.
type MatchStore interface {
	EligiblePriceMatchTargets(ctx context.Context, retryFailed bool) ([]database.PriceMatchTarget, error)
	AppendPriceMatch(ctx context.Context, riskID uuid.UUID, record models.PriceMatchRecord) error
	AppendPriceMatchFailure(ctx context.Context, riskID uuid.UUID, failure models.PriceMatchFailure) error
}

// Matcher runs the two LLM stages of a price match.
type Matcher interface {
	ExtractProductInfo(ctx context.Context, pageText string) (*analysis.ProductInfo, error)
	SearchCheaper(ctx context.Context, info *analysis.ProductInfo) (*analysis.SearchResult, error)
}

// PriceSummary reports one price-match run.
type PriceSummary struct {
	Attempted int
	Matched   int
	Records   []models.PriceMatchRecord
	Elapsed   time.Duration
}

type PriceMatcher struct {
	store   MatchStore
	scraper Scraper
	matcher Matcher
	opts    Options
	logger  *slog.Logger
}

func NewPriceMatcher(store MatchStore, sc Scraper, matcher Matcher, opts Options) *PriceMatcher {
	if opts.MaxRuntime <= 0 {
		opts.MaxRuntime = time.Hour
	}
	return &PriceMatcher{
		store:   store,
		scraper: sc,
		matcher: matcher,
		opts:    opts,
		logger:  slog.Default().With("component", "price_match_run"),
	}
}

// Run price-matches every eligible flagged domain once. Each product URL is
// attempted at most once per mode: outcomes land in the match or failure
// history and the eligibility query excludes both, so re-running without new
// ad data is a no-op.
func (p *PriceMatcher) Run(ctx context.Context, retryFailed bool) (*PriceSummary, error) {
	start := time.Now()
	deadline := start.Add(p.opts.MaxRuntime)
	summary := &PriceSummary{}

	targets, err := p.store.EligiblePriceMatchTargets(ctx, retryFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch targets: %w", err)
	}
	p.logger.Info("price match targets", "count", len(targets), "retry_failed", retryFailed)

	for _, t := range targets {
		if time.Now().After(deadline) {
			p.logger.Warn("runtime budget exhausted", "remaining", len(targets)-summary.Attempted)
			break
		}
		if ctx.Err() != nil {
			break
		}

		summary.Attempted++
		record, failure := p.matchOne(ctx, t)
		if failure != nil {
			if err := p.store.AppendPriceMatchFailure(ctx, t.RiskID, *failure); err != nil {
				p.logger.Error("failed to record failure", "domain", t.Domain, "error", err)
			}
			continue
		}

		if err := p.store.AppendPriceMatch(ctx, t.RiskID, *record); err != nil {
			p.logger.Error("failed to record match", "domain", t.Domain, "error", err)
			continue
		}
		summary.Matched++
		summary.Records = append(summary.Records, *record)
	}

	summary.Elapsed = time.Since(start)
	p.logger.Info("price match finished",
		"attempted", summary.Attempted, "matched", summary.Matched, "elapsed", summary.Elapsed)
	return summary, nil
}

// matchOne runs the scrape/extract/search stages for one target. Exactly one
// of record or failure is non-nil; the failure names the stage that broke so
// the retry mode and operators can tell transient from structural.
func (p *PriceMatcher) matchOne(ctx context.Context, t database.PriceMatchTarget) (*models.PriceMatchRecord, *models.PriceMatchFailure) {
	logger := p.logger.With("domain", t.Domain, "url", t.ProductURL)

	if analysis.BadProductURL(t.ProductURL) {
		return nil, &models.PriceMatchFailure{
			ProductURL: t.ProductURL,
			Stage:      "scrape",
			Reason:     "unusable product URL (shortener or listing page)",
		}
	}

	site := p.scraper.Scrape(ctx, t.ProductURL)
	if site.Error != "" {
		logger.Warn("scrape failed", "error", site.Error)
		return nil, &models.PriceMatchFailure{
			ProductURL: t.ProductURL, Stage: "scrape", Reason: site.Error,
		}
	}

	info, err := p.matcher.ExtractProductInfo(ctx, site.PageText)
	if err != nil {
		logger.Warn("extraction failed", "error", err)
		return nil, &models.PriceMatchFailure{
			ProductURL: t.ProductURL, Stage: "extract", Reason: err.Error(),
		}
	}

	result, err := p.matcher.SearchCheaper(ctx, info)
	if err != nil {
		logger.Warn("search failed", "error", err)
		return nil, &models.PriceMatchFailure{
			ProductURL: t.ProductURL, Stage: "search", Reason: err.Error(),
		}
	}
	if len(result.Matches) == 0 {
		return nil, &models.PriceMatchFailure{
			ProductURL: t.ProductURL, Stage: "search", Reason: "no comparable listings found",
		}
	}

	logger.Info("price match found",
		"product", info.ProductNameEnglish, "price_ils", info.PriceILS,
		"matches", len(result.Matches), "markup", analysis.Markup(info.PriceILS, result.Matches))

	return &models.PriceMatchRecord{
		ProductURL:         t.ProductURL,
		ProductNameEnglish: info.ProductNameEnglish,
		PriceILS:           info.PriceILS,
		Matches:            result.Matches,
		SearchQueryUsed:    result.SearchQueryUsed,
	}, nil
}
