// Package orchestrator sequences the batch pipeline: fetch unscored ads,
// filter, scrape, score, persist, aggregate domain risk.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/adoralabs/dropwatch/internal/models"
	"github.com/adoralabs/dropwatch/internal/scraper"
	"github.com/adoralabs/dropwatch/internal/urlfilter"
)

// overFetchFactor pads the candidate query so skip filtering still leaves a
// full batch.
const overFetchFactor = 5

// Store is the persistence surface the batch loop needs.
type Store interface {
	FetchUnscoredAds(ctx context.Context, limit, overFetch int) ([]models.Ad, error)
	MarkAdsSkipped(ctx context.Context, ids []uuid.UUID) (int64, error)
	UpdateAdResult(ctx context.Context, adID uuid.UUID, verdict models.Verdict) error
	UpsertDomainRisk(ctx context.Context, domain string, score float64, evidence []string, advertiserName string) error
	DeleteDomainRisk(ctx context.Context, domain string) (bool, error)
}

// Scraper fetches structured data for one URL.
type Scraper interface {
	Scrape(ctx context.Context, url string) *scraper.SiteData
}

// Scorer turns scraped data into a verdict.
type Scorer interface {
	Score(ctx context.Context, site *scraper.SiteData) models.Verdict
}

type Options struct {
	BatchSize  int
	MaxRuntime time.Duration
}

// Summary is what one batch run reports.
type Summary struct {
	Processed    int
	Flagged      int
	Skipped      int
	ScrapeErrors int
	APIErrors    int
	Elapsed      time.Duration
	FlaggedSites []FlaggedSite
}

type FlaggedSite struct {
	Domain string
	Score  float64
	Reason string
}

type Orchestrator struct {
	store   Store
	scraper Scraper
	scorer  Scorer
	filter  *urlfilter.Filter
	opts    Options
	logger  *slog.Logger
}

func New(store Store, sc Scraper, scorer Scorer, filter *urlfilter.Filter, opts Options) *Orchestrator {
	if opts.BatchSize < 1 {
		opts.BatchSize = 10
	}
	if opts.MaxRuntime <= 0 {
		opts.MaxRuntime = time.Hour
	}
	return &Orchestrator{
		store:   store,
		scraper: sc,
		scorer:  scorer,
		filter:  filter,
		opts:    opts,
		logger:  slog.Default().With("component", "orchestrator"),
	}
}

// Run processes one batch of unscored ads sequentially. A wall-clock budget
// bounds the whole run; ads left unprocessed when the budget expires stay
// unscored and are picked up next time.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	deadline := start.Add(o.opts.MaxRuntime)
	summary := &Summary{}

	candidates, err := o.store.FetchUnscoredAds(ctx, o.opts.BatchSize, overFetchFactor)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidates: %w", err)
	}
	if len(candidates) == 0 {
		o.logger.Info("no unscored ads")
		summary.Elapsed = time.Since(start)
		return summary, nil
	}

	batch, skippedIDs := o.partition(candidates)

	if len(skippedIDs) > 0 {
		n, err := o.store.MarkAdsSkipped(ctx, skippedIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to mark skipped ads: %w", err)
		}
		summary.Skipped = int(n)
		o.logger.Info("skipped filtered ads", "count", n)
	}

	for _, ad := range batch {
		if time.Now().After(deadline) {
			o.logger.Warn("runtime budget exhausted", "remaining", len(batch)-summary.Processed)
			break
		}
		if ctx.Err() != nil {
			break
		}

		o.processAd(ctx, ad, summary)
	}

	summary.Elapsed = time.Since(start)
	o.logger.Info("batch finished",
		"processed", summary.Processed, "flagged", summary.Flagged,
		"skipped", summary.Skipped, "scrape_errors", summary.ScrapeErrors,
		"api_errors", summary.APIErrors, "elapsed", summary.Elapsed)
	return summary, nil
}

// partition splits candidates into a batch of scrapeable ads (capped at
// BatchSize) and the IDs of everything filtered out along the way.
func (o *Orchestrator) partition(candidates []models.Ad) ([]models.Ad, []uuid.UUID) {
	var batch []models.Ad
	var skipped []uuid.UUID

	for _, ad := range candidates {
		if o.filter.ShouldSkip(ad.DestinationURL) {
			skipped = append(skipped, ad.ID)
			continue
		}
		if len(batch) < o.opts.BatchSize {
			batch = append(batch, ad)
		}
	}
	return batch, skipped
}

func (o *Orchestrator) processAd(ctx context.Context, ad models.Ad, summary *Summary) {
	logger := o.logger.With("ad_id", ad.ID, "url", ad.DestinationURL)
	logger.Info("processing ad")

	site := o.scraper.Scrape(ctx, ad.DestinationURL)

	var verdict models.Verdict
	if site.Error != "" {
		// Terminal: a URL that cannot be scraped today will not scrape
		// tomorrow either. The sentinel keeps it out of the backlog without
		// reading as a safe score.
		score := models.ScrapeErrorScore
		verdict = models.Verdict{
			Score:    &score,
			Category: models.CategoryScrapeError,
			Reason:   site.Error,
		}
		summary.ScrapeErrors++
		logger.Warn("scrape failed", "error", site.Error)
	} else {
		verdict = o.scorer.Score(ctx, site)
		if verdict.Score == nil {
			summary.APIErrors++
		}
	}

	if err := o.store.UpdateAdResult(ctx, ad.ID, verdict); err != nil {
		logger.Error("failed to persist verdict", "error", err)
		return
	}
	summary.Processed++

	o.applyRiskPolicy(ctx, ad, verdict, summary, logger)
}

// AnalyzeURL runs the scrape/score/aggregate path for one URL outside the
// batch, for on-demand requests. The result is not tied to an ad row; only
// the domain aggregate is updated.
func (o *Orchestrator) AnalyzeURL(ctx context.Context, rawURL string) (models.Verdict, error) {
	if o.filter.ShouldSkip(rawURL) {
		score := 0.0
		return models.Verdict{
			Score:    &score,
			Category: models.CategorySkipped,
			Reason:   "Filtered by skip patterns or whitelist",
		}, nil
	}

	site := o.scraper.Scrape(ctx, rawURL)
	if site.Error != "" {
		return models.Verdict{}, fmt.Errorf("scrape failed: %s", site.Error)
	}

	verdict := o.scorer.Score(ctx, site)
	if verdict.Score == nil {
		return models.Verdict{}, fmt.Errorf("scoring failed: %s", verdict.Reason)
	}

	summary := &Summary{}
	o.applyRiskPolicy(ctx, models.Ad{DestinationURL: rawURL}, verdict, summary, o.logger)
	return verdict, nil
}

// applyRiskPolicy maintains the domain aggregate. Scores at or above the
// threshold flag the domain; a real verdict below it triggers the explicit
// corrective delete, the only path that ever clears a flagged domain.
func (o *Orchestrator) applyRiskPolicy(ctx context.Context, ad models.Ad, verdict models.Verdict, summary *Summary, logger *slog.Logger) {
	if !verdict.HasScore() {
		return
	}

	domain := urlfilter.Domain(ad.DestinationURL)
	if domain == "" {
		return
	}
	score := *verdict.Score

	if score >= models.RiskThreshold {
		if err := o.store.UpsertDomainRisk(ctx, domain, score, verdict.Evidence, ad.AdvertiserName); err != nil {
			logger.Error("failed to upsert domain risk", "error", err)
			return
		}
		summary.Flagged++
		summary.FlaggedSites = append(summary.FlaggedSites, FlaggedSite{
			Domain: domain, Score: score, Reason: verdict.Reason,
		})
		logger.Info("domain flagged", "domain", domain, "score", score, "category", verdict.Category)
		return
	}

	deleted, err := o.store.DeleteDomainRisk(ctx, domain)
	if err != nil {
		logger.Error("failed to clear domain risk", "error", err)
		return
	}
	if deleted {
		logger.Info("domain cleared after re-analysis", "domain", domain, "score", score)
	}
}
