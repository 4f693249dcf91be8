package orchestrator

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adoralabs/dropwatch/internal/models"
	"github.com/adoralabs/dropwatch/internal/scraper"
	"github.com/adoralabs/dropwatch/internal/urlfilter"
)

type fakeStore struct {
	ads        []models.Ad
	skipped    []uuid.UUID
	results    map[uuid.UUID]models.Verdict
	upserted   map[string]float64
	deleted    []string
	hadEntries map[string]bool
}

func newFakeStore(ads ...models.Ad) *fakeStore {
	return &fakeStore{
		ads:        ads,
		results:    make(map[uuid.UUID]models.Verdict),
		upserted:   make(map[string]float64),
		hadEntries: make(map[string]bool),
	}
}

func (f *fakeStore) FetchUnscoredAds(_ context.Context, limit, overFetch int) ([]models.Ad, error) {
	n := limit * overFetch
	if n > len(f.ads) {
		n = len(f.ads)
	}
	return f.ads[:n], nil
}

func (f *fakeStore) MarkAdsSkipped(_ context.Context, ids []uuid.UUID) (int64, error) {
	f.skipped = append(f.skipped, ids...)
	return int64(len(ids)), nil
}

func (f *fakeStore) UpdateAdResult(_ context.Context, adID uuid.UUID, verdict models.Verdict) error {
	if verdict.Score == nil {
		return nil
	}
	f.results[adID] = verdict
	return nil
}

func (f *fakeStore) UpsertDomainRisk(_ context.Context, domain string, score float64, _ []string, _ string) error {
	f.upserted[domain] = score
	return nil
}

func (f *fakeStore) DeleteDomainRisk(_ context.Context, domain string) (bool, error) {
	f.deleted = append(f.deleted, domain)
	return f.hadEntries[domain], nil
}

type fakeScraper struct {
	sites map[string]*scraper.SiteData
}

func (f *fakeScraper) Scrape(_ context.Context, url string) *scraper.SiteData {
	if site, ok := f.sites[url]; ok {
		return site
	}
	return &scraper.SiteData{URL: url, PageText: "generic page"}
}

type fakeScorer struct {
	verdicts map[string]models.Verdict
}

func (f *fakeScorer) Score(_ context.Context, site *scraper.SiteData) models.Verdict {
	if v, ok := f.verdicts[site.URL]; ok {
		return v
	}
	score := 0.1
	return models.Verdict{Score: &score, Category: models.CategoryLegit}
}

func score(s float64) *float64 { return &s }

func TestRunFlagsHighScoringDomain(t *testing.T) {
	ad := models.Ad{ID: uuid.New(), DestinationURL: "https://scam-store.com/products/blender", AdvertiserName: "Scam Store"}
	store := newFakeStore(ad)

	scorer := &fakeScorer{verdicts: map[string]models.Verdict{
		ad.DestinationURL: {
			Score:    score(0.85),
			IsRisky:  true,
			Category: models.CategoryDropship,
			Reason:   "same blender on aliexpress at $6",
		},
	}}

	orch := New(store, &fakeScraper{}, scorer, urlfilter.NewFilter(urlfilter.NewWhitelistIndex()), Options{BatchSize: 10})

	summary, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Flagged)
	assert.Equal(t, 0.85, store.upserted["scam-store.com"])
	require.Len(t, summary.FlaggedSites, 1)
	assert.Equal(t, "scam-store.com", summary.FlaggedSites[0].Domain)
}

func TestRunClearsDomainOnLowRescore(t *testing.T) {
	ad := models.Ad{ID: uuid.New(), DestinationURL: "https://recovered-store.com/products/chair"}
	store := newFakeStore(ad)
	store.hadEntries["recovered-store.com"] = true

	scorer := &fakeScorer{verdicts: map[string]models.Verdict{
		ad.DestinationURL: {Score: score(0.2), Category: models.CategoryLegit},
	}}

	orch := New(store, &fakeScraper{}, scorer, urlfilter.NewFilter(urlfilter.NewWhitelistIndex()), Options{BatchSize: 10})

	summary, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Flagged)
	assert.Empty(t, store.upserted)
	assert.Equal(t, []string{"recovered-store.com"}, store.deleted)
}

func TestRunMarksFilteredAdsSkipped(t *testing.T) {
	facebook := models.Ad{ID: uuid.New(), DestinationURL: "https://www.facebook.com/some.page/posts/1"}
	listed := models.Ad{ID: uuid.New(), DestinationURL: "https://trusted.co.il/products/chair"}
	real := models.Ad{ID: uuid.New(), DestinationURL: "https://unknown-store.com/products/chair"}
	store := newFakeStore(facebook, listed, real)

	filter := urlfilter.NewFilter(urlfilter.NewWhitelistIndex("trusted.co.il"))
	orch := New(store, &fakeScraper{}, &fakeScorer{}, filter, Options{BatchSize: 10})

	summary, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Skipped)
	assert.ElementsMatch(t, []uuid.UUID{facebook.ID, listed.ID}, store.skipped)
	assert.Equal(t, 1, summary.Processed)
	assert.Contains(t, store.results, real.ID)
}

func TestRunScrapeErrorStoresSentinel(t *testing.T) {
	ad := models.Ad{ID: uuid.New(), DestinationURL: "https://dead-site.com/products/gone"}
	store := newFakeStore(ad)

	sc := &fakeScraper{sites: map[string]*scraper.SiteData{
		ad.DestinationURL: {URL: ad.DestinationURL, Error: "navigation failed: net::ERR_NAME_NOT_RESOLVED"},
	}}

	orch := New(store, sc, &fakeScorer{}, urlfilter.NewFilter(urlfilter.NewWhitelistIndex()), Options{BatchSize: 10})

	summary, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ScrapeErrors)
	verdict := store.results[ad.ID]
	require.NotNil(t, verdict.Score)
	assert.Equal(t, models.ScrapeErrorScore, *verdict.Score)
	assert.Equal(t, models.CategoryScrapeError, verdict.Category)

	// A sentinel is terminal but never feeds the risk aggregate.
	assert.Empty(t, store.upserted)
	assert.Empty(t, store.deleted)
}

func TestRunAPIErrorLeavesAdUnscored(t *testing.T) {
	ad := models.Ad{ID: uuid.New(), DestinationURL: "https://flaky-api.com/products/widget"}
	store := newFakeStore(ad)

	scorer := &fakeScorer{verdicts: map[string]models.Verdict{
		ad.DestinationURL: {Category: models.CategoryAPIError, Reason: "quota exceeded"},
	}}

	orch := New(store, &fakeScraper{}, scorer, urlfilter.NewFilter(urlfilter.NewWhitelistIndex()), Options{BatchSize: 10})

	summary, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.APIErrors)
	assert.NotContains(t, store.results, ad.ID)
	assert.Empty(t, store.upserted)
}

func TestRunBatchSizeCap(t *testing.T) {
	var ads []models.Ad
	for i := 0; i < 30; i++ {
		ads = append(ads, models.Ad{ID: uuid.New(), DestinationURL: "https://store.example.com/products/item"})
	}
	store := newFakeStore(ads...)

	orch := New(store, &fakeScraper{}, &fakeScorer{}, urlfilter.NewFilter(urlfilter.NewWhitelistIndex()), Options{BatchSize: 5})

	summary, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Processed)
}

func TestAnalyzeURLSkipsFilteredURL(t *testing.T) {
	store := newFakeStore()
	orch := New(store, &fakeScraper{}, &fakeScorer{}, urlfilter.NewFilter(urlfilter.NewWhitelistIndex()), Options{})

	verdict, err := orch.AnalyzeURL(context.Background(), "https://www.facebook.com/some.page/posts/1")
	require.NoError(t, err)
	assert.Equal(t, models.CategorySkipped, verdict.Category)
	require.NotNil(t, verdict.Score)
	assert.Zero(t, *verdict.Score)
}

func TestAnalyzeURLFlagsDomain(t *testing.T) {
	url := "https://scam-store.com/products/blender"
	store := newFakeStore()
	scorer := &fakeScorer{verdicts: map[string]models.Verdict{
		url: {Score: score(0.9), IsRisky: true, Category: models.CategoryDropship},
	}}

	orch := New(store, &fakeScraper{}, scorer, urlfilter.NewFilter(urlfilter.NewWhitelistIndex()), Options{})

	verdict, err := orch.AnalyzeURL(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryDropship, verdict.Category)
	assert.Equal(t, 0.9, store.upserted["scam-store.com"])
}
