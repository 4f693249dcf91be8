package database

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adoralabs/dropwatch/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := New(context.Background(), dsn)
	require.NoError(t, err)
	return db
}

func TestUpsertDomainRiskMonotonic(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	domain := "monotonic-test.example.com"
	t.Cleanup(func() { _, _ = db.DeleteDomainRisk(ctx, domain) })

	require.NoError(t, db.UpsertDomainRisk(ctx, domain, 0.9, []string{"first"}, "Acme"))

	// A lower re-score must not decrease the stored aggregate.
	require.NoError(t, db.UpsertDomainRisk(ctx, domain, 0.7, []string{"second"}, ""))

	risk, err := db.LookupDomain(ctx, domain)
	require.NoError(t, err)
	require.NotNil(t, risk)
	assert.Equal(t, 0.9, risk.RiskScore)
	assert.Equal(t, []string{"second"}, risk.Evidence)
	// Empty advertiser on the update keeps the original.
	assert.Equal(t, "Acme", risk.AdvertiserName)
}

func TestDeleteDomainRisk(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	domain := "delete-test.example.com"
	require.NoError(t, db.UpsertDomainRisk(ctx, domain, 0.8, nil, ""))

	deleted, err := db.DeleteDomainRisk(ctx, domain)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = db.DeleteDomainRisk(ctx, domain)
	require.NoError(t, err)
	assert.False(t, deleted)

	risk, err := db.LookupDomain(ctx, domain)
	require.NoError(t, err)
	assert.Nil(t, risk)
}

func TestEligiblePriceMatchTargetsIdempotence(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	domain := "idempotence-test-store.example.com"
	urlA := "https://idempotence-test-store.example.com/products/widget-a"
	urlB := "https://idempotence-test-store.example.com/products/widget-b"

	seedAd := func(url string) uuid.UUID {
		id := uuid.New()
		_, err := db.pool.Exec(ctx, `
			INSERT INTO ads (id, destination_url, analysis_score, analysis_category, analyzed_at, created_at)
			VALUES ($1, $2, 0.9, 'dropship', NOW(), NOW())`, id, url)
		require.NoError(t, err)
		return id
	}
	adA := seedAd(urlA)
	adB := seedAd(urlB)
	t.Cleanup(func() {
		_, _ = db.pool.Exec(ctx, `DELETE FROM ads WHERE id = ANY($1)`, []uuid.UUID{adA, adB})
		_, _ = db.DeleteDomainRisk(ctx, domain)
	})

	require.NoError(t, db.UpsertDomainRisk(ctx, domain, 0.9, nil, ""))
	risk, err := db.LookupDomain(ctx, domain)
	require.NoError(t, err)
	require.NotNil(t, risk)

	domainURLs := func(retryFailed bool) []string {
		targets, err := db.EligiblePriceMatchTargets(ctx, retryFailed)
		require.NoError(t, err)
		var urls []string
		for _, target := range targets {
			if target.Domain == domain {
				urls = append(urls, target.ProductURL)
			}
		}
		return urls
	}

	// Fresh domain: both product URLs are eligible in normal mode, none in
	// retry mode.
	assert.ElementsMatch(t, []string{urlA, urlB}, domainURLs(false))
	assert.Empty(t, domainURLs(true))

	require.NoError(t, db.AppendPriceMatch(ctx, risk.ID, models.PriceMatchRecord{
		ProductURL:         urlA,
		ProductNameEnglish: "widget",
		PriceILS:           299,
	}))
	require.NoError(t, db.AppendPriceMatchFailure(ctx, risk.ID, models.PriceMatchFailure{
		ProductURL: urlB,
		Stage:      "search",
		Reason:     "no comparable listings found",
	}))

	// Both URLs are now recorded, so a re-run without new ad data is a
	// no-op; retry mode sees only the failed one.
	assert.Empty(t, domainURLs(false))
	assert.Equal(t, []string{urlB}, domainURLs(true))

	// A later success for the failed URL removes it from retry mode too.
	require.NoError(t, db.AppendPriceMatch(ctx, risk.ID, models.PriceMatchRecord{
		ProductURL: urlB,
		PriceILS:   199,
	}))
	assert.Empty(t, domainURLs(true))
}

func TestLookupDomainUnknown(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	risk, err := db.LookupDomain(ctx, "never-seen.example.com")
	require.NoError(t, err)
	assert.Nil(t, risk)
}
