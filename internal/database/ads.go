package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/adoralabs/dropwatch/internal/models"
)

// FetchUnscoredAds pulls candidate ads whose analysis_score is still null.
// It over-fetches by the given factor so the caller's skip filtering still
// yields a full batch.
func (db *DB) FetchUnscoredAds(ctx context.Context, limit, overFetch int) ([]models.Ad, error) {
	query := `
		SELECT id, destination_url, COALESCE(advertiser_name, '')
		FROM ads
		WHERE analysis_score IS NULL
		  AND destination_url IS NOT NULL
		  AND LENGTH(destination_url) > 15
		ORDER BY created_at ASC
		LIMIT $1`

	rows, err := db.pool.Query(ctx, query, limit*overFetch)
	if err != nil {
		return nil, fmt.Errorf("failed to query unscored ads: %w", err)
	}
	defer rows.Close()

	var ads []models.Ad
	for rows.Next() {
		var ad models.Ad
		if err := rows.Scan(&ad.ID, &ad.DestinationURL, &ad.AdvertiserName); err != nil {
			return nil, fmt.Errorf("failed to scan ad: %w", err)
		}
		ads = append(ads, ad)
	}

	return ads, rows.Err()
}

// MarkAdsSkipped gives filtered ads a terminal skipped verdict in bulk so
// they never re-enter the unscored backlog.
func (db *DB) MarkAdsSkipped(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		UPDATE ads
		SET analysis_score = 0.0, analysis_category = $2,
		    analysis_reason = 'Filtered by skip patterns or whitelist',
		    analyzed_at = NOW()
		WHERE id = ANY($1) AND analysis_score IS NULL`

	tag, err := db.pool.Exec(ctx, query, ids, models.CategorySkipped)
	if err != nil {
		return 0, fmt.Errorf("failed to mark ads skipped: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UpdateAdResult writes a verdict to the ad record. Verdicts without a
// score (api_error, parse_error) are not written at all, keeping the ad
// eligible for a future run.
func (db *DB) UpdateAdResult(ctx context.Context, adID uuid.UUID, verdict models.Verdict) error {
	if verdict.Score == nil {
		return nil
	}

	raw, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("failed to marshal verdict: %w", err)
	}

	query := `
		UPDATE ads
		SET analysis_score = $2, analysis_category = $3,
		    analysis_reason = $4, analysis_json = $5, analyzed_at = NOW()
		WHERE id = $1`

	_, err = db.pool.Exec(ctx, query,
		adID, *verdict.Score, verdict.Category, verdict.Reason, raw,
	)
	if err != nil {
		return fmt.Errorf("failed to update ad result: %w", err)
	}

	return nil
}
