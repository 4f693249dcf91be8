package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/adoralabs/dropwatch/internal/models"
)

// UpsertDomainRisk creates or updates the per-domain aggregate. The stored
// score is monotonically non-decreasing (GREATEST merge): once a domain is
// flagged, model variance on a later ad never silently downgrades it.
func (db *DB) UpsertDomainRisk(ctx context.Context, domain string, score float64, evidence []string, advertiserName string) error {
	query := `
		INSERT INTO risk_db (id, base_url, risk_score, evidence, advertiser_name, first_seen, last_updated)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NOW(), NOW())
		ON CONFLICT (base_url) DO UPDATE SET
			risk_score = GREATEST(risk_db.risk_score, EXCLUDED.risk_score),
			evidence = EXCLUDED.evidence,
			advertiser_name = COALESCE(EXCLUDED.advertiser_name, risk_db.advertiser_name),
			last_updated = NOW()`

	_, err := db.pool.Exec(ctx, query, uuid.New(), domain, score, evidence, advertiserName)
	if err != nil {
		return fmt.Errorf("failed to upsert domain risk: %w", err)
	}
	return nil
}

// DeleteDomainRisk removes a domain from the risk table. This is the only
// way a flagged domain is ever cleared; the orchestrator calls it as an
// explicit corrective action when a re-analysis lands below threshold.
func (db *DB) DeleteDomainRisk(ctx context.Context, domain string) (bool, error) {
	tag, err := db.pool.Exec(ctx, `DELETE FROM risk_db WHERE base_url = $1`, domain)
	if err != nil {
		return false, fmt.Errorf("failed to delete domain risk: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// LookupDomain fetches the risk aggregate for an exact bare-domain match.
// Returns nil when the domain is unknown.
func (db *DB) LookupDomain(ctx context.Context, domain string) (*models.DomainRisk, error) {
	query := `
		SELECT id, base_url, risk_score, COALESCE(evidence, '{}'),
		       COALESCE(advertiser_name, ''),
		       COALESCE(price_matches, '[]'), COALESCE(price_match_failures, '[]'),
		       first_seen, last_updated
		FROM risk_db
		WHERE LOWER(TRIM(base_url)) = LOWER($1)
		LIMIT 1`

	var r models.DomainRisk
	err := db.pool.QueryRow(ctx, query, domain).Scan(
		&r.ID, &r.BaseURL, &r.RiskScore, &r.Evidence, &r.AdvertiserName,
		&r.PriceMatches, &r.PriceMatchFailures, &r.FirstSeen, &r.LastUpdated,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lookup domain: %w", err)
	}

	return &r, nil
}

// PriceMatchTarget is one flagged domain/product pair eligible for price
// matching.
type PriceMatchTarget struct {
	RiskID     uuid.UUID
	Domain     string
	RiskScore  float64
	ProductURL string
}

// EligiblePriceMatchTargets returns flagged domains whose dropship-leaning
// ads have a product URL not yet present in either the match or failure
// history; re-running without new ad data is therefore a no-op. With
// retryFailed set, only previously failed URLs are returned instead.
func (db *DB) EligiblePriceMatchTargets(ctx context.Context, retryFailed bool) ([]PriceMatchTarget, error) {
	attemptedFilter := `
		  AND (r.price_matches IS NULL
		       OR NOT r.price_matches::text LIKE '%' || a.destination_url || '%')
		  AND (r.price_match_failures IS NULL
		       OR NOT r.price_match_failures::text LIKE '%' || a.destination_url || '%')`
	if retryFailed {
		attemptedFilter = `
		  AND r.price_match_failures::text LIKE '%' || a.destination_url || '%'
		  AND (r.price_matches IS NULL
		       OR NOT r.price_matches::text LIKE '%' || a.destination_url || '%')`
	}

	query := `
		SELECT DISTINCT r.id, r.base_url, r.risk_score, a.destination_url
		FROM risk_db r
		JOIN ads a ON LOWER(TRIM(r.base_url)) = LOWER(TRIM(
			REPLACE(SPLIT_PART(a.destination_url, '/', 3), 'www.', '')
		))
		WHERE a.analysis_category IN ('dropship', 'uncertain')
		  AND a.destination_url IS NOT NULL
		  AND LENGTH(a.destination_url) > 20
		  AND a.destination_url ~ '^https?://[^/]+/.+'
		  AND r.risk_score >= $1
		  AND r.base_url NOT LIKE '%shein.com'
		  AND r.base_url NOT LIKE '%aliexpress.com'
		  AND r.base_url NOT LIKE '%temu.%'` + attemptedFilter + `
		ORDER BY r.risk_score DESC`

	rows, err := db.pool.Query(ctx, query, models.RiskThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to query price match targets: %w", err)
	}
	defer rows.Close()

	var targets []PriceMatchTarget
	for rows.Next() {
		var t PriceMatchTarget
		if err := rows.Scan(&t.RiskID, &t.Domain, &t.RiskScore, &t.ProductURL); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, t)
	}

	return targets, rows.Err()
}

// AppendPriceMatch appends a completed match attempt to the domain's
// history. Earlier entries are never replaced.
func (db *DB) AppendPriceMatch(ctx context.Context, riskID uuid.UUID, record models.PriceMatchRecord) error {
	if record.MatchedAt.IsZero() {
		record.MatchedAt = time.Now().UTC()
	}

	raw, err := json.Marshal([]models.PriceMatchRecord{record})
	if err != nil {
		return fmt.Errorf("failed to marshal price match: %w", err)
	}

	query := `
		UPDATE risk_db
		SET price_matches = COALESCE(price_matches, '[]'::jsonb) || $2::jsonb,
		    last_updated = NOW()
		WHERE id = $1`

	if _, err := db.pool.Exec(ctx, query, riskID, raw); err != nil {
		return fmt.Errorf("failed to append price match: %w", err)
	}
	return nil
}

// AppendPriceMatchFailure records a failed attempt in its own list so the
// retry mode can target failures without touching successes.
func (db *DB) AppendPriceMatchFailure(ctx context.Context, riskID uuid.UUID, failure models.PriceMatchFailure) error {
	if failure.FailedAt.IsZero() {
		failure.FailedAt = time.Now().UTC()
	}

	raw, err := json.Marshal([]models.PriceMatchFailure{failure})
	if err != nil {
		return fmt.Errorf("failed to marshal failure: %w", err)
	}

	query := `
		UPDATE risk_db
		SET price_match_failures = COALESCE(price_match_failures, '[]'::jsonb) || $2::jsonb,
		    last_updated = NOW()
		WHERE id = $1`

	if _, err := db.pool.Exec(ctx, query, riskID, raw); err != nil {
		return fmt.Errorf("failed to append failure: %w", err)
	}
	return nil
}
