package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Category is the closed set of analysis outcomes. Model output is
// normalized into this set before anything is persisted.
type Category string

const (
	CategoryDropship    Category = "dropship"
	CategoryLegit       Category = "legit"
	CategoryService     Category = "service"
	CategoryUncertain   Category = "uncertain"
	CategorySkipped     Category = "skipped"
	CategoryScrapeError Category = "scrape_error"
	CategoryParseError  Category = "parse_error"
	CategoryAPIError    Category = "api_error"
)

// ScrapeErrorScore is the terminal sentinel stored for ads whose page could
// not be scraped. It is distinct from 0.0 so a broken URL is never confused
// with a confident "safe" verdict. API-side failures store no score at all,
// which keeps the ad in the unscored backlog for a later run.
const ScrapeErrorScore = -1.0

// RiskThreshold is the minimum verdict score that creates or updates a
// domain entry in risk_db.
const RiskThreshold = 0.6

type Ad struct {
	ID             uuid.UUID
	DestinationURL string
	AdvertiserName string
	AnalysisScore  *float64
	Category       Category
	Reason         string
	AnalyzedAt     *time.Time
}

// Verdict is the normalized result of one risk-scoring call.
// Score is nil when the call failed in a retryable way (api_error,
// parse_error); persistence leaves such ads unscored.
type Verdict struct {
	Score    *float64 `json:"score"`
	IsRisky  bool     `json:"is_risky"`
	Category Category `json:"category"`
	Reason   string   `json:"reason"`
	Evidence []string `json:"evidence"`
}

// HasScore reports whether the verdict carries a real (non-sentinel) score.
func (v Verdict) HasScore() bool {
	return v.Score != nil && *v.Score >= 0
}

type DomainRisk struct {
	ID                 uuid.UUID
	BaseURL            string
	RiskScore          float64
	Evidence           []string
	AdvertiserName     string
	PriceMatches       json.RawMessage
	PriceMatchFailures json.RawMessage
	FirstSeen          time.Time
	LastUpdated        time.Time
}

// PriceMatchRecord is one completed price-match attempt, appended to the
// domain's price_matches history.
type PriceMatchRecord struct {
	ProductURL         string       `json:"product_url"`
	ProductNameEnglish string       `json:"product_name_english"`
	PriceILS           float64      `json:"price_ils"`
	Matches            []PriceMatch `json:"matches"`
	SearchQueryUsed    string       `json:"search_query_used"`
	MatchedAt          time.Time    `json:"matched_at"`
}

type PriceMatch struct {
	Source      string  `json:"source"`
	ProductName string  `json:"product_name"`
	PriceUSD    float64 `json:"price_usd"`
	URL         string  `json:"url"`
	Similarity  string  `json:"similarity"`
}

// PriceMatchFailure records an attempt that produced no usable match, kept
// separately so a retry pass can target failures without re-touching
// successes.
type PriceMatchFailure struct {
	ProductURL string    `json:"product_url"`
	Stage      string    `json:"stage"` // scrape, extract, search
	Reason     string    `json:"reason"`
	FailedAt   time.Time `json:"failed_at"`
}
