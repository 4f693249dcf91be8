package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/sethvargo/go-retry"

	"github.com/adoralabs/dropwatch/internal/models"
	"github.com/adoralabs/dropwatch/internal/ratelimit"
)

// ILSToUSD is the rough conversion used for markup estimates.
const ILSToUSD = 0.27

// badProductURLPatterns filter inputs that cannot be a single product page:
// shorteners, affiliate redirects, category and collection listings.
// Matching URLs are failed up front without spending an LLM call.
var badProductURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^https?://(?:bit\.ly|tinyurl\.com|did\.li|temu\.to|urlgeni\.us)/`),
	regexp.MustCompile(`(?i)^https?://s\.click\.aliexpress\.com/`),
	regexp.MustCompile(`(?i)/(?:collections|categories|category)/[^/]*/?$`),
}

// ProductInfo is the stage-one extraction result: the scraped Hebrew page
// normalized into search-friendly English.
type ProductInfo struct {
	ProductNameHebrew  string   `json:"product_name_hebrew"`
	ProductNameEnglish string   `json:"product_name_english"`
	PriceILS           float64  `json:"price_ils"`
	Category           string   `json:"category"`
	KeyFeatures        []string `json:"key_features"`
	SearchQuery        string   `json:"search_query"`
}

// SearchResult is the stage-two grounded search outcome.
type SearchResult struct {
	Matches         []models.PriceMatch
	SearchQueryUsed string
}

// Matcher runs the two-stage price-match pipeline: extraction without
// grounding (cheap), then a grounded search for overseas equivalents.
type Matcher struct {
	client *Client
	pacer  *ratelimit.Pacer
	opts   *ScorerOptions
	logger *slog.Logger
}

func NewMatcher(client *Client, opts *ScorerOptions) *Matcher {
	if opts == nil {
		opts = DefaultScorerOptions()
	}
	return &Matcher{
		client: client,
		pacer:  ratelimit.NewPacer(opts.CallDelay),
		opts:   opts,
		logger: slog.Default().With("component", "price_matcher"),
	}
}

// BadProductURL reports whether the URL is structurally hopeless as a
// single-product page.
func BadProductURL(url string) bool {
	for _, p := range badProductURLPatterns {
		if p.MatchString(url) {
			return true
		}
	}
	return false
}

// ExtractProductInfo translates a scraped Hebrew product page into English
// search terms and a canonical price. No grounding; Hebrew product names do
// not work as overseas marketplace queries.
func (m *Matcher) ExtractProductInfo(ctx context.Context, pageText string) (*ProductInfo, error) {
	prompt := fmt.Sprintf(`Analyze this Israeli product page text and extract product details.
Translate the product name to generic English search terms (not brand name).
Hebrew names won't work on AliExpress — use descriptive English.

Page text:
%s

Return ONLY valid JSON:
{"product_name_hebrew": "original", "product_name_english": "english terms", "price_ils": 0.0, "category": "type", "key_features": ["f1", "f2"], "search_query": "aliexpress query"}`, boundRunes(pageText, 5000))

	raw, err := m.generateJSON(ctx, prompt, false)
	if err != nil {
		return nil, err
	}

	info := &ProductInfo{
		ProductNameHebrew:  asString(raw["product_name_hebrew"]),
		ProductNameEnglish: strings.TrimSpace(asString(raw["product_name_english"])),
		PriceILS:           asFloat(raw["price_ils"]),
		Category:           asString(raw["category"]),
		KeyFeatures:        asStringSlice(raw["key_features"]),
		SearchQuery:        asString(raw["search_query"]),
	}

	switch strings.ToLower(info.ProductNameEnglish) {
	case "", "none", "error", "n/a":
		return nil, fmt.Errorf("no product name extracted")
	}
	if info.PriceILS <= 0 {
		return nil, fmt.Errorf("no price extracted")
	}

	return info, nil
}

// SearchCheaper asks the grounded model for up to five comparable overseas
// listings.
func (m *Matcher) SearchCheaper(ctx context.Context, info *ProductInfo) (*SearchResult, error) {
	usd := "?"
	if info.PriceILS > 0 {
		usd = fmt.Sprintf("$%.2f", info.PriceILS*ILSToUSD)
	}
	query := info.SearchQuery
	if query == "" {
		query = info.ProductNameEnglish
	}

	prompt := fmt.Sprintf(`You have google_search enabled. Search for this product on AliExpress, Temu, and Alibaba and tell me what you find.

Product: %s
Features: %s
Israeli price: %g ILS (~%s)
Search query suggestion: %s

Search for similar products. For each result you find, tell me:
- The product name/title
- The price (in USD if possible)
- Which site it's from (AliExpress, Temu, Alibaba, etc)
- The URL from the search results

It's OK to include redirect URLs from search. Include whatever you can find. If prices aren't in the snippet, estimate based on what you see or say unknown.

Return up to 5 results as JSON:
{"matches": [{"source": "site", "product_name": "title", "price_usd": 0.00, "url": "url", "similarity": "exact/similar"}], "search_query_used": "query"}`,
		info.ProductNameEnglish, strings.Join(info.KeyFeatures, ", "), info.PriceILS, usd, query)

	raw, err := m.generateJSON(ctx, prompt, true)
	if err != nil {
		return nil, err
	}

	result := &SearchResult{SearchQueryUsed: asString(raw["search_query_used"])}
	items, _ := raw["matches"].([]any)
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		result.Matches = append(result.Matches, models.PriceMatch{
			Source:      asString(entry["source"]),
			ProductName: asString(entry["product_name"]),
			PriceUSD:    asFloat(entry["price_usd"]),
			URL:         asString(entry["url"]),
			Similarity:  asString(entry["similarity"]),
		})
	}

	return result, nil
}

// generateJSON shares the scorer's retry policy: exponential backoff on rate
// limits, fixed-delay re-asks on unparseable output.
func (m *Matcher) generateJSON(ctx context.Context, prompt string, grounded bool) (map[string]any, error) {
	var out map[string]any
	var parseFailure bool

	backoff := retryBackoff(m.opts, &parseFailure)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := m.pacer.Wait(ctx); err != nil {
			return err
		}

		text, err := m.client.Generate(ctx, prompt, grounded)
		if err != nil {
			if IsRateLimited(err) {
				parseFailure = false
				return retry.RetryableError(err)
			}
			return err
		}

		raw, err := ExtractJSON(text)
		if err != nil {
			parseFailure = true
			return retry.RetryableError(err)
		}

		out = raw
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Markup estimates the Israeli markup multiple over the best overseas
// price. Returns 0 when no priced match exists.
func Markup(priceILS float64, matches []models.PriceMatch) float64 {
	best := 0.0
	for _, m := range matches {
		if m.PriceUSD > 0 && (best == 0 || m.PriceUSD < best) {
			best = m.PriceUSD
		}
	}
	if best == 0 || priceILS <= 0 {
		return 0
	}
	return priceILS / (best / ILSToUSD)
}
