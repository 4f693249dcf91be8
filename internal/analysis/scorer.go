package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/adoralabs/dropwatch/internal/models"
	"github.com/adoralabs/dropwatch/internal/ratelimit"
	"github.com/adoralabs/dropwatch/internal/scraper"
)

type ScorerOptions struct {
	RetryAttempts int
	BaseDelay     time.Duration
	CallDelay     time.Duration
}

func DefaultScorerOptions() *ScorerOptions {
	return &ScorerOptions{
		RetryAttempts: 3,
		BaseDelay:     2 * time.Second,
		CallDelay:     4 * time.Second,
	}
}

// Scorer turns scraped site data into a risk verdict via a grounded Gemini
// call. A nil client degrades to rule-based scoring so the batch can still
// run without credentials.
type Scorer struct {
	client *Client
	pacer  *ratelimit.Pacer
	opts   *ScorerOptions
	logger *slog.Logger
}

func NewScorer(client *Client, opts *ScorerOptions) *Scorer {
	if opts == nil {
		opts = DefaultScorerOptions()
	}
	return &Scorer{
		client: client,
		pacer:  ratelimit.NewPacer(opts.CallDelay),
		opts:   opts,
		logger: slog.Default().With("component", "scorer"),
	}
}

// Score analyzes one scraped site. It always returns a verdict: transient
// failures exhaust their retries and come back with a nil score (category
// api_error or parse_error) so the ad stays in the backlog. Never zero,
// which would read as a confident "safe".
func (s *Scorer) Score(ctx context.Context, site *scraper.SiteData) models.Verdict {
	if s.client == nil {
		return s.ruleBasedVerdict(site)
	}

	prompt := buildScorePrompt(site)

	var verdict models.Verdict
	var parseFailure bool
	var lastErr error

	backoff := retryBackoff(s.opts, &parseFailure)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.pacer.Wait(ctx); err != nil {
			return err
		}

		text, err := s.client.Generate(ctx, prompt, true)
		if err != nil {
			lastErr = err
			if IsRateLimited(err) {
				parseFailure = false
				s.logger.Warn("rate limited, backing off")
				return retry.RetryableError(err)
			}
			return err
		}

		raw, err := ExtractJSON(text)
		if err != nil {
			lastErr = err
			parseFailure = true
			s.logger.Warn("parse error, retrying with same prompt")
			return retry.RetryableError(err)
		}

		parseFailure = false
		verdict = verdictFromRaw(raw)
		return nil
	})

	if err != nil {
		category := models.CategoryAPIError
		if parseFailure {
			category = models.CategoryParseError
		}
		reason := err.Error()
		if lastErr != nil {
			reason = lastErr.Error()
		}
		s.logger.Error("scoring failed", "category", category, "error", reason)
		return models.Verdict{Category: category, Reason: reason}
	}

	return verdict
}

// retryBackoff picks the delay per failure mode: a fixed short pause before
// re-asking with the same prompt when the output was unparseable, and
// exponential backoff with jitter when the provider rate-limited us. Both
// share one attempt budget.
func retryBackoff(opts *ScorerOptions, parseFailure *bool) retry.Backoff {
	expo := retry.WithJitter(time.Second, retry.NewExponential(opts.BaseDelay))
	return retry.WithMaxRetries(uint64(opts.RetryAttempts-1), retry.BackoffFunc(func() (time.Duration, bool) {
		if *parseFailure {
			return opts.BaseDelay, false
		}
		return expo.Next()
	}))
}

// ruleBasedVerdict is the keyless fallback: crude additive signal scoring.
func (s *Scorer) ruleBasedVerdict(site *scraper.SiteData) models.Verdict {
	score := 0.0
	var evidence []string

	if site.HasCountdownTimer {
		score += 0.2
		evidence = append(evidence, "Countdown timer")
	}
	if site.HasScarcityWidget {
		score += 0.2
		evidence = append(evidence, "Scarcity widget")
	}
	if site.HasWhatsAppOnly {
		score += 0.15
		evidence = append(evidence, "WhatsApp only")
	}
	if site.BusinessID == "" {
		score += 0.15
		evidence = append(evidence, "No business ID")
	}
	if score > 1 {
		score = 1
	}

	return models.Verdict{
		Score:    &score,
		IsRisky:  score > 0.5,
		Category: models.CategoryUncertain,
		Reason:   "Rule-based fallback (no API key)",
		Evidence: evidence,
	}
}

func buildScorePrompt(site *scraper.SiteData) string {
	price := "unknown"
	if site.ProductPrice > 0 {
		price = fmt.Sprintf("₪%g", site.ProductPrice)
	}

	var b strings.Builder
	b.WriteString(`You are an Israeli e-commerce fraud detector with web search access. Your ONLY goal is to identify sites selling PHYSICAL PRODUCTS that are dropshipped from AliExpress/Temu at inflated prices. If the site does NOT sell a physical product, it is NOT relevant — score 0.0 as service.

USE YOUR SEARCH TOOLS to verify:
1. Search for the business name — does it have real Google reviews, social media, news mentions?
2. Search for the product name on AliExpress/Temu — is it the same product at 3-6x markup?
3. If the site claims a business registration, VERIFY IT: Israeli ח.פ./ע.מ., EU VAT number, UK Companies House, US EIN/state registration, or any other country's company registry. A verified registration in ANY country counts as legitimate identity.
4. If a company name is mentioned (e.g. in legal/about/TOS pages), search for it in the relevant country's business registry to confirm it exists.

SCORING RULES:

DROPSHIP (score 0.7-1.0) — MUST have multiple confirmed signals:
- Product confirmed available on AliExpress/Temu at fraction of the price
- No verifiable business identity in ANY country (no registration, no real address, no Google presence)
- TOS/About admits third-party suppliers, dropshipping, overseas fulfillment
- Fake reviews (WhatsApp screenshots instead of real review platform)
- Single product funnel with heavy urgency tactics

LEGITIMATE (score 0.0-0.2) — any of these is strong evidence:
- Verified business registration in ANY country: Israeli ח.פ., EU VAT number, UK company, US LLC/Corp, etc.
- Real company with verifiable address (Google Maps, company registry, government database)
- Real customer reviews on Google/Trustpilot/Facebook
- Brand has social media presence with history (not just ads)
- Product is unique/handmade/custom — not mass-produced AliExpress goods
- Physical store or established online brand
- Furniture, chairs, tables, home décor — these are almost never dropshipped from AliExpress. Score 0.0-0.2 unless overwhelming evidence.
- Jewelry, watches, accessories — score as legit UNLESS the exact same item is confirmed on AliExpress at a fraction of the price. Branded/artisan jewelry is NOT dropship.
- Products priced under ₪100 — low price alone does not indicate dropship. Only flag if it's a generic gadget/electronics/accessory commonly sold on AliExpress AND the markup is significant (3x+). Food, cosmetics, local brands at low prices are NOT dropship.
IMPORTANT: A company registered abroad (Cyprus, UK, US, etc.) selling to Israel is NOT suspicious by itself. Many legitimate businesses operate internationally. Only flag if the product itself is a generic AliExpress item at inflated prices AND no real business exists.

NON-PHYSICAL / SERVICE (score 0.0) — NOT a physical product, cannot be dropshipped:
- Any service: therapy, fitness, consulting, coaching, cleaning, personal training, healthcare, physiotherapy
- Restaurants, food delivery, catering
- Courses, workshops, education, webinars
- Software, SaaS, apps, bots, chatbots
- Real estate, travel, events, tickets
- Community groups, WhatsApp/Telegram groups, deal aggregators, coupon sites
- Pages with no physical product (newsletters, sign-up pages, portfolios, landing pages for services)
  NOTE: advertorial/lead pages that link TO a physical product are NOT service — score based on that product

UNCERTAIN (score 0.3-0.5) — use ONLY when:
- Product could be from AliExpress but you cannot confirm via search
- Business identity is unclear but not obviously fake
- Mixed signals that search couldn't resolve

BE DECISIVE: if search confirms the product on AliExpress at a fraction of the price AND the site has no real business identity, score 0.8+. If search confirms a real business, score 0.0-0.2. Avoid the 0.4-0.6 range unless genuinely uncertain after searching.

DATA:
`)
	fmt.Fprintf(&b, "URL: %s\n", site.URL)
	fmt.Fprintf(&b, "Title: %s\n", site.Title)
	fmt.Fprintf(&b, "Product: %s\n", site.ProductName)
	fmt.Fprintf(&b, "Price: %s\n", price)
	fmt.Fprintf(&b, "Shipping: %s\n", site.ShippingTime)
	fmt.Fprintf(&b, "Business ID (ח.פ.): %s\n", site.BusinessID)
	fmt.Fprintf(&b, "Phone: %s\n", site.Phone)
	fmt.Fprintf(&b, "Signals: Countdown=%t, Scarcity=%t, WhatsAppOnly=%t\n", site.HasCountdownTimer, site.HasScarcityWidget, site.HasWhatsAppOnly)
	fmt.Fprintf(&b, "Text: %s\n", boundRunes(site.PageText, 800))
	if site.TOSText != "" {
		fmt.Fprintf(&b, "Terms/Policy page: %s\n", boundRunes(site.TOSText, 600))
	}
	b.WriteString(`
Return JSON: { "score": float, "is_risky": bool, "category": "dropship|legit|service|uncertain", "reason": "str", "evidence": ["str"] }
Category MUST be exactly one of: "dropship", "legit", "service", "uncertain".`)

	return b.String()
}

func boundRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
