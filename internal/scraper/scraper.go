package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/adoralabs/dropwatch/internal/browser"
)

const (
	pageTextLimit    = 4000
	tosTextLimit     = 2000
	productNameLimit = 200
	mergedTextLimit  = 1000

	// Below this many visible characters the page is likely a
	// client-rendered shell that has not painted yet.
	shortBodyThreshold = 200
)

type Options struct {
	NavTimeout  time.Duration
	SettleDelay time.Duration
	HardTimeout time.Duration
}

func DefaultOptions() *Options {
	return &Options{
		NavTimeout:  40 * time.Second,
		SettleDelay: 3 * time.Second,
		HardTimeout: 90 * time.Second,
	}
}

// SiteScraper drives one shared Browser across a batch of target pages.
// It is not safe for concurrent use; the orchestrator processes ads
// strictly sequentially.
type SiteScraper struct {
	browser *browser.Browser
	opts    *Options
	logger  *slog.Logger

	// scrapeFn is the inner scrape invoked under the hard timeout,
	// replaceable in tests.
	scrapeFn func(url string) *SiteData
}

func New(b *browser.Browser, opts *Options) *SiteScraper {
	if opts == nil {
		opts = DefaultOptions()
	}
	s := &SiteScraper{
		browser: b,
		opts:    opts,
		logger:  slog.Default().With("component", "site_scraper"),
	}
	s.scrapeFn = s.scrape
	return s
}

// Scrape extracts structured data from one URL under a hard wall-clock
// timeout, independent of per-navigation timeouts, so a pathological page
// cannot stall the whole batch. On timeout the returned SiteData carries
// only the error; the in-flight goroutine still closes its own pages and
// contexts when the browser calls unblock.
func (s *SiteScraper) Scrape(ctx context.Context, url string) *SiteData {
	done := make(chan *SiteData, 1)
	go func() {
		done <- s.scrapeFn(url)
	}()

	select {
	case data := <-done:
		return data
	case <-time.After(s.opts.HardTimeout):
		s.logger.Warn("scrape timeout", "url", url, "timeout", s.opts.HardTimeout)
		return &SiteData{URL: url, Error: fmt.Sprintf("scrape timeout (%s)", s.opts.HardTimeout)}
	case <-ctx.Done():
		return &SiteData{URL: url, Error: ctx.Err().Error()}
	}
}

func (s *SiteScraper) scrape(url string) *SiteData {
	data := &SiteData{URL: url}

	if !s.browser.Alive() {
		if err := s.browser.Restart(); err != nil {
			data.Error = fmt.Sprintf("browser restart failed: %v", err)
			return data
		}
	}

	bctx, err := s.browser.NewContext()
	if err != nil {
		data.Error = fmt.Sprintf("context open failed: %v", err)
		return data
	}
	defer bctx.Close()

	page, err := bctx.NewPage()
	if err != nil {
		data.Error = fmt.Sprintf("page open failed: %v", err)
		return data
	}
	defer page.Close()

	if _, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(s.opts.NavTimeout.Milliseconds())),
	}); err != nil {
		data.Error = fmt.Sprintf("navigation failed: %v", err)
		return data
	}
	time.Sleep(s.opts.SettleDelay)

	body, err := s.readPage(page, data)
	if err != nil {
		data.Error = fmt.Sprintf("read failed: %v", err)
		return data
	}

	// A near-empty body after domcontentloaded usually means an SPA shell;
	// wait once for network idle and re-read. Best effort only.
	if suspiciouslyShort(body) {
		_ = page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
			State:   playwright.LoadStateNetworkidle,
			Timeout: playwright.Float(5000),
		})
		if again, rerr := s.readPage(page, data); rerr == nil && len(again) > len(body) {
			body = again
		}
	}

	data.PageText = truncate(body, pageTextLimit)
	data.ShippingTime = ExtractShippingTime(body)
	data.BusinessID = ExtractBusinessID(body)
	data.Phone = ExtractPhone(body)
	data.Email = ExtractEmail(body)
	data.ProductPrice = ExtractPrice(body)
	data.HasScarcityWidget = HasScarcityPhrase(body)
	data.HasWhatsAppOnly = MentionsWhatsApp(body) && data.Phone == "" && data.Email == ""

	if h1, err := page.QuerySelector("h1"); err == nil && h1 != nil {
		if name, err := h1.InnerText(); err == nil {
			data.ProductName = truncate(strings.TrimSpace(name), productNameLimit)
		}
	}

	if timer, err := page.QuerySelector("[class*='countdown'], [class*='timer']"); err == nil {
		data.HasCountdownTimer = timer != nil
	}

	html, _ := page.Content()

	// Advertorial and landing funnels rarely show the price; chase the real
	// product page before giving the scorer incomplete data.
	if data.ProductPrice == 0 {
		s.followProductLink(bctx, page, html, data)
	}

	s.scrapeTOSPage(bctx, html, page.URL(), data)

	return data
}

// readPage grabs title and body text, retrying once after a short pause;
// a redirect landing mid-read destroys the execution context.
func (s *SiteScraper) readPage(page playwright.Page, data *SiteData) (string, error) {
	title, terr := page.Title()
	body, berr := page.InnerText("body")
	if terr != nil || berr != nil {
		time.Sleep(2 * time.Second)
		title, terr = page.Title()
		if terr != nil {
			return "", terr
		}
		body, berr = page.InnerText("body")
		if berr != nil {
			return "", berr
		}
	}
	data.Title = title
	return body, nil
}

// followProductLink walks the fallback chain for priceless landing pages:
// strip advertorial suffixes, then /products/ links, then a Hebrew/English
// CTA anchor, then the homepage. The first hit is fetched in a sibling page
// and merged into the text buffer tagged by section.
func (s *SiteScraper) followProductLink(bctx playwright.BrowserContext, page playwright.Page, html string, data *SiteData) {
	target := ""
	tag := "[PRODUCT PAGE]"

	if base, ok := StripAdvertorialSuffix(page.URL()); ok {
		target = base
	}
	if target == "" {
		if links := ProductLinks(html, page.URL()); len(links) > 0 {
			target = links[0]
		}
	}
	if target == "" {
		if cta, ok := FindCTALink(html, page.URL()); ok {
			target = cta
		}
	}
	if target == "" {
		if home, ok := Homepage(page.URL()); ok && home != page.URL() {
			target = home
			tag = "[HOMEPAGE]"
		}
	}
	if target == "" {
		return
	}

	text, err := s.fetchText(bctx, target, 20*time.Second)
	if err != nil {
		s.logger.Debug("product link fetch failed", "url", target, "error", err)
		return
	}

	data.PageText += "\n" + tag + "\n" + truncate(text, mergedTextLimit)
	if price := ExtractPrice(text); price > 0 {
		data.ProductPrice = price
	}
	if data.ProductName == "" {
		data.ProductName = truncate(strings.TrimSpace(firstLine(text)), productNameLimit)
	}
}

// scrapeTOSPage attaches a bounded excerpt of the site's terms/policy page;
// dropshippers sometimes admit third-party fulfillment there.
func (s *SiteScraper) scrapeTOSPage(bctx playwright.BrowserContext, html, pageURL string, data *SiteData) {
	tosURL, ok := FindTOSLink(html, pageURL)
	if !ok {
		return
	}

	text, err := s.fetchText(bctx, tosURL, 15*time.Second)
	if err != nil {
		s.logger.Debug("tos fetch failed", "url", tosURL, "error", err)
		return
	}
	data.TOSText = truncate(text, tosTextLimit)
	s.logger.Info("tos scraped", "chars", len(data.TOSText), "url", truncate(tosURL, 80))
}

// fetchText loads a secondary URL in a fresh page within the same context
// and returns its body text. The page is always closed.
func (s *SiteScraper) fetchText(bctx playwright.BrowserContext, url string, timeout time.Duration) (string, error) {
	page, err := bctx.NewPage()
	if err != nil {
		return "", err
	}
	defer page.Close()

	if _, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	}); err != nil {
		return "", err
	}

	return page.InnerText("body")
}

// suspiciouslyShort reports whether a body text is too thin to be a rendered
// storefront page.
func suspiciouslyShort(body string) bool {
	return len(strings.TrimSpace(body)) < shortBodyThreshold
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
