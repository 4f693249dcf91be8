package scraper

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	tosHrefRe = regexp.MustCompile(`/(?:terms|tos|policies|policy|terms-of-service|terms-and-conditions|shipping-policy|refund-policy)`)
	tosTextRe = regexp.MustCompile(`תנאי|מדיניות|terms|policy`)

	// Call-to-action anchors on advertorial funnels, Hebrew and English.
	ctaTextRe    = regexp.MustCompile(`(?i)לרכישה|הזמינו|הזמן|לרכוש|בדיקת זמינות|קבלו|להזמנה|קנו|הוסף לסל|add.to.cart|buy.now|order.now|shop.now|get.yours|לפרטים נוספים|להזמנה עכשיו|לצפייה במוצר|למוצר`)
	productPathRe = regexp.MustCompile(`(?i)/products?/|/order`)
	utilityPathRe = regexp.MustCompile(`(?i)/(cart|policy|terms|privacy|contact|about|faq|return|shipping)/?$`)

	// Advertorial URL suffixes that hide the real product page.
	advertorialSuffixes = []string{"/adv", "/advertorial", "/landing", "/adv-", "/lp"}
)

// FindTOSLink scans page HTML for a terms-of-service / policy link, matching
// by href path first, then by Hebrew/English anchor text.
func FindTOSLink(html, pageURL string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}

	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if tosHrefRe.MatchString(strings.ToLower(href)) {
			found = href
			return false
		}
		text := strings.ToLower(strings.TrimSpace(sel.Text()))
		if len(text) > 0 && len(text) <= 60 && tosTextRe.MatchString(text) {
			found = href
			return false
		}
		return true
	})

	if found == "" {
		return "", false
	}
	return resolveHref(pageURL, found)
}

// ProductLinks returns absolute /products/-style links found on the page.
func ProductLinks(html, pageURL string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var links []string
	doc.Find(`a[href*="/products/"]`).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if abs, ok := resolveHref(pageURL, href); ok {
			links = append(links, abs)
		}
	})
	return links
}

// FindCTALink locates a purchase call-to-action on an advertorial page:
// an anchor whose text matches a buy-now phrase, or a same-host link into a
// product path. Links back to the current page or to utility pages are
// ignored.
func FindCTALink(html, pageURL string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}

	cur, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}
	curHost := strings.TrimPrefix(cur.Hostname(), "www.")

	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if href == "" || strings.HasPrefix(href, "javascript:") {
			return true
		}
		abs, ok := resolveHref(pageURL, href)
		if !ok {
			return true
		}
		u, err := url.Parse(abs)
		if err != nil {
			return true
		}
		if u.Hostname() == cur.Hostname() && u.Path == cur.Path {
			return true
		}
		if utilityPathRe.MatchString(u.Path) {
			return true
		}

		text := strings.TrimSpace(sel.Text())
		if ctaTextRe.MatchString(text) {
			found = abs
			return false
		}
		if strings.Contains(u.Hostname(), curHost) && productPathRe.MatchString(u.Path) {
			found = abs
			return false
		}
		return true
	})

	if found == "" {
		return "", false
	}
	return found, true
}

// StripAdvertorialSuffix rewrites .../product/adv style URLs back to their
// base path. Returns the rewritten URL and whether a suffix matched.
func StripAdvertorialSuffix(pageURL string) (string, bool) {
	trimmed := strings.TrimRight(pageURL, "/")
	lower := strings.ToLower(trimmed)
	for _, suffix := range advertorialSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return trimmed[:len(trimmed)-len(suffix)] + "/", true
		}
	}
	return "", false
}

// Homepage returns the scheme://host/ root for a page URL.
func Homepage(pageURL string) (string, bool) {
	u, err := url.Parse(pageURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return u.Scheme + "://" + u.Host + "/", true
}

func resolveHref(base, href string) (string, bool) {
	b, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	h, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	abs := b.ResolveReference(h)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	return abs.String(), true
}
