package urlfilter

import (
	"net/url"
	"regexp"
	"strings"
)

// skipPatterns match URLs that are not worth a browser: login walls,
// known-legit marketplaces, shorteners, link aggregators, and landing-page
// builders whose pages carry no product of their own.
var skipPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^https?://(?:www\.)?facebook\.com/`),
	regexp.MustCompile(`(?i)^https?://(?:www\.)?fb\.com/`),
	regexp.MustCompile(`(?i)^https?://(?:www\.)?instagram\.com/`),
	regexp.MustCompile(`(?i)^https?://wa\.me/`),
	regexp.MustCompile(`(?i)^https?://api\.whatsapp\.com/`),
	regexp.MustCompile(`(?i)^https?://chat\.whatsapp\.com/`),
	regexp.MustCompile(`(?i)^https?://docs\.google\.com/`),
	regexp.MustCompile(`(?i)^https?://drive\.google\.com/`),
	regexp.MustCompile(`(?i)^https?://forms\.google\.com/`),
	regexp.MustCompile(`(?i)^https?://linktr\.ee/`),
	regexp.MustCompile(`(?i)^https?://(?:www\.)?tiktok\.com/`),
	regexp.MustCompile(`(?i)^https?://(?:www\.)?youtube\.com/`),
	regexp.MustCompile(`(?i)^https?://(?:www\.)?youtu\.be/`),
	regexp.MustCompile(`(?i)^https?://temu\.to/`),
	regexp.MustCompile(`(?i)^https?://did\.li/`),
	regexp.MustCompile(`(?i)^https?://bit\.ly/`),
	regexp.MustCompile(`(?i)^https?://tinyurl\.com/`),
	regexp.MustCompile(`(?i)^https?://(?:\w+\.)?shein\.com/`),
	regexp.MustCompile(`(?i)^https?://(?:\w+\.)?aliexpress\.com/`),
	regexp.MustCompile(`(?i)^https?://s\.click\.aliexpress\.com/`),
	regexp.MustCompile(`(?i)^https?://(?:\w+\.)?temu\.com/`),
	regexp.MustCompile(`(?i)^https?://t\.me/`),
	regexp.MustCompile(`(?i)^https?://[^/]*vp4\.me/`),
	regexp.MustCompile(`(?i)^https?://[^/]*ravpage\.co\.il/`),
	regexp.MustCompile(`(?i)^https?://[^/]*minisite\.ms/`),
	regexp.MustCompile(`(?i)^https?://urlgeni\.us/`),
	regexp.MustCompile(`(?i)^https?://[^/]*b144websites\.co\.il/`),
	regexp.MustCompile(`(?i)^https?://(?:www\.)?b144\.co\.il/`),
	regexp.MustCompile(`(?i)^https?://(?:www\.)?simplebooking\.it/`),
}

const minURLLength = 15

// Filter decides whether a candidate URL deserves a scrape. It is a pure
// predicate: no network calls, evaluated before any browser resource is
// spent.
type Filter struct {
	whitelist *WhitelistIndex
}

func NewFilter(whitelist *WhitelistIndex) *Filter {
	return &Filter{whitelist: whitelist}
}

// ShouldSkip reports whether the URL is unscrapeable, low-value, or
// whitelisted.
func (f *Filter) ShouldSkip(rawURL string) bool {
	if len(rawURL) < minURLLength {
		return true
	}

	for _, p := range skipPatterns {
		if p.MatchString(rawURL) {
			return true
		}
	}

	domain := Domain(rawURL)
	if domain == "" {
		return false
	}
	return f.whitelist.Contains(domain)
}

// Domain normalizes a URL to its bare domain: lowercase host, no scheme,
// no www prefix, no port.
func Domain(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
