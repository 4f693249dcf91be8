package scraper

import (
	"regexp"
	"strconv"
	"strings"
)

// Regexes tuned for Israeli storefront text. Hebrew alternatives sit next
// to their English counterparts since most target sites mix both.
var (
	shippingRe   = regexp.MustCompile(`(?i)(\d+[-–]\d+\s*(?:ימי|ימים|days|business days))`)
	businessIDRe = regexp.MustCompile(`ח\.?פ\.?\s*[:\-]?\s*(\d{9})`)
	phoneRe      = regexp.MustCompile(`(\*\d{4}|\d{2,3}[-\s]?\d{7})`)
	emailRe      = regexp.MustCompile(`[\w.\-]+@[\w.\-]+\.\w+`)
	priceRe      = regexp.MustCompile(`[₪$]\s*(\d[\d,.]*)|(\d[\d,.]*)\s*[₪$]`)
	scarcityRe   = regexp.MustCompile(`(?i)רק\s+\d+\s+(?:נותר|נשאר)|only\s+\d+\s+left`)
)

// ExtractPrice finds the first currency-adjacent number in text and parses
// it. Returns 0 when no price token is present.
func ExtractPrice(text string) float64 {
	m := priceRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	raw := m[1]
	if raw == "" {
		raw = m[2]
	}
	raw = strings.ReplaceAll(raw, ",", "")
	raw = strings.TrimSuffix(raw, ".")
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return price
}

func ExtractShippingTime(text string) string {
	m := shippingRe.FindString(text)
	return truncate(m, 50)
}

func ExtractBusinessID(text string) string {
	m := businessIDRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

func ExtractPhone(text string) string {
	m := phoneRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

func ExtractEmail(text string) string {
	return emailRe.FindString(text)
}

func HasScarcityPhrase(text string) bool {
	return scarcityRe.MatchString(text)
}

// MentionsWhatsApp reports whether the page points buyers at WhatsApp.
// Combined with an absent phone and email it is the "WhatsApp only" signal.
func MentionsWhatsApp(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "whatsapp") || strings.Contains(lower, "wa.me")
}

// truncate bounds s to n runes; Hebrew text makes byte slicing unsafe.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
