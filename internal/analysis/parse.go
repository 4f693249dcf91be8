package analysis

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/adoralabs/dropwatch/internal/models"
)

// ErrNoJSON marks a model response with no parseable JSON object, kept
// distinct from transport errors so callers can apply the parse-retry
// policy.
var ErrNoJSON = errors.New("no JSON object in model response")

var (
	codeFenceRe     = regexp.MustCompile("(?m)^```\\w*\\n?|```$")
	jsonObjectRe    = regexp.MustCompile(`\{[\s\S]*\}`)
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	doubledQuoteRe  = regexp.MustCompile(`:\s*"([^"]*)"([^",}\]]*)"`)
)

// ExtractJSON pulls the first JSON object out of free model text. The model
// wraps output in Markdown fences more often than not, and occasionally
// emits near-JSON; a bounded set of textual repairs (trailing commas,
// doubled quotes) is attempted before giving up.
func ExtractJSON(text string) (map[string]any, error) {
	clean := codeFenceRe.ReplaceAllString(strings.TrimSpace(text), "")

	// The balanced span stops at the object's own closing brace, so prose
	// after it containing stray braces does not poison the candidate. The
	// greedy span is the fallback for near-JSON the scanner cannot balance
	// (an unterminated string swallows the rest of the text).
	for _, raw := range []string{firstJSONObject(clean), jsonObjectRe.FindString(clean)} {
		if raw == "" {
			continue
		}

		var out map[string]any
		if err := json.Unmarshal([]byte(raw), &out); err == nil {
			return out, nil
		}

		fixed := trailingCommaRe.ReplaceAllString(raw, "$1")
		fixed = doubledQuoteRe.ReplaceAllString(fixed, `: "$1$2"`)
		if err := json.Unmarshal([]byte(fixed), &out); err == nil {
			return out, nil
		}
	}

	return nil, ErrNoJSON
}

// firstJSONObject returns the first brace-balanced object span, tracking
// string literals so braces inside values do not count. Returns "" when no
// balanced span exists.
func firstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// serviceKeywords map loose category strings onto the service bucket; the
// model invents labels like "restaurant" or "therapy service" freely.
var serviceKeywords = []string{
	"service", "restaurant", "course", "saas", "event",
	"travel", "real estate", "software", "digital",
	"food", "delivery", "marketing", "consulting",
	"coaching", "fitness", "healthcare", "therapy",
	"cleaning", "education", "workshop",
}

var legitKeywords = []string{"legit", "legitimate", "brand", "home", "kitchen", "beauty"}

// NormalizeCategory coerces a free-text category into the closed enum.
// Exact match wins; keyword heuristics cover the model's paraphrases;
// anything unrecognized becomes uncertain.
func NormalizeCategory(raw string) models.Category {
	cat := strings.ToLower(strings.TrimSpace(raw))

	switch models.Category(cat) {
	case models.CategoryDropship, models.CategoryLegit, models.CategoryService, models.CategoryUncertain:
		return models.Category(cat)
	}

	if strings.Contains(cat, "dropship") || strings.Contains(cat, "scam") || strings.Contains(cat, "fraud") {
		return models.CategoryDropship
	}
	for _, kw := range serviceKeywords {
		if strings.Contains(cat, kw) {
			return models.CategoryService
		}
	}
	for _, kw := range legitKeywords {
		if strings.Contains(cat, kw) {
			return models.CategoryLegit
		}
	}

	return models.CategoryUncertain
}

// verdictFromRaw maps the loosely-typed parsed object into the closed
// Verdict type. Free-text model output never flows into typed state
// unchecked: the score is clamped and the category normalized here.
func verdictFromRaw(raw map[string]any) models.Verdict {
	score := clampScore(asFloat(raw["score"]))

	v := models.Verdict{
		Score:    &score,
		IsRisky:  asBool(raw["is_risky"]),
		Category: NormalizeCategory(asString(raw["category"])),
		Reason:   asString(raw["reason"]),
		Evidence: asStringSlice(raw["evidence"]),
	}
	return v
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f
		}
	}
	return 0
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
