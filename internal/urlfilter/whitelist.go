package urlfilter

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// WhitelistFiles are the domain list files loaded from the data directory.
var WhitelistFiles = []string{
	"whitelist_global.txt",
	"whitelist_israel.txt",
	"whitelist_israel_extra.txt",
}

// TrustedTLDs are suffixes whose domains are whitelisted without being
// listed explicitly: government, education, non-profits.
var TrustedTLDs = []string{
	".gov.il",
	".ac.il",
	".edu",
	".gov",
	".edu.il",
	".org.il",
	".muni.il",
	".idf.il",
	".k12.il",
}

// WhitelistIndex is an immutable set of trusted domains, built once at
// process start and passed by reference wherever a trust decision is made.
type WhitelistIndex struct {
	domains map[string]struct{}
}

// LoadWhitelist reads every known whitelist file under dir. Missing files
// are skipped; comment and blank lines are ignored.
func LoadWhitelist(dir string) (*WhitelistIndex, error) {
	idx := &WhitelistIndex{domains: make(map[string]struct{})}

	for _, name := range WhitelistFiles {
		path := filepath.Join(dir, name)
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.ToLower(strings.TrimSpace(scanner.Text()))
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			idx.domains[line] = struct{}{}
		}
		err = scanner.Err()
		f.Close()
		if err != nil {
			return nil, err
		}
	}

	slog.Default().Info("whitelist loaded", "domains", len(idx.domains))
	return idx, nil
}

// NewWhitelistIndex builds an index from an explicit domain list, mainly
// for tests.
func NewWhitelistIndex(domains ...string) *WhitelistIndex {
	idx := &WhitelistIndex{domains: make(map[string]struct{}, len(domains))}
	for _, d := range domains {
		idx.domains[strings.ToLower(d)] = struct{}{}
	}
	return idx
}

func (w *WhitelistIndex) Len() int { return len(w.domains) }

// Domains returns the whitelist as a slice, for the extension-facing API.
func (w *WhitelistIndex) Domains() []string {
	out := make([]string, 0, len(w.domains))
	for d := range w.domains {
		out = append(out, d)
	}
	return out
}

// Contains checks a bare domain for an exact whitelist hit, a parent-domain
// hit (shop.example.com matches a listed example.com), or a trusted TLD
// suffix.
func (w *WhitelistIndex) Contains(domain string) bool {
	_, ok := w.Reason(domain)
	return ok
}

// Reason reports whether and why a domain is trusted: "exact",
// "trusted_tld", or "parent_domain".
func (w *WhitelistIndex) Reason(domain string) (string, bool) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return "", false
	}

	if _, ok := w.domains[domain]; ok {
		return "exact", true
	}

	for _, tld := range TrustedTLDs {
		if strings.HasSuffix(domain, tld) {
			return "trusted_tld", true
		}
	}

	parts := strings.Split(domain, ".")
	for i := 1; i < len(parts)-1; i++ {
		if _, ok := w.domains[strings.Join(parts[i:], ".")]; ok {
			return "parent_domain", true
		}
	}

	return "", false
}
