package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/adoralabs/dropwatch/internal/metrics"
	"github.com/adoralabs/dropwatch/internal/models"
	"github.com/adoralabs/dropwatch/internal/urlfilter"
)

// CheckResponse is the /check payload the browser extension consumes.
type CheckResponse struct {
	Domain         string          `json:"domain"`
	Risky          bool            `json:"risky"`
	RiskScore      *float64        `json:"risk_score,omitempty"`
	Evidence       []string        `json:"evidence,omitempty"`
	AdvertiserName string          `json:"advertiser_name,omitempty"`
	PriceMatches   json.RawMessage `json:"price_matches,omitempty"`
	FirstSeen      *time.Time      `json:"first_seen,omitempty"`
	LastUpdated    *time.Time      `json:"last_updated,omitempty"`
}

// handleCheck answers "is this domain flagged". It fails open: a store or
// cache outage returns risky=false rather than blocking the caller's page
// load on a 500.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		writeError(w, http.StatusBadRequest, "missing url parameter")
		return
	}

	domain := urlfilter.Domain(rawURL)
	if domain == "" {
		writeError(w, http.StatusBadRequest, "unparseable url")
		return
	}

	cacheKey := "check:" + domain
	if cached, ok := s.cache.Get(r.Context(), cacheKey); ok {
		metrics.CacheHits.Inc()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(cached))
		return
	}

	resp := CheckResponse{Domain: domain}

	risk, err := s.risk.LookupDomain(r.Context(), domain)
	if err != nil {
		s.logger.Error("lookup failed", "domain", domain, "error", err)
		metrics.ChecksTotal.WithLabelValues("error").Inc()
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if risk == nil {
		metrics.ChecksTotal.WithLabelValues("unknown").Inc()
	} else {
		resp.Risky = risk.RiskScore >= models.RiskThreshold
		resp.RiskScore = &risk.RiskScore
		resp.Evidence = risk.Evidence
		resp.AdvertiserName = risk.AdvertiserName
		resp.PriceMatches = risk.PriceMatches
		resp.FirstSeen = &risk.FirstSeen
		resp.LastUpdated = &risk.LastUpdated
		if resp.Risky {
			metrics.ChecksTotal.WithLabelValues("risky").Inc()
		} else {
			metrics.ChecksTotal.WithLabelValues("clean").Inc()
		}
	}

	if raw, err := json.Marshal(resp); err == nil {
		s.cache.Set(r.Context(), cacheKey, string(raw))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWhitelistDomains(w http.ResponseWriter, r *http.Request) {
	domains := s.whitelist.Domains()
	sort.Strings(domains)
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(domains),
		"domains": domains,
	})
}

func (s *Server) handleWhitelistCheck(w http.ResponseWriter, r *http.Request) {
	domain := urlfilter.Domain(chi.URLParam(r, "domain"))
	if domain == "" {
		writeError(w, http.StatusBadRequest, "unparseable domain")
		return
	}

	reason, ok := s.whitelist.Reason(domain)
	writeJSON(w, http.StatusOK, map[string]any{
		"domain":      domain,
		"whitelisted": ok,
		"reason":      reason,
	})
}

type analyzeRequest struct {
	URL string `json:"url"`
}

// handleAnalyze scrapes and scores one URL synchronously. Slow by design;
// the router timeout is sized to cover a full scrape plus a grounded model
// call.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if s.analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "analysis not configured")
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "body must be {\"url\": \"...\"}")
		return
	}

	verdict, err := s.analyzer.AnalyzeURL(r.Context(), req.URL)
	if err != nil {
		s.logger.Error("analyze failed", "url", req.URL, "error", err)
		metrics.AnalyzeRequests.WithLabelValues("error").Inc()
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	metrics.AnalyzeRequests.WithLabelValues(string(verdict.Category)).Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"domain":  urlfilter.Domain(req.URL),
		"verdict": verdict,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
