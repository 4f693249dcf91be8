package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adoralabs/dropwatch/internal/models"
	"github.com/adoralabs/dropwatch/internal/urlfilter"
)

type fakeRiskLookup struct {
	risks map[string]*models.DomainRisk
	err   error
}

func (f *fakeRiskLookup) LookupDomain(_ context.Context, domain string) (*models.DomainRisk, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.risks[domain], nil
}

type fakeAnalyzer struct {
	verdict models.Verdict
	err     error
}

func (f *fakeAnalyzer) AnalyzeURL(_ context.Context, _ string) (models.Verdict, error) {
	return f.verdict, f.err
}

func newTestServer(risk RiskLookup, analyzer Analyzer) *httptest.Server {
	whitelist := urlfilter.NewWhitelistIndex("trusted.co.il")
	return httptest.NewServer(New(risk, analyzer, whitelist, nil).Router())
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestCheckFlaggedDomain(t *testing.T) {
	now := time.Now()
	risk := &fakeRiskLookup{risks: map[string]*models.DomainRisk{
		"scam-store.com": {
			ID:          uuid.New(),
			BaseURL:     "scam-store.com",
			RiskScore:   0.85,
			Evidence:    []string{"same product on aliexpress"},
			FirstSeen:   now,
			LastUpdated: now,
		},
	}}
	srv := newTestServer(risk, nil)
	defer srv.Close()

	var resp CheckResponse
	code := getJSON(t, srv.URL+"/check?url=https://www.scam-store.com/products/blender", &resp)

	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Risky)
	assert.Equal(t, "scam-store.com", resp.Domain)
	require.NotNil(t, resp.RiskScore)
	assert.Equal(t, 0.85, *resp.RiskScore)
	assert.Equal(t, []string{"same product on aliexpress"}, resp.Evidence)
}

func TestCheckUnknownDomain(t *testing.T) {
	srv := newTestServer(&fakeRiskLookup{}, nil)
	defer srv.Close()

	var resp CheckResponse
	code := getJSON(t, srv.URL+"/check?url=https://innocent-store.com/products/chair", &resp)

	assert.Equal(t, http.StatusOK, code)
	assert.False(t, resp.Risky)
	assert.Nil(t, resp.RiskScore)
}

func TestCheckFailsOpenOnStoreError(t *testing.T) {
	srv := newTestServer(&fakeRiskLookup{err: errors.New("connection refused")}, nil)
	defer srv.Close()

	var resp CheckResponse
	code := getJSON(t, srv.URL+"/check?url=https://any-store.com/products/x", &resp)

	// A store outage must never block the caller's page load.
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, resp.Risky)
}

func TestCheckMissingURL(t *testing.T) {
	srv := newTestServer(&fakeRiskLookup{}, nil)
	defer srv.Close()

	var resp map[string]string
	code := getJSON(t, srv.URL+"/check", &resp)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotEmpty(t, resp["error"])
}

func TestWhitelistCheck(t *testing.T) {
	srv := newTestServer(&fakeRiskLookup{}, nil)
	defer srv.Close()

	tests := []struct {
		name        string
		domain      string
		whitelisted bool
		reason      string
	}{
		{
			name:        "Listed domain",
			domain:      "trusted.co.il",
			whitelisted: true,
			reason:      "exact",
		},
		{
			name:        "Trusted TLD",
			domain:      "health.gov.il",
			whitelisted: true,
			reason:      "trusted_tld",
		},
		{
			name:        "Unknown domain",
			domain:      "random-store.com",
			whitelisted: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp struct {
				Domain      string `json:"domain"`
				Whitelisted bool   `json:"whitelisted"`
				Reason      string `json:"reason"`
			}
			code := getJSON(t, srv.URL+"/whitelist/check/"+tt.domain, &resp)
			assert.Equal(t, http.StatusOK, code)
			assert.Equal(t, tt.whitelisted, resp.Whitelisted)
			assert.Equal(t, tt.reason, resp.Reason)
		})
	}
}

func TestWhitelistDomains(t *testing.T) {
	srv := newTestServer(&fakeRiskLookup{}, nil)
	defer srv.Close()

	var resp struct {
		Count   int      `json:"count"`
		Domains []string `json:"domains"`
	}
	code := getJSON(t, srv.URL+"/whitelist/domains", &resp)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, []string{"trusted.co.il"}, resp.Domains)
}

func TestAnalyzeWithoutAnalyzer(t *testing.T) {
	srv := newTestServer(&fakeRiskLookup{}, nil)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/analyze", "application/json", strings.NewReader(`{"url":"https://x.com/p/1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestAnalyzeReturnsVerdict(t *testing.T) {
	s := 0.9
	analyzer := &fakeAnalyzer{verdict: models.Verdict{
		Score:    &s,
		IsRisky:  true,
		Category: models.CategoryDropship,
		Reason:   "confirmed on temu",
	}}
	srv := newTestServer(&fakeRiskLookup{}, analyzer)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/analyze", "application/json",
		strings.NewReader(`{"url":"https://scam-store.com/products/blender"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Domain  string         `json:"domain"`
		Verdict models.Verdict `json:"verdict"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "scam-store.com", body.Domain)
	assert.Equal(t, models.CategoryDropship, body.Verdict.Category)
}

func TestAnalyzeBadBody(t *testing.T) {
	srv := newTestServer(&fakeRiskLookup{}, &fakeAnalyzer{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/analyze", "application/json", strings.NewReader(`not json`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&fakeRiskLookup{}, nil)
	defer srv.Close()

	var resp map[string]string
	code := getJSON(t, srv.URL+"/healthz", &resp)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp["status"])
}
