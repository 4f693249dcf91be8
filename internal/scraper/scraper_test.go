package scraper

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrapeHardTimeout(t *testing.T) {
	s := New(nil, &Options{
		NavTimeout:  10 * time.Millisecond,
		HardTimeout: 50 * time.Millisecond,
	})

	release := make(chan struct{})
	defer close(release)
	s.scrapeFn = func(url string) *SiteData {
		<-release
		return &SiteData{URL: url}
	}

	start := time.Now()
	data := s.Scrape(context.Background(), "https://hanging-site.example.com/products/x")

	require.NotNil(t, data)
	assert.NotEmpty(t, data.Error)
	assert.Contains(t, data.Error, "timeout")
	assert.Equal(t, "https://hanging-site.example.com/products/x", data.URL)
	// The wall clock bound, not the inner scrape, decides when control
	// returns.
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestScrapeContextCancelled(t *testing.T) {
	s := New(nil, &Options{HardTimeout: 10 * time.Second})

	release := make(chan struct{})
	defer close(release)
	s.scrapeFn = func(url string) *SiteData {
		<-release
		return &SiteData{URL: url}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	data := s.Scrape(ctx, "https://any.example.com/products/x")
	require.NotNil(t, data)
	assert.NotEmpty(t, data.Error)
}

func TestScrapeFastPathReturnsInnerResult(t *testing.T) {
	s := New(nil, &Options{HardTimeout: time.Second})
	s.scrapeFn = func(url string) *SiteData {
		return &SiteData{URL: url, Title: "done"}
	}

	data := s.Scrape(context.Background(), "https://fast.example.com/")
	require.NotNil(t, data)
	assert.Empty(t, data.Error)
	assert.Equal(t, "done", data.Title)
}

func TestSuspiciouslyShort(t *testing.T) {
	assert.True(t, suspiciouslyShort(""))
	assert.True(t, suspiciouslyShort("Loading..."))
	assert.True(t, suspiciouslyShort(strings.Repeat(" ", 500)))
	assert.False(t, suspiciouslyShort(strings.Repeat("תוכן אמיתי של חנות ", 30)))
}
