// Package metrics exposes Prometheus counters for the lookup API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dropwatch",
		Name:      "checks_total",
		Help:      "Domain lookups by outcome.",
	}, []string{"outcome"}) // risky, clean, unknown, error

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dropwatch",
		Name:      "check_cache_hits_total",
		Help:      "Lookups answered from the Redis cache.",
	})

	AnalyzeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dropwatch",
		Name:      "analyze_requests_total",
		Help:      "On-demand analyze requests by result.",
	}, []string{"result"})
)

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
