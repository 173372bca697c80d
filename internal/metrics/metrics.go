// Package metrics holds the Prometheus collectors for the counter and
// access-control subsystem.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	VotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tooldex_votes_total",
		Help: "Vote attempts by family and outcome.",
	}, []string{"family", "outcome"})

	ViewsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tooldex_views_total",
		Help: "View records written.",
	})

	CacheRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tooldex_counter_cache_refresh_total",
		Help: "Counter cache refresh attempts by resource and result.",
	}, []string{"resource", "result"})

	CacheStaleServedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tooldex_counter_cache_stale_served_total",
		Help: "Reads served from a stale entry after a refresh failure.",
	}, []string{"resource"})

	APIKeyRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tooldex_api_key_requests_total",
		Help: "Gated API requests by gate outcome.",
	}, []string{"outcome"})
)
