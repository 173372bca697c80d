package middleware

import (
	"net/http"
	"time"

	"github.com/tooldex/tooldex/internal/api/response"
	"github.com/tooldex/tooldex/internal/cache"
)

const defaultRequestsPerMinute = 60

// RateLimit is a Redis minute-window burst limiter layered in front of
// the daily quota. The daily quota is the authoritative limit enforced
// by the store; this only smooths spikes, so it fails open when Redis is
// unavailable.
type RateLimit struct {
	cache          cache.Cache
	requestsPerMin int
}

// NewRateLimit creates a new RateLimit middleware.
func NewRateLimit(c cache.Cache, requestsPerMin int) *RateLimit {
	if requestsPerMin <= 0 {
		requestsPerMin = defaultRequestsPerMinute
	}
	return &RateLimit{cache: c, requestsPerMin: requestsPerMin}
}

// Limit applies the burst limit keyed by the display prefix set by Auth.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix, ok := getKeyPrefix(r)
		if !ok {
			// Gate middleware didn't run; nothing to key on.
			next.ServeHTTP(w, r)
			return
		}

		count, err := rl.cache.IncrWithExpiry(r.Context(), cache.BurstKey(prefix), 60*time.Second)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		if count > int64(rl.requestsPerMin) {
			w.Header().Set("Retry-After", "60")
			response.Error(w, http.StatusTooManyRequests,
				"RATE_LIMIT_EXCEEDED", "Too many requests, slow down", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}
