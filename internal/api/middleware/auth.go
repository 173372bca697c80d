package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/tooldex/tooldex/internal/api/response"
	"github.com/tooldex/tooldex/internal/gate"
	"github.com/tooldex/tooldex/internal/metrics"
	"github.com/tooldex/tooldex/internal/store"
)

// Auth guards the public read API with the API key gate. Every request
// through it is one charge against the key's daily quota; the response
// always advertises the remaining quota so well-behaved clients can back
// off without guessing.
type Auth struct {
	gate *gate.Gate
}

// NewAuth creates the Auth middleware.
func NewAuth(g *gate.Gate) *Auth {
	return &Auth{gate: g}
}

// Authenticate validates the X-API-Key header and charges the key.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawKey := r.Header.Get("X-API-Key")
		if rawKey == "" {
			metrics.APIKeyRequestsTotal.WithLabelValues("missing").Inc()
			response.Error(w, http.StatusUnauthorized,
				"INVALID_KEY", "Missing X-API-Key header", nil)
			return
		}

		usage, err := a.gate.Check(r.Context(), rawKey)
		switch {
		case err == nil:
			// fall through below
		case errors.Is(err, gate.ErrMalformedKey), errors.Is(err, store.ErrKeyNotFound):
			metrics.APIKeyRequestsTotal.WithLabelValues("invalid").Inc()
			response.Error(w, http.StatusUnauthorized,
				"INVALID_KEY", "Invalid API key", nil)
			return
		case errors.Is(err, store.ErrKeyDisabled):
			metrics.APIKeyRequestsTotal.WithLabelValues("disabled").Inc()
			response.Error(w, http.StatusForbidden,
				"KEY_DISABLED", "This API key has been disabled", nil)
			return
		case errors.Is(err, store.ErrQuotaExceeded):
			metrics.APIKeyRequestsTotal.WithLabelValues("quota_exceeded").Inc()
			w.Header().Set("X-RateLimit-Remaining", "0")
			response.Error(w, http.StatusTooManyRequests,
				"RATE_LIMIT_EXCEEDED", "Daily request quota exhausted", nil)
			return
		default:
			metrics.APIKeyRequestsTotal.WithLabelValues("error").Inc()
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to validate API key", nil)
			return
		}

		metrics.APIKeyRequestsTotal.WithLabelValues("ok").Inc()
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(usage.DailyQuota))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(usage.Remaining))

		ctx := setKeyID(r.Context(), usage.KeyID)
		ctx = setKeyPrefix(ctx, gate.DisplayPrefix(rawKey))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
