package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tooldex/tooldex/internal/api/response"
)

// CacheInvalidator expires counter caches after out-of-band content
// changes.
type CacheInvalidator interface {
	InvalidateAll()
}

type contentSyncRequest struct {
	Event string `json:"event"`
}

// NewContentSyncHandler returns the POST /webhooks/content-sync handler.
// The HMAC signature middleware has already verified the payload by the
// time this runs.
func NewContentSyncHandler(inv CacheInvalidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req contentSyncRequest
		// The event name is informational; an empty body still invalidates.
		_ = json.NewDecoder(r.Body).Decode(&req)

		inv.InvalidateAll()
		slog.Info("counter caches invalidated by content sync", "event", req.Event)

		response.Flat(w, map[string]bool{"success": true})
	}
}
