package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tooldex/tooldex/internal/api/response"
	"github.com/tooldex/tooldex/internal/counter"
)

// NewViewCountsHandler returns the GET /views handler. View counters
// move fast, so the HTTP cache hint is shorter than the votes one.
func NewViewCountsHandler(svc Counters) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, _, err := svc.Views(r.Context())
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "View counts are temporarily unavailable", nil)
			return
		}
		if counts == nil {
			counts = map[string]int64{}
		}

		w.Header().Set("Cache-Control", "public, max-age=10, stale-while-revalidate=5")
		response.Flat(w, counts)
	}
}

type addViewRequest struct {
	ToolID string `json:"toolId"`
}

type addViewResponse struct {
	Success bool `json:"success"`
}

// NewAddViewHandler returns the POST /views handler. Views are recorded
// append-only with no per-viewer dedup.
func NewAddViewHandler(svc Counters) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addViewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest,
				"INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if err := svc.AddView(r.Context(), req.ToolID); err != nil {
			if errors.Is(err, counter.ErrInvalidTargetID) {
				response.Error(w, http.StatusBadRequest,
					"INVALID_REQUEST", "invalid target id", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to record view", nil)
			return
		}

		response.Flat(w, addViewResponse{Success: true})
	}
}
