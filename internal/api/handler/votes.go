package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tooldex/tooldex/internal/api/response"
	"github.com/tooldex/tooldex/internal/counter"
	"github.com/tooldex/tooldex/internal/store"
	"github.com/tooldex/tooldex/pkg/models"
)

// Counters is the counter-service surface the public endpoints depend on.
type Counters interface {
	ToolVotes(ctx context.Context) (map[string]int64, bool, error)
	RequestVotes(ctx context.Context) (map[string]int64, bool, error)
	Views(ctx context.Context) (map[string]int64, bool, error)
	CastVote(ctx context.Context, family, targetID, voterID string) (store.VoteOutcome, error)
	AddView(ctx context.Context, targetID string) error
}

// NewVoteCountsHandler returns the GET handler for a vote family. The
// response is the bare {targetId: count} map; the Cache-Control header
// mirrors the design-level stale-while-revalidate the counter cache
// already provides.
func NewVoteCountsHandler(svc Counters, family string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			counts map[string]int64
			err    error
		)
		switch family {
		case models.VoteFamilyRequest:
			counts, _, err = svc.RequestVotes(r.Context())
		default:
			counts, _, err = svc.ToolVotes(r.Context())
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Vote counts are temporarily unavailable", nil)
			return
		}
		if counts == nil {
			counts = map[string]int64{}
		}

		w.Header().Set("Cache-Control", "public, max-age=15, stale-while-revalidate=10")
		response.Flat(w, counts)
	}
}

type castVoteRequest struct {
	ToolID    string `json:"toolId"`
	RequestID string `json:"requestId"`
	VoterID   string `json:"voterId"`
}

type castVoteResponse struct {
	Success bool   `json:"success"`
	Result  string `json:"result"`
}

// NewCastVoteHandler returns the POST handler for a vote family. A
// repeat vote is reported as success with result "already_voted"; the
// client cannot tell it apart from an error it must handle, and retries
// stay harmless.
func NewCastVoteHandler(svc Counters, family string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req castVoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest,
				"INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		target := req.ToolID
		if family == models.VoteFamilyRequest && req.RequestID != "" {
			target = req.RequestID
		}

		outcome, err := svc.CastVote(r.Context(), family, target, req.VoterID)
		if err != nil {
			switch {
			case errors.Is(err, counter.ErrInvalidVoterID):
				response.Error(w, http.StatusBadRequest,
					"INVALID_REQUEST", "voterId must be a UUID", nil)
			case errors.Is(err, counter.ErrInvalidTargetID):
				response.Error(w, http.StatusBadRequest,
					"INVALID_REQUEST", "invalid target id", nil)
			default:
				response.Error(w, http.StatusInternalServerError,
					"INTERNAL_ERROR", "Failed to record vote", nil)
			}
			return
		}

		response.Flat(w, castVoteResponse{Success: true, Result: string(outcome)})
	}
}
