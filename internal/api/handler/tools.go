package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tooldex/tooldex/internal/api/response"
	"github.com/tooldex/tooldex/internal/store"
	"github.com/tooldex/tooldex/pkg/models"
)

// Directory is the read surface backing /v1/tools.
type Directory interface {
	ListTools(ctx context.Context, filter store.ToolFilter) ([]*models.Tool, int, error)
	GetTool(ctx context.Context, slug string) (*models.Tool, error)
}

// StatsSource serves cached category aggregates.
type StatsSource interface {
	CategoryStats(ctx context.Context) ([]*models.CategoryStat, bool, error)
}

// NewListToolsHandler returns the GET /v1/tools handler.
func NewListToolsHandler(dir Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, _ := strconv.Atoi(q.Get("page"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		if limit <= 0 {
			limit = 20
		}
		if limit > 100 {
			limit = 100
		}
		if page <= 0 {
			page = 1
		}

		tools, total, err := dir.ListTools(r.Context(), store.ToolFilter{
			Category: q.Get("category"),
			Page:     page,
			Limit:    limit,
		})
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to list tools", nil)
			return
		}
		if tools == nil {
			tools = []*models.Tool{}
		}

		response.Collection(w, tools, response.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasNext: page*limit < total,
		})
	}
}

// NewGetToolHandler returns the GET /v1/tools/{slug} handler.
func NewGetToolHandler(dir Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")

		tool, err := dir.GetTool(r.Context(), slug)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound,
				"NOT_FOUND", "No such tool", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to load tool", nil)
			return
		}

		response.JSON(w, tool)
	}
}

// NewCategoryStatsHandler returns the GET /v1/stats/categories handler.
// Stats come through the counter cache, so a store outage serves the
// last good aggregate instead of an error.
func NewCategoryStatsHandler(src StatsSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, _, err := src.CategoryStats(r.Context())
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Category stats are temporarily unavailable", nil)
			return
		}
		if stats == nil {
			stats = []*models.CategoryStat{}
		}

		response.JSON(w, stats)
	}
}
