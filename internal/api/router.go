package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mw "github.com/tooldex/tooldex/internal/api/middleware"
	"github.com/tooldex/tooldex/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit
	Signature *mw.Signature

	HealthHandler http.HandlerFunc

	ToolVoteCounts    http.HandlerFunc
	CastToolVote      http.HandlerFunc
	RequestVoteCounts http.HandlerFunc
	CastRequestVote   http.HandlerFunc
	ViewCounts        http.HandlerFunc
	AddView           http.HandlerFunc

	ListTools     http.HandlerFunc
	GetTool       http.HandlerFunc
	CategoryStats http.HandlerFunc
	RegisterKey   http.HandlerFunc

	ContentSync http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/healthz", orNotImplemented(deps.HealthHandler))
	r.Handle("/metrics", promhttp.Handler())

	// Anonymous counter endpoints
	r.Get("/votes", orNotImplemented(deps.ToolVoteCounts))
	r.Post("/votes", orNotImplemented(deps.CastToolVote))
	r.Get("/views", orNotImplemented(deps.ViewCounts))
	r.Post("/views", orNotImplemented(deps.AddView))
	r.Get("/requests/votes", orNotImplemented(deps.RequestVoteCounts))
	r.Post("/requests/votes", orNotImplemented(deps.CastRequestVote))

	// Public read API
	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.SecurityHeaders)

		// Registration is the one /v1 route that takes no key.
		r.Post("/keys", orNotImplemented(deps.RegisterKey))

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.Authenticate)
			r.Use(deps.RateLimit.Limit)

			r.Get("/tools", orNotImplemented(deps.ListTools))
			r.Get("/tools/{slug}", orNotImplemented(deps.GetTool))
			r.Get("/stats/categories", orNotImplemented(deps.CategoryStats))
		})
	})

	// Inbound webhooks
	r.Group(func(r chi.Router) {
		r.Use(deps.Signature.Verify)
		r.Post("/webhooks/content-sync", orNotImplemented(deps.ContentSync))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
