package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all optimization and fixed-income routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/frontier", func(r chi.Router) {
		r.Post("/", h.HandleFrontier)
		r.Get("/runs", h.HandleListRuns)
		r.Get("/runs/{runID}", h.HandleGetRun)
	})

	r.Route("/portfolio", func(r chi.Router) {
		r.Post("/metrics", h.HandlePortfolioMetrics)
	})

	// Closed-form instruments
	r.Post("/bonds/valuation", h.HandleBondValuation)
	r.Post("/pairs", h.HandlePair)
}
