package http

import (
	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/TripForge/internal/middleware"
)

// MountRoutes registers the API routes on r. Planning routes are rate
// limited when rl is non-nil.
func MountRoutes(r chi.Router, h *Handlers, rl *middleware.RateLimiter) {
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		if rl != nil {
			r.Use(rl.Handler)
		}
		r.Post("/plan-trip", h.PlanTrip)
		r.Post("/plan-trip/stream", h.PlanTripStream)
	})
}
