/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. Metrics:    Request latency histogram per route
  5. CORS:       Cross-origin requests for the dashboard

ROUTE GROUPS:
  /api/login                 Identity lookup
  /api/progress/*            Recording and listing completions
  /api/summary/*             Week/month rollups
  /api/leaderboard           Sorted per-user totals
  /api/settings/*            Repeat-policy setting
  /metrics                   Prometheus
  /healthz                   Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tally/kpitrack/metrics"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.Login)

		r.Route("/progress", func(r chi.Router) {
			r.Get("/", h.ListProgress)
			r.Post("/", h.RecordProgress)
			r.Delete("/{id}", h.DeleteProgress)
		})

		r.Route("/summary", func(r chi.Router) {
			r.Get("/week", h.WeekSummary)
			r.Get("/month", h.MonthSummary)
		})

		r.Get("/leaderboard", h.Leaderboard)

		r.Route("/settings", func(r chi.Router) {
			r.Get("/repeat-policy", h.GetRepeatPolicy)
			r.Put("/repeat-policy", h.SetRepeatPolicy)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", h.Health)

	return r
}
