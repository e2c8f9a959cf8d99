/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Metrics:    Latency histogram per route pattern
  5. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /healthz              Liveness + store ping (public)
  /metrics              Prometheus (public)
  /api/login            Token exchange (public)
  /api/court-status     Occupancy grid (public, read-only)
  /api/*                Everything else requires a token
  /api/* [admin]        Top-ups, cancellations, ledger and audit views

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Authenticated / AdminOnly
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	CORSOrigins []string
	Scenarios   bool // mount /api/scenarios
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(h.Metrics.Instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", h.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		// Public
		r.Post("/login", h.Login)
		r.Get("/court-status", h.CourtStatus)
		r.Post("/court-status", h.CourtStatus)

		// Authenticated
		r.Group(func(r chi.Router) {
			r.Use(h.Authenticated)

			r.Get("/session", h.Session)
			r.Get("/members/me", h.Me)
			r.Post("/reservations", h.Book)
			r.Get("/reservations/mine", h.MyReservations)

			// Admin routes
			r.Group(func(r chi.Router) {
				r.Use(AdminOnly)

				r.Post("/topup", h.TopUp)
				r.Get("/transactions", h.Transactions)

				r.Get("/reservations", h.AllReservations)
				r.Post("/reservations/{id}/cancel", h.Cancel)
				r.Delete("/reservations/{id}", h.Cancel)

				r.Get("/members", h.ListMembers)
				r.Get("/members/{id}/balance", h.MemberBalance)
				r.Get("/members/{id}/reconcile", h.Reconcile)

				r.Get("/audit", h.LastAudit)
				r.Post("/audit/run", h.RunAudit)

				if opts.Scenarios {
					r.Route("/scenarios", func(r chi.Router) {
						r.Get("/", h.ListScenarios)
						r.Get("/current", h.GetCurrentScenario)
						r.Post("/load", h.LoadScenario)
					})
				}
			})
		})
	})

	return r
}
