/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the POS and back-office UIs

ROUTE GROUPS:
  /api/sales, /api/catalog   Live sale path
  /api/staff/*               Ledger, events, shifts, adjustments
  /api/awards/*              Period review and award commit
  /api/bonus/*, /api/reset   Operator batch jobs
  /api/scenarios/*           Demo data (only with RouterOptions.Scenarios)
  /metrics                   Prometheus exposition

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions are the optional parts of the router.
type RouterOptions struct {
	CORSOrigins []string
	Metrics     http.Handler // served at /metrics when set
	Scenarios   bool         // mount the demo scenario loaders
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/sales", h.SubmitSale)
		r.Get("/catalog", h.GetCatalog)

		// Staff routes
		r.Route("/staff/{id}", func(r chi.Router) {
			r.Get("/ledger", h.GetLedger)
			r.Get("/events", h.GetEvents)
			r.Post("/shifts", h.RecordShift)
			r.Post("/adjustments", h.CreateAdjustment)
		})

		// Award routes
		r.Route("/awards", func(r chi.Router) {
			r.Get("/pending", h.ListPendingReviews)
			r.Get("/{kind}/{period}", h.GetReview)
			r.Post("/{kind}/{period}/preview", h.PreviewAward)
			r.Post("/{kind}/{period}/commit", h.CommitAward)
		})

		// Batch job routes
		r.Route("/bonus", func(r chi.Router) {
			r.Post("/preview", h.PreviewBonus)
			r.Post("/commit", h.CommitBonus)
			r.Post("/revert", h.RevertBonus)
		})
		r.Post("/reset", h.ResetWindow)

		// Demo routes
		if opts.Scenarios {
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
			})
		}
	})

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	return r
}
