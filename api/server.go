/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Metrics:    Prometheus request counters and latency
  5. CORS:       Cross-origin requests for the back-office frontend
  6. Actor:      /api only, resolves X-Actor-Id to a loyalty.Actor

ROUTE GROUPS:
  /healthz              Liveness, 503 when the database does not answer
  /metrics              Prometheus scrape endpoint
  /api/rules/*          Points rules
  /api/thresholds/*     Redemption catalog
  /api/clients/*        Clients, cards, adjustments
  /api/cards/*          Card lookup and blocking
  /api/purchases        Record purchases
  /api/transactions/*   Purchase records
  /api/stations/*       Stations
  /api/operators/*      Operators
  /api/reports/*        Range reports
  /api/scenarios/*      Demo data

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/loyalty-engine/metrics"
)

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterOptions carries the optional parts of the router.
type RouterOptions struct {
	AllowedOrigins []string
	Metrics        *metrics.Metrics
	// Pinger backs /healthz; nil means always healthy.
	Pinger Pinger
	// Gatherer backs /metrics; nil means the default Prometheus registry.
	Gatherer prometheus.Gatherer
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", HeaderActorID, HeaderActorClient},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if opts.Pinger != nil {
			if err := opts.Pinger.Ping(r.Context()); err != nil {
				writeError(w, http.StatusServiceUnavailable, "Database unreachable", err)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(h.ActorMiddleware)

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", h.ListRules)
			r.Post("/", h.CreateRule)
			r.Get("/active", h.GetActiveRule)
			r.Get("/{id}", h.GetRule)
		})

		r.Route("/thresholds", func(r chi.Router) {
			r.Get("/", h.ListThresholds)
			r.Post("/", h.CreateThreshold)
			r.Get("/best", h.BestThreshold)
		})

		r.Route("/clients", func(r chi.Router) {
			r.Get("/", h.ListClients)
			r.Post("/", h.CreateClient)
			r.Get("/by-phone/{phone}", h.GetClientByPhone)
			r.Get("/{id}", h.GetClient)
			r.Get("/{id}/transactions", h.GetClientTransactions)
			r.Post("/{id}/card", h.IssueCard)
			r.Post("/{id}/adjustments", h.CreateAdjustment)
		})

		r.Route("/cards", func(r chi.Router) {
			r.Get("/{number}", h.ResolveCard)
			r.Put("/{number}/status", h.SetCardStatus)
		})

		r.Post("/purchases", h.RecordPurchase)
		r.Get("/transactions/{id}", h.GetTransaction)

		r.Route("/stations", func(r chi.Router) {
			r.Get("/", h.ListStations)
			r.Post("/", h.CreateStation)
		})

		r.Route("/operators", func(r chi.Router) {
			r.Get("/", h.ListOperators)
			r.Post("/", h.CreateOperator)
			r.Put("/{id}/status", h.SetOperatorStatus)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/daily", h.DailyReport)
			r.Get("/range", h.RangeReport)
			r.Get("/weekly", h.WeeklyReport)
			r.Get("/monthly", h.MonthlyReport)
			r.Get("/annual", h.AnnualReport)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
