/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/buckets/*       Bucket management, balances, projections, import
  /api/transactions/*  Transaction mutations and deletion
  /api/loans/*         Loan granting, status, repayment
  /api/metrics         Aggregate metrics

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/ledgerd: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Bucket routes
		r.Route("/buckets", func(r chi.Router) {
			r.Get("/", h.ListBuckets)
			r.Post("/", h.CreateBucket)
			r.Get("/{id}", h.GetBucket)
			r.Put("/{id}", h.UpdateBucket)
			r.Delete("/{id}", h.DeleteBucket)
			r.Post("/{id}/active", h.SetBucketActive)
			r.Post("/{id}/reset", h.ResetBucket)
			r.Post("/{id}/resync", h.ResyncBucket)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/entries", h.GetEntries)
			r.Get("/{id}/projection", h.GetProjection)
			r.Post("/{id}/import", h.ImportStatement)
		})

		// Transaction routes
		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", h.CreateTransaction)
			r.Post("/transfer", h.CreateTransfer)
			r.Post("/yield", h.CreateYield)
			r.Put("/{id}", h.EditTransaction)
			r.Post("/{id}/confirm", h.ConfirmTransaction)
			r.Delete("/{id}", h.DeleteTransaction)
		})

		// Loan routes
		r.Route("/loans", func(r chi.Router) {
			r.Get("/", h.ListLoans)
			r.Post("/", h.CreateLoan)
			r.Get("/{id}", h.GetLoan)
			r.Post("/{id}/repay", h.RepayLoan)
		})

		// Metrics
		r.Get("/metrics", h.GetMetrics)
	})

	return r
}
