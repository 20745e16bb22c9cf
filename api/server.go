/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Metrics:    Prometheus request count and latency per route
  5. CORS:       Cross-origin requests for the desk frontend

ROUTE GROUPS:
  /api/categories, /api/rooms/*       Room registry and availability
  /api/guests/*                       Guests
  /api/bookings/*                     Booking lifecycle and ledger views
  /api/products/*, /api/payment-methods
  /api/cashier/sessions/*             Register sessions
  /api/calendar, /api/dashboard       Front-desk views
  /api/scenarios/*                    Demo data
  /metrics                            Prometheus
  /healthz                            Liveness

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

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

type RouterOptions struct {
	CORSOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(h.metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", OperatorHeader},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Post("/", h.CreateCategory)
		})

		r.Route("/rooms", func(r chi.Router) {
			r.Get("/", h.ListRooms)
			r.Post("/", h.CreateRoom)
			r.Get("/{id}", h.GetRoom)
			r.Delete("/{id}", h.DeleteRoom)
			r.Post("/{id}/transitions", h.TransitionRoom)
			r.Get("/{id}/availability", h.RoomAvailability)
		})

		r.Route("/guests", func(r chi.Router) {
			r.Get("/", h.ListGuests)
			r.Post("/", h.CreateGuest)
			r.Get("/{id}", h.GetGuest)
			r.Delete("/{id}", h.DeleteGuest)
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", h.CreateBooking)
			r.Get("/{id}", h.GetBooking)
			r.Post("/{id}/confirm", h.ConfirmBooking)
			r.Post("/{id}/check-in", h.CheckIn)
			r.Post("/{id}/check-out", h.CheckOut)
			r.Post("/{id}/cancel", h.CancelBooking)
			r.Get("/{id}/balance", h.GetBookingBalance)
			r.Get("/{id}/transactions", h.GetBookingTransactions)
			r.Post("/{id}/consumptions", h.RegisterConsumption)
			r.Post("/{id}/payments", h.ReceivePayment)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Post("/", h.CreateProduct)
			r.Post("/{id}/restock", h.RestockProduct)
		})

		r.Route("/payment-methods", func(r chi.Router) {
			r.Get("/", h.ListPaymentMethods)
			r.Post("/", h.CreatePaymentMethod)
		})

		r.Route("/cashier/sessions", func(r chi.Router) {
			r.Post("/", h.OpenSession)
			r.Get("/current", h.CurrentSession)
			r.Get("/{id}", h.GetSession)
			r.Post("/{id}/close", h.CloseSession)
			r.Post("/{id}/transactions", h.RecordTransaction)
		})

		r.Get("/calendar", h.Calendar)
		r.Get("/dashboard", h.Dashboard)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
