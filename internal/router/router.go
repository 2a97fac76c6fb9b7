package router

import (
	"net/http"

	"petshop/internal/handler"
	"petshop/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers mounted under /api.
type Handlers struct {
	Products *handler.ProductHandler
	Cart     *handler.CartHandler
	Orders   *handler.OrderHandler
	Payments *handler.PaymentHandler
	Loyalty  *handler.LoyaltyHandler
}

// New creates a new HTTP router with all routes and middleware configured.
func New(h Handlers, verifier middleware.TokenVerifier, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Recovery -> Correlation -> Logging -> Metrics -> CORS
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Correlation)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS)

	// Health check and metrics (no authentication required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.Products.GetAll)
		r.Get("/products/{id}", h.Products.GetByID)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(verifier, logger))

			r.With(middleware.RequireAdmin).Post("/products/{id}/stock", h.Products.AdjustStock)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.Cart.Get)
				r.Delete("/", h.Cart.Clear)
				r.Post("/items", h.Cart.AddItem)
				r.Patch("/items/{itemId}", h.Cart.UpdateItem)
				r.Delete("/items/{itemId}", h.Cart.RemoveItem)
				r.Post("/coupon", h.Cart.ApplyCoupon)
				r.Delete("/coupon", h.Cart.RemoveCoupon)
				r.Post("/checkout", h.Orders.Checkout)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", h.Orders.Create)
				r.Get("/", h.Orders.List)
				r.Get("/{id}", h.Orders.GetByID)
				r.Post("/{id}/cancel", h.Orders.Cancel)
				r.Get("/{id}/tracking", h.Orders.Tracking)
				r.With(middleware.RequireAdmin).Post("/{id}/status", h.Orders.Advance)
			})

			r.Route("/payments", func(r chi.Router) {
				r.Post("/intents", h.Payments.CreateIntent)
				r.Get("/intents/{id}", h.Payments.GetIntent)
				r.Post("/intents/{id}/confirm", h.Payments.ConfirmIntent)
				r.Post("/intents/{id}/cancel", h.Payments.CancelIntent)

				r.Get("/instruments", h.Payments.ListInstruments)
				r.Post("/instruments", h.Payments.AddInstrument)
				r.Delete("/instruments/{id}", h.Payments.DeactivateInstrument)

				r.Get("/{id}", h.Payments.GetPayment)
				r.Post("/{id}/refund", h.Payments.Refund)
				r.Get("/{id}/refunds", h.Payments.ListRefunds)
				r.With(middleware.RequireAdmin).Post("/{id}/settle", h.Payments.Settle)
			})

			r.Route("/loyalty", func(r chi.Router) {
				r.Get("/", h.Loyalty.GetAccount)
				r.Get("/transactions", h.Loyalty.ListTransactions)
				r.Post("/redeem", h.Loyalty.Redeem)
				r.With(middleware.RequireAdmin).Post("/bonus", h.Loyalty.Bonus)
			})
		})
	})

	return r
}
