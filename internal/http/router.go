package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Handlers struct {
	Cart     *CartHandler
	Catalog  *CatalogHandler
	Referral *ReferralHandler
	Checkout *CheckoutHandler
	Webhook  *WebhookHandler
	Admin    *AdminHandler
	Profile  *ProfileHandler
}

// NewRouter builds the storefront API. The webhook route sits outside the
// request timeout so a slow ledger write is not cut off halfway.
func NewRouter(h Handlers, auth *Authenticator, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhooks/payments", h.Webhook.Payments)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			r.Use(middleware.Compress(5))
			r.Use(auth.Optional)

			r.Get("/products", h.Catalog.ListProducts)
			r.Get("/products/{id}", h.Catalog.GetProduct)
			r.Get("/categories", h.Catalog.ListCategories)
			r.Get("/plans", h.Catalog.ListPlans)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.Cart.GetCart)
				r.Delete("/", h.Cart.ClearCart)
				r.Post("/items", h.Cart.AddItem)
				r.Put("/items/{product_id}", h.Cart.UpdateQuantity)
				r.Delete("/items/{product_id}", h.Cart.RemoveItem)
				r.Post("/subscription", h.Cart.AddSubscription)
			})

			r.Post("/referrals/validate", h.Referral.Validate)

			r.Post("/checkout", h.Checkout.Submit)
			r.Get("/checkout/sessions/{session_id}", h.Checkout.Session)

			r.Route("/me", func(r chi.Router) {
				r.Use(auth.Required)
				r.Get("/referral", h.Profile.Referral)
				r.Get("/orders", h.Profile.Orders)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(auth.Admin)
				r.Get("/orders", h.Admin.ListOrders)
				r.Post("/referrers", h.Admin.CreateReferrer)
				r.Get("/referrals/usages", h.Admin.ListUsages)
				r.Get("/referrals/stats", h.Admin.ListStats)
				r.Post("/referrals/usages/{id}/approve", h.Admin.ApproveUsage)
				r.Post("/referrals/payouts", h.Admin.CreatePayout)
			})
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}
