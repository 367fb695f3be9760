package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atelier-nord/storefront-backend/api/controllers"
	"github.com/atelier-nord/storefront-backend/api/middleware"
	"github.com/atelier-nord/storefront-backend/internal/fulfillment"
	"github.com/atelier-nord/storefront-backend/internal/orders"
	"github.com/atelier-nord/storefront-backend/internal/settlement"
	"github.com/atelier-nord/storefront-backend/pkg/config"
	"github.com/atelier-nord/storefront-backend/pkg/db"
	"github.com/atelier-nord/storefront-backend/pkg/logger"
	"github.com/atelier-nord/storefront-backend/pkg/paypal"
	"github.com/atelier-nord/storefront-backend/pkg/redis"
	"github.com/atelier-nord/storefront-backend/pkg/stripe"
)

// Deps bundles everything the HTTP surface needs. Provider clients may be
// nil when their rail is not configured; the affected endpoints then report
// the capability as unavailable instead of panicking.
type Deps struct {
	Config             *config.Config
	Logger             *logger.Logger
	DB                 db.Pinger
	Redis              *redis.Client
	SettlementService  settlement.Service
	FulfillmentService fulfillment.Service
	OrdersRepo         orders.Repository
	Stripe             *stripe.Client
	PayPal             *paypal.Client
	Metrics            prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	var intents controllers.IntentCreator
	if deps.Stripe != nil {
		intents = deps.Stripe
	}
	var wallets controllers.WalletOrders
	if deps.PayPal != nil {
		wallets = deps.PayPal
	}

	checkoutPolicy := middleware.NewRateLimitPolicy(
		"checkout",
		cfg.RateLimit.CheckoutWindow,
		cfg.RateLimit.CheckoutIPLimit,
		cfg.RateLimit.CheckoutEmailLimit,
	)
	rateLimiter := func(next http.Handler) http.Handler { return next }
	var redisPinger redis.Pinger
	if deps.Redis != nil {
		rateLimiter = middleware.RateLimit(checkoutPolicy, deps.Redis, logg)
		redisPinger = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, redisPinger))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/checkout", func(r chi.Router) {
			r.Use(rateLimiter)
			r.Post("/quote", controllers.CheckoutQuote(deps.SettlementService, logg))
			r.Post("/stripe/intent", controllers.StripeIntent(deps.SettlementService, intents, logg))
			r.Post("/stripe/confirm", controllers.StripeConfirm(deps.SettlementService, logg))
			r.Post("/paypal/order", controllers.PayPalOrder(deps.SettlementService, wallets, logg))
			r.Post("/paypal/capture", controllers.PayPalCapture(deps.SettlementService, wallets, logg))
			r.Post("/manual", controllers.CheckoutManual(deps.SettlementService, logg))
		})

		r.Get("/orders/{publicId}", controllers.OrderDetail(deps.OrdersRepo, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.AdminKey(cfg.Admin.APIKey, logg))
		r.Get("/orders", controllers.AdminOrderList(deps.OrdersRepo, logg))
		r.Route("/orders/{publicId}/shipping", func(r chi.Router) {
			r.Post("/quotes", controllers.AdminShippingQuotes(deps.FulfillmentService, logg))
			r.Post("/label", controllers.AdminPurchaseLabel(deps.FulfillmentService, logg))
		})
	})

	return r
}
