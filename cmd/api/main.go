package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/atelier-nord/storefront-backend/api/routes"
	"github.com/atelier-nord/storefront-backend/internal/catalog"
	"github.com/atelier-nord/storefront-backend/internal/customers"
	"github.com/atelier-nord/storefront-backend/internal/discounts"
	"github.com/atelier-nord/storefront-backend/internal/fulfillment"
	"github.com/atelier-nord/storefront-backend/internal/notifications"
	"github.com/atelier-nord/storefront-backend/internal/orders"
	"github.com/atelier-nord/storefront-backend/internal/payments"
	"github.com/atelier-nord/storefront-backend/internal/settlement"
	"github.com/atelier-nord/storefront-backend/internal/shippingrates"
	"github.com/atelier-nord/storefront-backend/pkg/config"
	"github.com/atelier-nord/storefront-backend/pkg/db"
	"github.com/atelier-nord/storefront-backend/pkg/logger"
	"github.com/atelier-nord/storefront-backend/pkg/metrics"
	"github.com/atelier-nord/storefront-backend/pkg/migrate"
	"github.com/atelier-nord/storefront-backend/pkg/paypal"
	"github.com/atelier-nord/storefront-backend/pkg/redis"
	"github.com/atelier-nord/storefront-backend/pkg/sendcloud"
	"github.com/atelier-nord/storefront-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	cartResolver, err := catalog.NewResolver(catalog.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create cart resolver", err)
		os.Exit(1)
	}
	discountResolver, err := discounts.NewResolver(discounts.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create discount resolver", err)
		os.Exit(1)
	}
	shippingResolver, err := shippingrates.NewResolver(
		shippingrates.NewRepository(dbClient.DB()),
		cfg.Checkout.DefaultShippingCents,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create shipping resolver", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	customersRepo := customers.NewRepository(dbClient.DB())

	rails := []payments.Rail{payments.NewManualRail()}

	var stripeClient *stripe.Client
	if cfg.Stripe.APIKey != "" {
		stripeClient, err = stripe.NewClient(context.Background(), cfg.Stripe, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create stripe client", err)
			os.Exit(1)
		}
		cardRail, err := payments.NewCardRail(stripeClient)
		if err != nil {
			logg.Error(context.Background(), "failed to create card rail", err)
			os.Exit(1)
		}
		rails = append(rails, cardRail)
	} else {
		logg.Warn(context.Background(), "stripe not configured, card payments disabled")
	}

	var paypalClient *paypal.Client
	if cfg.PayPal.ClientID != "" && cfg.PayPal.Secret != "" {
		paypalClient, err = paypal.NewClient(context.Background(), cfg.PayPal, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create paypal client", err)
			os.Exit(1)
		}
		walletRail, err := payments.NewWalletRail(paypalClient)
		if err != nil {
			logg.Error(context.Background(), "failed to create wallet rail", err)
			os.Exit(1)
		}
		rails = append(rails, walletRail)
	} else {
		logg.Warn(context.Background(), "paypal not configured, wallet payments disabled")
	}

	settlementService, err := settlement.NewService(
		dbClient,
		cartResolver,
		discountResolver,
		shippingResolver,
		rails,
		customersRepo,
		ordersRepo,
		notifications.NewMailer(cfg.Sendgrid),
		checkoutMetrics,
		logg,
		cfg.Checkout.NormalizedCurrency(),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	var fulfillmentService fulfillment.Service
	if cfg.Sendcloud.PublicKey != "" && cfg.Sendcloud.SecretKey != "" {
		opts := []sendcloud.Option{}
		if cfg.Sendcloud.BaseURL != "" {
			opts = append(opts, sendcloud.WithBaseURL(cfg.Sendcloud.BaseURL))
		}
		carrierClient, err := sendcloud.NewClient(cfg.Sendcloud.PublicKey, cfg.Sendcloud.SecretKey, opts...)
		if err != nil {
			logg.Error(context.Background(), "failed to create sendcloud client", err)
			os.Exit(1)
		}
		fulfillmentService, err = fulfillment.NewService(
			carrierClient,
			ordersRepo,
			redisClient,
			cfg.Checkout.QuoteCacheTTL,
			checkoutMetrics,
			logg,
		)
		if err != nil {
			logg.Error(context.Background(), "failed to create fulfillment service", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "sendcloud not configured, label purchase disabled")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:             cfg,
			Logger:             logg,
			DB:                 dbClient,
			Redis:              redisClient,
			SettlementService:  settlementService,
			FulfillmentService: fulfillmentService,
			OrdersRepo:         ordersRepo,
			Stripe:             stripeClient,
			PayPal:             paypalClient,
			Metrics:            registry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
