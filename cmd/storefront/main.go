package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/cart/cache"
	cartrepo "github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/cart/repository"
	cartservice "github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/cart/service"
	catalogrepo "github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/catalog/repository"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/checkout"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/config"
	h "github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/http"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/orders/repository"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/orders/webhook"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/payment/pricecache"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/payment/session"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/payment/stripe"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/referral"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/pkg/circuitbreaker"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Service: "storefront", Level: cfg.LogLevel, Format: cfg.LogFormat})
	slog.SetDefault(log)

	if err := cfg.RequireSecrets(); err != nil {
		fatal(log, "invalid configuration", err)
	}

	ctx := context.Background()

	// Ledger
	creds := &repository.Credentials{
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		DBName:            cfg.DBName,
		MigrationsDirPath: cfg.LedgerMigrationsDir,
	}
	ledger, err := repository.NewRepository(creds, log)
	if err != nil {
		fatal(log, "failed to connect to ledger database", err)
	}
	defer ledger.Close()
	if err := ledger.RunMigrations(creds); err != nil {
		fatal(log, "failed to run ledger migrations", err)
	}
	log.Info("ledger migrations completed")

	// Catalog
	products, err := catalogrepo.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		fatal(log, "failed to open catalog", err)
	}
	defer products.Close()
	if err := products.RunMigrations(cfg.CatalogMigrationsDir); err != nil {
		fatal(log, "failed to run catalog migrations", err)
	}

	// Cart
	mongoDB, err := cartrepo.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		fatal(log, "failed to connect to mongodb", err)
	}
	defer mongoDB.Client().Disconnect(context.Background())
	carts := cartrepo.NewMongoRepository(mongoDB)
	if err := carts.CreateIndexes(ctx); err != nil {
		fatal(log, "failed to create cart indexes", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		fatal(log, "redis connection failed", err)
	}

	cartService := cartservice.NewCartService(carts, cache.NewRedisCache(redisClient), products, cfg.StoreCurrency, log)

	// Payments
	processor := stripe.New(stripe.Config{
		SecretKey:     cfg.PaymentSecretKey,
		WebhookSecret: cfg.PaymentWebhookSecret,
		Breaker:       circuitbreaker.DefaultConfig(),
	}, log)
	builder := session.NewBuilder(processor, pricecache.NewRedisCache(redisClient), log)

	validator := referral.NewValidator(ledger, log)
	checkoutService := checkout.NewService(cartService, validator, builder, ledger, checkout.Options{
		ConfirmAttempts: cfg.ConfirmAttempts,
		ConfirmBackoff:  cfg.ConfirmBackoff,
		LoginPath:       cfg.PublicBaseURL + "/login",
		CheckoutPath:    "/checkout",
	}, log)
	reconciler := webhook.NewReconciler(processor, ledger, ledger, log)

	router := h.NewRouter(h.Handlers{
		Cart:     h.NewCartHandler(cartService, cfg.RequestTimeout, log),
		Catalog:  h.NewCatalogHandler(products, cfg.RequestTimeout, log),
		Referral: h.NewReferralHandler(validator, cfg.RequestTimeout, log),
		Checkout: h.NewCheckoutHandler(checkoutService, ledger, log),
		Webhook:  h.NewWebhookHandler(reconciler, log),
		Admin:    h.NewAdminHandler(ledger, cfg.RequestTimeout, log),
		Profile:  h.NewProfileHandler(ledger, cfg.RequestTimeout, log),
	}, h.NewAuthenticator(cfg.JWTSecret), cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("storefront starting", "port", cfg.HTTPPort, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(log, "server error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	log.Info("server exited")
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
