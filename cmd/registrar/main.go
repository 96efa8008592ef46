package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/terrierbot/registrar/pkg/api"
	"github.com/terrierbot/registrar/pkg/catalog"
	"github.com/terrierbot/registrar/pkg/config"
	"github.com/terrierbot/registrar/pkg/credits"
	"github.com/terrierbot/registrar/pkg/httputil"
	"github.com/terrierbot/registrar/pkg/middleware"
	"github.com/terrierbot/registrar/pkg/observability"
	"github.com/terrierbot/registrar/pkg/purchases"
	"github.com/terrierbot/registrar/pkg/sessions"
	"github.com/terrierbot/registrar/pkg/storage/postgres"
	"github.com/terrierbot/registrar/pkg/users"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("Starting registrar session service")

	db, err := postgres.Connect(cfg.Database)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to database")
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.Bootstrap(db); err != nil {
		logger.WithError(err).Error("Failed to bootstrap database schema")
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.WithError(err).Warn("Redis unreachable, continuing without cache")
		}
	}

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	// Service wiring. The credit ledger is shared between the session
	// registry (debits on registration) and the purchase ledger (grants
	// on checkout completion).
	creditLedger := credits.NewPostgresLedger(db)
	stripeClient := purchases.NewStripeClient(cfg.Billing.BaseURL)
	userService := users.NewPostgresService(db, stripeClient)
	sessionRegistry := sessions.NewPostgresRegistry(db, creditLedger)
	purchaseLedger := purchases.NewPostgresLedger(db, creditLedger)
	pricer := purchases.NewPricer(cfg.Billing.PriceTiers)
	checkout := purchases.NewCheckoutService(pricer, stripeClient, purchaseLedger)

	catalogService, err := catalog.NewCachedService(catalog.NewPostgresService(db), redisClient, metrics)
	if err != nil {
		logger.WithError(err).Error("Failed to create catalog cache")
		os.Exit(1)
	}

	server := api.NewServer(api.Config{
		Users:     userService,
		Registry:  sessionRegistry,
		Catalog:   catalogService,
		Checkout:  checkout,
		Purchases: purchaseLedger,
		Logger:    logger,
		Metrics:   metrics,
	})

	var handler http.Handler = server
	if redisClient != nil {
		handler = middleware.NewDistributedRateLimitMiddleware(redisClient).Handler(handler)
	} else {
		handler = middleware.NewRateLimitMiddleware().Handler(handler)
	}
	handler = httputil.CORSMiddleware([]string{"*"})(handler)

	// Liveness reaper for sessions whose heartbeats stopped
	reaperCtx, stopReaper := context.WithCancel(context.Background())
	reaper := sessions.NewReaper(sessionRegistry, logger, metrics, cfg.Reaper.Interval, cfg.Reaper.StaleAfter)
	go func() {
		defer observability.RecoverPanic(logger, "session-reaper")
		reaper.Run(reaperCtx)
	}()

	// Health and metrics on a separate port for probes and scrapers
	healthChecker := observability.NewHealthChecker(db, redisClient)
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", healthChecker.Liveness)
	healthMux.HandleFunc("/readyz", healthChecker.Readiness)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}
	go func() {
		logger.Infof("Health server listening on port %s", cfg.Server.HealthPort)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Health server failed")
		}
	}()

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, apiServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc("session-reaper", func(ctx context.Context) error {
		stopReaper()
		return nil
	})
	shutdown.RegisterShutdownFunc("health-server", func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	shutdown.RegisterShutdownFunc("database", func(ctx context.Context) error {
		return db.Close()
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc("redis", func(ctx context.Context) error {
			return redisClient.Close()
		})
	}

	go func() {
		logger.Infof("API server listening on port %s", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("API server failed")
			os.Exit(1)
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
}
