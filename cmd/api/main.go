package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"settlement-gateway/config"
	httpHandler "settlement-gateway/internal/adapter/http/handler"
	"settlement-gateway/internal/adapter/ledger"
	natsAdapter "settlement-gateway/internal/adapter/messaging/nats"
	"settlement-gateway/internal/adapter/metrics"
	memStorage "settlement-gateway/internal/adapter/storage/memory"
	pgStorage "settlement-gateway/internal/adapter/storage/postgres"
	redisStorage "settlement-gateway/internal/adapter/storage/redis"
	"settlement-gateway/internal/core/domain"
	"settlement-gateway/internal/core/ports"
	"settlement-gateway/internal/service"
	"settlement-gateway/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("SETTLE_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Str("network", cfg.Ledger.Network).
		Int("port", cfg.Server.Port).
		Msg("Starting settlement gateway")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promMetrics := metrics.New(registry)

	var (
		payments  ports.PaymentRepository
		merchants ports.MerchantDirectory
		endpoints ports.WebhookEndpointRepository
		checkers  []ports.HealthChecker
	)

	// Lifecycle store
	switch cfg.Storage.Driver {
	case "postgres":
		if cfg.Database.Migrate {
			if err := pgStorage.Migrate(cfg.Database.DSN(), log); err != nil {
				log.Fatal().Err(err).Msg("Failed to apply migrations")
			}
		}
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()

		payments = pgStorage.NewPaymentRepo(pool)
		merchants = pgStorage.NewMerchantDirectory(pool)
		endpoints = pgStorage.NewWebhookEndpointRepo(pool)
		checkers = append(checkers, pgStorage.NewHealthCheck(pool))
	default:
		log.Warn().Msg("Using in-memory storage, state is lost on restart")
		payments = memStorage.NewPaymentStore()
		merchants = memStorage.NewMerchantDirectory()
		endpoints = memStorage.NewWebhookEndpointStore()
	}

	// Redis backs the optional stores; each stays nil without it.
	var (
		idemCache   ports.IdempotencyCache
		jobLock     ports.JobLock
		rateLimiter ports.RateLimiter
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()

		idemCache = redisStorage.NewIdempotencyCache(rdb)
		jobLock = redisStorage.NewJobLock(rdb)
		rateLimiter = redisStorage.NewRateLimitStore(rdb)
		checkers = append(checkers, redisStorage.NewHealthCheck(rdb))
	}

	// Core services
	vault, err := service.NewKeyVault(cfg.Vault.MasterSecret, cfg.Ledger.Network)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize key vault")
	}
	encSvc, err := service.NewAESEncryptionService(cfg.Encryption.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)

	ledgerClient, err := ledger.NewClient(cfg.Ledger, vault, &http.Client{Timeout: cfg.Ledger.CallTimeout}, promMetrics, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize ledger client")
	}

	dispatcher := service.NewWebhookDispatcher(endpoints, encSvc, sigSvc, &http.Client{}, promMetrics, service.DispatcherConfig{
		Workers:   cfg.Webhook.Workers,
		QueueSize: cfg.Webhook.QueueSize,
		Defaults: domain.WebhookSettings{
			Timeout:       cfg.Webhook.DefaultTimeout,
			RetryAttempts: cfg.Webhook.DefaultRetryAttempts,
			RetryDelays:   cfg.Webhook.DefaultRetryDelays,
		},
		Livemode: cfg.Ledger.Network == "mainnet",
	}, log)
	dispatcher.Start(ctx)

	settlementSvc := service.NewSettlementService(payments, merchants, vault, ledgerClient, dispatcher, promMetrics, service.SettlementConfig{
		MinAmount:     cfg.Settlement.MinAmount,
		Currencies:    cfg.Settlement.Currencies,
		DefaultExpiry: cfg.Settlement.DefaultExpiry,
		MaxExpiry:     cfg.Settlement.MaxExpiry,
		AutoSettle:    cfg.Settlement.AutoSettle,
		BlockTime:     cfg.Ledger.BlockTime,
		Retry: service.RetryPolicy{
			Attempts:  cfg.Ledger.RetryAttempts,
			BaseDelay: cfg.Ledger.RetryBaseDelay,
			MaxDelay:  cfg.Ledger.RetryMaxDelay,
		},
	}, log)

	reconciler := service.NewReconciliationService(payments, settlementSvc, jobLock, promMetrics, service.ReconcilerConfig{
		Interval:            cfg.Settlement.ReconcileInterval,
		RegistrationGrace:   cfg.Settlement.RegistrationGrace,
		StaleConfirmedAfter: cfg.Settlement.StaleConfirmedAfter,
		ClaimTTL:            cfg.Settlement.ClaimTTL,
		LockTTL:             cfg.Settlement.LockTTL,
		BatchSize:           cfg.Settlement.BatchSize,
	}, log)

	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		reconciler.Run(ctx)
	}()

	// Chain observer deposits over JetStream
	if cfg.NATS.Enabled {
		nc, err := natsAdapter.Connect(cfg.NATS, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer nc.Close()

		consumer, err := nc.EnsureDepositConsumer(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to set up deposit consumer")
		}
		checkers = append(checkers, nc)

		deposits := natsAdapter.NewDepositConsumer(settlementSvc, cfg.NATS.NakDelay, log)
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := deposits.Run(ctx, consumer); err != nil {
				log.Error().Err(err).Msg("Deposit consumer stopped")
			}
		}()
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		SettlementSvc:  settlementSvc,
		WebhookAdmin:   dispatcher,
		TokenSvc:       tokenSvc,
		IdemCache:      idemCache,
		RateLimiter:    rateLimiter,
		RateLimit:      cfg.RateLimit,
		HealthCheckers: checkers,
		Metrics:        promMetrics.Handler(),
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		IdempotencyTTL: cfg.Server.IdempotencyTTL,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	workers.Wait()
	dispatcher.Stop()

	log.Info().Msg("Server exited")
}
