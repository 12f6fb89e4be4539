package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wallet-settlement-core/config"
	httpHandler "wallet-settlement-core/internal/adapter/http/handler"
	pgStorage "wallet-settlement-core/internal/adapter/storage/postgres"
	redisStorage "wallet-settlement-core/internal/adapter/storage/redis"
	"wallet-settlement-core/internal/core/ports"
	"wallet-settlement-core/internal/service"
	"wallet-settlement-core/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Wallet Settlement Core")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	accountRepo := pgStorage.NewAccountRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	subRepo := pgStorage.NewSubmissionRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	nonceStore := redisStorage.NewNonceStore(rdb)

	// Initialize core services
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Event publisher: signed webhooks when an endpoint is configured
	var events ports.EventPublisher = service.NopPublisher{}
	if cfg.Notifier.URL != "" {
		events = service.NewNotifierService(
			cfg.Notifier.URL,
			cfg.Notifier.Secret,
			sigSvc,
			&http.Client{Timeout: 10 * time.Second},
			log,
		)
	}

	// Initialize business services
	gate := service.NewGateService(accountRepo, logger.Component(log, "gate"))
	ledgerSvc := service.NewLedgerService(accountRepo, txRepo, idempotencyCache, transactor, events, logger.Component(log, "ledger"))
	submissionSvc := service.NewSubmissionService(subRepo, accountRepo, auditRepo, gate, ledgerSvc, transactor, events, logger.Component(log, "submission"))
	authSvc := service.NewAuthService(accountRepo, hashSvc, tokenSvc)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		LedgerSvc:      ledgerSvc,
		SubmissionSvc:  submissionSvc,
		Gate:           gate,
		TokenSvc:       tokenSvc,
		SigSvc:         sigSvc,
		NonceStore:     nonceStore,
		MonitorSecret:  cfg.Monitor.Secret,
		MonitorTTL:     cfg.Monitor.NonceTTL,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
