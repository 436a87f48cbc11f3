// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wisestudent-purchase/internal/config"
	pg "wisestudent-purchase/internal/infra/db/postgres"
	"wisestudent-purchase/internal/infra/gateway"
	"wisestudent-purchase/internal/infra/logging"
	"wisestudent-purchase/internal/infra/metrics"
	red "wisestudent-purchase/internal/infra/redis"
	"wisestudent-purchase/internal/infra/sched"
	"wisestudent-purchase/internal/infra/web"
	"wisestudent-purchase/internal/infra/worker"
	"wisestudent-purchase/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed validation)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, *devMode)
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()

	broadcaster := red.NewBroadcaster(redisClient, logger)
	resumeRepo := red.NewResumeRepo(redisClient, cfg.Redis.ResumeTTL)
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	intentRepo := pg.NewIntentRepo(pool)
	orderRepo := pg.NewOrderRepo(pool)
	activationRepo := pg.NewActivationRepo(pool)
	planRepo := pg.NewPlanRepo(pool)

	// ---- Gateway ----
	pgw, err := gateway.NewCheckoutGateway(cfg.Gateway)
	if err != nil {
		logger.Fatal().Err(err).Msg("payment gateway init failed")
	}
	logger.Info().
		Str("gateway", pgw.Name()).
		Str("key_id", logging.Redact(cfg.Gateway.KeyID, *devMode)).
		Msg("payment gateway ready")

	// ---- Use cases ----
	guard := usecase.NewActivationUseCase(intentRepo, activationRepo, resumeRepo, broadcaster, tm, logger)
	purchaseUC := usecase.NewPurchaseUseCase(intentRepo, orderRepo, planRepo, resumeRepo, pgw, guard, logger)
	verifyUC := usecase.NewVerificationUseCase(intentRepo, orderRepo, pgw, guard, logger)
	cancelUC := usecase.NewCancellationUseCase(intentRepo, orderRepo, resumeRepo, logger)

	// ---- Broadcast listener ----
	workerPool := worker.NewPool(4, logger)
	workerPool.Start(ctx)
	defer workerPool.Stop()

	listener := usecase.NewActivationListener(broadcaster, guard, workerPool, logger)
	go func() {
		if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("activation listener stopped")
		}
	}()

	// ---- HTTP ----
	auth := web.NewAuthManager(cfg.HTTP.JWTSecret, 24*time.Hour)
	hub := web.NewStreamHub(broadcaster, auth, logger)
	go func() {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("stream hub stopped")
		}
	}()

	webhook := web.NewWebhookHandler(orderRepo, guard, locker, cfg.Gateway.WebhookSecret, logger)
	srv := web.NewServer(purchaseUC, verifyUC, cancelUC, planRepo, webhook, hub, auth, cfg.HTTP.RequestTimeout, logger)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: srv.Handler(),
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Reconciler ----
	reconciler := sched.NewReconciler(
		intentRepo, orderRepo, pgw, guard, cancelUC,
		cfg.Reconciler.Interval, cfg.Reconciler.VerifyStale, cfg.Reconciler.AbandonAfter,
		logger,
	)
	go reconciler.Start(ctx)

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown incomplete")
	}
	cancel()
}
