package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/clinora/clinora/internal/app"
	"github.com/clinora/clinora/internal/financeiro"
	"github.com/clinora/clinora/internal/financeiro/asaas"
	"github.com/clinora/clinora/internal/pacientes"
	"github.com/clinora/clinora/internal/platform/cache"
	"github.com/clinora/clinora/internal/platform/db"
	"github.com/clinora/clinora/internal/shared"
	"github.com/clinora/clinora/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	secretBox, err := shared.NewSecretBox(cfg.CredentialMasterKey)
	if err != nil {
		logger.Error("credential master key", slog.Any("error", err))
		os.Exit(1)
	}

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	pacientesRepo := pacientes.NewRepository(pool)
	pacientesService := pacientes.NewService(pacientesRepo)

	gateway := asaas.NewClient(cfg.AsaasBaseURL)
	credentialStore := financeiro.NewCredentialStore(pool, redisClient, secretBox)
	financeiroRepo := financeiro.NewRepository(pool)
	financeiroService := financeiro.NewService(logger, financeiroRepo, gateway, pacientesService, credentialStore, nil, auditLogger)

	compensateJob := jobs.NewCompensateChargeJob(gateway, credentialStore, logger)
	sweepJob := jobs.NewOverdueSweepJob(financeiroService, logger)
	cleanupJob := jobs.NewIdempotencyCleanupJob(idempotencyStore, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskChargeCompensate, Handler: compensateJob.Handle},
			{Type: jobs.TaskOverdueSweep, Handler: sweepJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "5 0 * * *", Task: jobs.NewOverdueSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 3 * * 0", Task: jobs.NewIdempotencyCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
