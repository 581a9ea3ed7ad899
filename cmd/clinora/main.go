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

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/clinora/clinora/internal/app"
	"github.com/clinora/clinora/internal/auth"
	"github.com/clinora/clinora/internal/estoque"
	"github.com/clinora/clinora/internal/financeiro"
	"github.com/clinora/clinora/internal/financeiro/asaas"
	"github.com/clinora/clinora/internal/financeiro/webhook"
	"github.com/clinora/clinora/internal/observability"
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

	verifier := auth.NewVerifier(cfg.JWTSecret)
	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	pacientesRepo := pacientes.NewRepository(pool)
	pacientesService := pacientes.NewService(pacientesRepo)
	pacientesHandler := pacientes.NewHandler(logger, pacientesService)

	estoqueRepo := estoque.NewRepository(pool)
	estoqueService := estoque.NewService(estoqueRepo, auditLogger)
	estoqueHandler := estoque.NewHandler(logger, estoqueService)

	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	gateway := asaas.NewClient(cfg.AsaasBaseURL)
	credentialStore := financeiro.NewCredentialStore(pool, redisClient, secretBox)
	financeiroRepo := financeiro.NewRepository(pool)
	financeiroService := financeiro.NewService(logger, financeiroRepo, gateway, pacientesService, credentialStore, jobsClient, auditLogger)
	financeiroHandler := financeiro.NewHandler(logger, financeiroService, credentialStore)

	metrics := observability.NewMetrics()

	reconciler := webhook.NewReconciler(logger, financeiroRepo, idempotencyStore)
	webhookHandler := webhook.NewHandler(logger, cfg.WebhookSecret, reconciler, metrics)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Verifier:          verifier,
		PacientesHandler:  pacientesHandler,
		EstoqueHandler:    estoqueHandler,
		FinanceiroHandler: financeiroHandler,
		WebhookHandler:    webhookHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
