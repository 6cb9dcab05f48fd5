package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/rotaworks/rotaworks/internal/app"
	"github.com/rotaworks/rotaworks/internal/audit"
	audithttp "github.com/rotaworks/rotaworks/internal/audit/http"
	"github.com/rotaworks/rotaworks/internal/auth"
	"github.com/rotaworks/rotaworks/internal/authz"
	"github.com/rotaworks/rotaworks/internal/observability"
	"github.com/rotaworks/rotaworks/internal/orders"
	"github.com/rotaworks/rotaworks/internal/platform/cache"
	"github.com/rotaworks/rotaworks/internal/platform/db"
	"github.com/rotaworks/rotaworks/internal/shared"
	"github.com/rotaworks/rotaworks/internal/users"
	"github.com/rotaworks/rotaworks/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	metrics := observability.NewMetrics()

	auditRepo := audit.NewRepository(dbpool)
	auditService := audit.NewService(auditRepo, logger, metrics)

	authzRepo := authz.NewRepository(dbpool)
	evaluator := authz.NewEvaluator(time.Now)
	evaluator.RegisterOwnership("order", authz.NewOrderOwnership(dbpool))
	evaluator.RegisterOwnership("customer", authz.NewCustomerOwnership(dbpool))
	evaluator.RegisterOwnership("user", authz.NewUserOwnership(dbpool))

	resolver := authz.NewResolver(authz.ResolverConfig{
		Identity:  authzRepo,
		Catalog:   authzRepo,
		Evaluator: evaluator,
		Recorder:  auditService,
		Metrics:   metrics,
		Logger:    logger,
		CacheTTL:  cfg.AuthzCacheTTL,
	})
	gate := authz.Gate{Resolver: resolver, Logger: logger}

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, resolver)
	usersHandler := users.NewHandler(logger, usersService, gate)

	ordersRepo := orders.NewRepository(dbpool)
	ordersService := orders.NewService(ordersRepo)
	ordersHandler := orders.NewHandler(logger, ordersService, gate)

	admin := authz.NewAdmin(authzRepo, resolver, logger)
	adminHandler := authz.NewAdminHandler(logger, admin, gate)

	auditHandler := audithttp.NewHandler(logger, auditService, gate)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		AuthHandler:    authHandler,
		UsersHandler:   usersHandler,
		OrdersHandler:  ordersHandler,
		AdminHandler:   adminHandler,
		AuditHandler:   auditHandler,
		JobsHandler:    jobsHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
