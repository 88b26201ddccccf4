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

	"github.com/trialdesk/trialdesk/internal/app"
	"github.com/trialdesk/trialdesk/internal/auth"
	"github.com/trialdesk/trialdesk/internal/observability"
	"github.com/trialdesk/trialdesk/internal/platform/cache"
	"github.com/trialdesk/trialdesk/internal/platform/db"
	"github.com/trialdesk/trialdesk/internal/rbac"
	"github.com/trialdesk/trialdesk/internal/shared"
	"github.com/trialdesk/trialdesk/internal/studies"
	"github.com/trialdesk/trialdesk/internal/users"
	"github.com/trialdesk/trialdesk/jobs"
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

	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{
		Secret:     []byte(cfg.JWTSecret),
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	})
	if err != nil {
		logger.Error("token issuer", slog.Any("error", err))
		os.Exit(1)
	}

	auditLogger := shared.NewAuditLogger(dbpool)

	grantRepo := rbac.NewGrantRepository(dbpool)
	rbacService := rbac.NewService(grantRepo)
	rbacMiddleware := rbac.Middleware{Logger: logger}

	sessionStore := auth.NewSessionStore(redisClient, cfg.SessionTTL)
	setupStore := auth.NewSetupStore(redisClient, cfg.MFASetupTTL)
	totpManager := auth.NewTOTPManager(cfg.MFAIssuer, cfg.MFASkew)

	metrics := observability.NewMetrics()

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(auth.ServiceConfig{
		Repo:           authRepo,
		Tokens:         tokens,
		Sessions:       sessionStore,
		Setup:          setupStore,
		TOTP:           totpManager,
		Resolver:       rbacService,
		Audit:          auditLogger,
		Logger:         logger,
		OnLoginFailure: metrics.RecordLoginFailure,
	})
	authHandler := auth.NewHandler(logger, authService)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, sessionStore, authRepo, jobsClient, auditLogger, logger)
	usersHandler := users.NewHandler(logger, usersService)

	studiesRepo := studies.NewRepository(dbpool)
	studiesService := studies.NewService(studiesRepo, auditLogger, logger)
	studiesHandler := studies.NewHandler(logger, studiesService, &rbacMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		AuthService:    authService,
		AuthHandler:    authHandler,
		UsersHandler:   usersHandler,
		StudiesHandler: studiesHandler,
		JobHandler:     jobHandler,
		Pool:           dbpool,
		RBACMiddleware: rbacMiddleware,
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
