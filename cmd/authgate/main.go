package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/razezix/authgate/internal/accounts"
	"github.com/razezix/authgate/internal/app"
	"github.com/razezix/authgate/internal/authn"
	"github.com/razezix/authgate/internal/authz"
	"github.com/razezix/authgate/internal/business"
	"github.com/razezix/authgate/internal/observability"
	"github.com/razezix/authgate/internal/platform/cache"
	"github.com/razezix/authgate/internal/platform/db"
	"github.com/razezix/authgate/internal/shared"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, login throttling disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	if err := authz.Seed(ctx, pool, logger); err != nil {
		logger.Error("seed", slog.Any("error", err))
		os.Exit(1)
	}

	tokens, err := authn.NewTokenIssuer(cfg.SecretKey, cfg.TokenTTL)
	if err != nil {
		logger.Error("init token issuer", slog.Any("error", err))
		os.Exit(1)
	}

	accountsRepo := accounts.NewRepository(pool)
	accountsService := accounts.NewService(accountsRepo, cfg.SessionTTL)

	resolver := authn.NewResolver(tokens, accountsRepo, cfg.CookieName)
	authnMiddleware := authn.Middleware{Resolver: resolver, Logger: logger}

	authzRepo := authz.NewRepository(pool)
	engine := authz.NewEngine(authzRepo)
	adminService := authz.NewService(authzRepo)

	metrics := observability.NewMetrics()
	throttle := shared.NewLoginThrottle(redisClient, cfg.LoginAttemptLimit, cfg.LoginAttemptWindow)

	accountsHandler := accounts.NewHandler(logger, accountsService, tokens, throttle, metrics, accounts.CookieConfig{
		Name:   cfg.CookieName,
		Secure: cfg.CookieSecure,
	})
	adminHandler := authz.NewHandler(logger, adminService)
	businessHandler := business.NewHandler(logger, engine, metrics)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Authn:           authnMiddleware,
		AccountsHandler: accountsHandler,
		AdminHandler:    adminHandler,
		BusinessHandler: businessHandler,
		Metrics:         metrics,
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
