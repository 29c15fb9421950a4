package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/auth-gateway/internal/api/http"
	"github.com/spec-kit/auth-gateway/internal/api/http/handlers"
	"github.com/spec-kit/auth-gateway/internal/auth"
	"github.com/spec-kit/auth-gateway/internal/config"
	"github.com/spec-kit/auth-gateway/internal/events"
	"github.com/spec-kit/auth-gateway/internal/observability"
	"github.com/spec-kit/auth-gateway/internal/persistence"
	"github.com/spec-kit/auth-gateway/internal/ratelimit"
	"github.com/spec-kit/auth-gateway/internal/repository"
	"github.com/spec-kit/auth-gateway/internal/service"
	"github.com/spec-kit/auth-gateway/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	pool := pg.PoolHandle()
	if pool == nil {
		logger.Fatal("POSTGRES_DSN is required")
	}

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger))

	userRepo := repository.NewUserRepository(pool)
	codec := auth.NewCodec(cfg.Auth)
	limiter := ratelimit.NewLoginLimiter(redis.Client, cfg.Auth.LoginMaxAttempts, cfg.Auth.LoginCooldown())

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo:   userRepo,
		Codec:      codec,
		Limiter:    limiter,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	gate := auth.NewGate(auth.GateConfig{
		Validator:     auth.NewValidator(codec, nil),
		Rotator:       auth.NewRotator(codec, auth.NewIssuer(codec, nil), userRepo),
		AccessTTL:     cfg.Auth.AccessTTL(),
		RefreshHeader: cfg.Auth.RefreshHeader,
		RefreshCookie: cfg.Auth.RefreshCookie,
		Logger:        logger,
		Metrics:       metrics,
		Events:        dispatcher,
	})

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Auth: handlers.NewAuthHandler(authService, handlers.AuthHandlerConfig{
			RefreshCookie: cfg.Auth.RefreshCookie,
			SecureCookie:  cfg.App.Env == "production",
		}),
		Gate: gate,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
