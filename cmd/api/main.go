package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/packfinderz-identity/api/controllers"
	"github.com/angelmondragon/packfinderz-identity/api/responses"
	"github.com/angelmondragon/packfinderz-identity/api/routes"
	"github.com/angelmondragon/packfinderz-identity/internal/auth"
	"github.com/angelmondragon/packfinderz-identity/internal/users"
	"github.com/angelmondragon/packfinderz-identity/pkg/auth/session"
	"github.com/angelmondragon/packfinderz-identity/pkg/config"
	"github.com/angelmondragon/packfinderz-identity/pkg/db"
	"github.com/angelmondragon/packfinderz-identity/pkg/docstore"
	"github.com/angelmondragon/packfinderz-identity/pkg/env"
	"github.com/angelmondragon/packfinderz-identity/pkg/instance"
	"github.com/angelmondragon/packfinderz-identity/pkg/logger"
	"github.com/angelmondragon/packfinderz-identity/pkg/metrics"
	"github.com/angelmondragon/packfinderz-identity/pkg/migrate"
	"github.com/angelmondragon/packfinderz-identity/pkg/pubsub"
	"github.com/angelmondragon/packfinderz-identity/pkg/redis"
)

const serviceName = "identity-api"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	responses.SetDebug(cfg.App.IsDev())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func(context.Context) error

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	closers = append(closers, func(context.Context) error { return dbClient.Close() })

	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	closers = append(closers, func(context.Context) error { return redisClient.Close() })

	var (
		mongoPinger controllers.Pinger
		audit       auth.AuditRecorder
	)
	if cfg.Mongo.Enabled() {
		mongoClient, err := docstore.New(ctx, cfg.Mongo, logg)
		requireResource(ctx, logg, "mongo", err)
		closers = append(closers, mongoClient.Close)
		mongoPinger = mongoClient

		auditLog, err := docstore.NewAuditLog(mongoClient)
		requireResource(ctx, logg, "audit log", err)
		audit = auditLog
	} else {
		logg.Info(ctx, "mongo disabled, audit trail off")
	}

	var publisher auth.EventPublisher
	if cfg.PubSub.Enabled() {
		psClient, err := pubsub.NewClient(ctx, cfg.PubSub, logg)
		requireResource(ctx, logg, "pubsub", err)
		eventPublisher, err := pubsub.NewEventPublisher(psClient)
		requireResource(ctx, logg, "pubsub publisher", err)
		// Stop flushes pending publishes before the client goes away.
		closers = append(closers, func(context.Context) error {
			eventPublisher.Stop()
			return psClient.Close()
		})
		publisher = eventPublisher
	} else {
		logg.Info(ctx, "pubsub disabled, identity events are not published")
	}

	refreshTTL, err := cfg.JWT.RefreshTTL()
	requireResource(ctx, logg, "refresh lifetime", err)
	sessionManager, err := session.NewManager(redisClient, refreshTTL)
	requireResource(ctx, logg, "session manager", err)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	authMetrics := metrics.NewAuthMetrics(registry)

	userStore, err := users.NewStore(dbClient, cfg.Password.BcryptCost)
	requireResource(ctx, logg, "user store", err)

	userService, err := users.NewService(userStore)
	requireResource(ctx, logg, "user service", err)

	authService, err := auth.NewService(auth.ServiceParams{
		Users:     userStore,
		Sessions:  sessionManager,
		JWTConfig: cfg.JWT,
		Publisher: publisher,
		Audit:     audit,
		Metrics:   authMetrics,
		Logger:    logg,
	})
	requireResource(ctx, logg, "auth service", err)
	closers = append(closers, authService.Drain)

	addr := ":" + env.Get("PORT", cfg.App.Port)
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID(),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:      cfg,
			Logger:      logg,
			Metrics:     authMetrics,
			Gatherer:    registry,
			RateLimits:  redisClient,
			AuthService: authService,
			UserService: userService,
			DB:          dbClient,
			Redis:       redisClient,
			Mongo:       mongoPinger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(serverCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	exitCode := 0
	select {
	case err := <-serveErr:
		if err != nil {
			logg.Error(serverCtx, "api server stopped unexpectedly", err)
			exitCode = 1
		}
	case <-ctx.Done():
		logg.Info(serverCtx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownGrace)
	defer cancel()

	shutdownErr := server.Shutdown(shutdownCtx)
	for i := len(closers) - 1; i >= 0; i-- {
		shutdownErr = multierr.Append(shutdownErr, closers[i](shutdownCtx))
	}
	if shutdownErr != nil {
		logg.Error(serverCtx, "shutdown completed with errors", shutdownErr)
		exitCode = 1
	} else {
		logg.Info(serverCtx, "shutdown complete")
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "resource not working: "+resource, err)
	os.Exit(1)
}
