package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/classroll/internal/adapter/api"
	"github.com/V4T54L/classroll/internal/adapter/api/handler"
	"github.com/V4T54L/classroll/internal/adapter/metrics"
	"github.com/V4T54L/classroll/internal/adapter/pii"
	"github.com/V4T54L/classroll/internal/adapter/registry"
	"github.com/V4T54L/classroll/internal/adapter/repository/memory"
	"github.com/V4T54L/classroll/internal/adapter/repository/postgres"
	redisrepo "github.com/V4T54L/classroll/internal/adapter/repository/redis"
	"github.com/V4T54L/classroll/internal/domain"
	"github.com/V4T54L/classroll/internal/pkg/config"
	"github.com/V4T54L/classroll/internal/pkg/logger"
	"github.com/V4T54L/classroll/internal/pkg/validation"
	"github.com/V4T54L/classroll/internal/usecase"

	_ "github.com/lib/pq" // Keep for postgres driver
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel)
	slog.SetDefault(logger)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("failed to load time zone", "error", err)
		os.Exit(1)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database ---
	if cfg.MigrateOnStart {
		if err := postgres.Migrate(cfg.PostgresURL, logger); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to ping postgres", "error", err)
		os.Exit(1)
	}

	// --- Token Store ---
	var tokens domain.TokenStore
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		tokens = redisrepo.NewTokenStore(redisClient, cfg.Registry.RefreshBuffer, logger, m)
		logger.Info("registry tokens cached in redis", "addr", cfg.RedisAddr)
	} else {
		tokens = memory.NewTokenStore(cfg.Registry.RefreshBuffer, logger, m)
		logger.Info("registry tokens cached in process memory")
	}

	// --- Repositories ---
	tenantRepo := postgres.NewTenantRepository(db, logger, cfg.TenantCacheTTL, m)
	attendanceRepo := postgres.NewAttendanceRepository(db, logger)

	// --- Registry ---
	redactor := pii.NewRedactor(cfg.RedactionFields(), logger)
	httpClient := &http.Client{Timeout: cfg.Registry.Timeout + 5*time.Second}
	authenticator := registry.NewAuthenticator(httpClient, cfg.Registry.TokenValidity, redactor, logger, m)
	client := registry.NewClient(httpClient, authenticator, tokens, registry.Options{
		Timeout:       cfg.Registry.Timeout,
		RefreshBuffer: cfg.Registry.RefreshBuffer,
		RateLimit:     cfg.Registry.RateLimit,
		RateBurst:     cfg.Registry.RateBurst,
	}, redactor, logger, m)
	validate := validation.New()
	roster := registry.NewRoster(client, validate, logger)

	// --- Use Cases ---
	credentials := usecase.NewCredentialsResolver(tenantRepo, cfg.RegistryDefaults())
	reconciler := usecase.NewAttendanceReconciler(credentials, roster, attendanceRepo, loc, logger, m)

	// --- Admin and Metrics Server ---
	adminHandler := handler.NewAdminHandler(credentials, tokens, tenantRepo, cfg.Registry.RefreshBuffer, logger)
	adminServer := &http.Server{
		Addr:    cfg.AdminAddr,
		Handler: api.NewAdminRouter(adminHandler, prometheus.DefaultGatherer, logger),
	}

	go func() {
		logger.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin & metrics server failed", "error", err)
		}
	}()

	// --- API Server ---
	attendanceHandler := handler.NewAttendanceHandler(reconciler, validate, logger, cfg.MaxBodyBytes)
	registryHandler := handler.NewRegistryHandler(credentials, roster, logger)
	apiServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api.NewRouter(cfg, logger, attendanceHandler, registryHandler),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Registry.Timeout*2 + 10*time.Second, // a view may authenticate and then call the registry
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting api server", "addr", apiServer.Addr, "timezone", loc.String())
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server failed", "error", err)
			stop() // Trigger shutdown on server error
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown failed", "error", err)
	}
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown failed", "error", err)
	}

	logger.Info("servers shut down gracefully")
}
