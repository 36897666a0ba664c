// Package main - точка входа HTTP API GPA Tracker.
//
// API отдаёт таблицу перевода оценок, считает GPA по присланным курсам,
// строит сводку по истории из бэкенда и показывает отчёты сверки.
// Без базы данных эндпоинты сверки отвечают 501.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/gpa-hub/gpa-tracker/config"
	"github.com/gpa-hub/gpa-tracker/internal/application/command"
	"github.com/gpa-hub/gpa-tracker/internal/application/query"
	"github.com/gpa-hub/gpa-tracker/internal/domain/conformance"
	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
	"github.com/gpa-hub/gpa-tracker/internal/infrastructure/external/gpaapi"
	"github.com/gpa-hub/gpa-tracker/internal/infrastructure/messaging"
	"github.com/gpa-hub/gpa-tracker/internal/infrastructure/persistence/memo"
	"github.com/gpa-hub/gpa-tracker/internal/infrastructure/persistence/postgres"
	"github.com/gpa-hub/gpa-tracker/internal/infrastructure/persistence/redis"
	httpserver "github.com/gpa-hub/gpa-tracker/internal/interface/http"
	"github.com/gpa-hub/gpa-tracker/internal/interface/http/handlers"
	"github.com/gpa-hub/gpa-tracker/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	log.Info("starting GPA Tracker API",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. КЛИЕНТ БЭКЕНДА
	// ─────────────────────────────────────────────────────────────────────────
	client, err := newBackendClient(ctx, cfg, log)
	if err != nil {
		return err
	}

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("gpa_backend", handlers.NewBackendCheck(client))

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS (опционально): кеш отчёта и шина событий между инстансами
	// ─────────────────────────────────────────────────────────────────────────
	var (
		reportCache conformance.Cache
		publisher   shared.EventPublisher
	)

	bus := messaging.NewInMemoryEventBus(busConfig(log))
	publisher = bus
	defer func() { _ = bus.Close() }()

	if cfg.RedisEnabled() {
		redisCache, err := redis.NewCacheFromURL(cfg.Redis.URL)
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", "error", err)
		} else {
			defer redisCache.Close()
			reportCache = redis.NewReportCache(redisCache, cfg.Redis.ReportTTL, log)
			health.AddCheck("cache", handlers.NewCacheCheck(redisCache))

			redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
				Client:         messaging.NewCachePubSub(redisCache),
				ChannelName:    cfg.Redis.EventChannel,
				InstanceID:     "api-" + uuid.NewString(),
				LocalBusConfig: busConfig(log),
				Logger:         log,
			})
			if err != nil {
				log.Warn("redis event bus unavailable, events stay local", "error", err)
			} else {
				defer func() { _ = redisBus.Close() }()
				publisher = redisBus
			}
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. POSTGRES (опционально): отчёты сверки
	// ─────────────────────────────────────────────────────────────────────────
	deps := httpserver.Dependencies{
		GetGradeTableHandler: query.NewGetGradeTableHandler(),
		ConvertGradeHandler:  query.NewConvertGradeHandler(),
		AggregateGPAHandler:  query.NewAggregateGPAHandler(),
		GetStandingHandler:   query.NewGetStandingHandler(),
		ComputeSummaryHandler: query.NewComputeSummaryHandler(
			client,
			memo.NewSummaryMemo(cfg.HTTP.SummaryMemoTTL, 0),
			publisher,
			log,
		),
		SummaryOwner:  cfg.Backend.Username,
		Logger:        newHTTPLogger(cfg),
		HealthChecker: health,
	}

	if dbURL := cfg.Database.ConnectionURL(); dbURL != "" {
		conn, err := postgres.Open(ctx, dbURL, poolOptions(cfg))
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer conn.Close()

		if cfg.Database.AutoMigrate {
			if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		health.AddCheck("database", handlers.NewDatabaseCheck(conn))

		repo := postgres.NewReportRepository(conn)
		deps.GetLatestReportHandler = query.NewGetLatestReportHandler(reportCache, repo, log)
		deps.VerifyConformanceHandler = command.NewVerifyConformanceHandler(
			client, client, repo, reportCache, publisher, log,
			command.VerifyConformanceConfig{
				Tolerance:       conformance.Tolerance(cfg.Conformance.Tolerance),
				CheckGradeTable: cfg.Conformance.CheckGradeTable,
			},
		)
	} else {
		log.Warn("database not configured, conformance endpoints are disabled")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpserver.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	serverCfg.APIKeyHashes = cfg.HTTP.APIKeyHashes
	serverCfg.APIKeyCacheTTL = cfg.HTTP.APIKeyCacheTTL
	serverCfg.Version = cfg.App.Version

	server := httpserver.NewServer(serverCfg, deps)
	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// newBackendClient создаёт клиент и авторизует его токеном или логином.
func newBackendClient(ctx context.Context, cfg *config.Config, log *slog.Logger) (*gpaapi.Client, error) {
	clientCfg := gpaapi.DefaultClientConfig(cfg.Backend.BaseURL)
	clientCfg.Token = cfg.Backend.Token
	clientCfg.Timeout = cfg.Backend.RequestTimeout
	clientCfg.MaxAttempts = cfg.Backend.MaxAttempts
	clientCfg.RetryInitialDelay = cfg.Backend.RetryDelay
	clientCfg.RateLimiterConfig.RequestsPerSecond = float64(cfg.Backend.RateLimit)
	clientCfg.MaxConcurrency = cfg.Backend.MaxConcurrency
	clientCfg.BreakerFailureThreshold = cfg.Backend.CircuitBreakerThreshold
	clientCfg.BreakerTimeout = cfg.Backend.CircuitBreakerTimeout
	clientCfg.Logger = log
	clientCfg.Debug = cfg.App.Debug
	client := gpaapi.NewClient(clientCfg)

	if cfg.Backend.Token == "" && cfg.Backend.Username != "" {
		if _, err := client.Login(ctx, cfg.Backend.Username, cfg.Backend.Password); err != nil {
			return nil, fmt.Errorf("failed to log in to gpa backend: %w", err)
		}
	}
	return client, nil
}

func busConfig(log *slog.Logger) messaging.InMemoryEventBusConfig {
	c := messaging.DefaultInMemoryEventBusConfig()
	c.Logger = log
	return c
}

// setupLogger настраивает slog для инфраструктуры.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(cfg)}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler).With("service", "api")
	slog.SetDefault(log)
	return log
}

func slogLevel(cfg *config.Config) slog.Level {
	if cfg.App.Debug {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Observability.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// newHTTPLogger создаёт логгер HTTP слоя.
func newHTTPLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	return logger.New(opts).With(logger.String("service", "api"))
}

// poolOptions переносит настройки пула из конфигурации.
func poolOptions(cfg *config.Config) postgres.PoolOptions {
	opts := postgres.DefaultPoolOptions()
	opts.MaxConns = cfg.Database.MaxConns
	opts.MinConns = cfg.Database.MinConns
	opts.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	opts.ConnectTimeout = cfg.Database.ConnectTimeout
	return opts
}
