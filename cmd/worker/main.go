// Package main - точка входа для фоновых процессов (Worker) GPA Tracker.
//
// Worker отвечает за периодические задачи:
// - Сверка GPA бэкенда с локальным пересчётом по расписанию
// - Удаление старых отчётов сверки
// - Журналирование расхождений, найденных любым инстансом
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/google/uuid"

	"github.com/gpa-hub/gpa-tracker/config"
	"github.com/gpa-hub/gpa-tracker/internal/application/command"
	"github.com/gpa-hub/gpa-tracker/internal/application/eventhandler"
	"github.com/gpa-hub/gpa-tracker/internal/domain/conformance"
	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
	"github.com/gpa-hub/gpa-tracker/internal/infrastructure/external/gpaapi"
	"github.com/gpa-hub/gpa-tracker/internal/infrastructure/messaging"
	"github.com/gpa-hub/gpa-tracker/internal/infrastructure/persistence/postgres"
	"github.com/gpa-hub/gpa-tracker/internal/infrastructure/persistence/redis"
	"github.com/gpa-hub/gpa-tracker/internal/infrastructure/scheduler"
	"github.com/gpa-hub/gpa-tracker/internal/infrastructure/scheduler/jobs"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	// Создаём корневой контекст с возможностью отмены
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dbURL := cfg.Database.ConnectionURL()
	if dbURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting GPA Tracker Worker",
		"env", cfg.App.Environment,
		"debug", cfg.App.Debug,
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.Open(ctx, dbURL, poolOptions(cfg))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	pool, err := dbConn.Status(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connected",
		"ping", pool.PingLatency,
		"max_conns", pool.MaxConns,
	)

	// Worker также должен иметь актуальную схему
	if cfg.Database.AutoMigrate {
		if err := postgres.NewMigrator(dbConn).Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	reportRepo := postgres.NewReportRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS И EVENT BUS
	// Без Redis события остаются внутри процесса, а блокировка сверки
	// не нужна: считаем, что воркер один.
	// ─────────────────────────────────────────────────────────────────────────
	var (
		reportCache conformance.Cache
		locker      jobs.Locker
		bus         shared.EventBus
	)

	localBus := messaging.NewInMemoryEventBus(busConfig(log))
	bus = localBus
	defer func() { _ = localBus.Close() }()

	if cfg.RedisEnabled() {
		log.Info("connecting to Redis...")
		redisCache, err := redis.NewCacheFromURL(cfg.Redis.URL)
		if err != nil {
			log.Warn("failed to connect to Redis, running standalone", "error", err)
		} else {
			defer redisCache.Close()
			reportCache = redis.NewReportCache(redisCache, cfg.Redis.ReportTTL, log)
			locker = redisCache

			redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
				Client:         messaging.NewCachePubSub(redisCache),
				ChannelName:    cfg.Redis.EventChannel,
				InstanceID:     "worker-" + uuid.NewString(),
				LocalBusConfig: busConfig(log),
				Logger:         log,
			})
			if err != nil {
				log.Warn("redis event bus unavailable, events stay local", "error", err)
			} else {
				defer func() { _ = redisBus.Close() }()
				bus = redisBus
			}
		}
	}

	// Расхождения логируются, откуда бы ни пришло событие.
	driftHandler := eventhandler.NewOnDriftDetectedHandler(log, eventhandler.DriftDetectedConfig{
		MaxLoggedItems: cfg.Conformance.MaxLoggedDrift,
	})
	for _, t := range []shared.EventType{shared.EventConformanceDrift, shared.EventConformanceFailed} {
		if err := bus.Subscribe(t, driftHandler.Handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", t, err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. КЛИЕНТ БЭКЕНДА И ОБРАБОТЧИК СВЕРКИ
	// ─────────────────────────────────────────────────────────────────────────
	client, err := newBackendClient(ctx, cfg, log)
	if err != nil {
		return err
	}

	verifier := command.NewVerifyConformanceHandler(
		client, client, reportRepo, reportCache, bus, log,
		command.VerifyConformanceConfig{
			Tolerance:       conformance.Tolerance(cfg.Conformance.Tolerance),
			CheckGradeTable: cfg.Conformance.CheckGradeTable,
		},
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	verifySchedule, err := scheduler.ParseSchedule(cfg.Conformance.Schedule)
	if err != nil {
		return fmt.Errorf("CONFORMANCE_SCHEDULE: %w", err)
	}
	pruneSchedule, err := scheduler.ParseSchedule(cfg.Conformance.PruneSchedule)
	if err != nil {
		return fmt.Errorf("CONFORMANCE_PRUNE_SCHEDULE: %w", err)
	}

	schedCfg := scheduler.DefaultSchedulerConfig()
	schedCfg.Logger = log
	schedCfg.Timezone = cfg.App.Location()
	sched := scheduler.NewScheduler(schedCfg)

	verifyJob := jobs.NewVerifyConformanceJob(verifier, locker, log, jobs.VerifyConformanceConfig{
		LockTTL: cfg.Conformance.LockTTL,
		Timeout: cfg.Conformance.JobTimeout,
	})
	if err := sched.Register(verifyJob, verifySchedule); err != nil {
		return fmt.Errorf("register %s: %w", verifyJob.Name(), err)
	}

	pruneJob := jobs.NewPruneReportsJob(reportRepo, cfg.Conformance.Retention, log)
	if err := sched.Register(pruneJob, pruneSchedule); err != nil {
		return fmt.Errorf("register %s: %w", pruneJob.Name(), err)
	}

	// Нулевой срок хранения - отчёты не удаляются никогда.
	if cfg.Conformance.Retention <= 0 {
		if err := sched.DisableJob(pruneJob.Name()); err != nil {
			return err
		}
	}

	sched.OnJobStart(func(jobName string) {
		log.Debug("scheduled job starting", "job", jobName)
	})
	sched.OnJobError(func(jobName string, err error) {
		log.Warn("scheduled job failed", "job", jobName, "error", err)
	})

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	// Первая сверка сразу после старта, не дожидаясь расписания.
	go func() {
		if _, err := sched.RunNow(ctx, verifyJob.Name()); err != nil {
			log.Warn("initial verification failed", "error", err)
		}
		if info, err := sched.GetJobInfo(verifyJob.Name()); err == nil {
			log.Info("next scheduled verification", "at", info.NextRun)
		}
	}()

	log.Info("GPA Tracker Worker is running",
		"verify_schedule", verifySchedule.String(),
		"prune_schedule", pruneSchedule.String(),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	// SIGUSR1 печатает состояние планировщика, не останавливая воркер.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGUSR1)

	for sig := range sigCh {
		if sig == syscall.SIGUSR1 {
			logSchedulerStatus(log, sched)
			continue
		}
		log.Info("received shutdown signal", "signal", sig.String())
		break
	}

	if err := sched.Stop(); err != nil {
		log.Warn("scheduler stop failed", "error", err)
	}
	logSchedulerStatus(log, sched)

	stats := driftHandler.Stats()
	log.Info("shutdown completed successfully",
		"drift_events", stats.DriftEvents,
		"failed_runs", stats.FailedEvents,
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// statusHistory - сколько последних запусков попадает в отчёт о состоянии.
const statusHistory = 10

// logSchedulerStatus журналирует задачи, их последние запуски и метрики.
func logSchedulerStatus(log *slog.Logger, sched *scheduler.Scheduler) {
	jobInfos := sched.ListJobs()
	sort.Slice(jobInfos, func(i, j int) bool { return jobInfos[i].Name < jobInfos[j].Name })

	for _, info := range jobInfos {
		log.Info("scheduler job",
			"job", info.Name,
			"enabled", info.Enabled,
			"schedule", info.Schedule,
			"runs", info.RunCount,
			"failures", info.FailCount,
			"skipped", info.SkipCount,
			"next_run", info.NextRun,
		)
	}
	for _, r := range sched.GetHistory(statusHistory) {
		log.Info("scheduler run",
			"job", r.JobName,
			"started_at", r.StartedAt,
			"duration", r.Duration,
			"manual", r.Manual,
			"success", r.Success,
		)
	}

	attrs := []any{"running", sched.IsRunning(), "jobs", len(jobInfos)}
	if m := sched.GetMetrics(); m != nil {
		snap := m.Snapshot()
		attrs = append(attrs,
			"executions", snap.TotalExecutions,
			"success_rate", snap.SuccessRate,
			"avg_duration", snap.AverageDuration,
		)
	}
	log.Info("scheduler status", attrs...)
}

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

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	if cfg.Observability.LogFormat == "text" {
		// Текстовый формат для development (лучше читается)
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler).With("service", "worker")
	slog.SetDefault(log)

	return log
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
