// Package main - точка входа для фонового процесса (Worker) Dojo Progress.
//
// Worker отвечает за периодические задачи:
// - Выдача достижений, прогресс которых достиг 100 (unlock_sweep)
// - Прогрев кеша лидербордов по организациям (warm_leaderboard)
// - Инвалидация кеша лидербордов при разблокировке достижений
// - Внеплановый обход организации при создании достижения
//
// Без DATABASE_URL (DB_DISABLED=true) worker работает на in-memory
// хранилище: удобно для локальной проверки конфигурации и расписания.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dojo-hub/dojo-progress/config"
	"github.com/dojo-hub/dojo-progress/internal/application/eventhandler"
	"github.com/dojo-hub/dojo-progress/internal/application/query"
	"github.com/dojo-hub/dojo-progress/internal/application/saga"
	"github.com/dojo-hub/dojo-progress/internal/domain/achievement"
	"github.com/dojo-hub/dojo-progress/internal/domain/leaderboard"
	"github.com/dojo-hub/dojo-progress/internal/domain/shared"
	"github.com/dojo-hub/dojo-progress/internal/domain/student"
	"github.com/dojo-hub/dojo-progress/internal/infrastructure/messaging"
	"github.com/dojo-hub/dojo-progress/internal/infrastructure/persistence/memory"
	"github.com/dojo-hub/dojo-progress/internal/infrastructure/persistence/postgres"
	"github.com/dojo-hub/dojo-progress/internal/infrastructure/persistence/redis"
	"github.com/dojo-hub/dojo-progress/internal/infrastructure/scheduler"
	"github.com/dojo-hub/dojo-progress/internal/infrastructure/scheduler/jobs"
	"github.com/dojo-hub/dojo-progress/pkg/logger"
	"github.com/dojo-hub/dojo-progress/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// repositories - набор хранилищ, общий для Postgres и in-memory режима.
type repositories struct {
	students     student.Repository
	achievements achievement.Repository
	unlocks      achievement.UnlockRepository
	leaderboard  leaderboard.Repository
	close        func()
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting Dojo Progress worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("timezone", cfg.Evaluation.Timezone),
		logger.Any("features", cfg.Features.Summary()),
	)

	clock := timeutil.NewSystemClock(cfg.Evaluation.Location)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ (PostgreSQL или in-memory)
	// ─────────────────────────────────────────────────────────────────────────
	repos, err := setupRepositories(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer repos.close()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (опционально): кеш лидербордов, распределённые блокировки,
	//    межпроцессная шина событий
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	if !cfg.Redis.Disabled {
		redisCache, err = setupRedis(ctx, cfg, log)
		if err != nil {
			log.Warn("failed to connect to Redis, using in-process cache and event bus", logger.Err(err))
			redisCache = nil
		} else {
			defer func() {
				log.Info("closing Redis connection...")
				_ = redisCache.Close()
			}()
		}
	}

	var lbCache leaderboard.Cache
	if cfg.Features.IsEnabled(config.FeatureLeaderboardCache, nil) {
		if redisCache != nil {
			lbCache = redis.NewLeaderboardCache(redisCache, nil, log)
		} else {
			lbCache = memory.NewLeaderboardCache(clock)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.InMemoryEventBusConfig{
		AsyncMode:      cfg.EventBus.Async,
		WorkerPoolSize: cfg.EventBus.Workers,
		Logger:         log,
		EnableMetrics:  true,
	}

	var bus shared.EventBus
	var closeBus func() error
	if redisCache != nil {
		redisBus, err := messaging.NewRedisEventBus(ctx, messaging.RedisEventBusConfig{
			Client:         redisCache.Client(),
			ChannelName:    cfg.EventBus.Channel,
			LocalBusConfig: busConfig,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to start event bus: %w", err)
		}
		bus, closeBus = redisBus, redisBus.Close
	} else {
		localBus := messaging.NewInMemoryEventBus(busConfig)
		bus, closeBus = localBus, localBus.Close
	}
	defer func() {
		log.Info("closing event bus...")
		_ = closeBus()
	}()

	if lbCache != nil {
		invalidator := eventhandler.NewOnAchievementUnlockedHandler(lbCache, cfg.EventBus.HandlerTimeout, log)
		if err := invalidator.Register(bus); err != nil {
			return fmt.Errorf("failed to subscribe cache invalidation: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ПРИЛОЖЕНИЕ: резолвер, лидерборд, поток разблокировки
	// ─────────────────────────────────────────────────────────────────────────
	parallelism := cfg.Evaluation.Parallelism
	if !cfg.Features.IsEnabled(config.FeatureEvaluationParallel, nil) {
		parallelism = 1
	}
	resolver := query.NewGetStudentAchievementsHandler(repos.students, repos.achievements, repos.unlocks, clock, log, parallelism)
	leaderboardHandler := query.NewGetAchievementLeaderboardHandler(repos.leaderboard, lbCache, cfg.Leaderboard.CacheTTL, clock, log)

	flow, err := saga.NewAchievementFlowSagaBuilder().
		WithResolver(resolver).
		WithUnlockRepo(repos.unlocks).
		WithStudentRepo(repos.students).
		WithEventBus(bus).
		WithClock(clock).
		WithLogger(log).
		WithConfig(saga.AchievementFlowConfig{
			EnableXPAward:         cfg.Evaluation.XPAward && cfg.Features.IsEnabled(config.FeatureUnlockXPAward, nil),
			MaxAchievementsPerRun: cfg.Evaluation.MaxUnlocksPerRun,
		}).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build achievement flow: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	if !cfg.Scheduler.Enabled {
		log.Warn("scheduler is disabled, worker only relays events")
	}

	schedConfig := scheduler.SchedulerConfig{
		Logger:         log,
		Timezone:       cfg.Evaluation.Location,
		LockTTL:        cfg.Scheduler.LockTTL,
		MaxHistorySize: cfg.Scheduler.HistorySize,
	}
	if redisCache != nil {
		schedConfig.Locker = redisCache
	}
	sched := scheduler.NewScheduler(schedConfig)

	sweep := jobs.NewUnlockSweepJob(repos.students, flow, cfg.Features.Gate(config.FeatureUnlockSweep), log, jobs.UnlockSweepConfig{
		Concurrency: cfg.Scheduler.UnlockSweepWorkers,
		Timeout:     cfg.Scheduler.UnlockSweepTimeout,
	})
	if err := sched.Register(sweep, cfg.Scheduler.UnlockSweepSpec); err != nil {
		return fmt.Errorf("failed to register %s: %w", sweep.Name(), err)
	}

	// новое достижение проверяется сразу, без ожидания планового обхода;
	// обход привязан к жизни воркера
	onCreated := eventhandler.NewOnAchievementCreatedHandler(eventhandler.SweeperFunc(func(_ context.Context, orgID string) error {
		_, err := sweep.SweepOrganization(ctx, orgID)
		return err
	}), log)
	if err := onCreated.Register(bus); err != nil {
		return fmt.Errorf("failed to subscribe achievement sweep: %w", err)
	}

	warmConfig := jobs.DefaultWarmLeaderboardConfig()
	warmConfig.Limit = cfg.Scheduler.WarmLeaderboardLimit
	if lbCache != nil {
		warm := jobs.NewWarmLeaderboardJob(repos.students, leaderboardHandler, log, warmConfig)
		if err := sched.Register(warm, cfg.Scheduler.WarmLeaderboardSpec); err != nil {
			return fmt.Errorf("failed to register %s: %w", warm.Name(), err)
		}
	}

	sched.OnJobComplete(func(result scheduler.JobResult) {
		snap := sched.Metrics().Snapshot()
		log.Debug("scheduler metrics",
			logger.JobName(result.JobName),
			logger.Int64("executions", snap.TotalExecutions),
			logger.Int64("failures", snap.TotalFailures),
			logger.Float64("success_rate", snap.SuccessRate),
		)
	})

	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		for _, job := range sched.ListJobs() {
			log.Info("job scheduled",
				logger.JobName(job.Name),
				logger.String("spec", job.Spec),
				logger.Time("next_run", job.NextRun),
			)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("Dojo Progress worker is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown...", logger.Duration("timeout", cfg.App.ShutdownTimeout))

	done := make(chan error, 1)
	go func() {
		if sched.IsRunning() {
			done <- sched.Stop()
			return
		}
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Warn("scheduler stop failed", logger.Err(err))
		}
	case <-time.After(cfg.App.ShutdownTimeout):
		return errors.New("shutdown timed out waiting for running jobs")
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *logger.Logger {
	level := logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		level = logger.LevelDebug
	}

	return logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     level,
		Format:    logger.Format(cfg.Observability.LogFormat),
		AddCaller: true,
	}).With(logger.String("app", cfg.App.Name))
}

// setupRepositories подключается к PostgreSQL и применяет миграции, либо
// поднимает пустое in-memory хранилище.
func setupRepositories(ctx context.Context, cfg *config.Config, log *logger.Logger) (*repositories, error) {
	if cfg.Database.Disabled {
		log.Warn("database is disabled, using in-memory store")
		store := memory.NewStore()
		return &repositories{
			students:     store.Students(),
			achievements: store.Achievements(),
			unlocks:      store.Unlocks(),
			leaderboard:  store.Leaderboard(),
			close:        func() {},
		}, nil
	}

	dbConfig := postgres.DefaultConfig()
	dbConfig.URL = cfg.Database.URL
	dbConfig.MaxConns = cfg.Database.MaxConns
	dbConfig.MinConns = cfg.Database.MinConns
	dbConfig.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	dbConfig.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	dbConfig.ConnectTimeout = cfg.Database.ConnectTimeout

	log.Info("connecting to database...")
	conn, err := postgres.NewConnection(ctx, dbConfig, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("database connection established")

	if cfg.Database.AutoMigrate {
		if err := postgres.NewMigrator(conn, log).Migrate(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	return &repositories{
		students:     postgres.NewStudentRepository(conn),
		achievements: postgres.NewAchievementRepository(conn),
		unlocks:      postgres.NewUnlockRepository(conn),
		leaderboard:  postgres.NewLeaderboardRepository(conn),
		close: func() {
			log.Info("closing database connection...")
			conn.Close()
		},
	}, nil
}

func setupRedis(ctx context.Context, cfg *config.Config, log *logger.Logger) (*redis.Cache, error) {
	redisConfig := redis.DefaultConfig()
	redisConfig.URL = cfg.Redis.URL
	redisConfig.Addr = cfg.Redis.Addr()
	redisConfig.Password = cfg.Redis.Password
	redisConfig.DB = cfg.Redis.DB
	redisConfig.PoolSize = cfg.Redis.PoolSize
	redisConfig.MinIdleConns = cfg.Redis.MinIdleConns
	redisConfig.DialTimeout = cfg.Redis.DialTimeout
	redisConfig.ReadTimeout = cfg.Redis.ReadTimeout
	redisConfig.WriteTimeout = cfg.Redis.WriteTimeout

	log.Info("connecting to Redis...")
	cache, err := redis.NewCache(ctx, redisConfig, log)
	if err != nil {
		return nil, err
	}
	log.Info("Redis connection established")
	return cache, nil
}
