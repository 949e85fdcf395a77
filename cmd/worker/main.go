// Package main - точка входа для фонового процесса (Worker) LeadPath Engine.
//
// Worker отвечает за периодические задачи:
// - Часовой тик разблокировки уроков (locked -> available)
// - Часовой тик напоминаний о доступных уроках
// - Ежедневные письма поддержки неактивным участникам
// - Обновление прогресса по событию завершения урока
//
// Все тики получают час и дату как аргументы: обработчики команд никогда
// не читают живые часы, поэтому любой тик можно переиграть вручную через
// административный API с теми же результатами.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/leadpath/leadpath-engine/config"
	"github.com/leadpath/leadpath-engine/internal/application/command"
	"github.com/leadpath/leadpath-engine/internal/application/eventhandler"
	"github.com/leadpath/leadpath-engine/internal/domain/journey"
	"github.com/leadpath/leadpath-engine/internal/domain/notification"
	"github.com/leadpath/leadpath-engine/internal/domain/shared"
	"github.com/leadpath/leadpath-engine/internal/infrastructure/messaging"
	"github.com/leadpath/leadpath-engine/internal/infrastructure/notifier"
	"github.com/leadpath/leadpath-engine/internal/infrastructure/persistence/postgres"
	"github.com/leadpath/leadpath-engine/internal/infrastructure/persistence/redis"
	"github.com/leadpath/leadpath-engine/internal/infrastructure/scheduler"
	"github.com/leadpath/leadpath-engine/internal/infrastructure/scheduler/jobs"
	"github.com/leadpath/leadpath-engine/pkg/circuitbreaker"
	"github.com/leadpath/leadpath-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	// Создаём корневой контекст с возможностью отмены
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Запускаем приложение
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

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting LeadPath Engine Worker",
		"env", cfg.App.Environment,
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	// Проверяем соединение
	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ЗАПУСК МИГРАЦИЙ (Worker также должен иметь актуальную схему)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("checking database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		if cfg.Redis.URL != "" {
			redisCache, err = redis.NewCacheFromURL(cfg.Redis.URL)
		} else {
			redisCfg := redis.DefaultConfig()
			redisCfg.Host = cfg.Redis.Host
			redisCfg.Port = cfg.Redis.Port
			redisCfg.Password = cfg.Redis.Password
			redisCfg.DB = cfg.Redis.DB
			redisCfg.PoolSize = cfg.Redis.PoolSize
			redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
			redisCache, err = redis.NewCache(redisCfg)
		}
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	memberRepo := postgres.NewMemberRepository(dbConn)
	journeyRepo := postgres.NewJourneyRepository(dbConn)
	lessonRepo := postgres.NewLessonRepository(dbConn)
	progressRepo := postgres.NewProgressRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ИНИЦИАЛИЗАЦИЯ EVENT BUS И ДИСПЕТЧЕРА
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")

	var eventBus shared.EventBus
	if redisCache != nil {
		// Распределённая шина: события завершения уроков видят все
		// экземпляры, прогресс пересчитывается ровно один раз.
		redisBus, busErr := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client: redis.NewEventBusClient(redisCache),
			Logger: log,
		})
		if busErr != nil {
			return fmt.Errorf("failed to create redis event bus: %w", busErr)
		}
		eventBus = redisBus
	} else {
		busCfg := messaging.DefaultInMemoryEventBusConfig()
		busCfg.Logger = log
		eventBus = messaging.NewInMemoryEventBus(busCfg)
	}

	dispatcherCfg := messaging.DefaultDispatcherConfig(eventBus)
	dispatcherCfg.Logger = log
	dispatcher := messaging.NewDispatcher(dispatcherCfg)

	// Проекция прогресса: очки, серия и ротация категорий обновляются
	// по событию lesson.completed.
	progressHandler := eventhandler.NewOnLessonCompletedHandler(
		memberRepo,
		progressRepo,
		journeyRepo,
		lessonRepo,
		journey.NewStaticCatalog(),
		eventBus,
		log,
		eventhandler.DefaultOnLessonCompletedConfig(),
	)
	if err := dispatcher.Register(shared.EventLessonCompleted, "progress-projection", progressHandler.Handle); err != nil {
		return fmt.Errorf("failed to register progress handler: %w", err)
	}

	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}
	defer func() {
		log.Info("stopping event dispatcher...")
		_ = dispatcher.Stop()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ИНИЦИАЛИЗАЦИЯ ДОСТАВКИ ПИСЕМ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing mail delivery...")

	var mailNotifier notification.Notifier
	if cfg.Mail.DryRun || cfg.Mail.BaseURL == "" {
		log.Info("mail delivery is in dry-run mode, messages will be logged only")
		mailNotifier = notifier.NewLogNotifier(log)
	} else {
		mailCfg := notifier.DefaultClientConfig(cfg.Mail.BaseURL)
		mailCfg.APIKey = cfg.Mail.APIKey
		mailCfg.FromAddress = cfg.Mail.FromAddress
		mailCfg.FromName = cfg.Mail.FromName
		mailCfg.Timeout = cfg.Mail.RequestTimeout
		mailCfg.Logger = log
		mailCfg.RetryOptions = []retry.Option{
			retry.WithMaxAttempts(cfg.Mail.MaxRetries),
			retry.WithInitialDelay(cfg.Mail.RetryBaseDelay),
			retry.WithMaxDelay(cfg.Mail.RetryMaxDelay),
		}
		mailCfg.BreakerOptions = []circuitbreaker.Option{
			circuitbreaker.WithFailureThreshold(cfg.Mail.CircuitBreakerThreshold),
			circuitbreaker.WithTimeout(cfg.Mail.CircuitBreakerTimeout),
		}
		mailNotifier = notifier.NewMailClient(mailCfg)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. ПЛАНИРОВЩИК И ЗАДАЧИ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing scheduler...")

	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:         log,
		Timezone:       cfg.App.Location,
		MaxHistorySize: cfg.Scheduler.MaxHistorySize,
		EnableMetrics:  true,
	})

	unlockHandler := command.NewRunUnlockTickHandler(
		memberRepo, journeyRepo, lessonRepo, eventBus, log, cfg.Scheduler.TickConcurrency,
	)
	reminderHandler := command.NewRunReminderTickHandler(
		memberRepo, lessonRepo, mailNotifier, log, cfg.Scheduler.TickConcurrency,
	)

	featureCtx := &config.FeatureContext{}

	if cfg.Features.IsEnabled(config.FeatureTicksUnlock, featureCtx) {
		unlockJob := jobs.NewUnlockTickJob(unlockHandler, cfg.App.Location, log)
		if err := sched.Register(unlockJob, scheduler.NewHourlySchedule()); err != nil {
			return fmt.Errorf("failed to register unlock tick job: %w", err)
		}
	}

	if cfg.Features.IsEnabled(config.FeatureTicksReminders, featureCtx) {
		reminderJob := jobs.NewReminderTickJob(reminderHandler, cfg.App.Location, log)
		if err := sched.Register(reminderJob, scheduler.NewHourlySchedule()); err != nil {
			return fmt.Errorf("failed to register reminder tick job: %w", err)
		}
	}

	if cfg.Features.IsEnabled(config.FeatureTicksSupportNudge, featureCtx) {
		nudgeCfg := jobs.DefaultSupportNudgeConfig()
		nudgeCfg.InactiveAfterDays = cfg.Scheduler.SupportNudgeInactiveDays
		nudgeJob := jobs.NewSupportNudgeJob(memberRepo, progressRepo, mailNotifier, log, nudgeCfg)
		if err := sched.Register(nudgeJob, scheduler.NewDailySchedule(cfg.Scheduler.SupportNudgeHour, 0)); err != nil {
			return fmt.Errorf("failed to register support nudge job: %w", err)
		}
	}

	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			log.Info("stopping scheduler...")
			_ = sched.Stop()
		}()
	} else {
		log.Warn("scheduler is disabled, no ticks will run")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("LeadPath Engine Worker is running",
		"timezone", cfg.App.Timezone,
		"jobs", len(sched.ListJobs()),
	)

	// Ожидаем сигнал завершения
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())

	log.Info("starting graceful shutdown...")

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Observability.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" || cfg.IsProduction() {
		// JSON формат для production (лучше для агрегаторов логов)
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		// Текстовый формат для development (лучше читается)
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}
