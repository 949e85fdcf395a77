// Package main - точка входа для HTTP API сервера LeadPath Engine.
//
// Сервер обслуживает REST API: регистрация участников в путешествии,
// завершение уроков, обязательства, настройки расписания, просмотр
// прогресса и административное переигрывание тиков. Фоновые тики
// выполняет отдельный процесс Worker (cmd/worker).
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
	"github.com/leadpath/leadpath-engine/internal/application/query"
	"github.com/leadpath/leadpath-engine/internal/domain/journey"
	"github.com/leadpath/leadpath-engine/internal/domain/member"
	"github.com/leadpath/leadpath-engine/internal/domain/notification"
	"github.com/leadpath/leadpath-engine/internal/domain/shared"
	httpserver "github.com/leadpath/leadpath-engine/internal/interface/http"
	"github.com/leadpath/leadpath-engine/internal/interface/http/handlers"
	"github.com/leadpath/leadpath-engine/internal/infrastructure/messaging"
	"github.com/leadpath/leadpath-engine/internal/infrastructure/notifier"
	"github.com/leadpath/leadpath-engine/internal/infrastructure/persistence/postgres"
	"github.com/leadpath/leadpath-engine/internal/infrastructure/persistence/redis"
	"github.com/leadpath/leadpath-engine/pkg/circuitbreaker"
	"github.com/leadpath/leadpath-engine/pkg/logger"
	"github.com/leadpath/leadpath-engine/pkg/retry"
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
	log.Info("starting LeadPath Engine API server",
		"env", cfg.App.Environment,
		"host", cfg.HTTP.Host,
		"port", cfg.HTTP.Port,
	)

	// Отдельный логгер для HTTP-слоя (access log, request id)
	httpLog := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     httpLogLevel(cfg),
		AddCaller: false,
	})

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

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ЗАПУСК МИГРАЦИЙ
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
	var prefsCache *redis.PreferencesCache

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
			prefsCache = redis.NewPreferencesCache(redisCache)
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

	catalog := journey.NewStaticCatalog()

	// Без Redis прогресс должен пересчитываться внутри этого же процесса.
	progressHandler := eventhandler.NewOnLessonCompletedHandler(
		memberRepo,
		progressRepo,
		journeyRepo,
		lessonRepo,
		catalog,
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
	// 8. ИНИЦИАЛИЗАЦИЯ ДОСТАВКИ ПИСЕМ (для переигрывания тиков)
	// ─────────────────────────────────────────────────────────────────────────
	var mailNotifier notification.Notifier
	var mailClient *notifier.MailClient

	if cfg.Mail.DryRun || cfg.Mail.BaseURL == "" {
		log.Info("mail delivery is in dry-run mode")
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
		mailClient = notifier.NewMailClient(mailCfg)
		mailNotifier = mailClient
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. ОБРАБОТЧИКИ КОМАНД И ЗАПРОСОВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing command handlers...")

	startJourneyHandler := command.NewStartJourneyHandler(
		memberRepo, journeyRepo, lessonRepo, progressRepo, catalog, eventBus,
	)
	completeLessonHandler := command.NewCompleteLessonHandler(lessonRepo, eventBus)
	startLessonHandler := command.NewStartLessonHandler(lessonRepo)
	setCommitmentHandler := command.NewSetCommitmentHandler(lessonRepo)

	// Типизированный nil в интерфейсе ломает проверку cache != nil,
	// поэтому кеш передаём только когда Redis действительно подключён.
	var memberPrefsCache member.PreferencesCache
	if prefsCache != nil {
		memberPrefsCache = prefsCache
	}
	updatePreferencesHandler := command.NewUpdatePreferencesHandler(memberRepo, memberPrefsCache)
	getProgressHandler := query.NewGetProgressHandler(progressRepo, lessonRepo)
	getPreferencesHandler := query.NewGetPreferencesHandler(memberRepo, memberPrefsCache)

	runUnlockTickHandler := command.NewRunUnlockTickHandler(
		memberRepo, journeyRepo, lessonRepo, eventBus, log, cfg.Scheduler.TickConcurrency,
	)
	runReminderTickHandler := command.NewRunReminderTickHandler(
		memberRepo, lessonRepo, mailNotifier, log, cfg.Scheduler.TickConcurrency,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 10. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	healthChecker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	healthChecker.AddCheck("database", handlers.NewDatabaseCheck(dbConn))
	if redisCache != nil {
		healthChecker.AddCheck("cache", handlers.NewCacheCheck(redisCache))
	}
	if mailClient != nil {
		healthChecker.AddCheck("mail_api", handlers.NewMailAPICheck(mailClient))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 11. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpserver.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.EnableCORS = cfg.HTTP.EnableCORS
	serverCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	serverCfg.APIKeyHeader = cfg.HTTP.APIKeyHeader
	serverCfg.APIKeys = cfg.HTTP.APIKeys

	server := httpserver.NewServer(serverCfg, httpserver.Dependencies{
		StartJourneyHandler:      startJourneyHandler,
		CompleteLessonHandler:    completeLessonHandler,
		StartLessonHandler:       startLessonHandler,
		SetCommitmentHandler:     setCommitmentHandler,
		UpdatePreferencesHandler: updatePreferencesHandler,
		RunUnlockTickHandler:     runUnlockTickHandler,
		RunReminderTickHandler:   runReminderTickHandler,
		GetProgressHandler:       getProgressHandler,
		GetPreferencesHandler:    getPreferencesHandler,
		Logger:                   httpLog,
		HealthChecker:            healthChecker,
	})

	errCh := server.StartAsync()
	log.Info("LeadPath Engine API server is running", "address", server.Address())

	// ─────────────────────────────────────────────────────────────────────────
	// 12. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование приложения.
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
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

// httpLogLevel переводит уровень логирования конфигурации в уровень
// логгера HTTP-слоя.
func httpLogLevel(cfg *config.Config) logger.Level {
	switch cfg.Observability.LogLevel {
	case "debug":
		return logger.LevelDebug
	case "warn":
		return logger.LevelWarn
	case "error":
		return logger.LevelError
	default:
		return logger.LevelInfo
	}
}
