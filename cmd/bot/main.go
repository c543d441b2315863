// Package main is the entry point of the Attendio Telegram bot.
//
// The layout follows Clean Architecture:
//   - Domain: attendance rules and the record layout, no I/O
//   - Application: commands and queries over the record store
//   - Infrastructure: record stores, Redis, the Bot API client, scheduler
//   - Interface: Telegram handlers and the HTTP surface
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/TayalAditya/TheAttendioBot/config"
	"github.com/TayalAditya/TheAttendioBot/internal/application/command"
	"github.com/TayalAditya/TheAttendioBot/internal/application/eventhandler"
	"github.com/TayalAditya/TheAttendioBot/internal/application/query"
	"github.com/TayalAditya/TheAttendioBot/internal/domain/attendance"
	"github.com/TayalAditya/TheAttendioBot/internal/domain/conversation"
	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/external/telegram"
	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/messaging"
	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/metrics"
	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/persistence/memory"
	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/persistence/postgres"
	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/persistence/redis"
	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/scheduler"
	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/scheduler/jobs"
	httpserver "github.com/TayalAditya/TheAttendioBot/internal/interface/http"
	"github.com/TayalAditya/TheAttendioBot/internal/interface/http/handlers"
	bot "github.com/TayalAditya/TheAttendioBot/internal/interface/telegram"
	"github.com/TayalAditya/TheAttendioBot/internal/interface/telegram/handler"
	"github.com/TayalAditya/TheAttendioBot/pkg/logger"
	"github.com/TayalAditya/TheAttendioBot/pkg/timeutil"
)

var version = "dev"

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
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	timeutil.SetLocation(cfg.App.Location)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	recorder := logger.NewRecorder(cfg.Log.BufferSize)
	log, err := logger.New(logger.Config{
		Env:      string(cfg.App.Environment),
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		Recorder: recorder,
	})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting Attendio bot",
		zap.String("version", version),
		zap.String("env", string(cfg.App.Environment)),
		zap.String("timezone", cfg.App.Timezone),
		zap.String("store", cfg.Store.Driver),
		zap.Bool("redis", cfg.Redis.Enabled),
	)

	m := metrics.New()
	health := handlers.NewHealthChecker(version)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. RECORD STORE
	// ─────────────────────────────────────────────────────────────────────────
	store, closeStore, err := openRecordStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()
	health.AddCheck("store", handlers.PingCheck(store))

	// ─────────────────────────────────────────────────────────────────────────
	// 4. LOCKS, BLOCK LIST, DIALOG STATE, RATE WINDOW
	// ─────────────────────────────────────────────────────────────────────────
	sessions, closeSessions, err := openSessions(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSessions()
	if sessions.ping != nil {
		health.AddCheck("redis", sessions.ping)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. TELEGRAM CLIENT
	// ─────────────────────────────────────────────────────────────────────────
	clientConfig := telegram.DefaultClientConfig(cfg.Telegram.Token)
	clientConfig.PollingTimeout = int(cfg.Telegram.PollingTimeout / time.Second)
	clientConfig.Logger = log
	client := telegram.NewClient(clientConfig)
	notifier := telegram.NewAdminNotifier(client, cfg.Telegram.AdminID)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	busConfig.Observer = m
	bus := messaging.NewInMemoryEventBus(busConfig)
	defer func() {
		log.Info("closing event bus")
		_ = bus.Close()
	}()

	err = eventhandler.Subscribe(bus,
		eventhandler.NewOnUserBlockedHandler(notifier, log),
		eventhandler.NewOnUserVerifiedHandler(notifier, log),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe event handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	services := handler.NewServices(
		command.Dependencies{
			Store:     store,
			Locker:    sessions.locker,
			Publisher: bus,
			Logger:    log,
			Location:  cfg.App.Location,
		},
		query.Dependencies{
			Store:  store,
			Advice: attendance.AdvicePolicy{ThresholdPercent: cfg.Attendance.AdviceThresholdPercent},
			Logger: log,
		},
		sessions.blocks,
	)
	logReport := jobs.NewLogReport(recorder, client, cfg.Telegram.AdminID)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. TELEGRAM BOT
	// ─────────────────────────────────────────────────────────────────────────
	features := cfg.Features
	botConfig := bot.DefaultBotConfig()
	botConfig.Mode = cfg.Telegram.Mode
	botConfig.WebhookURL = cfg.Telegram.WebhookURL
	botConfig.WebhookSecret = cfg.Telegram.WebhookSecret
	botConfig.AdminID = cfg.Telegram.AdminID
	botConfig.SafeSkipThreshold = cfg.Attendance.Threshold
	botConfig.RateLimitCommands = cfg.Telegram.RateLimitCommands
	botConfig.MaxConcurrentUpdates = cfg.Telegram.MaxConcurrentUpdates
	botConfig.GracefulShutdownTimeout = cfg.App.ShutdownTimeout
	botConfig.RequirePhone = func() bool { return features.IsEnabled(config.FeaturePhoneVerification) }
	botConfig.AutoBlock = func() bool { return features.IsEnabled(config.FeatureAutoBlock) }
	botConfig.ShowStreaks = func() bool { return features.IsEnabled(config.FeatureStreaks) }
	botConfig.Logger = log

	tgBot, err := bot.NewBot(botConfig, bot.BotDependencies{
		Client:        client,
		Services:      services,
		Conversations: sessions.conversations,
		RateWindow:    sessions.rate,
		Logs:          logReport,
		Metrics:       m,
	})
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.New(scheduler.Config{
		Logger:     log,
		Timezone:   cfg.App.Location,
		JobTimeout: cfg.Scheduler.JobTimeout,
	})
	sched.OnJobComplete(func(r scheduler.JobResult) {
		m.ObserveJob(r.JobName, r.Duration, r.Error)
	})
	if err := registerJobs(sched, cfg, services, client, logReport, m, log); err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	var httpServer *httpserver.Server
	if cfg.HTTP.Enabled {
		httpConfig := httpserver.DefaultConfig()
		httpConfig.Host = cfg.HTTP.Host
		httpConfig.Port = cfg.HTTP.Port
		httpConfig.WebhookSecret = cfg.Telegram.WebhookSecret
		httpConfig.Debug = cfg.App.Debug

		deps := httpserver.Dependencies{
			Health:  health,
			Metrics: m.Handler(),
			Stats:   tgBot.GetStats,
			Logger:  log,
		}
		if cfg.Telegram.Mode == config.ModeWebhook {
			deps.Webhook = tgBot.HandleUpdate
		}
		httpServer, err = httpserver.NewServer(httpConfig, deps)
		if err != nil {
			return fmt.Errorf("failed to create HTTP server: %w", err)
		}
	} else if cfg.Telegram.Mode == config.ModeWebhook {
		return errors.New("webhook mode needs the HTTP server (HTTP_ENABLED=true)")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 11. START SERVICES
	// ─────────────────────────────────────────────────────────────────────────
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	errCh := make(chan error, 3)

	if httpServer != nil {
		go func() {
			if err := httpServer.Start(); err != nil {
				errCh <- fmt.Errorf("http server error: %w", err)
			}
		}()
	}

	go func() {
		if err := tgBot.Start(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("telegram bot error: %w", err)
		}
	}()

	if cfg.Scheduler.Enabled {
		if err := sched.Start(runCtx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	log.Info("Attendio bot is running",
		zap.String("telegram_mode", cfg.Telegram.Mode),
		zap.Bool("http", httpServer != nil),
		zap.Bool("scheduler", cfg.Scheduler.Enabled),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 12. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
	case runErr = <-errCh:
		log.Error("service error", zap.Error(runErr))
	}

	log.Info("starting graceful shutdown", zap.Duration("timeout", cfg.App.ShutdownTimeout))
	stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if sched.IsRunning() {
		if err := sched.Stop(); err != nil {
			log.Warn("failed to stop scheduler", zap.Error(err))
		}
	}
	if err := tgBot.Stop(shutdownCtx); err != nil {
		log.Error("failed to stop bot gracefully", zap.Error(err))
	}
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to stop HTTP server gracefully", zap.Error(err))
		}
	}

	log.Info("shutdown completed")
	return runErr
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRING HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// openRecordStore opens the configured record store and applies migrations.
func openRecordStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (recordStore, func(), error) {
	if cfg.Store.Driver == config.StoreDriverMemory {
		log.Warn("using the in-memory record store, data is lost on restart")
		return memory.NewRecordStore(), func() {}, nil
	}

	pgConfig := postgres.DefaultConfig()
	pgConfig.URL = cfg.Store.URL
	pgConfig.MaxOpenConns = cfg.Store.MaxOpenConns
	pgConfig.MaxIdleConns = cfg.Store.MaxIdleConns
	pgConfig.ConnMaxLifetime = cfg.Store.ConnMaxLifetime

	conn, err := postgres.NewConnection(ctx, pgConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	closeFn := func() {
		log.Info("closing database connection")
		_ = conn.Close()
	}

	if cfg.Store.AutoMigrate {
		applied, err := postgres.NewMigrator(conn).Migrate(ctx)
		if err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("migrations completed", zap.Int("applied", applied))
	}

	store := postgres.NewRecordStore(conn, postgres.RecordStoreOptions{
		QueryTimeout: cfg.Store.QueryTimeout,
		Logger:       log,
	})
	return store, closeFn, nil
}

// recordStore is a record store with a connectivity probe.
type recordStore interface {
	attendance.RecordStore
	handlers.Pinger
}

// sessionStores holds the short-lived state shared by the handlers.
type sessionStores struct {
	locker        attendance.Locker
	blocks        attendance.BlockList
	conversations conversation.Store
	rate          bot.RateWindow
	ping          handlers.HealthCheckFunc
}

// openSessions keeps everything in Redis when enabled, in memory otherwise.
// In-memory state only works with one bot instance.
func openSessions(ctx context.Context, cfg *config.Config, log *zap.Logger) (sessionStores, func(), error) {
	if !cfg.Redis.Enabled {
		return sessionStores{
			locker:        memory.NewLocker(),
			blocks:        memory.NewBlockList(),
			conversations: memory.NewConversationStore(conversation.DefaultTTL),
			rate:          memory.NewRateWindow(cfg.Telegram.RateLimitPeriod),
		}, func() {}, nil
	}

	redisConfig := redis.DefaultConfig()
	redisConfig.Addr = cfg.Redis.Addr
	redisConfig.Password = cfg.Redis.Password
	redisConfig.DB = cfg.Redis.DB
	redisConfig.PoolSize = cfg.Redis.PoolSize
	redisConfig.DialTimeout = cfg.Redis.DialTimeout
	redisConfig.ReadTimeout = cfg.Redis.ReadTimeout
	redisConfig.WriteTimeout = cfg.Redis.WriteTimeout

	client, err := redis.NewClient(ctx, redisConfig)
	if err != nil {
		return sessionStores{}, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Info("Redis connection established", zap.String("addr", cfg.Redis.Addr))

	return sessionStores{
			locker:        redis.NewLocker(client, redis.WithLockLogger(log)),
			blocks:        redis.NewBlockList(client),
			conversations: redis.NewConversationStore(client, conversation.DefaultTTL),
			rate:          redis.NewRateWindow(client, cfg.Telegram.RateLimitPeriod),
			ping:          handlers.PingCheck(client),
		}, func() {
			log.Info("closing Redis connection")
			_ = client.Close()
		}, nil
}

// registerJobs adds the daily reminder and the daily log report.
func registerJobs(
	sched *scheduler.Scheduler,
	cfg *config.Config,
	services handler.Services,
	client *telegram.Client,
	logReport *jobs.LogReport,
	m *metrics.Metrics,
	log *zap.Logger,
) error {
	features := cfg.Features

	reminderConfig := jobs.DefaultDailyReminderConfig()
	reminderConfig.Threshold = cfg.Attendance.Threshold
	reminderConfig.Location = cfg.App.Location
	reminder := jobs.NewDailyReminderJob(services.Users, client, log, reminderConfig,
		jobs.WithDeliveryObserver(m),
		jobs.WithEnabled(func() bool { return features.IsEnabled(config.FeatureDailyReminder) }),
	)
	if err := sched.RegisterCron(reminder, cfg.Scheduler.ReminderCron); err != nil {
		return fmt.Errorf("failed to register %s: %w", reminder.Name(), err)
	}

	logJob := jobs.NewDailyLogReportJob(logReport,
		func() bool { return features.IsEnabled(config.FeatureDailyLogReport) }, log)
	if err := sched.RegisterCron(logJob, cfg.Scheduler.LogReportCron); err != nil {
		return fmt.Errorf("failed to register %s: %w", logJob.Name(), err)
	}
	return nil
}
