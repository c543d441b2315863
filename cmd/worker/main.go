// Package main is the entry point of the Attendio worker.
//
// The worker sends the daily attendance reminder outside the bot process,
// so the bot can run with SCHEDULER_ENABLED=false.
//
//	worker                      # run the reminder on REMINDER_CRON until SIGTERM
//	worker run daily_reminder   # run it once and exit
//
// The daily log report stays in the bot: it reads the bot's own log buffer.
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
	"github.com/TayalAditya/TheAttendioBot/internal/application/query"
	"github.com/TayalAditya/TheAttendioBot/internal/domain/attendance"
	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/external/telegram"
	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/metrics"
	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/persistence/postgres"
	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/scheduler"
	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/scheduler/jobs"
	"github.com/TayalAditya/TheAttendioBot/pkg/logger"
	"github.com/TayalAditya/TheAttendioBot/pkg/timeutil"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	once := ""
	switch {
	case len(args) == 0:
	case len(args) == 2 && args[0] == "run":
		once = args[1]
	default:
		return errors.New("usage: worker [run <job>]")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Store.Driver == config.StoreDriverMemory {
		return errors.New("the worker needs a shared record store, set STORE_DRIVER=postgres")
	}
	timeutil.SetLocation(cfg.App.Location)

	log, err := logger.New(logger.Config{
		Env:    string(cfg.App.Environment),
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	log = log.With(logger.Component("worker"))

	// ─────────────────────────────────────────────────────────────────────────
	// RECORD STORE
	// ─────────────────────────────────────────────────────────────────────────
	pgConfig := postgres.DefaultConfig()
	pgConfig.URL = cfg.Store.URL
	pgConfig.MaxOpenConns = cfg.Store.MaxOpenConns
	pgConfig.MaxIdleConns = cfg.Store.MaxIdleConns
	pgConfig.ConnMaxLifetime = cfg.Store.ConnMaxLifetime

	conn, err := postgres.NewConnection(ctx, pgConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() { _ = conn.Close() }()

	var store attendance.RecordStore = postgres.NewRecordStore(conn, postgres.RecordStoreOptions{
		QueryTimeout: cfg.Store.QueryTimeout,
		Logger:       log,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// JOBS
	// ─────────────────────────────────────────────────────────────────────────
	clientConfig := telegram.DefaultClientConfig(cfg.Telegram.Token)
	clientConfig.Logger = log
	client := telegram.NewClient(clientConfig)

	features := cfg.Features
	m := metrics.New()

	reminderConfig := jobs.DefaultDailyReminderConfig()
	reminderConfig.Threshold = cfg.Attendance.Threshold
	reminderConfig.Location = cfg.App.Location
	reminder := jobs.NewDailyReminderJob(
		query.NewUserDirectory(query.Dependencies{
			Store:  store,
			Advice: attendance.AdvicePolicy{ThresholdPercent: cfg.Attendance.AdviceThresholdPercent},
			Logger: log,
		}),
		client, log, reminderConfig,
		jobs.WithDeliveryObserver(m),
		jobs.WithEnabled(func() bool { return features.IsEnabled(config.FeatureDailyReminder) }),
	)

	sched := scheduler.New(scheduler.Config{
		Logger:     log,
		Timezone:   cfg.App.Location,
		JobTimeout: cfg.Scheduler.JobTimeout,
	})
	sched.OnJobComplete(func(r scheduler.JobResult) {
		m.ObserveJob(r.JobName, r.Duration, r.Error)
		log.Info("job finished",
			zap.String("job", r.JobName),
			zap.Duration("duration", r.Duration),
			zap.Bool("success", r.Error == nil),
		)
	})
	if err := sched.RegisterCron(reminder, cfg.Scheduler.ReminderCron); err != nil {
		return fmt.Errorf("failed to register %s: %w", reminder.Name(), err)
	}

	if once != "" {
		_, err := sched.RunNow(ctx, once)
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// RUN UNTIL SIGNALLED
	// ─────────────────────────────────────────────────────────────────────────
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	if err := sched.Start(runCtx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	log.Info("worker is running", zap.String("reminder_cron", cfg.Scheduler.ReminderCron))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("received shutdown signal", zap.String("signal", sig.String()))

	stop()
	done := make(chan error, 1)
	go func() { done <- sched.Stop() }()
	select {
	case err := <-done:
		if err != nil {
			log.Warn("failed to stop scheduler", zap.Error(err))
		}
	case <-time.After(cfg.App.ShutdownTimeout):
		log.Warn("scheduler did not stop in time")
	}
	log.Info("worker stopped")
	return nil
}
