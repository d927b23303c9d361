package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/goldenlife/careconnect/cmd/mainconfig"
	"github.com/goldenlife/careconnect/internal/app/bootstrap"
	"github.com/goldenlife/careconnect/internal/config"
	"github.com/goldenlife/careconnect/internal/events"
	"github.com/goldenlife/careconnect/internal/notify"
	"github.com/goldenlife/careconnect/internal/observability/metrics"
	"github.com/goldenlife/careconnect/internal/reminders"
	"github.com/goldenlife/careconnect/pkg/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DatabaseURL == "" {
		logger.Error("worker requires DATABASE_URL")
		os.Exit(1)
	}

	store, err := bootstrap.BuildStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	var awsCfg *aws.Config
	if mainconfig.NeedsAWS(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		awsCfg = &loaded
	}

	sender, provider, err := bootstrap.BuildEmailSender(cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to configure email", "error", err)
		os.Exit(1)
	}
	notifier := notify.NewNotifier(sender, store, cfg.Currency, logger)

	deliverer := events.NewDeliverer(store.Repos().Outbox, bootstrap.BuildOutboxHandler(cfg, awsCfg, notifier, logger), logger).
		WithInterval(cfg.OutboxInterval).
		WithBatchSize(int32(cfg.OutboxBatchSize)).
		WithMetrics(metrics.NewOutboxMetrics(prometheus.DefaultRegisterer))

	scheduler := cron.New()
	job := reminders.NewJob(store, notifier, cfg.ReminderLeadTime, logger)
	if _, err := job.Schedule(ctx, scheduler, cfg.ReminderSchedule); err != nil {
		logger.Error("invalid reminder schedule", "schedule", cfg.ReminderSchedule, "error", err)
		os.Exit(1)
	}

	go deliverer.Start(ctx)
	scheduler.Start()
	logger.Info("worker started",
		"email_provider", provider,
		"outbox_interval", cfg.OutboxInterval,
		"reminder_schedule", cfg.ReminderSchedule,
	)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("worker shutting down")
	cancel()
	<-scheduler.Stop().Done()
	time.Sleep(2 * time.Second)
}
