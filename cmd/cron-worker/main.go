package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kzarre/kzarre-backend/internal/audit"
	"github.com/kzarre/kzarre-backend/internal/campaigns"
	"github.com/kzarre/kzarre-backend/internal/cms"
	"github.com/kzarre/kzarre-backend/internal/cron"
	"github.com/kzarre/kzarre-backend/internal/inventory"
	"github.com/kzarre/kzarre-backend/internal/orders"
	"github.com/kzarre/kzarre-backend/internal/traffic"
	"github.com/kzarre/kzarre-backend/pkg/config"
	"github.com/kzarre/kzarre-backend/pkg/db"
	"github.com/kzarre/kzarre-backend/pkg/logger"
	"github.com/kzarre/kzarre-backend/pkg/mailer"
	"github.com/kzarre/kzarre-backend/pkg/metrics"
	"github.com/kzarre/kzarre-backend/pkg/migrate"
	"github.com/kzarre/kzarre-backend/pkg/outbox"
	"github.com/kzarre/kzarre-backend/pkg/redis"
)

const lockKeyFormat = "kz:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	conn := dbClient.DB()
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)

	inventorySvc, err := inventory.NewService(inventory.NewRepository(conn))
	if err != nil {
		fatal(logg, "failed to create inventory service", err)
	}
	ordersSvc, err := orders.NewService(
		orders.NewRepository(conn), dbClient, inventorySvc, outboxSvc, cfg.Orders, logg)
	if err != nil {
		fatal(logg, "failed to create orders service", err)
	}
	cmsSvc, err := cms.NewService(cms.NewRepository(conn), logg)
	if err != nil {
		fatal(logg, "failed to create cms service", err)
	}
	smtp, err := mailer.NewSMTPMailer(cfg.Mail, logg)
	if err != nil {
		fatal(logg, "failed to create mailer", err)
	}
	campaignsSvc, err := campaigns.NewService(
		campaigns.NewRepository(conn), dbClient, smtp, outboxSvc, logg)
	if err != nil {
		fatal(logg, "failed to create campaign service", err)
	}
	auditSvc, err := audit.NewService(audit.NewRepository(conn), logg)
	if err != nil {
		fatal(logg, "failed to create audit service", err)
	}
	trafficSvc, err := traffic.NewService(
		traffic.NewRepository(conn), nil, cfg.Traffic, cfg.BigQuery, logg)
	if err != nil {
		fatal(logg, "failed to create traffic service", err)
	}

	jobs := make([]cron.Job, 0, 5)
	for _, build := range []func() (cron.Job, error){
		func() (cron.Job, error) { return cron.NewOrderTTLJob(ordersSvc, logg) },
		func() (cron.Job, error) { return cron.NewCMSPublishJob(cmsSvc, logg) },
		func() (cron.Job, error) { return cron.NewCampaignSendJob(campaignsSvc, logg) },
		func() (cron.Job, error) { return cron.NewAuditRetentionJob(auditSvc, logg) },
		func() (cron.Job, error) { return cron.NewTrafficRetentionJob(trafficSvc, logg) },
	} {
		job, err := build()
		if err != nil {
			fatal(logg, "failed to create cron job", err)
		}
		jobs = append(jobs, job)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		fatal(logg, "failed to create cron lock", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(jobs...),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		fatal(logg, "failed to create cron service", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}

func fatal(logg *logger.Logger, msg string, err error) {
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
