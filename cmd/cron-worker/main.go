package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/firmasegura/certifications-backend/internal/certifications"
	"github.com/firmasegura/certifications-backend/internal/cron"
	"github.com/firmasegura/certifications-backend/pkg/catalog"
	"github.com/firmasegura/certifications-backend/pkg/config"
	"github.com/firmasegura/certifications-backend/pkg/db"
	"github.com/firmasegura/certifications-backend/pkg/logger"
	"github.com/firmasegura/certifications-backend/pkg/metrics"
	"github.com/firmasegura/certifications-backend/pkg/migrate"
	"github.com/firmasegura/certifications-backend/pkg/outbox"
	"github.com/firmasegura/certifications-backend/pkg/redis"
	"github.com/firmasegura/certifications-backend/pkg/storage"
)

const (
	serviceName     = "cron-worker"
	staleDraftBatch = 100
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.New(logger.Options{ServiceName: serviceName}).Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: serviceName}).Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceName

	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Cron.Interval.String(),
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer redisClient.Close()

	jobs, err := buildJobs(ctx, cfg, logg, dbClient)
	if err != nil {
		return err
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(serviceName), cron.LockTTL(cfg.Cron.Interval))
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   jobs,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	if addr := cfg.Service.MetricsAddr; addr != "" {
		go func() {
			if err := metrics.Serve(ctx, addr, prometheus.DefaultGatherer, logg); err != nil {
				logg.Error(ctx, "metrics listener failed", err)
			}
		}()
	}

	logg.Info(ctx, "starting cron worker")
	return service.Run(ctx)
}

// buildJobs wires the maintenance jobs. Stale draft cleanup goes through the
// certification service so attachments are removed with their drafts.
func buildJobs(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	store, err := storage.New(ctx, cfg, logg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap object storage: %w", err)
	}
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	outboxRepo := outbox.NewRepository(dbClient.DB())
	certService, err := certifications.NewService(certifications.ServiceParams{
		Repo:    certifications.NewRepository(dbClient.DB()),
		Tx:      dbClient,
		Outbox:  outbox.NewService(outboxRepo, logg),
		Store:   store,
		Catalog: cat,
		Metrics: metrics.NewCertificationMetrics(prometheus.DefaultRegisterer),
		Logger:  logg,
	})
	if err != nil {
		return nil, fmt.Errorf("certification service: %w", err)
	}

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:        logg,
		Repository:    outboxRepo,
		RetentionDays: cfg.Outbox.RetentionDays,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}
	drafts, err := cron.NewStaleDraftJob(cron.StaleDraftJobParams{
		Logger:        logg,
		Purger:        certService,
		RetentionDays: cfg.Cron.StaleDraftDays,
		BatchSize:     staleDraftBatch,
	})
	if err != nil {
		return nil, fmt.Errorf("stale draft job: %w", err)
	}
	return cron.NewRegistry(retention, drafts)
}
