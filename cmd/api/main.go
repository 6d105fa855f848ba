package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/firmasegura/certifications-backend/api"
	"github.com/firmasegura/certifications-backend/api/controllers"
	"github.com/firmasegura/certifications-backend/api/routes"
	"github.com/firmasegura/certifications-backend/internal/certifications"
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

const serviceName = "api"

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
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
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

	store, err := storage.New(ctx, cfg, logg)
	if err != nil {
		return fmt.Errorf("bootstrap object storage: %w", err)
	}
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	// The API serves its own registry rather than the process default.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	certService, err := certifications.NewService(certifications.ServiceParams{
		Repo:    certifications.NewRepository(dbClient.DB()),
		Tx:      dbClient,
		Outbox:  outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Store:   store,
		Catalog: cat,
		Metrics: metrics.NewCertificationMetrics(registry),
		Logger:  logg,
	})
	if err != nil {
		return fmt.Errorf("certification service: %w", err)
	}

	router := routes.NewRouter(routes.Dependencies{
		Config:         cfg,
		Logger:         logg,
		Certifications: certService,
		Catalog:        cat,
		Idempotency:    redisClient,
		RateLimiter:    redisClient,
		Readiness: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
			"storage":  store,
		},
		Gatherer: registry,
	})

	// Cloud Run injects PORT; it wins over the configured port.
	port := cfg.App.Port
	if injected := os.Getenv("PORT"); injected != "" {
		port = injected
	}
	addr := ":" + port

	logg.Info(logg.WithField(ctx, "addr", addr), "starting api server")
	return api.Serve(ctx, api.NewServer(addr, router), logg)
}
