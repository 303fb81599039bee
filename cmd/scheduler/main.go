/**
 * @description
 * This is the main entry point for the scheduler.
 * This service is a non-HTTP, long-running process that promotes due rows from
 * the scheduled-job table onto the RabbitMQ work exchange on a cron tick.
 * It initializes the configuration, database connection, and the cron
 * scheduler, then starts it.
 */
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/CardLinx/microsoft-earn-sub008/internal/config"
	"github.com/CardLinx/microsoft-earn-sub008/internal/jobs"
	"github.com/CardLinx/microsoft-earn-sub008/internal/store"
	"github.com/CardLinx/microsoft-earn-sub008/pkg/rabbitmq"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Load application configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Establish database connection with connection pool configuration
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("unable to parse database URL", "error", err)
		os.Exit(1)
	}

	// Configure connection pool for high-traffic scenarios
	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	// Initialize dependencies. A missing broker should not prevent boot; the
	// fallback producer drops publishes and due jobs simply stay due.
	repository := store.NewPostgresRepository(dbpool)

	var publisher rabbitmq.Publisher
	producer, err := rabbitmq.NewJobProducer(cfg.RabbitMQURL)
	if err != nil {
		logger.Warn("rabbitmq producer unavailable; using fallback", "error", err)
		publisher = &rabbitmq.JobProducerFallback{}
	} else {
		defer producer.Close()
		publisher = producer
	}

	scheduler := jobs.NewScheduler(repository, publisher, logger, cfg.SchedulerPromoteSchedule)
	scheduler.ScheduleReportGeneration(cfg.ReportSchedule)
	scheduler.ScheduleExtractScan(cfg.ExtractScanSchedule, cfg.ExtractDirectory)
	scheduler.ScheduleStatementCreditSweep(cfg.StatementCreditSchedule)

	// Start the cron scheduler in the background
	scheduler.Start()
	logger.Info("scheduler started", "schedule", cfg.SchedulerPromoteSchedule)

	// Wait for termination signal to gracefully shut down
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	// Stop the scheduler
	logger.Info("shutdown signal received, stopping scheduler")
	stopCtx := scheduler.Stop()
	<-stopCtx.Done() // Wait for scheduler to fully stop
	logger.Info("scheduler stopped gracefully")
}
