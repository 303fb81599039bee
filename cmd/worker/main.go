/**
 * @description
 * This is the main entry point for the job worker.
 * This service is a non-HTTP, long-running process that consumes promoted
 * scheduled jobs from RabbitMQ and executes them through the orchestrator.
 * It initializes the configuration, database connection, job executors, and
 * the RabbitMQ consumer, then waits for a termination signal.
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

	"github.com/CardLinx/microsoft-earn-sub008/internal/app"
	"github.com/CardLinx/microsoft-earn-sub008/internal/config"
	"github.com/CardLinx/microsoft-earn-sub008/internal/domain"
	"github.com/CardLinx/microsoft-earn-sub008/internal/extract"
	"github.com/CardLinx/microsoft-earn-sub008/internal/jobs"
	"github.com/CardLinx/microsoft-earn-sub008/internal/store"
	"github.com/CardLinx/microsoft-earn-sub008/pkg/firstdata"
	"github.com/CardLinx/microsoft-earn-sub008/pkg/rabbitmq"
	"github.com/CardLinx/microsoft-earn-sub008/pkg/visaclient"
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

	// Initialize dependencies. The worker's engine carries no partner card
	// adapters; job bodies only drive the ledger side of the engine.
	repository := store.NewPostgresRepository(dbpool)
	engine := app.NewService(repository)
	engine.SetStatementCreditRequester(visaclient.NewClient(cfg.VisaBaseURL))
	registrar := firstdata.NewClient(cfg.FirstDataEndpoint)

	orchestrator := jobs.NewOrchestrator()
	orchestrator.Register(domain.JobRegisterOffers, jobs.NewRegisterOffersExecutor(registrar))
	orchestrator.Register(domain.JobClaimDiscountsForNewCard, jobs.NewClaimDiscountsExecutor(engine))
	orchestrator.Register(domain.JobGenerateTransactionReport, jobs.NewReportExecutor(
		repository, engine, extract.DirSink{Dir: cfg.ReportDirectory}, cfg.ReportFileDecoration))
	orchestrator.Register(domain.JobProcessExtractFile, jobs.NewExtractExecutor(
		extract.DirSource{Dir: cfg.ExtractDirectory}, engine))
	orchestrator.Register(domain.JobProcessStatementCredits, jobs.NewStatementCreditExecutor(engine))

	consumer, err := rabbitmq.NewConsumer(cfg.RabbitMQURL)
	if err != nil {
		logger.Error("unable to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	worker := jobs.NewWorker(repository, orchestrator)
	if err := worker.Start(consumer); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}
	logger.Info("worker started", "queue", jobs.WorkerQueue)

	// Wait for termination signal to gracefully shut down
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received, stopping worker")
}
