/**
 * @description
 * Cron scheduler for the job pipeline. Every tick it promotes due rows from
 * the scheduled-job table onto the RabbitMQ work exchange; the row's due time
 * is pushed forward before publishing so a second scheduler instance cannot
 * promote the same job twice in one window.
 */
package jobs

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/CardLinx/microsoft-earn-sub008/internal/domain"
	"github.com/CardLinx/microsoft-earn-sub008/internal/store"
	"github.com/CardLinx/microsoft-earn-sub008/pkg/rabbitmq"
)

// promoteBatchSize bounds how many due jobs one tick publishes.
const promoteBatchSize = 100

// promoteHoldback is how far a promoted job's due time is pushed forward; a
// worker that never picks the job up sees it come due again after this.
const promoteHoldback = 5 * time.Minute

// Scheduler promotes due scheduled jobs onto the work queue.
type Scheduler struct {
	cron      *cron.Cron
	repo      store.Repository
	publisher rabbitmq.Publisher
	logger    *slog.Logger
	schedule  string

	seenExtracts map[string]bool
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(repo store.Repository, publisher rabbitmq.Publisher, logger *slog.Logger, schedule string) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:         c,
		repo:         repo,
		publisher:    publisher,
		logger:       logger,
		schedule:     schedule,
		seenExtracts: make(map[string]bool),
	}
}

// ScheduleReportGeneration registers a cron entry that enqueues the daily
// transaction report job. The row is one-shot; the cron owns the recurrence.
func (s *Scheduler) ScheduleReportGeneration(schedule string) {
	if _, err := s.cron.AddFunc(schedule, s.EnqueueReportJob); err != nil {
		s.logger.Error("failed to schedule report generation", "error", err)
		return
	}
	s.logger.Info("scheduled report generation", "schedule", schedule)
}

// EnqueueReportJob creates a due GenerateTransactionReport job row.
func (s *Scheduler) EnqueueReportJob() {
	ctx := context.Background()
	job := &domain.ScheduledJobDetails{
		JobID:     uuid.New(),
		JobType:   domain.JobGenerateTransactionReport,
		StartTime: time.Now(),
	}
	if err := s.repo.CreateScheduledJob(ctx, job); err != nil {
		s.logger.Error("failed to enqueue report job", "error", err)
		return
	}
	s.logger.Info("enqueued report job", "job_id", job.JobID)
}

// ScheduleStatementCreditSweep registers a cron entry that enqueues the
// statement-credit sweep job. The row is one-shot; the cron owns the
// recurrence.
func (s *Scheduler) ScheduleStatementCreditSweep(schedule string) {
	if _, err := s.cron.AddFunc(schedule, s.EnqueueStatementCreditJob); err != nil {
		s.logger.Error("failed to schedule statement credit sweep", "error", err)
		return
	}
	s.logger.Info("scheduled statement credit sweep", "schedule", schedule)
}

// EnqueueStatementCreditJob creates a due ProcessStatementCredits job row.
func (s *Scheduler) EnqueueStatementCreditJob() {
	ctx := context.Background()
	job := &domain.ScheduledJobDetails{
		JobID:     uuid.New(),
		JobType:   domain.JobProcessStatementCredits,
		StartTime: time.Now(),
	}
	if err := s.repo.CreateScheduledJob(ctx, job); err != nil {
		s.logger.Error("failed to enqueue statement credit job", "error", err)
		return
	}
	s.logger.Info("enqueued statement credit job", "job_id", job.JobID)
}

// ScheduleExtractScan registers a cron entry that scans the extract drop
// directory and enqueues an ingestion job per newly arrived file. The seen
// set is in-memory only; a restart re-enqueues files already processed, and
// the engine's idempotency key absorbs the replays.
func (s *Scheduler) ScheduleExtractScan(schedule, dir string) {
	if _, err := s.cron.AddFunc(schedule, func() { s.EnqueueExtractJobs(dir) }); err != nil {
		s.logger.Error("failed to schedule extract scan", "error", err)
		return
	}
	s.logger.Info("scheduled extract scan", "schedule", schedule, "dir", dir)
}

// EnqueueExtractJobs creates an ingestion job for each unseen extract file.
func (s *Scheduler) EnqueueExtractJobs(dir string) {
	ctx := context.Background()

	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Error("failed to read extract directory", "dir", dir, "error", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || s.seenExtracts[entry.Name()] {
			continue
		}
		job := &domain.ScheduledJobDetails{
			JobID:     uuid.New(),
			JobType:   domain.JobProcessExtractFile,
			State:     domain.JobState{Data: map[string]string{ExtractNameKey: entry.Name()}},
			StartTime: time.Now(),
		}
		if err := s.repo.CreateScheduledJob(ctx, job); err != nil {
			s.logger.Error("failed to enqueue extract job", "file", entry.Name(), "error", err)
			continue
		}
		s.seenExtracts[entry.Name()] = true
		s.logger.Info("enqueued extract job", "job_id", job.JobID, "file", entry.Name())
	}
}

// Start registers the promotion tick and starts the cron scheduler.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.schedule, s.PromoteDueJobs); err != nil {
		s.logger.Error("failed to schedule job promotion", "error", err)
	} else {
		s.logger.Info("scheduled job promotion", "schedule", s.schedule)
	}
	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// PromoteDueJobs publishes every due job onto the work exchange.
func (s *Scheduler) PromoteDueJobs() {
	ctx := context.Background()
	now := time.Now()

	due, err := s.repo.FindDueScheduledJobs(ctx, now, promoteBatchSize)
	if err != nil {
		s.logger.Error("failed to find due jobs", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}

	for _, job := range due {
		if err := s.repo.RescheduleJobAfterFailure(ctx, job.JobID, job.State, now.Add(promoteHoldback)); err != nil {
			s.logger.Error("failed to hold back promoted job", "job_id", job.JobID, "error", err)
			continue
		}
		if err := s.publisher.PublishJob(ctx, job); err != nil {
			s.logger.Error("failed to publish job", "job_id", job.JobID, "error", err)
			continue
		}
		s.logger.Info("promoted job", "job_id", job.JobID, "job_type", job.JobType)
	}
}
