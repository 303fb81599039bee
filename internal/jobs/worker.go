/**
 * @description
 * The job worker: consumes promoted scheduled jobs from RabbitMQ, executes
 * them through the orchestrator, and writes the scheduling decision back to
 * the durable job table. The queue delivery is always acked once a decision
 * is durably recorded — retry lives in the job table, not in queue redelivery.
 *
 * @dependencies
 * - context, encoding/json, log, time: Standard Go libraries.
 * - internal/domain, internal/store: Job models and persistence.
 * - pkg/rabbitmq: Queue consumption.
 */

package jobs

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/CardLinx/microsoft-earn-sub008/internal/domain"
	"github.com/CardLinx/microsoft-earn-sub008/internal/store"
	"github.com/CardLinx/microsoft-earn-sub008/pkg/rabbitmq"
)

// WorkerQueue is the durable queue the worker consumes.
const WorkerQueue = "commerce.jobs.worker"

// defaultRetryCeiling bounds non-terminal retries for jobs whose creator did
// not set MaxRetries.
const defaultRetryCeiling = 20

// Worker executes promoted jobs and records the outcome.
type Worker struct {
	repo         store.Repository
	orchestrator *Orchestrator
	now          func() time.Time
}

// NewWorker creates a worker.
func NewWorker(repo store.Repository, orchestrator *Orchestrator) *Worker {
	return &Worker{repo: repo, orchestrator: orchestrator, now: time.Now}
}

// Start binds the worker to the jobs exchange and begins consuming.
func (w *Worker) Start(consumer *rabbitmq.Consumer) error {
	return consumer.ConsumeWithBindings(rabbitmq.JobsExchange, WorkerQueue, map[string]func([]byte) bool{
		rabbitmq.RoutingKeyScheduled: w.handleDelivery,
	})
}

func (w *Worker) handleDelivery(body []byte) bool {
	var details domain.ScheduledJobDetails
	if err := json.Unmarshal(body, &details); err != nil {
		log.Printf("Worker: Dropping undecodable job message: %v", err)
		return true
	}
	if err := w.Process(context.Background(), &details); err != nil {
		log.Printf("Worker: Failed to record outcome for job %s: %v", details.JobID, err)
		return false
	}
	return true
}

// Process executes one job and persists the scheduling decision.
func (w *Worker) Process(ctx context.Context, details *domain.ScheduledJobDetails) error {
	log.Printf("Worker: Executing job %s type %s (retry %d)", details.JobID, details.JobType, details.State.RetryCount)

	result := w.orchestrator.Execute(ctx, details)
	switch result {
	case domain.ExecutionSuccess:
		if details.Recurring {
			next := w.now().Add(24 * time.Hour)
			if err := w.repo.MarkRecurringJobIterationDone(ctx, details.JobID, next); err != nil {
				return err
			}
			log.Printf("Worker: Job %s iteration done, next run %s", details.JobID, next.Format(time.RFC3339))
			return nil
		}
		if err := w.repo.CompleteScheduledJob(ctx, details.JobID); err != nil {
			return err
		}
		log.Printf("Worker: Job %s completed", details.JobID)
		return nil

	case domain.ExecutionNonTerminalError:
		if details.Recurring {
			// Recurring jobs never back off: a failed iteration waits for
			// its next scheduled occurrence.
			next := w.now().Add(24 * time.Hour)
			if err := w.repo.MarkRecurringJobIterationDone(ctx, details.JobID, next); err != nil {
				return err
			}
			log.Printf("Worker: Job %s iteration failed, next occurrence %s", details.JobID, next.Format(time.RFC3339))
			return nil
		}
		// The delay is computed from the current count, then the count is
		// bumped: the first failure waits 2^0 = 1s.
		next := NextRunTime(w.now(), details.State.RetryCount)
		details.State.RetryCount++
		ceiling := details.MaxRetries
		if ceiling <= 0 {
			ceiling = defaultRetryCeiling
		}
		if details.State.RetryCount > ceiling {
			if err := w.repo.CompleteScheduledJob(ctx, details.JobID); err != nil {
				return err
			}
			log.Printf("Worker: Job %s abandoned after exhausting %d retries", details.JobID, ceiling)
			return nil
		}
		if err := w.repo.RescheduleJobAfterFailure(ctx, details.JobID, details.State, next); err != nil {
			return err
		}
		log.Printf("Worker: Job %s rescheduled for %s (retry %d)", details.JobID, next.Format(time.RFC3339), details.State.RetryCount)
		return nil

	default:
		if err := w.repo.CompleteScheduledJob(ctx, details.JobID); err != nil {
			return err
		}
		log.Printf("Worker: Job %s abandoned after terminal error", details.JobID)
		return nil
	}
}
