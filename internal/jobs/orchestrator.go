/**
 * @description
 * The job orchestrator: a registry of job executors plus the execution policy
 * that turns a task-level outcome into a durable scheduling decision. A job is
 * either a single body or a sequence of named tasks; task jobs record a
 * completion sentinel per task in the job state, so a retried job resumes at
 * the first unfinished task instead of re-doing completed work.
 *
 * Outcome policy:
 * - Success: the job (or iteration, for recurring jobs) is done.
 * - NonTerminalError: the worker reschedules the job with exponential backoff;
 *   the state (including sentinels) is preserved.
 * - TerminalError: the job is abandoned; retrying cannot help.
 *
 * @dependencies
 * - context, fmt, log: Standard Go libraries.
 * - internal/domain: Job models and the execution-result taxonomy.
 */

package jobs

import (
	"context"
	"log"

	"github.com/CardLinx/microsoft-earn-sub008/internal/domain"
)

// Task is one named, resumable unit of a job. Execute must be safe to call
// again after a crash; the orchestrator skips tasks whose sentinel is set.
type Task interface {
	Name() string
	Execute(ctx context.Context, state *domain.JobState) (domain.ExecutionResult, error)
}

// Executor produces the tasks for one run of a job. Task lists may depend on
// the job's state (e.g. one task per merchant named in the payload).
type Executor interface {
	Tasks(ctx context.Context, details *domain.ScheduledJobDetails) ([]Task, error)
}

// ExecutorFunc adapts a single-body function into an Executor.
type ExecutorFunc func(ctx context.Context, state *domain.JobState) (domain.ExecutionResult, error)

func (f ExecutorFunc) Tasks(_ context.Context, details *domain.ScheduledJobDetails) ([]Task, error) {
	return []Task{taskFunc{name: string(details.JobType), fn: f}}, nil
}

type taskFunc struct {
	name string
	fn   ExecutorFunc
}

func (t taskFunc) Name() string { return t.name }
func (t taskFunc) Execute(ctx context.Context, state *domain.JobState) (domain.ExecutionResult, error) {
	return t.fn(ctx, state)
}

// Orchestrator dispatches scheduled jobs to their registered executors.
type Orchestrator struct {
	executors map[domain.JobType]Executor
}

// NewOrchestrator creates an empty orchestrator.
func NewOrchestrator() *Orchestrator {
	return &Orchestrator{executors: make(map[domain.JobType]Executor)}
}

// Register binds a job type to its executor. Later registrations win; that
// only matters in tests.
func (o *Orchestrator) Register(jobType domain.JobType, executor Executor) {
	o.executors[jobType] = executor
}

// Execute runs one job to its first failure or to completion. The job's state
// is mutated in place: completed tasks gain sentinels. Retry counting belongs
// to the worker, which owns the scheduling decision.
func (o *Orchestrator) Execute(ctx context.Context, details *domain.ScheduledJobDetails) domain.ExecutionResult {
	executor, ok := o.executors[details.JobType]
	if !ok {
		log.Printf("Orchestrator: No executor registered for job type %s (job %s)", details.JobType, details.JobID)
		return domain.ExecutionTerminalError
	}

	tasks, err := executor.Tasks(ctx, details)
	if err != nil {
		log.Printf("Orchestrator: Job %s failed to build tasks: %v", details.JobID, err)
		return domain.ExecutionNonTerminalError
	}

	for _, task := range tasks {
		if details.State.Completed(task.Name()) {
			log.Printf("Orchestrator: Job %s skipping completed task %s", details.JobID, task.Name())
			continue
		}
		result, err := task.Execute(ctx, &details.State)
		switch result {
		case domain.ExecutionSuccess:
			details.State.MarkCompleted(task.Name())
		case domain.ExecutionNonTerminalError:
			log.Printf("Orchestrator: Job %s task %s failed (retry %d): %v", details.JobID, task.Name(), details.State.RetryCount, err)
			return domain.ExecutionNonTerminalError
		default:
			log.Printf("Orchestrator: Job %s task %s failed terminally: %v", details.JobID, task.Name(), err)
			return domain.ExecutionTerminalError
		}
	}
	return domain.ExecutionSuccess
}
