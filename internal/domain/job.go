/**
 * @description
 * This file defines the scheduled-job domain models: the durable job row, the
 * typed job state carried across retries, and the execution result taxonomy
 * the orchestrator acts on.
 *
 * @notes
 * - JobState replaces the stringly-typed payload dictionary of earlier
 *   systems: RetryCount and CompletedTargets are explicit fields, and the
 *   business payload lives in Data. The whole struct is serialized to JSON
 *   for durable storage.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobType names a registered job body.
type JobType string

const (
	JobRegisterOffers          JobType = "RegisterOffers"
	JobClaimDiscountsForNewCard JobType = "ClaimDiscountsForNewCard"
	JobGenerateTransactionReport JobType = "GenerateTransactionReport"
	JobProcessExtractFile      JobType = "ProcessExtractFile"
	JobProcessStatementCredits JobType = "ProcessStatementCredits"
)

// ExecutionResult is the outcome of a task or job body.
type ExecutionResult int

const (
	ExecutionSuccess ExecutionResult = iota
	ExecutionNonTerminalError
	ExecutionTerminalError
)

func (r ExecutionResult) String() string {
	switch r {
	case ExecutionSuccess:
		return "Success"
	case ExecutionNonTerminalError:
		return "NonTerminalError"
	case ExecutionTerminalError:
		return "TerminalError"
	}
	return "Unknown"
}

// JobState is the only state carried across retry/backoff cycles.
type JobState struct {
	RetryCount int `json:"retry_count"`
	// CompletedTargets records per-target completion sentinels (keyed by
	// merchant id for registration jobs) so a partially-succeeded job
	// resumes instead of re-doing finished work.
	CompletedTargets map[string]bool   `json:"completed_targets,omitempty"`
	Data             map[string]string `json:"data,omitempty"`
}

// MarkCompleted records a target sentinel.
func (s *JobState) MarkCompleted(target string) {
	if s.CompletedTargets == nil {
		s.CompletedTargets = make(map[string]bool)
	}
	s.CompletedTargets[target] = true
}

// Completed reports whether a target sentinel is present.
func (s *JobState) Completed(target string) bool {
	return s.CompletedTargets[target]
}

// ScheduledJobDetails is a durable unit of deferred work.
type ScheduledJobDetails struct {
	JobID        uuid.UUID `json:"job_id"`
	JobType      JobType   `json:"job_type"`
	State        JobState  `json:"state"`
	// MaxRetries is the caller-defined retry ceiling. Once the retry count
	// passes it the job is removed permanently. Zero means the worker's
	// default ceiling.
	MaxRetries   int       `json:"max_retries,omitempty"`
	Orchestrated bool      `json:"orchestrated"`
	Recurring    bool      `json:"recurring"`
	StartTime    time.Time `json:"start_time"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
