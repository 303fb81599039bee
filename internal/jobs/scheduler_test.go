package jobs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/CardLinx/microsoft-earn-sub008/internal/domain"
	"github.com/CardLinx/microsoft-earn-sub008/internal/store"
)

// stubSchedulerRepo serves due jobs and records holdbacks and creations.
type stubSchedulerRepo struct {
	store.Repository

	due         []domain.ScheduledJobDetails
	rescheduled map[uuid.UUID]time.Time
	created     []domain.ScheduledJobDetails
}

func newStubSchedulerRepo(due ...domain.ScheduledJobDetails) *stubSchedulerRepo {
	return &stubSchedulerRepo{due: due, rescheduled: make(map[uuid.UUID]time.Time)}
}

func (s *stubSchedulerRepo) FindDueScheduledJobs(_ context.Context, _ time.Time, _ int) ([]domain.ScheduledJobDetails, error) {
	return s.due, nil
}

func (s *stubSchedulerRepo) RescheduleJobAfterFailure(_ context.Context, jobID uuid.UUID, _ domain.JobState, nextRun time.Time) error {
	s.rescheduled[jobID] = nextRun
	return nil
}

func (s *stubSchedulerRepo) CreateScheduledJob(_ context.Context, job *domain.ScheduledJobDetails) error {
	s.created = append(s.created, *job)
	return nil
}

type recordingPublisher struct {
	published []domain.ScheduledJobDetails
}

func (p *recordingPublisher) Publish(_ context.Context, _, _ string, _ interface{}) error {
	return nil
}

func (p *recordingPublisher) PublishJob(_ context.Context, job domain.ScheduledJobDetails) error {
	p.published = append(p.published, job)
	return nil
}

func (p *recordingPublisher) Close() {}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPromoteDueJobsHoldsBackBeforePublishing(t *testing.T) {
	job := domain.ScheduledJobDetails{JobID: uuid.New(), JobType: domain.JobRegisterOffers}
	repo := newStubSchedulerRepo(job)
	publisher := &recordingPublisher{}

	s := NewScheduler(repo, publisher, testLogger(), "@every 1m")
	before := time.Now()
	s.PromoteDueJobs()

	if len(publisher.published) != 1 || publisher.published[0].JobID != job.JobID {
		t.Fatalf("expected job %s published, got %v", job.JobID, publisher.published)
	}
	next, ok := repo.rescheduled[job.JobID]
	if !ok {
		t.Fatal("promoted job must be held back before publishing")
	}
	if next.Before(before.Add(promoteHoldback - time.Second)) {
		t.Fatalf("holdback too short: %v", next.Sub(before))
	}
}

func TestPromoteDueJobsWithNothingDue(t *testing.T) {
	repo := newStubSchedulerRepo()
	publisher := &recordingPublisher{}

	s := NewScheduler(repo, publisher, testLogger(), "@every 1m")
	s.PromoteDueJobs()

	if len(publisher.published) != 0 {
		t.Fatalf("expected nothing published, got %d", len(publisher.published))
	}
}

func TestEnqueueExtractJobsSkipsSeenFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"EXTRACT_A.txt", "EXTRACT_B.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("failed to write fixture: %v", err)
		}
	}
	repo := newStubSchedulerRepo()

	s := NewScheduler(repo, &recordingPublisher{}, testLogger(), "@every 1m")
	s.EnqueueExtractJobs(dir)

	if len(repo.created) != 2 {
		t.Fatalf("expected two extract jobs, got %d", len(repo.created))
	}
	names := map[string]bool{}
	for _, job := range repo.created {
		if job.JobType != domain.JobProcessExtractFile {
			t.Fatalf("expected extract job type, got %s", job.JobType)
		}
		names[job.State.Data[ExtractNameKey]] = true
	}
	if !names["EXTRACT_A.txt"] || !names["EXTRACT_B.txt"] {
		t.Fatalf("expected both files enqueued, got %v", names)
	}

	// A second scan enqueues nothing new.
	s.EnqueueExtractJobs(dir)
	if len(repo.created) != 2 {
		t.Fatalf("expected seen files skipped, got %d jobs", len(repo.created))
	}
}

func TestEnqueueReportJobCreatesDueRow(t *testing.T) {
	repo := newStubSchedulerRepo()

	s := NewScheduler(repo, &recordingPublisher{}, testLogger(), "@every 1m")
	s.EnqueueReportJob()

	if len(repo.created) != 1 {
		t.Fatalf("expected one created job, got %d", len(repo.created))
	}
	created := repo.created[0]
	if created.JobType != domain.JobGenerateTransactionReport {
		t.Fatalf("expected report job type, got %s", created.JobType)
	}
	if created.Recurring {
		t.Fatal("report rows are one-shot, the cron owns the recurrence")
	}
	if created.StartTime.IsZero() {
		t.Fatal("expected a due start time")
	}
}

func TestEnqueueStatementCreditJobCreatesDueRow(t *testing.T) {
	repo := newStubSchedulerRepo()

	s := NewScheduler(repo, &recordingPublisher{}, testLogger(), "@every 1m")
	s.EnqueueStatementCreditJob()

	if len(repo.created) != 1 {
		t.Fatalf("expected one created job, got %d", len(repo.created))
	}
	created := repo.created[0]
	if created.JobType != domain.JobProcessStatementCredits {
		t.Fatalf("expected statement credit job type, got %s", created.JobType)
	}
	if created.Recurring {
		t.Fatal("sweep rows are one-shot, the cron owns the recurrence")
	}
}
