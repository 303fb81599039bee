package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/CardLinx/microsoft-earn-sub008/internal/domain"
	"github.com/CardLinx/microsoft-earn-sub008/internal/extract"
)

type stubExtractSource struct {
	files map[string]string
}

func (s *stubExtractSource) Fetch(_ context.Context, name string) (string, error) {
	content, ok := s.files[name]
	if !ok {
		return "", errors.New("no such file")
	}
	return content, nil
}

type recordingApplier struct {
	redeemed []domain.RedemptionEvent
	applied  []domain.SettlementEvent
	fail     bool
}

func (a *recordingApplier) RedeemDeal(_ context.Context, event domain.RedemptionEvent) (*domain.RedeemedDeal, domain.ResultCode, error) {
	if a.fail {
		return nil, domain.ResultUnknownError, errors.New("ledger unavailable")
	}
	a.redeemed = append(a.redeemed, event)
	return &domain.RedeemedDeal{}, domain.ResultSuccess, nil
}

func (a *recordingApplier) SettleRedeemedDeal(_ context.Context, event domain.SettlementEvent) (*domain.SettledDealInfo, domain.ResultCode, error) {
	if a.fail {
		return nil, domain.ResultUnknownError, errors.New("ledger unavailable")
	}
	a.applied = append(a.applied, event)
	return &domain.SettledDealInfo{}, domain.ResultSuccess, nil
}

func TestExtractExecutorAppliesSettlements(t *testing.T) {
	day := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	content := strings.Join([]string{
		extract.BuildExtractHeader(extract.ExtractHeader{CreationDate: day, SequenceID: 1}),
		extract.BuildSettlementDetail(extract.SettlementDetail{OfferID: "TXN-1", AuthCode: "A1", SettlementDate: day, SettlementAmount: 900, DiscountAmount: 90}),
		extract.BuildSettlementDetail(extract.SettlementDetail{OfferID: "TXN-2", AuthCode: "A2", SettlementDate: day, SettlementAmount: 500, DiscountAmount: 50}),
		extract.BuildExtractFooter(extract.ExtractFooter{RecordCount: 2}),
	}, "\n")

	applier := &recordingApplier{}
	exec := NewExtractExecutor(&stubExtractSource{files: map[string]string{"extract-1": content}}, applier)
	orch := NewOrchestrator()
	orch.Register(domain.JobProcessExtractFile, exec)

	details := &domain.ScheduledJobDetails{
		JobID:   uuid.New(),
		JobType: domain.JobProcessExtractFile,
		State:   domain.JobState{Data: map[string]string{ExtractNameKey: "extract-1"}},
	}
	if result := orch.Execute(context.Background(), details); result != domain.ExecutionSuccess {
		t.Fatalf("expected Success, got %s", result)
	}
	if len(applier.applied) != 2 {
		t.Fatalf("expected 2 settlements applied, got %d", len(applier.applied))
	}
	if applier.applied[0].PartnerRedeemedDealID != "TXN-1:A1" || applier.applied[0].SettlementAmount != 900 {
		t.Fatalf("unexpected first settlement %+v", applier.applied[0])
	}
	if applier.applied[0].Partner != domain.PartnerFirstData {
		t.Fatalf("settlements must be attributed to FirstData, got %s", applier.applied[0].Partner)
	}
}

func TestExtractExecutorAppliesRedemptions(t *testing.T) {
	day := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	claimedDealID := uuid.New()
	offerID := domain.PartnerRedeemedDealID(claimedDealID)
	content := strings.Join([]string{
		extract.BuildExtractHeader(extract.ExtractHeader{CreationDate: day, SequenceID: 1}),
		extract.BuildRedemptionDetail(extract.RedemptionDetail{OfferID: offerID, AuthCode: "A1", RedemptionDate: day, PurchaseAmount: 1200, DiscountAmount: 120, CardSuffix: "4242"}),
		extract.BuildRedemptionDetail(extract.RedemptionDetail{OfferID: "not-an-offer", AuthCode: "A2", RedemptionDate: day, PurchaseAmount: 700}),
		extract.BuildExtractFooter(extract.ExtractFooter{RecordCount: 2}),
	}, "\n")

	applier := &recordingApplier{}
	exec := NewExtractExecutor(&stubExtractSource{files: map[string]string{"extract-2": content}}, applier)
	orch := NewOrchestrator()
	orch.Register(domain.JobProcessExtractFile, exec)

	details := &domain.ScheduledJobDetails{
		JobID:   uuid.New(),
		JobType: domain.JobProcessExtractFile,
		State:   domain.JobState{Data: map[string]string{ExtractNameKey: "extract-2"}},
	}
	if result := orch.Execute(context.Background(), details); result != domain.ExecutionSuccess {
		t.Fatalf("expected Success, got %s", result)
	}
	// The undecodable offer id is skipped; the other replays as an
	// authorization keyed exactly like the real-time path.
	if len(applier.redeemed) != 1 {
		t.Fatalf("expected 1 redemption applied, got %d", len(applier.redeemed))
	}
	event := applier.redeemed[0]
	if event.ClaimedDealID != claimedDealID {
		t.Fatalf("expected claimed deal %s, got %s", claimedDealID, event.ClaimedDealID)
	}
	if event.PartnerRedeemedDealID != offerID+":A1" {
		t.Fatalf("unexpected idempotency key %q", event.PartnerRedeemedDealID)
	}
	if event.AuthorizationAmount != 1200 {
		t.Fatalf("unexpected authorization amount %d", event.AuthorizationAmount)
	}
	if event.CallbackEvent != domain.CallbackSettlement {
		t.Fatalf("extract redemptions settle via the extract, got %s", event.CallbackEvent)
	}
}

func TestExtractExecutorMalformedFileIsTerminal(t *testing.T) {
	exec := NewExtractExecutor(&stubExtractSource{files: map[string]string{"bad": "X nonsense"}}, &recordingApplier{})
	orch := NewOrchestrator()
	orch.Register(domain.JobProcessExtractFile, exec)

	details := &domain.ScheduledJobDetails{
		JobID:   uuid.New(),
		JobType: domain.JobProcessExtractFile,
		State:   domain.JobState{Data: map[string]string{ExtractNameKey: "bad"}},
	}
	if result := orch.Execute(context.Background(), details); result != domain.ExecutionTerminalError {
		t.Fatalf("malformed extract should be terminal, got %s", result)
	}
}

func TestExtractExecutorMissingFileRetries(t *testing.T) {
	exec := NewExtractExecutor(&stubExtractSource{files: map[string]string{}}, &recordingApplier{})
	orch := NewOrchestrator()
	orch.Register(domain.JobProcessExtractFile, exec)

	details := &domain.ScheduledJobDetails{
		JobID:   uuid.New(),
		JobType: domain.JobProcessExtractFile,
		State:   domain.JobState{Data: map[string]string{ExtractNameKey: "late"}},
	}
	if result := orch.Execute(context.Background(), details); result != domain.ExecutionNonTerminalError {
		t.Fatalf("missing extract should retry, got %s", result)
	}
}

type stubDealSource struct {
	deals []domain.RedeemedDeal
}

func (s *stubDealSource) FindSettledDealsSince(_ context.Context, _ time.Time) ([]domain.RedeemedDeal, error) {
	return s.deals, nil
}

type staticEnricher struct{}

func (staticEnricher) EnrichReportRecord(_ context.Context, deal domain.RedeemedDeal) (extract.TransactionRecord, error) {
	return extract.TransactionRecord{
		MerchantID:   "M-1",
		MerchantName: "Corner Coffee",
		Timestamp:    deal.PurchaseDateTime,
		AmountCents:  deal.SettlementAmount,
		CardLastFour: "4242",
		BrandCode:    "VI",
	}, nil
}

type memorySink struct {
	filename string
	content  string
}

func (s *memorySink) Store(_ context.Context, filename, content string) error {
	s.filename = filename
	s.content = content
	return nil
}

func TestReportExecutorBuildsReport(t *testing.T) {
	now := time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)
	source := &stubDealSource{deals: []domain.RedeemedDeal{
		{ID: uuid.New(), SettlementAmount: 900, PurchaseDateTime: now.Add(-2 * time.Hour)},
		{ID: uuid.New(), SettlementAmount: 500, PurchaseDateTime: now.Add(-3 * time.Hour)},
	}}
	sink := &memorySink{}
	exec := NewReportExecutor(source, staticEnricher{}, sink, "REWARDS")
	exec.now = fixedClock(now)

	orch := NewOrchestrator()
	orch.Register(domain.JobGenerateTransactionReport, exec)

	details := &domain.ScheduledJobDetails{
		JobID:     uuid.New(),
		JobType:   domain.JobGenerateTransactionReport,
		Recurring: true,
	}
	if result := orch.Execute(context.Background(), details); result != domain.ExecutionSuccess {
		t.Fatalf("expected Success, got %s", result)
	}
	if sink.filename != "REWARDS20260830.txt" {
		t.Fatalf("unexpected filename %q", sink.filename)
	}
	lines := strings.Split(strings.TrimRight(sink.content, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 details, got %d lines", len(lines))
	}
}
