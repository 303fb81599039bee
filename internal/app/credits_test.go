package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/CardLinx/microsoft-earn-sub008/internal/domain"
)

// stubRequester records submitted statement-credit requests.
type stubRequester struct {
	requested []string
	fail      bool
}

func (r *stubRequester) RequestStatementCredit(_ context.Context, deal *domain.RedeemedDeal) error {
	if r.fail {
		return errors.New("partner unavailable")
	}
	r.requested = append(r.requested, deal.PartnerRedeemedDealID)
	return nil
}

// settleDeal redeems and settles one deal, leaving it awaiting credit.
func settleDeal(t *testing.T, svc *Service, repo *fakeRepository) string {
	t.Helper()
	claimed := seedClaimedDeal(repo, percentDeal(10))
	partnerID := domain.PartnerRedeemedDealID(uuid.New())
	if _, code, _ := svc.RedeemDeal(context.Background(), domain.RedemptionEvent{
		ClaimedDealID:         claimed.ID,
		PartnerRedeemedDealID: partnerID,
		AuthorizationAmount:   1000,
	}); code != domain.ResultCreated {
		t.Fatalf("setup redemption failed with %s", code)
	}
	if _, code, err := svc.SettleRedeemedDeal(context.Background(), domain.SettlementEvent{
		PartnerRedeemedDealID: partnerID,
		SettlementAmount:      1000,
	}); err != nil || code != domain.ResultSuccess {
		t.Fatalf("setup settlement: code=%s err=%v", code, err)
	}
	return partnerID
}

func TestProcessStatementCreditsRequestsSettledDeals(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	requester := &stubRequester{}
	svc.SetStatementCreditRequester(requester)

	partnerID := settleDeal(t, svc, repo)

	requested, err := svc.ProcessStatementCredits(context.Background(), 100)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if requested != 1 {
		t.Fatalf("expected 1 request submitted, got %d", requested)
	}
	if len(requester.requested) != 1 || requester.requested[0] != partnerID {
		t.Fatalf("unexpected requests %v", requester.requested)
	}
	if got := repo.redeemedDeals[partnerID].Status; got != domain.StatusStatementCreditRequested {
		t.Fatalf("expected StatementCreditRequested, got %s", got)
	}

	// A second sweep finds nothing awaiting credit.
	requested, err = svc.ProcessStatementCredits(context.Background(), 100)
	if err != nil || requested != 0 {
		t.Fatalf("expected idle second sweep, got requested=%d err=%v", requested, err)
	}
}

func TestProcessStatementCreditsWithoutRequester(t *testing.T) {
	svc := NewService(newFakeRepository())
	if _, err := svc.ProcessStatementCredits(context.Background(), 100); err == nil {
		t.Fatal("expected an error with no requester configured")
	}
}

func TestStatementCreditRetriesOnceThenFails(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	requester := &stubRequester{fail: true}
	svc.SetStatementCreditRequester(requester)

	partnerID := settleDeal(t, svc, repo)

	if _, err := svc.ProcessStatementCredits(context.Background(), 100); err != nil {
		t.Fatalf("first sweep failed: %v", err)
	}
	if got := repo.redeemedDeals[partnerID].Status; got != domain.StatusRetryingAfterGeneratingStatementCreditRequestFailure {
		t.Fatalf("expected retry parking after first failure, got %s", got)
	}

	if _, err := svc.ProcessStatementCredits(context.Background(), 100); err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if got := repo.redeemedDeals[partnerID].Status; got != domain.StatusGeneratingStatementCreditRequestFailed {
		t.Fatalf("expected terminal failure after second failure, got %s", got)
	}

	// Terminal deals leave the sweep's working set.
	requested, err := svc.ProcessStatementCredits(context.Background(), 100)
	if err != nil || requested != 0 {
		t.Fatalf("expected idle third sweep, got requested=%d err=%v", requested, err)
	}
}

func TestStatementCreditRecoversOnRetry(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	requester := &stubRequester{fail: true}
	svc.SetStatementCreditRequester(requester)

	partnerID := settleDeal(t, svc, repo)

	if _, err := svc.ProcessStatementCredits(context.Background(), 100); err != nil {
		t.Fatalf("first sweep failed: %v", err)
	}

	requester.fail = false
	requested, err := svc.ProcessStatementCredits(context.Background(), 100)
	if err != nil || requested != 1 {
		t.Fatalf("retry sweep: requested=%d err=%v", requested, err)
	}
	if got := repo.redeemedDeals[partnerID].Status; got != domain.StatusStatementCreditRequested {
		t.Fatalf("expected StatementCreditRequested after recovery, got %s", got)
	}
}

func TestGrantStatementCredit(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	svc.SetStatementCreditRequester(&stubRequester{})

	partnerID := settleDeal(t, svc, repo)

	// A confirmation before the request went out references state the ledger
	// does not have.
	code, err := svc.GrantStatementCredit(context.Background(), partnerID)
	if err != nil || code != domain.ResultInvalidPartnerMessage {
		t.Fatalf("premature confirmation: code=%s err=%v", code, err)
	}

	if _, err := svc.ProcessStatementCredits(context.Background(), 100); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	code, err = svc.GrantStatementCredit(context.Background(), partnerID)
	if err != nil || code != domain.ResultSuccess {
		t.Fatalf("confirmation: code=%s err=%v", code, err)
	}
	if got := repo.redeemedDeals[partnerID].Status; got != domain.StatusCreditGranted {
		t.Fatalf("expected CreditGranted, got %s", got)
	}

	// Replays observe the terminal state.
	code, err = svc.GrantStatementCredit(context.Background(), partnerID)
	if err != nil || code != domain.ResultDuplicateTransaction {
		t.Fatalf("replayed confirmation: code=%s err=%v", code, err)
	}
}

func TestGrantStatementCreditUnknownDeal(t *testing.T) {
	svc := NewService(newFakeRepository())
	code, err := svc.GrantStatementCredit(context.Background(), domain.PartnerRedeemedDealID(uuid.New()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != domain.ResultUnknownError {
		t.Fatalf("expected UnknownError for unknown deal, got %s", code)
	}
}
