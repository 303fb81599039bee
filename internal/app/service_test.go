package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/CardLinx/microsoft-earn-sub008/internal/domain"
)

// fakeAdapter is a canned-response PartnerCardAdapter.
type fakeAdapter struct {
	partner    domain.Partner
	addCode    domain.ResultCode
	removeCode domain.ResultCode
	addCalls   int
}

func (a *fakeAdapter) Partner() domain.Partner { return a.partner }

func (a *fakeAdapter) AddCard(_ context.Context, card *domain.Card) (*domain.PartnerLink, domain.ResultCode, error) {
	a.addCalls++
	if !a.addCode.IsSuccessful() {
		return nil, a.addCode, nil
	}
	return &domain.PartnerLink{
		Partner:           a.partner,
		PartnerCardID:     "partner-" + card.PANToken,
		PartnerCardSuffix: card.LastFourDigits,
	}, a.addCode, nil
}

func (a *fakeAdapter) RemoveCard(_ context.Context, _ *domain.Card) (domain.ResultCode, error) {
	return a.removeCode, nil
}

func seedClaimedDeal(repo *fakeRepository, deal *domain.Deal) *domain.ClaimedDeal {
	repo.deals[deal.ID] = deal
	claimed := &domain.ClaimedDeal{
		ID:           uuid.New(),
		GlobalUserID: uuid.New(),
		DealID:       deal.ID,
		Partner:      domain.PartnerFirstData,
		CreatedAt:    time.Now(),
	}
	repo.claimedDeals[claimed.ID] = claimed
	return claimed
}

func percentDeal(percent float64) *domain.Deal {
	return &domain.Deal{
		ID:           uuid.New(),
		MerchantID:   "merchant-1",
		DiscountType: domain.DiscountPercent,
		Percent:      percent,
		Currency:     "USD",
	}
}

func TestRedeemDealIsIdempotent(t *testing.T) {
	repo := newFakeRepository()
	claimed := seedClaimedDeal(repo, percentDeal(20))
	svc := NewService(repo)

	event := domain.RedemptionEvent{
		Partner:               domain.PartnerFirstData,
		ClaimedDealID:         claimed.ID,
		PartnerRedeemedDealID: domain.PartnerRedeemedDealID(uuid.New()),
		AuthorizationAmount:   1000,
		Currency:              "USD",
		PurchaseDateTime:      time.Now(),
		CallbackEvent:         domain.CallbackSettlement,
	}

	redeemed, code, err := svc.RedeemDeal(context.Background(), event)
	if err != nil {
		t.Fatalf("first redemption failed: %v", err)
	}
	if code != domain.ResultCreated {
		t.Fatalf("expected Created, got %s", code)
	}
	if redeemed.DiscountAmount != 200 {
		t.Fatalf("expected discount 200, got %d", redeemed.DiscountAmount)
	}

	_, code, err = svc.RedeemDeal(context.Background(), event)
	if err != nil {
		t.Fatalf("replay errored: %v", err)
	}
	if code != domain.ResultDuplicateTransaction {
		t.Fatalf("expected DuplicateTransaction on replay, got %s", code)
	}
	if len(repo.redeemedDeals) != 1 {
		t.Fatalf("expected exactly one ledger row, got %d", len(repo.redeemedDeals))
	}
}

func TestRedeemDealUnknownClaimedDeal(t *testing.T) {
	svc := NewService(newFakeRepository())
	_, code, err := svc.RedeemDeal(context.Background(), domain.RedemptionEvent{
		ClaimedDealID:         uuid.New(),
		PartnerRedeemedDealID: domain.PartnerRedeemedDealID(uuid.New()),
		AuthorizationAmount:   500,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != domain.ResultInvalidPartnerMessage {
		t.Fatalf("expected InvalidPartnerMessage, got %s", code)
	}
}

func TestReverseRequiresPriorRedemption(t *testing.T) {
	svc := NewService(newFakeRepository())

	_, code, err := svc.ReverseRedeemedDeal(context.Background(), domain.ReversalEvent{
		Partner:               domain.PartnerFirstData,
		PartnerRedeemedDealID: domain.PartnerRedeemedDealID(uuid.New()),
		Cause:                 domain.CausePartnerReversal,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != domain.ResultUnknownError {
		t.Fatalf("expected UnknownError for reversal without redemption, got %s", code)
	}
}

func TestReverseIsIdempotent(t *testing.T) {
	repo := newFakeRepository()
	claimed := seedClaimedDeal(repo, percentDeal(10))
	svc := NewService(repo)

	partnerID := domain.PartnerRedeemedDealID(uuid.New())
	if _, code, _ := svc.RedeemDeal(context.Background(), domain.RedemptionEvent{
		ClaimedDealID:         claimed.ID,
		PartnerRedeemedDealID: partnerID,
		AuthorizationAmount:   1000,
	}); code != domain.ResultCreated {
		t.Fatalf("setup redemption failed with %s", code)
	}

	reversal := domain.ReversalEvent{
		PartnerRedeemedDealID: partnerID,
		Cause:                 domain.CausePartnerReversal,
	}
	info, code, err := svc.ReverseRedeemedDeal(context.Background(), reversal)
	if err != nil || code != domain.ResultSuccess {
		t.Fatalf("first reversal: code=%s err=%v", code, err)
	}
	if info.DiscountDelta != -100 {
		t.Fatalf("expected discount delta -100, got %d", info.DiscountDelta)
	}

	_, code, err = svc.ReverseRedeemedDeal(context.Background(), reversal)
	if err != nil {
		t.Fatalf("replayed reversal errored: %v", err)
	}
	if code != domain.ResultDuplicateTransaction {
		t.Fatalf("expected DuplicateTransaction on replayed reversal, got %s", code)
	}
}

func TestPartialReversalRecomputesDiscount(t *testing.T) {
	repo := newFakeRepository()
	claimed := seedClaimedDeal(repo, percentDeal(10))
	svc := NewService(repo)

	partnerID := domain.PartnerRedeemedDealID(uuid.New())
	if _, code, _ := svc.RedeemDeal(context.Background(), domain.RedemptionEvent{
		ClaimedDealID:         claimed.ID,
		PartnerRedeemedDealID: partnerID,
		AuthorizationAmount:   1000,
	}); code != domain.ResultCreated {
		t.Fatalf("setup redemption failed with %s", code)
	}

	// 400 of the 1000 comes back; the discount earned by the remaining 600
	// stays on the ledger.
	info, code, err := svc.ReverseRedeemedDeal(context.Background(), domain.ReversalEvent{
		PartnerRedeemedDealID: partnerID,
		ReversalAmount:        400,
		Cause:                 domain.CausePartnerReversal,
	})
	if err != nil || code != domain.ResultSuccess {
		t.Fatalf("partial reversal: code=%s err=%v", code, err)
	}
	if info.DiscountDelta != -40 {
		t.Fatalf("expected discount delta -40, got %d", info.DiscountDelta)
	}
}

func TestSettlementRecomputesPercentDiscount(t *testing.T) {
	repo := newFakeRepository()
	claimed := seedClaimedDeal(repo, percentDeal(20))
	svc := NewService(repo)

	partnerID := domain.PartnerRedeemedDealID(uuid.New())
	if _, code, _ := svc.RedeemDeal(context.Background(), domain.RedemptionEvent{
		ClaimedDealID:         claimed.ID,
		PartnerRedeemedDealID: partnerID,
		AuthorizationAmount:   1000,
	}); code != domain.ResultCreated {
		t.Fatalf("setup redemption failed with %s", code)
	}

	info, code, err := svc.SettleRedeemedDeal(context.Background(), domain.SettlementEvent{
		PartnerRedeemedDealID: partnerID,
		SettlementAmount:      800,
	})
	if err != nil || code != domain.ResultSuccess {
		t.Fatalf("settlement: code=%s err=%v", code, err)
	}
	if info.DiscountAmount != 160 {
		t.Fatalf("expected recomputed discount 160, got %d", info.DiscountAmount)
	}
	if info.DiscountDelta != -40 {
		t.Fatalf("expected discount delta -40, got %d", info.DiscountDelta)
	}

	_, code, err = svc.SettleRedeemedDeal(context.Background(), domain.SettlementEvent{
		PartnerRedeemedDealID: partnerID,
		SettlementAmount:      800,
	})
	if err != nil {
		t.Fatalf("replayed settlement errored: %v", err)
	}
	if code != domain.ResultDuplicateTransaction {
		t.Fatalf("expected DuplicateTransaction on replayed settlement, got %s", code)
	}
}

func TestSettlementKeepsFixedDiscount(t *testing.T) {
	repo := newFakeRepository()
	deal := &domain.Deal{
		ID:           uuid.New(),
		DiscountType: domain.DiscountFixedAmount,
		Amount:       150,
	}
	claimed := seedClaimedDeal(repo, deal)
	svc := NewService(repo)

	partnerID := domain.PartnerRedeemedDealID(uuid.New())
	if _, code, _ := svc.RedeemDeal(context.Background(), domain.RedemptionEvent{
		ClaimedDealID:         claimed.ID,
		PartnerRedeemedDealID: partnerID,
		AuthorizationAmount:   1000,
	}); code != domain.ResultCreated {
		t.Fatalf("setup redemption failed with %s", code)
	}

	info, code, err := svc.SettleRedeemedDeal(context.Background(), domain.SettlementEvent{
		PartnerRedeemedDealID: partnerID,
		SettlementAmount:      800,
	})
	if err != nil || code != domain.ResultSuccess {
		t.Fatalf("settlement: code=%s err=%v", code, err)
	}
	if info.DiscountAmount != 150 {
		t.Fatalf("fixed discount should not be recomputed, got %d", info.DiscountAmount)
	}
	if info.DiscountDelta != 0 {
		t.Fatalf("expected zero delta for fixed discount, got %d", info.DiscountDelta)
	}
}

func TestComputeDiscount(t *testing.T) {
	tests := []struct {
		name   string
		deal   domain.Deal
		amount int64
		want   int64
	}{
		{
			name:   "percent",
			deal:   domain.Deal{DiscountType: domain.DiscountPercent, Percent: 12.5},
			amount: 1000,
			want:   125,
		},
		{
			name:   "percent below minimum purchase",
			deal:   domain.Deal{DiscountType: domain.DiscountPercent, Percent: 50, MinimumPurchase: 2000},
			amount: 1000,
			want:   0,
		},
		{
			name:   "percent capped by maximum discount",
			deal:   domain.Deal{DiscountType: domain.DiscountPercent, Percent: 50, MaximumDiscount: 300},
			amount: 1000,
			want:   300,
		},
		{
			name:   "fixed amount",
			deal:   domain.Deal{DiscountType: domain.DiscountFixedAmount, Amount: 250},
			amount: 1000,
			want:   250,
		},
		{
			name:   "fixed amount clamped to transaction",
			deal:   domain.Deal{DiscountType: domain.DiscountFixedAmount, Amount: 250},
			amount: 100,
			want:   100,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeDiscount(&tt.deal, tt.amount); got != tt.want {
				t.Fatalf("ComputeDiscount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAddCardQueuesClaimDiscountsJob(t *testing.T) {
	repo := newFakeRepository()
	adapter := &fakeAdapter{partner: domain.PartnerAmex, addCode: domain.ResultSuccess}
	svc := NewService(repo, adapter)

	card, code, err := svc.AddCard(context.Background(), domain.AddCardRequest{
		GlobalUserID:   uuid.New(),
		PANToken:       "tok-123",
		LastFourDigits: "3782",
		Brand:          domain.BrandAmex,
	})
	if err != nil {
		t.Fatalf("AddCard failed: %v", err)
	}
	if code != domain.ResultJobQueued {
		t.Fatalf("expected JobQueued, got %s", code)
	}
	if adapter.addCalls != 1 {
		t.Fatalf("expected one partner call, got %d", adapter.addCalls)
	}
	if _, ok := card.LinkFor(domain.PartnerAmex); !ok {
		t.Fatal("expected Amex partner link on card")
	}

	found := false
	for _, job := range repo.jobs {
		if job.JobType == domain.JobClaimDiscountsForNewCard {
			found = true
			if job.State.Data["card_id"] != card.ID.String() {
				t.Fatalf("job carries wrong card id %q", job.State.Data["card_id"])
			}
		}
	}
	if !found {
		t.Fatal("expected a queued ClaimDiscountsForNewCard job")
	}
}

func TestAddCardPartnerRejection(t *testing.T) {
	repo := newFakeRepository()
	adapter := &fakeAdapter{partner: domain.PartnerAmex, addCode: domain.ResultInvalidCard}
	svc := NewService(repo, adapter)

	_, code, err := svc.AddCard(context.Background(), domain.AddCardRequest{
		GlobalUserID: uuid.New(),
		PANToken:     "tok-bad",
		Brand:        domain.BrandAmex,
	})
	if err != nil {
		t.Fatalf("AddCard failed: %v", err)
	}
	if code != domain.ResultInvalidCard {
		t.Fatalf("expected InvalidCard, got %s", code)
	}
	if len(repo.jobs) != 0 {
		t.Fatalf("rejected enrollment must not queue jobs, got %d", len(repo.jobs))
	}
}

func TestRemoveCardDeactivatesAfterLastLink(t *testing.T) {
	repo := newFakeRepository()
	adapter := &fakeAdapter{partner: domain.PartnerAmex, removeCode: domain.ResultSuccess}
	svc := NewService(repo, adapter)

	userID := uuid.New()
	card := &domain.Card{
		ID:           uuid.New(),
		GlobalUserID: userID,
		Brand:        domain.BrandAmex,
		Active:       true,
		PartnerLinks: []domain.PartnerLink{{Partner: domain.PartnerAmex, PartnerCardID: "p-1"}},
	}
	repo.cards[card.ID] = card

	code, err := svc.RemoveCard(context.Background(), domain.RemoveCardRequest{
		GlobalUserID: userID,
		CardID:       card.ID,
		Partner:      domain.PartnerAmex,
	})
	if err != nil {
		t.Fatalf("RemoveCard failed: %v", err)
	}
	if code != domain.ResultSuccess {
		t.Fatalf("expected Success, got %s", code)
	}
	if card.Active {
		t.Fatal("card should be deactivated after its last link is removed")
	}
}

func TestRemoveCardRejectsForeignUser(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	card := &domain.Card{
		ID:           uuid.New(),
		GlobalUserID: uuid.New(),
		PartnerLinks: []domain.PartnerLink{{Partner: domain.PartnerAmex}},
	}
	repo.cards[card.ID] = card

	code, err := svc.RemoveCard(context.Background(), domain.RemoveCardRequest{
		GlobalUserID: uuid.New(),
		CardID:       card.ID,
		Partner:      domain.PartnerAmex,
	})
	if err != nil {
		t.Fatalf("RemoveCard failed: %v", err)
	}
	if code != domain.ResultUnauthorizedCaller {
		t.Fatalf("expected UnauthorizedCaller, got %s", code)
	}
}

func TestProcessRedemptionTimeout(t *testing.T) {
	repo := newFakeRepository()
	claimed := seedClaimedDeal(repo, percentDeal(10))
	svc := NewService(repo)

	// Timeout with no landed redemption resolves cleanly.
	code, err := svc.ProcessRedemptionTimeout(context.Background(), domain.PartnerFirstData, domain.PartnerRedeemedDealID(uuid.New()))
	if err != nil || code != domain.ResultSuccess {
		t.Fatalf("no-op timeout: code=%s err=%v", code, err)
	}

	// Timeout whose request actually landed reverses the redemption.
	partnerID := domain.PartnerRedeemedDealID(uuid.New())
	if _, code, _ := svc.RedeemDeal(context.Background(), domain.RedemptionEvent{
		ClaimedDealID:         claimed.ID,
		PartnerRedeemedDealID: partnerID,
		AuthorizationAmount:   1000,
	}); code != domain.ResultCreated {
		t.Fatalf("setup redemption failed with %s", code)
	}
	code, err = svc.ProcessRedemptionTimeout(context.Background(), domain.PartnerFirstData, partnerID)
	if err != nil || code != domain.ResultSuccess {
		t.Fatalf("landed timeout: code=%s err=%v", code, err)
	}
	rd := repo.redeemedDeals[partnerID]
	if !rd.Reversed || rd.ReversalCause != domain.CauseRealTimeTimeoutReversal {
		t.Fatalf("expected timeout reversal, got reversed=%v cause=%s", rd.Reversed, rd.ReversalCause)
	}
}

func TestRedemptionTimeoutOnSettlementLeg(t *testing.T) {
	repo := newFakeRepository()
	claimed := seedClaimedDeal(repo, percentDeal(10))
	svc := NewService(repo)

	partnerID := domain.PartnerRedeemedDealID(uuid.New())
	if _, code, _ := svc.RedeemDeal(context.Background(), domain.RedemptionEvent{
		ClaimedDealID:         claimed.ID,
		PartnerRedeemedDealID: partnerID,
		AuthorizationAmount:   1000,
		CallbackEvent:         domain.CallbackSettlement,
	}); code != domain.ResultCreated {
		t.Fatalf("setup redemption failed with %s", code)
	}

	code, err := svc.ProcessRedemptionTimeout(context.Background(), domain.PartnerFirstData, partnerID)
	if err != nil || code != domain.ResultSuccess {
		t.Fatalf("timeout: code=%s err=%v", code, err)
	}
	rd := repo.redeemedDeals[partnerID]
	if rd.ReversalCause != domain.CauseSettlementTimeoutReversal {
		t.Fatalf("deal reporting on settlement should reverse with the settlement cause, got %s", rd.ReversalCause)
	}
}
