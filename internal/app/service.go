/**
 * @description
 * This file contains the core business logic of the transaction backbone. The
 * `Service` struct is the lifecycle engine: it owns every transition of a
 * redeemed deal (authorization, clearing, statement credit, reversal) and the
 * card enrollment flows that feed it, coordinating between the ledger
 * repository and the partner card adapters.
 *
 * Key features:
 * - Idempotent redemption: the first event for a partner transaction id wins;
 *   replays observe DuplicateTransaction and change nothing.
 * - Reversal and settlement refuse to act without a prior redemption.
 * - Settlement recomputes percent discounts against the settled amount;
 *   fixed-amount discounts are only clamped.
 * - Card enrollment concludes asynchronously: claiming existing discounts for
 *   a new card is queued as a durable job, never done inline.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For entity ids.
 * - internal/domain, internal/store: Domain models and data access.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/CardLinx/microsoft-earn-sub008/internal/domain"
	"github.com/CardLinx/microsoft-earn-sub008/internal/store"
)

// Service provides the transaction lifecycle and card enrollment logic.
type Service struct {
	repo            store.Repository
	adapters        map[domain.Partner]PartnerCardAdapter
	creditRequester StatementCreditRequester
	now             func() time.Time
}

// NewService creates a new lifecycle engine instance.
func NewService(repo store.Repository, adapters ...PartnerCardAdapter) *Service {
	byPartner := make(map[domain.Partner]PartnerCardAdapter, len(adapters))
	for _, a := range adapters {
		byPartner[a.Partner()] = a
	}
	return &Service{
		repo:     repo,
		adapters: byPartner,
		now:      time.Now,
	}
}

// AddCard enrolls a card: validates it with the brand's partner, persists the
// card and its partner link, and queues the job that claims the user's
// existing discounts for it. Returns JobQueued on the happy path.
func (s *Service) AddCard(ctx context.Context, req domain.AddCardRequest) (*domain.Card, domain.ResultCode, error) {
	log.Printf("AddCard: Starting enrollment for user %s brand %s", req.GlobalUserID, req.Brand)

	existing, err := s.repo.FindCardByPANToken(ctx, req.GlobalUserID, req.PANToken)
	if err != nil && !errors.Is(err, store.ErrCardNotFound) {
		return nil, domain.ResultUnknownError, fmt.Errorf("failed to look up card by token: %w", err)
	}

	card := existing
	if card == nil {
		card = &domain.Card{
			ID:             uuid.New(),
			GlobalUserID:   req.GlobalUserID,
			LastFourDigits: req.LastFourDigits,
			Expiration:     req.Expiration,
			Brand:          req.Brand,
			PANToken:       req.PANToken,
			Active:         true,
		}
		if err := s.repo.CreateCard(ctx, card); err != nil {
			return nil, domain.ResultUnknownError, fmt.Errorf("failed to create card: %w", err)
		}
		log.Printf("AddCard: Created card %s for user %s", card.ID, card.GlobalUserID)
	} else if card.Brand != req.Brand {
		log.Printf("AddCard: Token for user %s already enrolled with brand %s", req.GlobalUserID, card.Brand)
		return nil, domain.ResultCardExistsWithDifferentToken, nil
	}

	link, code, err := s.enrollWithPartner(ctx, card)
	if err != nil {
		return nil, domain.ResultUnknownError, fmt.Errorf("partner enrollment failed: %w", err)
	}
	if !code.IsSuccessful() {
		log.Printf("AddCard: Partner rejected card %s with %s", card.ID, code)
		return nil, code, nil
	}
	if _, err := s.repo.UpsertCardPartnerLink(ctx, card.ID, *link); err != nil {
		return nil, domain.ResultUnknownError, fmt.Errorf("failed to persist partner link: %w", err)
	}
	card.PartnerLinks = append(card.PartnerLinks, *link)

	job := &domain.ScheduledJobDetails{
		JobID:   uuid.New(),
		JobType: domain.JobClaimDiscountsForNewCard,
		State: domain.JobState{
			Data: map[string]string{
				"global_user_id": card.GlobalUserID.String(),
				"card_id":        card.ID.String(),
			},
		},
		StartTime: s.now(),
	}
	if err := s.repo.CreateScheduledJob(ctx, job); err != nil {
		return nil, domain.ResultUnknownError, fmt.Errorf("failed to queue claim-discounts job: %w", err)
	}

	log.Printf("AddCard: Card %s enrolled, claim-discounts job %s queued", card.ID, job.JobID)
	return card, domain.ResultJobQueued, nil
}

// enrollWithPartner calls the outbound adapter for the card's brand. Brands
// without an outbound adapter (Visa enrolls through offer registration) get a
// local link keyed by the PAN token.
func (s *Service) enrollWithPartner(ctx context.Context, card *domain.Card) (*domain.PartnerLink, domain.ResultCode, error) {
	partner := adapterForBrand(card.Brand)
	if partner == "" {
		return nil, domain.ResultInvalidCard, nil
	}
	adapter, ok := s.adapters[partner]
	if !ok {
		return &domain.PartnerLink{
			Partner:           partner,
			PartnerCardID:     card.PANToken,
			PartnerCardSuffix: card.LastFourDigits,
		}, domain.ResultSuccess, nil
	}
	return adapter.AddCard(ctx, card)
}

// RemoveCard unenrolls a card from one partner synchronously. The card itself
// is deactivated once its last partner link is gone.
func (s *Service) RemoveCard(ctx context.Context, req domain.RemoveCardRequest) (domain.ResultCode, error) {
	card, err := s.repo.FindCardByID(ctx, req.CardID)
	if err != nil {
		if errors.Is(err, store.ErrCardNotFound) {
			return domain.ResultNotFound, nil
		}
		return domain.ResultUnknownError, fmt.Errorf("failed to find card: %w", err)
	}
	if card.GlobalUserID != req.GlobalUserID {
		log.Printf("RemoveCard: User %s does not own card %s", req.GlobalUserID, req.CardID)
		return domain.ResultUnauthorizedCaller, nil
	}
	if _, ok := card.LinkFor(req.Partner); !ok {
		return domain.ResultNotFound, nil
	}

	if adapter, ok := s.adapters[req.Partner]; ok {
		code, err := adapter.RemoveCard(ctx, card)
		if err != nil {
			return domain.ResultUnknownError, fmt.Errorf("partner unenrollment failed: %w", err)
		}
		if !code.IsSuccessful() {
			return code, nil
		}
	}

	if _, err := s.repo.RemoveCardPartnerLink(ctx, card.ID, req.Partner); err != nil {
		return domain.ResultUnknownError, fmt.Errorf("failed to remove partner link: %w", err)
	}
	remaining, err := s.repo.CountCardPartnerLinks(ctx, card.ID)
	if err != nil {
		return domain.ResultUnknownError, fmt.Errorf("failed to count partner links: %w", err)
	}
	if remaining == 0 {
		if err := s.repo.DeactivateCard(ctx, card.ID); err != nil {
			return domain.ResultUnknownError, fmt.Errorf("failed to deactivate card: %w", err)
		}
		log.Printf("RemoveCard: Card %s deactivated after last link removed", card.ID)
	}
	return domain.ResultSuccess, nil
}

// ClaimDiscountsForNewCard attaches the user's previously claimed deals to a
// newly enrolled card. Invoked by the job worker, never inline with AddCard.
func (s *Service) ClaimDiscountsForNewCard(ctx context.Context, globalUserID, cardID uuid.UUID) (int, error) {
	attached, err := s.repo.AttachClaimedDealsToCard(ctx, globalUserID, cardID)
	if err != nil {
		return 0, fmt.Errorf("failed to attach claimed deals: %w", err)
	}
	log.Printf("ClaimDiscountsForNewCard: Attached %d claimed deals to card %s", attached, cardID)
	return attached, nil
}

// RedeemDeal applies a partner authorization event to a claimed deal. The
// first event for a partner transaction id creates the redeemed deal
// (Created); any replay observes DuplicateTransaction without touching the
// ledger.
func (s *Service) RedeemDeal(ctx context.Context, event domain.RedemptionEvent) (*domain.RedeemedDeal, domain.ResultCode, error) {
	log.Printf("RedeemDeal: Partner %s reported redemption %s for claimed deal %s", event.Partner, event.PartnerRedeemedDealID, event.ClaimedDealID)

	claimed, err := s.repo.FindClaimedDeal(ctx, event.ClaimedDealID)
	if err != nil {
		if errors.Is(err, store.ErrClaimedDealNotFound) {
			return nil, domain.ResultInvalidPartnerMessage, nil
		}
		return nil, domain.ResultUnknownError, fmt.Errorf("failed to find claimed deal: %w", err)
	}
	deal, err := s.repo.FindDeal(ctx, claimed.DealID)
	if err != nil {
		if errors.Is(err, store.ErrDealNotFound) {
			return nil, domain.ResultInvalidDeal, nil
		}
		return nil, domain.ResultUnknownError, fmt.Errorf("failed to find deal: %w", err)
	}

	redeemed := &domain.RedeemedDeal{
		ID:                         uuid.New(),
		ClaimedDealID:              claimed.ID,
		CallbackEvent:              event.CallbackEvent,
		Status:                     domain.StatusAuthorizationReceived,
		PurchaseDateTime:           event.PurchaseDateTime,
		AuthorizationAmount:        event.AuthorizationAmount,
		DiscountAmount:             ComputeDiscount(deal, event.AuthorizationAmount),
		Currency:                   event.Currency,
		PartnerRedeemedDealScopeID: event.PartnerRedeemedDealScopeID,
		PartnerRedeemedDealID:      event.PartnerRedeemedDealID,
		AnalyticsEventID:           uuid.New(),
	}

	if err := s.repo.InsertRedeemedDeal(ctx, redeemed); err != nil {
		if errors.Is(err, store.ErrDuplicateRedemption) {
			log.Printf("RedeemDeal: Redemption %s already applied", event.PartnerRedeemedDealID)
			return nil, domain.ResultDuplicateTransaction, nil
		}
		return nil, domain.ResultUnknownError, fmt.Errorf("failed to insert redeemed deal: %w", err)
	}

	log.Printf("RedeemDeal: Created redeemed deal %s (discount %d)", redeemed.ID, redeemed.DiscountAmount)
	return redeemed, domain.ResultCreated, nil
}

// ReverseRedeemedDeal undoes a prior authorization. A reversal with no
// matching redemption is an error condition, not a no-op: the partner is
// referencing a transaction this ledger never saw.
func (s *Service) ReverseRedeemedDeal(ctx context.Context, event domain.ReversalEvent) (*domain.ReverseRedeemedDealInfo, domain.ResultCode, error) {
	log.Printf("ReverseRedeemedDeal: Partner %s reversing %s (cause %s)", event.Partner, event.PartnerRedeemedDealID, event.Cause)

	redeemed, err := s.repo.FindRedeemedDealByPartnerID(ctx, event.PartnerRedeemedDealID)
	if err != nil {
		if errors.Is(err, store.ErrRedeemedDealNotFound) {
			log.Printf("ReverseRedeemedDeal: No redemption on record for %s", event.PartnerRedeemedDealID)
			return nil, domain.ResultUnknownError, nil
		}
		return nil, domain.ResultUnknownError, fmt.Errorf("failed to find redeemed deal: %w", err)
	}
	if redeemed.Reversed {
		return nil, domain.ResultDuplicateTransaction, nil
	}

	// A full reversal backs out the whole discount. A partial reversal keeps
	// the discount earned by the unreversed remainder, never more than was
	// originally granted.
	discountDelta := -redeemed.DiscountAmount
	if event.ReversalAmount > 0 && event.ReversalAmount < redeemed.AuthorizationAmount {
		claimed, err := s.repo.FindClaimedDeal(ctx, redeemed.ClaimedDealID)
		if err != nil {
			return nil, domain.ResultUnknownError, fmt.Errorf("failed to find claimed deal: %w", err)
		}
		deal, err := s.repo.FindDeal(ctx, claimed.DealID)
		if err != nil {
			return nil, domain.ResultUnknownError, fmt.Errorf("failed to find deal: %w", err)
		}
		remaining := ComputeDiscount(deal, redeemed.AuthorizationAmount-event.ReversalAmount)
		if remaining > redeemed.DiscountAmount {
			remaining = redeemed.DiscountAmount
		}
		discountDelta = remaining - redeemed.DiscountAmount
	}
	if err := s.repo.MarkRedeemedDealReversed(ctx, redeemed.ID, event.Cause, discountDelta); err != nil {
		if errors.Is(err, store.ErrDuplicateRedemption) {
			return nil, domain.ResultDuplicateTransaction, nil
		}
		return nil, domain.ResultUnknownError, fmt.Errorf("failed to mark reversal: %w", err)
	}

	info := &domain.ReverseRedeemedDealInfo{
		RedeemedDealID: redeemed.ID,
		ReversalAmount: event.ReversalAmount,
		DiscountDelta:  discountDelta,
		Cause:          event.Cause,
	}
	log.Printf("ReverseRedeemedDeal: Reversed %s (delta %d)", redeemed.ID, discountDelta)
	return info, domain.ResultSuccess, nil
}

// SettleRedeemedDeal applies a clearing/settlement event. Percent discounts
// are recomputed against the settled amount; fixed discounts are not. A
// settled or reversed deal treats a replay as DuplicateTransaction.
func (s *Service) SettleRedeemedDeal(ctx context.Context, event domain.SettlementEvent) (*domain.SettledDealInfo, domain.ResultCode, error) {
	log.Printf("SettleRedeemedDeal: Partner %s settling %s for %d", event.Partner, event.PartnerRedeemedDealID, event.SettlementAmount)

	redeemed, err := s.repo.FindRedeemedDealByPartnerID(ctx, event.PartnerRedeemedDealID)
	if err != nil {
		if errors.Is(err, store.ErrRedeemedDealNotFound) {
			log.Printf("SettleRedeemedDeal: No redemption on record for %s", event.PartnerRedeemedDealID)
			return nil, domain.ResultUnknownError, nil
		}
		return nil, domain.ResultUnknownError, fmt.Errorf("failed to find redeemed deal: %w", err)
	}
	if redeemed.Reversed || !redeemed.Status.CanTransitionTo(domain.StatusClearingReceived) {
		return nil, domain.ResultDuplicateTransaction, nil
	}

	claimed, err := s.repo.FindClaimedDeal(ctx, redeemed.ClaimedDealID)
	if err != nil {
		return nil, domain.ResultUnknownError, fmt.Errorf("failed to find claimed deal: %w", err)
	}
	deal, err := s.repo.FindDeal(ctx, claimed.DealID)
	if err != nil {
		return nil, domain.ResultUnknownError, fmt.Errorf("failed to find deal: %w", err)
	}

	discount := SettlementDiscount(deal, redeemed.DiscountAmount, event.SettlementAmount)
	// MarkRedeemedDealSettled moves the deal to ClearingReceived itself.
	if err := s.repo.MarkRedeemedDealSettled(ctx, redeemed.ID, event.SettlementAmount, discount); err != nil {
		return nil, domain.ResultUnknownError, fmt.Errorf("failed to mark settlement: %w", err)
	}

	info := &domain.SettledDealInfo{
		RedeemedDealID:   redeemed.ID,
		SettlementAmount: event.SettlementAmount,
		DiscountAmount:   discount,
		DiscountDelta:    discount - redeemed.DiscountAmount,
	}
	log.Printf("SettleRedeemedDeal: Settled %s (discount %d, delta %d)", redeemed.ID, discount, info.DiscountDelta)
	return info, domain.ResultSuccess, nil
}

// ProcessRedemptionTimeout handles a partner-reported request timeout. If the
// timed-out request actually landed, the redemption is reversed; if it never
// landed there is nothing to undo and the timeout resolves successfully.
func (s *Service) ProcessRedemptionTimeout(ctx context.Context, partner domain.Partner, partnerRedeemedDealID string) (domain.ResultCode, error) {
	redeemed, err := s.repo.FindRedeemedDealByPartnerID(ctx, partnerRedeemedDealID)
	if err != nil {
		if errors.Is(err, store.ErrRedeemedDealNotFound) {
			log.Printf("ProcessRedemptionTimeout: Nothing to undo for %s", partnerRedeemedDealID)
			return domain.ResultSuccess, nil
		}
		return domain.ResultUnknownError, fmt.Errorf("failed to find redeemed deal: %w", err)
	}

	// Which leg timed out follows from how the deal reports outcomes.
	cause := domain.CauseRealTimeTimeoutReversal
	if redeemed.CallbackEvent == domain.CallbackSettlement {
		cause = domain.CauseSettlementTimeoutReversal
	}
	_, code, err := s.ReverseRedeemedDeal(ctx, domain.ReversalEvent{
		Partner:               partner,
		PartnerRedeemedDealID: partnerRedeemedDealID,
		Cause:                 cause,
	})
	if err != nil {
		return domain.ResultUnknownError, err
	}
	if code == domain.ResultDuplicateTransaction {
		return domain.ResultSuccess, nil
	}
	return code, nil
}
