/**
 * @description
 * The statement-credit leg of the redeemed-deal state machine. A periodic
 * sweep walks settled deals through GeneratingStatementCreditRequest and
 * SendingStatementCreditRequest, submits the outbound partner request, and
 * parks each deal in StatementCreditRequested until the partner confirms the
 * credit posted. A failed generation parks the deal for one retry on the next
 * sweep; a second consecutive failure is terminal.
 *
 * @dependencies
 * - context, errors, fmt, log: Standard Go libraries.
 * - internal/domain, internal/store: Domain models and data access.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/CardLinx/microsoft-earn-sub008/internal/domain"
	"github.com/CardLinx/microsoft-earn-sub008/internal/store"
)

// StatementCreditRequester submits one statement-credit request to the card
// partner.
type StatementCreditRequester interface {
	RequestStatementCredit(ctx context.Context, deal *domain.RedeemedDeal) error
}

// SetStatementCreditRequester wires the outbound partner client the credit
// sweep submits requests through. Deals awaiting credit stay queued until a
// requester is set.
func (s *Service) SetStatementCreditRequester(requester StatementCreditRequester) {
	s.creditRequester = requester
}

// ProcessStatementCredits advances up to limit settled deals through the
// outbound statement-credit leg. Returns the number of requests submitted;
// per-deal request failures park the deal and do not fail the sweep.
func (s *Service) ProcessStatementCredits(ctx context.Context, limit int) (int, error) {
	if s.creditRequester == nil {
		return 0, errors.New("no statement credit requester configured")
	}

	deals, err := s.repo.FindDealsAwaitingStatementCredit(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list deals awaiting statement credit: %w", err)
	}

	requested := 0
	for i := range deals {
		deal := &deals[i]
		retrying := deal.Status == domain.StatusRetryingAfterGeneratingStatementCreditRequestFailure
		if !retrying {
			if err := s.repo.UpdateRedeemedDealStatus(ctx, deal.ID, domain.StatusGeneratingStatementCreditRequest); err != nil {
				return requested, fmt.Errorf("failed to open credit request for %s: %w", deal.ID, err)
			}
		}

		if err := s.creditRequester.RequestStatementCredit(ctx, deal); err != nil {
			next := domain.StatusRetryingAfterGeneratingStatementCreditRequestFailure
			if retrying {
				// The retry failed too; this deal is done.
				next = domain.StatusGeneratingStatementCreditRequestFailed
			}
			log.Printf("ProcessStatementCredits: Credit request for %s failed, parking in %s: %v", deal.ID, next, err)
			if err := s.repo.UpdateRedeemedDealStatus(ctx, deal.ID, next); err != nil {
				return requested, fmt.Errorf("failed to park credit request for %s: %w", deal.ID, err)
			}
			continue
		}

		if retrying {
			if err := s.repo.UpdateRedeemedDealStatus(ctx, deal.ID, domain.StatusGeneratingStatementCreditRequest); err != nil {
				return requested, fmt.Errorf("failed to open credit request for %s: %w", deal.ID, err)
			}
		}
		if err := s.repo.UpdateRedeemedDealStatus(ctx, deal.ID, domain.StatusSendingStatementCreditRequest); err != nil {
			return requested, fmt.Errorf("failed to mark credit request sending for %s: %w", deal.ID, err)
		}
		if err := s.repo.UpdateRedeemedDealStatus(ctx, deal.ID, domain.StatusStatementCreditRequested); err != nil {
			return requested, fmt.Errorf("failed to mark credit requested for %s: %w", deal.ID, err)
		}
		requested++
		log.Printf("ProcessStatementCredits: Requested credit of %d for %s", deal.DiscountAmount, deal.ID)
	}
	return requested, nil
}

// GrantStatementCredit applies a partner confirmation that the statement
// credit posted. Replays against a deal that is already granted (or otherwise
// terminal) observe DuplicateTransaction; a confirmation for a deal whose
// request never went out is the partner referencing state this ledger does
// not have.
func (s *Service) GrantStatementCredit(ctx context.Context, partnerRedeemedDealID string) (domain.ResultCode, error) {
	redeemed, err := s.repo.FindRedeemedDealByPartnerID(ctx, partnerRedeemedDealID)
	if err != nil {
		if errors.Is(err, store.ErrRedeemedDealNotFound) {
			log.Printf("GrantStatementCredit: No redemption on record for %s", partnerRedeemedDealID)
			return domain.ResultUnknownError, nil
		}
		return domain.ResultUnknownError, fmt.Errorf("failed to find redeemed deal: %w", err)
	}
	if redeemed.Status.Terminal() {
		return domain.ResultDuplicateTransaction, nil
	}
	if !redeemed.Status.CanTransitionTo(domain.StatusCreditGranted) {
		log.Printf("GrantStatementCredit: Confirmation for %s arrived while %s", partnerRedeemedDealID, redeemed.Status)
		return domain.ResultInvalidPartnerMessage, nil
	}

	if err := s.repo.UpdateRedeemedDealStatus(ctx, redeemed.ID, domain.StatusCreditGranted); err != nil {
		return domain.ResultUnknownError, fmt.Errorf("failed to grant credit: %w", err)
	}
	log.Printf("GrantStatementCredit: Credit granted for %s", partnerRedeemedDealID)
	return domain.ResultSuccess, nil
}
