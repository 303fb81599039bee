/**
 * @description
 * This file defines the `Repository` interface: the contract for every ledger
 * and scheduled-job persistence operation the service needs. The interface
 * decouples the lifecycle engine and the job orchestrator from PostgreSQL,
 * which keeps both testable against in-memory fakes.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For entity ids.
 * - internal/domain: Domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/CardLinx/microsoft-earn-sub008/internal/domain"
)

// Repository defines the set of methods for interacting with the ledger.
type Repository interface {
	// Card methods
	FindCardByPANToken(ctx context.Context, globalUserID uuid.UUID, panToken string) (*domain.Card, error)
	FindCardByID(ctx context.Context, cardID uuid.UUID) (*domain.Card, error)
	CreateCard(ctx context.Context, card *domain.Card) error
	UpsertCardPartnerLink(ctx context.Context, cardID uuid.UUID, link domain.PartnerLink) (created bool, err error)
	RemoveCardPartnerLink(ctx context.Context, cardID uuid.UUID, partner domain.Partner) (removed bool, err error)
	CountCardPartnerLinks(ctx context.Context, cardID uuid.UUID) (int, error)
	DeactivateCard(ctx context.Context, cardID uuid.UUID) error

	// Claimed deal methods
	FindClaimedDeal(ctx context.Context, claimedDealID uuid.UUID) (*domain.ClaimedDeal, error)
	FindDeal(ctx context.Context, dealID uuid.UUID) (*domain.Deal, error)
	FindClaimedDealsByUser(ctx context.Context, globalUserID uuid.UUID) ([]domain.ClaimedDeal, error)
	AttachClaimedDealsToCard(ctx context.Context, globalUserID, cardID uuid.UUID) (int, error)

	// Redeemed deal methods. InsertRedeemedDeal must be atomic with respect
	// to the idempotency key: concurrent inserts of the same
	// partner_redeemed_deal_id result in exactly one row, with the losers
	// receiving ErrDuplicateRedemption.
	InsertRedeemedDeal(ctx context.Context, deal *domain.RedeemedDeal) error
	FindRedeemedDealByPartnerID(ctx context.Context, partnerRedeemedDealID string) (*domain.RedeemedDeal, error)
	UpdateRedeemedDealStatus(ctx context.Context, redeemedDealID uuid.UUID, status domain.CreditStatus) error
	MarkRedeemedDealReversed(ctx context.Context, redeemedDealID uuid.UUID, cause domain.ReversalCause, discountDelta int64) error
	MarkRedeemedDealSettled(ctx context.Context, redeemedDealID uuid.UUID, settlementAmount, discountAmount int64) error
	FindSettledDealsSince(ctx context.Context, since time.Time) ([]domain.RedeemedDeal, error)
	FindDealsAwaitingStatementCredit(ctx context.Context, limit int) ([]domain.RedeemedDeal, error)

	// Scheduled job methods
	CreateScheduledJob(ctx context.Context, job *domain.ScheduledJobDetails) error
	FindDueScheduledJobs(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledJobDetails, error)
	RescheduleJobAfterFailure(ctx context.Context, jobID uuid.UUID, state domain.JobState, nextRun time.Time) error
	CompleteScheduledJob(ctx context.Context, jobID uuid.UUID) error
	MarkRecurringJobIterationDone(ctx context.Context, jobID uuid.UUID, nextRun time.Time) error
}
