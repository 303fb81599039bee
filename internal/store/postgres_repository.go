/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains the SQL for the cards, card_partner_links,
 * claimed_deals, deals, redeemed_deals, and scheduled_jobs tables.
 *
 * Key properties:
 * - Duplicate detection for redeemed deals is closed at the database: the
 *   insert relies on the unique index on partner_redeemed_deal_id, so two
 *   concurrent deliveries of the same partner event produce exactly one row.
 * - Scheduled jobs are plain rows with a next_run_at column; the scheduler
 *   claims due rows and the worker writes outcomes back.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver.
 * - internal/domain: Domain models.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/CardLinx/microsoft-earn-sub008/internal/domain"
)

var (
	ErrCardNotFound         = errors.New("card not found")
	ErrDealNotFound         = errors.New("deal not found")
	ErrClaimedDealNotFound  = errors.New("claimed deal not found")
	ErrRedeemedDealNotFound = errors.New("redeemed deal not found")
	ErrDuplicateRedemption  = errors.New("redeemed deal already recorded for this partner id")
	ErrJobNotFound          = errors.New("scheduled job not found")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindCardByPANToken retrieves a card by its partner-issued token and owner.
func (r *PostgresRepository) FindCardByPANToken(ctx context.Context, globalUserID uuid.UUID, panToken string) (*domain.Card, error) {
	query := `
		SELECT id, global_user_id, last_four_digits, expiration, brand, pan_token, active, created_at, updated_at
		FROM cards
		WHERE global_user_id = $1 AND pan_token = $2 AND active = TRUE
	`
	return r.scanCard(ctx, query, globalUserID, panToken)
}

// FindCardByID retrieves a card by its id.
func (r *PostgresRepository) FindCardByID(ctx context.Context, cardID uuid.UUID) (*domain.Card, error) {
	query := `
		SELECT id, global_user_id, last_four_digits, expiration, brand, pan_token, active, created_at, updated_at
		FROM cards
		WHERE id = $1
	`
	return r.scanCard(ctx, query, cardID)
}

func (r *PostgresRepository) scanCard(ctx context.Context, query string, args ...any) (*domain.Card, error) {
	var card domain.Card
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&card.ID,
		&card.GlobalUserID,
		&card.LastFourDigits,
		&card.Expiration,
		&card.Brand,
		&card.PANToken,
		&card.Active,
		&card.CreatedAt,
		&card.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCardNotFound
		}
		return nil, err
	}

	links, err := r.loadPartnerLinks(ctx, card.ID)
	if err != nil {
		return nil, err
	}
	card.PartnerLinks = links
	return &card, nil
}

func (r *PostgresRepository) loadPartnerLinks(ctx context.Context, cardID uuid.UUID) ([]domain.PartnerLink, error) {
	rows, err := r.db.Query(ctx, `
		SELECT partner, partner_card_id, partner_card_suffix
		FROM card_partner_links
		WHERE card_id = $1
		ORDER BY partner
	`, cardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []domain.PartnerLink
	for rows.Next() {
		var link domain.PartnerLink
		if err := rows.Scan(&link.Partner, &link.PartnerCardID, &link.PartnerCardSuffix); err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// CreateCard inserts a new card. Identity fields (pan_token, brand) are never
// updated after this insert.
func (r *PostgresRepository) CreateCard(ctx context.Context, card *domain.Card) error {
	query := `
		INSERT INTO cards (id, global_user_id, last_four_digits, expiration, brand, pan_token, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query,
		card.ID, card.GlobalUserID, card.LastFourDigits, card.Expiration, card.Brand, card.PANToken)
	if err != nil {
		return fmt.Errorf("failed to insert card: %w", err)
	}
	for _, link := range card.PartnerLinks {
		if _, err := r.UpsertCardPartnerLink(ctx, card.ID, link); err != nil {
			return err
		}
	}
	return nil
}

// UpsertCardPartnerLink inserts or refreshes a partner link. Returns true when
// the link did not exist before.
func (r *PostgresRepository) UpsertCardPartnerLink(ctx context.Context, cardID uuid.UUID, link domain.PartnerLink) (bool, error) {
	query := `
		INSERT INTO card_partner_links (card_id, partner, partner_card_id, partner_card_suffix, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (card_id, partner)
		DO UPDATE SET partner_card_id = EXCLUDED.partner_card_id,
		              partner_card_suffix = EXCLUDED.partner_card_suffix,
		              updated_at = NOW()
		RETURNING (xmax = 0) AS inserted
	`
	var inserted bool
	err := r.db.QueryRow(ctx, query, cardID, link.Partner, link.PartnerCardID, link.PartnerCardSuffix).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert partner link: %w", err)
	}
	return inserted, nil
}

// RemoveCardPartnerLink deletes one partner's link from a card.
func (r *PostgresRepository) RemoveCardPartnerLink(ctx context.Context, cardID uuid.UUID, partner domain.Partner) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM card_partner_links WHERE card_id = $1 AND partner = $2`, cardID, partner)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CountCardPartnerLinks returns the number of partner links remaining on a card.
func (r *PostgresRepository) CountCardPartnerLinks(ctx context.Context, cardID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM card_partner_links WHERE card_id = $1`, cardID).Scan(&count)
	return count, err
}

// DeactivateCard soft-deletes a card across all reward programs.
func (r *PostgresRepository) DeactivateCard(ctx context.Context, cardID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE cards SET active = FALSE, updated_at = NOW() WHERE id = $1`, cardID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCardNotFound
	}
	return nil
}

// FindClaimedDeal retrieves a claimed deal by its id.
func (r *PostgresRepository) FindClaimedDeal(ctx context.Context, claimedDealID uuid.UUID) (*domain.ClaimedDeal, error) {
	var claimed domain.ClaimedDeal
	query := `
		SELECT id, global_user_id, deal_id, card_id, partner, created_at
		FROM claimed_deals
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, claimedDealID).Scan(
		&claimed.ID, &claimed.GlobalUserID, &claimed.DealID, &claimed.CardID, &claimed.Partner, &claimed.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrClaimedDealNotFound
		}
		return nil, err
	}
	return &claimed, nil
}

// FindDeal retrieves a deal's discount terms.
func (r *PostgresRepository) FindDeal(ctx context.Context, dealID uuid.UUID) (*domain.Deal, error) {
	var deal domain.Deal
	query := `
		SELECT id, merchant_id, merchant_name, discount_type, percent, amount, minimum_purchase, maximum_discount, currency
		FROM deals
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, dealID).Scan(
		&deal.ID, &deal.MerchantID, &deal.MerchantName, &deal.DiscountType,
		&deal.Percent, &deal.Amount, &deal.MinimumPurchase, &deal.MaximumDiscount, &deal.Currency)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrDealNotFound
		}
		return nil, err
	}
	return &deal, nil
}

// FindClaimedDealsByUser lists a user's claims, newest first.
func (r *PostgresRepository) FindClaimedDealsByUser(ctx context.Context, globalUserID uuid.UUID) ([]domain.ClaimedDeal, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, global_user_id, deal_id, card_id, partner, created_at
		FROM claimed_deals
		WHERE global_user_id = $1
		ORDER BY created_at DESC
	`, globalUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []domain.ClaimedDeal
	for rows.Next() {
		var claimed domain.ClaimedDeal
		if err := rows.Scan(&claimed.ID, &claimed.GlobalUserID, &claimed.DealID, &claimed.CardID, &claimed.Partner, &claimed.CreatedAt); err != nil {
			return nil, err
		}
		claims = append(claims, claimed)
	}
	return claims, rows.Err()
}

// AttachClaimedDealsToCard re-points claims that predate the card at the new
// card. Returns the number of claims updated.
func (r *PostgresRepository) AttachClaimedDealsToCard(ctx context.Context, globalUserID, cardID uuid.UUID) (int, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE claimed_deals
		SET card_id = $2
		WHERE global_user_id = $1 AND card_id IS NULL
	`, globalUserID, cardID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// InsertRedeemedDeal records the first authorization event for a partner
// redeemed-deal id. The unique index on partner_redeemed_deal_id makes the
// duplicate check and the insert effectively atomic.
func (r *PostgresRepository) InsertRedeemedDeal(ctx context.Context, deal *domain.RedeemedDeal) error {
	query := `
		INSERT INTO redeemed_deals (
			id, claimed_deal_id, callback_event, status, purchase_date_time,
			authorization_amount, settlement_amount, discount_amount, currency,
			partner_redeemed_deal_scope_id, partner_redeemed_deal_id,
			reversed, analytics_event_id, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, FALSE, $12, NOW(), NOW())
		ON CONFLICT (partner_redeemed_deal_id) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query,
		deal.ID, deal.ClaimedDealID, deal.CallbackEvent, deal.Status, deal.PurchaseDateTime,
		deal.AuthorizationAmount, deal.SettlementAmount, deal.DiscountAmount, deal.Currency,
		deal.PartnerRedeemedDealScopeID, deal.PartnerRedeemedDealID, deal.AnalyticsEventID)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 = unique_violation; surfaced when the conflict target differs.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateRedemption
		}
		return fmt.Errorf("failed to insert redeemed deal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateRedemption
	}
	return nil
}

// FindRedeemedDealByPartnerID locates a redeemed deal by its idempotency key.
func (r *PostgresRepository) FindRedeemedDealByPartnerID(ctx context.Context, partnerRedeemedDealID string) (*domain.RedeemedDeal, error) {
	var deal domain.RedeemedDeal
	var cause *string
	query := `
		SELECT id, claimed_deal_id, callback_event, status, purchase_date_time,
		       authorization_amount, settlement_amount, discount_amount, currency,
		       partner_redeemed_deal_scope_id, partner_redeemed_deal_id,
		       reversed, reversal_cause, analytics_event_id, created_at, updated_at
		FROM redeemed_deals
		WHERE partner_redeemed_deal_id = $1
	`
	err := r.db.QueryRow(ctx, query, partnerRedeemedDealID).Scan(
		&deal.ID, &deal.ClaimedDealID, &deal.CallbackEvent, &deal.Status, &deal.PurchaseDateTime,
		&deal.AuthorizationAmount, &deal.SettlementAmount, &deal.DiscountAmount, &deal.Currency,
		&deal.PartnerRedeemedDealScopeID, &deal.PartnerRedeemedDealID,
		&deal.Reversed, &cause, &deal.AnalyticsEventID, &deal.CreatedAt, &deal.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrRedeemedDealNotFound
		}
		return nil, err
	}
	if cause != nil {
		deal.ReversalCause = domain.ReversalCause(*cause)
	}
	return &deal, nil
}

// UpdateRedeemedDealStatus moves a redeemed deal to a new credit status.
func (r *PostgresRepository) UpdateRedeemedDealStatus(ctx context.Context, redeemedDealID uuid.UUID, status domain.CreditStatus) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE redeemed_deals SET status = $2, updated_at = NOW() WHERE id = $1
	`, redeemedDealID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRedeemedDealNotFound
	}
	return nil
}

// MarkRedeemedDealReversed flags the deal reversed and applies the discount
// delta. The WHERE clause refuses to double-apply a reversal.
func (r *PostgresRepository) MarkRedeemedDealReversed(ctx context.Context, redeemedDealID uuid.UUID, cause domain.ReversalCause, discountDelta int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE redeemed_deals
		SET reversed = TRUE,
		    status = $2,
		    reversal_cause = $3,
		    discount_amount = discount_amount + $4,
		    updated_at = NOW()
		WHERE id = $1 AND reversed = FALSE
	`, redeemedDealID, domain.StatusReversed, cause, discountDelta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateRedemption
	}
	return nil
}

// MarkRedeemedDealSettled records the settlement amount and the (possibly
// recomputed) discount.
func (r *PostgresRepository) MarkRedeemedDealSettled(ctx context.Context, redeemedDealID uuid.UUID, settlementAmount, discountAmount int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE redeemed_deals
		SET settlement_amount = $2,
		    discount_amount = $3,
		    status = $4,
		    updated_at = NOW()
		WHERE id = $1 AND reversed = FALSE
	`, redeemedDealID, settlementAmount, discountAmount, domain.StatusClearingReceived)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRedeemedDealNotFound
	}
	return nil
}

// FindSettledDealsSince lists cleared deals for report generation.
func (r *PostgresRepository) FindSettledDealsSince(ctx context.Context, since time.Time) ([]domain.RedeemedDeal, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, claimed_deal_id, callback_event, status, purchase_date_time,
		       authorization_amount, settlement_amount, discount_amount, currency,
		       partner_redeemed_deal_scope_id, partner_redeemed_deal_id,
		       reversed, analytics_event_id, created_at, updated_at
		FROM redeemed_deals
		WHERE status = $1 AND reversed = FALSE AND updated_at >= $2
		ORDER BY updated_at
	`, domain.StatusClearingReceived, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deals []domain.RedeemedDeal
	for rows.Next() {
		var deal domain.RedeemedDeal
		if err := rows.Scan(
			&deal.ID, &deal.ClaimedDealID, &deal.CallbackEvent, &deal.Status, &deal.PurchaseDateTime,
			&deal.AuthorizationAmount, &deal.SettlementAmount, &deal.DiscountAmount, &deal.Currency,
			&deal.PartnerRedeemedDealScopeID, &deal.PartnerRedeemedDealID,
			&deal.Reversed, &deal.AnalyticsEventID, &deal.CreatedAt, &deal.UpdatedAt); err != nil {
			return nil, err
		}
		deals = append(deals, deal)
	}
	return deals, rows.Err()
}

// FindDealsAwaitingStatementCredit lists deals whose settlement has cleared
// but whose statement-credit request has not gone out yet, oldest first.
// Deals parked in the retry state after a failed generation are included so
// the next sweep picks them up.
func (r *PostgresRepository) FindDealsAwaitingStatementCredit(ctx context.Context, limit int) ([]domain.RedeemedDeal, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, claimed_deal_id, callback_event, status, purchase_date_time,
		       authorization_amount, settlement_amount, discount_amount, currency,
		       partner_redeemed_deal_scope_id, partner_redeemed_deal_id,
		       reversed, analytics_event_id, created_at, updated_at
		FROM redeemed_deals
		WHERE status IN ($1, $2) AND reversed = FALSE
		ORDER BY updated_at
		LIMIT $3
	`, domain.StatusClearingReceived, domain.StatusRetryingAfterGeneratingStatementCreditRequestFailure, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deals []domain.RedeemedDeal
	for rows.Next() {
		var deal domain.RedeemedDeal
		if err := rows.Scan(
			&deal.ID, &deal.ClaimedDealID, &deal.CallbackEvent, &deal.Status, &deal.PurchaseDateTime,
			&deal.AuthorizationAmount, &deal.SettlementAmount, &deal.DiscountAmount, &deal.Currency,
			&deal.PartnerRedeemedDealScopeID, &deal.PartnerRedeemedDealID,
			&deal.Reversed, &deal.AnalyticsEventID, &deal.CreatedAt, &deal.UpdatedAt); err != nil {
			return nil, err
		}
		deals = append(deals, deal)
	}
	return deals, rows.Err()
}

// CreateScheduledJob persists a new unit of deferred work.
func (r *PostgresRepository) CreateScheduledJob(ctx context.Context, job *domain.ScheduledJobDetails) error {
	stateJSON, err := json.Marshal(job.State)
	if err != nil {
		return fmt.Errorf("failed to marshal job state: %w", err)
	}
	query := `
		INSERT INTO scheduled_jobs (id, job_type, state, max_retries, orchestrated, recurring, next_run_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`
	_, err = r.db.Exec(ctx, query,
		job.JobID, job.JobType, stateJSON, job.MaxRetries, job.Orchestrated, job.Recurring, job.StartTime)
	if err != nil {
		return fmt.Errorf("failed to insert scheduled job: %w", err)
	}
	return nil
}

// FindDueScheduledJobs returns up to limit jobs whose next_run_at has passed.
// The FOR UPDATE SKIP LOCKED locks only last until the statement ends in
// autocommit, so overlapping scheduler ticks can still read the same row; the
// promotion holdback and the worker's idempotent outcomes absorb those
// duplicates.
func (r *PostgresRepository) FindDueScheduledJobs(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledJobDetails, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, job_type, state, max_retries, orchestrated, recurring, next_run_at, created_at, updated_at
		FROM scheduled_jobs
		WHERE next_run_at <= $1
		ORDER BY next_run_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.ScheduledJobDetails
	for rows.Next() {
		var job domain.ScheduledJobDetails
		var stateJSON []byte
		if err := rows.Scan(&job.JobID, &job.JobType, &stateJSON, &job.MaxRetries,
			&job.Orchestrated, &job.Recurring, &job.StartTime, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(stateJSON, &job.State); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job state for %s: %w", job.JobID, err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// RescheduleJobAfterFailure points the job at a single run at nextRun,
// carrying the updated state (retry count, sentinels).
func (r *PostgresRepository) RescheduleJobAfterFailure(ctx context.Context, jobID uuid.UUID, state domain.JobState, nextRun time.Time) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal job state: %w", err)
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE scheduled_jobs
		SET state = $2, next_run_at = $3, updated_at = NOW()
		WHERE id = $1
	`, jobID, stateJSON, nextRun)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// CompleteScheduledJob removes a finished or terminally-failed job.
func (r *PostgresRepository) CompleteScheduledJob(ctx context.Context, jobID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM scheduled_jobs WHERE id = $1`, jobID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// MarkRecurringJobIterationDone advances a recurring job to its next
// scheduled occurrence without touching retry state.
func (r *PostgresRepository) MarkRecurringJobIterationDone(ctx context.Context, jobID uuid.UUID, nextRun time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE scheduled_jobs SET next_run_at = $2, updated_at = NOW() WHERE id = $1 AND recurring = TRUE
	`, jobID, nextRun)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}
