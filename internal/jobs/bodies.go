/**
 * @description
 * Single-body job executors: claiming discounts for a newly enrolled card,
 * generating the reward-network transaction report, ingesting a partner
 * extract file, and sweeping settled deals through the outbound
 * statement-credit leg. Each classifies its failures into the retry taxonomy —
 * bad payloads are terminal, transient downstream faults are not.
 *
 * @dependencies
 * - context, fmt, strconv, time: Standard Go libraries.
 * - github.com/google/uuid: Payload id parsing.
 * - internal/domain, internal/extract: Job models and the record codec.
 */

package jobs

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/CardLinx/microsoft-earn-sub008/internal/domain"
	"github.com/CardLinx/microsoft-earn-sub008/internal/extract"
	"github.com/CardLinx/microsoft-earn-sub008/pkg/firstdata"
)

// Job-state data keys used by the single-body executors.
const (
	GlobalUserIDKey   = "global_user_id"
	CardIDKey         = "card_id"
	ExtractNameKey    = "extract_name"
	ReportSinceKey    = "report_since"
	lastRedemptionKey = "last_redemption_index"
	lastSettlementKey = "last_settlement_index"
)

// DiscountClaimer attaches a user's claimed deals to a card.
type DiscountClaimer interface {
	ClaimDiscountsForNewCard(ctx context.Context, globalUserID, cardID uuid.UUID) (int, error)
}

// NewClaimDiscountsExecutor builds the ClaimDiscountsForNewCard body.
func NewClaimDiscountsExecutor(claimer DiscountClaimer) ExecutorFunc {
	return func(ctx context.Context, state *domain.JobState) (domain.ExecutionResult, error) {
		globalUserID, err := uuid.Parse(state.Data[GlobalUserIDKey])
		if err != nil {
			return domain.ExecutionTerminalError, fmt.Errorf("bad global_user_id in payload: %w", err)
		}
		cardID, err := uuid.Parse(state.Data[CardIDKey])
		if err != nil {
			return domain.ExecutionTerminalError, fmt.Errorf("bad card_id in payload: %w", err)
		}
		if _, err := claimer.ClaimDiscountsForNewCard(ctx, globalUserID, cardID); err != nil {
			return domain.ExecutionNonTerminalError, err
		}
		return domain.ExecutionSuccess, nil
	}
}

// SettledDealSource lists settled deals for the report window.
type SettledDealSource interface {
	FindSettledDealsSince(ctx context.Context, since time.Time) ([]domain.RedeemedDeal, error)
}

// ReportEnricher resolves the merchant/card fields the ledger row does not
// carry itself.
type ReportEnricher interface {
	EnrichReportRecord(ctx context.Context, deal domain.RedeemedDeal) (extract.TransactionRecord, error)
}

// ReportSink stores a finished report file.
type ReportSink interface {
	Store(ctx context.Context, filename, content string) error
}

// ReportExecutor generates and delivers the daily transaction report.
type ReportExecutor struct {
	source     SettledDealSource
	enricher   ReportEnricher
	sink       ReportSink
	decoration string
	now        func() time.Time
}

// NewReportExecutor creates the GenerateTransactionReport executor.
func NewReportExecutor(source SettledDealSource, enricher ReportEnricher, sink ReportSink, decoration string) *ReportExecutor {
	return &ReportExecutor{
		source:     source,
		enricher:   enricher,
		sink:       sink,
		decoration: decoration,
		now:        time.Now,
	}
}

// Tasks returns the single report body.
func (e *ReportExecutor) Tasks(ctx context.Context, details *domain.ScheduledJobDetails) ([]Task, error) {
	return ExecutorFunc(e.run).Tasks(ctx, details)
}

func (e *ReportExecutor) run(ctx context.Context, state *domain.JobState) (domain.ExecutionResult, error) {
	since := e.now().Add(-24 * time.Hour)
	if raw, ok := state.Data[ReportSinceKey]; ok && raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return domain.ExecutionTerminalError, fmt.Errorf("bad report_since in payload: %w", err)
		}
		since = parsed
	}

	deals, err := e.source.FindSettledDealsSince(ctx, since)
	if err != nil {
		return domain.ExecutionNonTerminalError, err
	}

	records := make([]extract.TransactionRecord, 0, len(deals))
	for _, deal := range deals {
		record, err := e.enricher.EnrichReportRecord(ctx, deal)
		if err != nil {
			return domain.ExecutionNonTerminalError, err
		}
		record.Sequence = int64(len(records) + 1)
		records = append(records, record)
	}

	day := e.now()
	filename := extract.ReportFilename(e.decoration, day)
	header := extract.ReportHeader{
		Sequence:         1,
		Date:             day,
		Filename:         filename,
		TrailingSequence: 1,
		TransmissionID:   e.decoration,
	}
	content := extract.BuildReportFile(header, records)
	if err := e.sink.Store(ctx, filename, content); err != nil {
		return domain.ExecutionNonTerminalError, err
	}
	log.Printf("ReportExecutor: Stored %s with %d records", filename, len(records))
	return domain.ExecutionSuccess, nil
}

// ExtractApplier is the slice of the lifecycle engine extract records route
// through: redemption details replay as authorization events, settlement
// details as clearing events.
type ExtractApplier interface {
	RedeemDeal(ctx context.Context, event domain.RedemptionEvent) (*domain.RedeemedDeal, domain.ResultCode, error)
	SettleRedeemedDeal(ctx context.Context, event domain.SettlementEvent) (*domain.SettledDealInfo, domain.ResultCode, error)
}

// ExtractSource fetches a named extract file's content.
type ExtractSource interface {
	Fetch(ctx context.Context, name string) (string, error)
}

// ExtractExecutor ingests one partner extract file, applying redemption and
// settlement records through the lifecycle engine. Progress indexes are
// recorded in the job state so a retried run skips records already applied
// (the engine is idempotent anyway; the indexes just avoid pointless replays).
type ExtractExecutor struct {
	source  ExtractSource
	applier ExtractApplier
}

// NewExtractExecutor creates the ProcessExtractFile executor.
func NewExtractExecutor(source ExtractSource, applier ExtractApplier) *ExtractExecutor {
	return &ExtractExecutor{source: source, applier: applier}
}

// Tasks returns the single ingestion body.
func (e *ExtractExecutor) Tasks(ctx context.Context, details *domain.ScheduledJobDetails) ([]Task, error) {
	return ExecutorFunc(e.run).Tasks(ctx, details)
}

func (e *ExtractExecutor) run(ctx context.Context, state *domain.JobState) (domain.ExecutionResult, error) {
	name := state.Data[ExtractNameKey]
	if name == "" {
		return domain.ExecutionTerminalError, fmt.Errorf("payload names no extract file")
	}
	content, err := e.source.Fetch(ctx, name)
	if err != nil {
		return domain.ExecutionNonTerminalError, err
	}
	file, err := extract.ParseExtractFile(content)
	if err != nil {
		// A malformed file will not fix itself on retry.
		return domain.ExecutionTerminalError, fmt.Errorf("extract %s is malformed: %w", name, err)
	}

	// Redemptions replay before settlements: a settlement for a redemption
	// the real-time path missed must find its authorization on the ledger.
	redemptionStart := payloadIndex(state, lastRedemptionKey)
	for i := redemptionStart; i < len(file.Redemptions); i++ {
		record := file.Redemptions[i]
		claimedDealID, err := domain.RedeemedDealIDFromPartnerID(record.OfferID)
		if err != nil {
			log.Printf("ExtractExecutor: Redemption record %d of %s has undecodable offer id %q", i, name, record.OfferID)
			state.Data[lastRedemptionKey] = strconv.Itoa(i + 1)
			continue
		}
		_, code, err := e.applier.RedeemDeal(ctx, domain.RedemptionEvent{
			Partner:               domain.PartnerFirstData,
			ClaimedDealID:         claimedDealID,
			PartnerRedeemedDealID: firstdata.TransactionID(record.OfferID, record.AuthCode),
			AuthorizationAmount:   record.PurchaseAmount,
			PurchaseDateTime:      record.RedemptionDate,
			CallbackEvent:         domain.CallbackSettlement,
		})
		if err != nil {
			return domain.ExecutionNonTerminalError, err
		}
		if !code.IsSuccessful() {
			// DuplicateTransaction is the common case: the real-time path
			// already saw this authorization.
			log.Printf("ExtractExecutor: Redemption record %d of %s resolved %s", i, name, code)
		}
		state.Data[lastRedemptionKey] = strconv.Itoa(i + 1)
	}

	start := payloadIndex(state, lastSettlementKey)
	for i := start; i < len(file.Settlements); i++ {
		record := file.Settlements[i]
		_, code, err := e.applier.SettleRedeemedDeal(ctx, domain.SettlementEvent{
			Partner:               domain.PartnerFirstData,
			PartnerRedeemedDealID: firstdata.TransactionID(record.OfferID, record.AuthCode),
			SettlementAmount:      record.SettlementAmount,
		})
		if err != nil {
			return domain.ExecutionNonTerminalError, err
		}
		if !code.IsSuccessful() {
			log.Printf("ExtractExecutor: Settlement record %d of %s resolved %s", i, name, code)
		}
		state.Data[lastSettlementKey] = strconv.Itoa(i + 1)
	}

	// Notification records carry no ledger operation; they are surfaced for
	// the operators.
	for _, notification := range file.Notifications {
		log.Printf("ExtractExecutor: Notification for offer %s: %s", notification.OfferID, notification.Message)
	}

	log.Printf("ExtractExecutor: Applied %d redemption and %d settlement records from %s",
		len(file.Redemptions)-redemptionStart, len(file.Settlements)-start, name)
	return domain.ExecutionSuccess, nil
}

// statementCreditBatchSize bounds how many settled deals one sweep advances.
const statementCreditBatchSize = 100

// CreditProcessor walks deals awaiting statement credit through the outbound
// request leg.
type CreditProcessor interface {
	ProcessStatementCredits(ctx context.Context, limit int) (int, error)
}

// NewStatementCreditExecutor builds the ProcessStatementCredits body.
func NewStatementCreditExecutor(processor CreditProcessor) ExecutorFunc {
	return func(ctx context.Context, _ *domain.JobState) (domain.ExecutionResult, error) {
		requested, err := processor.ProcessStatementCredits(ctx, statementCreditBatchSize)
		if err != nil {
			return domain.ExecutionNonTerminalError, err
		}
		if requested > 0 {
			log.Printf("StatementCreditExecutor: Requested %d statement credits", requested)
		}
		return domain.ExecutionSuccess, nil
	}
}

func payloadIndex(state *domain.JobState, key string) int {
	n, err := strconv.Atoi(state.Data[key])
	if err != nil || n < 0 {
		return 0
	}
	return n
}
