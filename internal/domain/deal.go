/**
 * @description
 * This file defines the deal-side domain models: offers and their discount
 * terms, a user's claim of an offer against a card, and the redeemed-deal
 * record that tracks an authorization through clearing and statement credit.
 *
 * @notes
 * - Amounts are int64 in the smallest currency unit to avoid floating-point
 *   drift in financial math (same convention as the ledger tables).
 * - PartnerRedeemedDealID is the idempotency key: a second partner event
 *   carrying the same value must be detected before any ledger write.
 */

package domain

import (
	"encoding/base32"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DealDiscountType selects how a deal's discount is computed.
type DealDiscountType string

const (
	DiscountPercent     DealDiscountType = "Percent"
	DiscountFixedAmount DealDiscountType = "FixedAmount"
)

// Deal holds the discount terms of an offer.
type Deal struct {
	ID              uuid.UUID        `json:"id"`
	MerchantID      string           `json:"merchant_id"`
	MerchantName    string           `json:"merchant_name"`
	DiscountType    DealDiscountType `json:"discount_type"`
	// Percent is basis-point precision (e.g. 12.5 => 12.5%). Used only for
	// percent deals.
	Percent float64 `json:"percent"`
	// Amount is the fixed discount in the smallest currency unit. Used only
	// for fixed-amount deals.
	Amount          int64 `json:"amount"`
	MinimumPurchase int64 `json:"minimum_purchase"`
	MaximumDiscount int64 `json:"maximum_discount"`
	Currency        string `json:"currency"`
}

// ClaimedDeal records a user's intent to redeem a deal with a card.
type ClaimedDeal struct {
	ID           uuid.UUID `json:"id"`
	GlobalUserID uuid.UUID `json:"global_user_id"`
	DealID       uuid.UUID `json:"deal_id"`
	CardID       uuid.UUID `json:"card_id"`
	Partner      Partner   `json:"partner"`
	CreatedAt    time.Time `json:"created_at"`
}

// CallbackEvent tags how the partner reports redemption outcomes for a deal.
type CallbackEvent string

const (
	CallbackNone       CallbackEvent = "None"
	CallbackRealTime   CallbackEvent = "RealTime"
	CallbackSettlement CallbackEvent = "Settlement"
)

// CreditStatus is the redeemed-deal state machine.
type CreditStatus string

const (
	StatusAuthorizationReceived           CreditStatus = "AuthorizationReceived"
	StatusClearingReceived                CreditStatus = "ClearingReceived"
	StatusGeneratingStatementCreditRequest CreditStatus = "GeneratingStatementCreditRequest"
	StatusSendingStatementCreditRequest   CreditStatus = "SendingStatementCreditRequest"
	StatusStatementCreditRequested        CreditStatus = "StatementCreditRequested"
	StatusCreditGranted                   CreditStatus = "CreditGranted"
	StatusRejectedByPartner               CreditStatus = "RejectedByPartner"
	StatusSettlementAmountTooSmall        CreditStatus = "SettlementAmountTooSmall"
	StatusRejectedAfterReview             CreditStatus = "RejectedAfterReview"
	StatusNoEarnBalanceToBurn             CreditStatus = "NoEarnBalanceToBurn"
	StatusRetryingAfterGeneratingStatementCreditRequestFailure CreditStatus = "RetryingAfterGeneratingStatementCreditRequestFailure"
	StatusGeneratingStatementCreditRequestFailed               CreditStatus = "GeneratingStatementCreditRequestFailed"
	StatusReversed CreditStatus = "Reversed"
)

// Terminal reports whether the status admits no further transitions.
// Re-delivery of an event while terminal is a no-op (DuplicateTransaction).
func (s CreditStatus) Terminal() bool {
	switch s {
	case StatusCreditGranted,
		StatusRejectedByPartner,
		StatusSettlementAmountTooSmall,
		StatusRejectedAfterReview,
		StatusNoEarnBalanceToBurn,
		StatusGeneratingStatementCreditRequestFailed,
		StatusReversed:
		return true
	}
	return false
}

// CanTransitionTo validates a state-machine edge.
func (s CreditStatus) CanTransitionTo(next CreditStatus) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case StatusAuthorizationReceived:
		return next == StatusClearingReceived || next == StatusReversed
	case StatusClearingReceived:
		switch next {
		case StatusGeneratingStatementCreditRequest,
			StatusRejectedByPartner,
			StatusSettlementAmountTooSmall,
			StatusRejectedAfterReview,
			StatusNoEarnBalanceToBurn,
			StatusReversed:
			return true
		}
		return false
	case StatusGeneratingStatementCreditRequest:
		return next == StatusSendingStatementCreditRequest ||
			next == StatusRetryingAfterGeneratingStatementCreditRequestFailure
	case StatusRetryingAfterGeneratingStatementCreditRequestFailure:
		return next == StatusGeneratingStatementCreditRequest ||
			next == StatusGeneratingStatementCreditRequestFailed
	case StatusSendingStatementCreditRequest:
		return next == StatusStatementCreditRequested
	case StatusStatementCreditRequested:
		return next == StatusCreditGranted
	}
	return false
}

// ReversalCause tags why a redeemed deal was reversed, for downstream
// analytics. The ledger semantics are identical for all causes.
type ReversalCause string

const (
	CausePartnerReversal          ReversalCause = "PartnerReversal"
	CauseRealTimeTimeoutReversal  ReversalCause = "RealTimeTimeoutReversal"
	CauseSettlementTimeoutReversal ReversalCause = "SettlementTimeoutReversal"
)

// RedeemedDeal is the record of an authorization event applying a claimed
// deal's discount, mutated in place by settlement and reversal events.
type RedeemedDeal struct {
	ID                    uuid.UUID     `json:"id"`
	ClaimedDealID         uuid.UUID     `json:"claimed_deal_id"`
	CallbackEvent         CallbackEvent `json:"callback_event"`
	Status                CreditStatus  `json:"status"`
	PurchaseDateTime      time.Time     `json:"purchase_date_time"`
	AuthorizationAmount   int64         `json:"authorization_amount"`
	SettlementAmount      int64         `json:"settlement_amount"`
	DiscountAmount        int64         `json:"discount_amount"`
	Currency              string        `json:"currency"`
	PartnerRedeemedDealScopeID string   `json:"partner_redeemed_deal_scope_id"`
	PartnerRedeemedDealID string        `json:"partner_redeemed_deal_id"`
	Reversed              bool          `json:"reversed"`
	ReversalCause         ReversalCause `json:"reversal_cause,omitempty"`
	AnalyticsEventID      uuid.UUID     `json:"analytics_event_id"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}

var partnerDealEncoding = base32.HexEncoding.WithPadding(base32.NoPadding)

// PartnerRedeemedDealID derives the short, partner-safe idempotency key from
// a redeemed-deal id. The derivation is deterministic and decodable by the
// issuing side only (partners treat it as opaque).
func PartnerRedeemedDealID(id uuid.UUID) string {
	return partnerDealEncoding.EncodeToString(id[:])
}

// RedeemedDealIDFromPartnerID reverses PartnerRedeemedDealID.
func RedeemedDealIDFromPartnerID(partnerID string) (uuid.UUID, error) {
	raw, err := partnerDealEncoding.DecodeString(strings.ToUpper(partnerID))
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.FromBytes(raw)
}

// RedemptionEvent is a partner-reported authorization.
type RedemptionEvent struct {
	Partner               Partner       `json:"partner"`
	ClaimedDealID         uuid.UUID     `json:"claimed_deal_id"`
	PartnerRedeemedDealScopeID string   `json:"partner_redeemed_deal_scope_id"`
	PartnerRedeemedDealID string        `json:"partner_redeemed_deal_id"`
	AuthorizationAmount   int64         `json:"authorization_amount"`
	Currency              string        `json:"currency"`
	PurchaseDateTime      time.Time     `json:"purchase_date_time"`
	CallbackEvent         CallbackEvent `json:"callback_event"`
}

// ReversalEvent is a partner-reported reversal of a prior authorization.
type ReversalEvent struct {
	Partner               Partner       `json:"partner"`
	PartnerRedeemedDealID string        `json:"partner_redeemed_deal_id"`
	ReversalAmount        int64         `json:"reversal_amount"`
	Cause                 ReversalCause `json:"cause"`
}

// SettlementEvent is a partner-reported clearing/settlement.
type SettlementEvent struct {
	Partner               Partner `json:"partner"`
	PartnerRedeemedDealID string  `json:"partner_redeemed_deal_id"`
	SettlementAmount      int64   `json:"settlement_amount"`
	Currency              string  `json:"currency"`
}

// SettledDealInfo is a transient projection of a redeemed deal plus its
// settlement message; it is not persisted beyond audit logging.
type SettledDealInfo struct {
	RedeemedDealID   uuid.UUID `json:"redeemed_deal_id"`
	SettlementAmount int64     `json:"settlement_amount"`
	DiscountAmount   int64     `json:"discount_amount"`
	DiscountDelta    int64     `json:"discount_delta"`
}

// ReverseRedeemedDealInfo is the transient projection for a reversal.
type ReverseRedeemedDealInfo struct {
	RedeemedDealID uuid.UUID     `json:"redeemed_deal_id"`
	ReversalAmount int64         `json:"reversal_amount"`
	DiscountDelta  int64         `json:"discount_delta"`
	Cause          ReversalCause `json:"cause"`
}
