/**
 * @description
 * This file defines the `PartnerCardAdapter` interface: the contract every
 * card-network client must satisfy so the lifecycle engine can enroll and
 * unenroll cards without knowing partner wire formats. Amex and MasterCard
 * clients implement it directly; Visa and First Data report card outcomes
 * through their inbound webhooks instead, so they register a no-op adapter.
 *
 * @dependencies
 * - context: Standard Go library.
 * - internal/domain: Domain models and the ResultCode taxonomy.
 */

package app

import (
	"context"

	"github.com/CardLinx/microsoft-earn-sub008/internal/domain"
)

// PartnerCardAdapter is the outbound card-enrollment contract for one partner.
// Adapters translate partner response codes into ResultCode values; a Go error
// is reserved for transport-level faults.
type PartnerCardAdapter interface {
	Partner() domain.Partner
	AddCard(ctx context.Context, card *domain.Card) (*domain.PartnerLink, domain.ResultCode, error)
	RemoveCard(ctx context.Context, card *domain.Card) (domain.ResultCode, error)
}

// adapterForBrand maps a card brand to the partner that must be called to
// enroll it. First Data enrollment piggybacks on the network partners, so it
// never appears here.
func adapterForBrand(brand domain.CardBrand) domain.Partner {
	switch brand {
	case domain.BrandAmex:
		return domain.PartnerAmex
	case domain.BrandMasterCard:
		return domain.PartnerMasterCard
	case domain.BrandVisa:
		return domain.PartnerVisa
	}
	return ""
}
