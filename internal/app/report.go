/**
 * @description
 * Report enrichment: resolves the merchant, card, and brand fields a report
 * line needs from the ledger entities a settled redeemed deal references.
 */

package app

import (
	"context"
	"fmt"

	"github.com/CardLinx/microsoft-earn-sub008/internal/domain"
	"github.com/CardLinx/microsoft-earn-sub008/internal/extract"
)

// EnrichReportRecord builds a report line for a settled redeemed deal.
func (s *Service) EnrichReportRecord(ctx context.Context, deal domain.RedeemedDeal) (extract.TransactionRecord, error) {
	var record extract.TransactionRecord

	claimed, err := s.repo.FindClaimedDeal(ctx, deal.ClaimedDealID)
	if err != nil {
		return record, fmt.Errorf("failed to find claimed deal for report: %w", err)
	}
	offer, err := s.repo.FindDeal(ctx, claimed.DealID)
	if err != nil {
		return record, fmt.Errorf("failed to find deal for report: %w", err)
	}
	card, err := s.repo.FindCardByID(ctx, claimed.CardID)
	if err != nil {
		return record, fmt.Errorf("failed to find card for report: %w", err)
	}

	return extract.TransactionRecord{
		MerchantID:    offer.MerchantID,
		MerchantName:  offer.MerchantName,
		Timestamp:     deal.PurchaseDateTime,
		AmountCents:   deal.SettlementAmount,
		CardLastFour:  card.LastFourDigits,
		BrandCode:     card.Brand.ReportBrandCode(),
		TransactionID: domain.PartnerRedeemedDealID(deal.ID),
	}, nil
}
