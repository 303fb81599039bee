/**
 * @description
 * Discount math for deal redemption and settlement. Percent deals are
 * sensitive to the transaction amount and are recomputed when the settlement
 * amount diverges from the authorization amount (tips, partial fulfillment);
 * fixed-amount deals are not. Both respect the deal's minimum-purchase gate
 * and maximum-discount cap.
 */

package app

import (
	"github.com/CardLinx/microsoft-earn-sub008/internal/domain"
)

// ComputeDiscount returns the discount earned for a transaction amount under
// a deal's terms. A purchase below the minimum earns nothing.
func ComputeDiscount(deal *domain.Deal, amount int64) int64 {
	if amount < deal.MinimumPurchase {
		return 0
	}

	var discount int64
	switch deal.DiscountType {
	case domain.DiscountPercent:
		discount = int64(float64(amount) * deal.Percent / 100.0)
	case domain.DiscountFixedAmount:
		discount = deal.Amount
	default:
		return 0
	}

	if deal.MaximumDiscount > 0 && discount > deal.MaximumDiscount {
		discount = deal.MaximumDiscount
	}
	// A discount can never exceed the transaction itself.
	if discount > amount {
		discount = amount
	}
	return discount
}

// SettlementDiscount recomputes the discount for a settlement amount.
// Percent deals recompute against the settled amount; fixed-amount deals keep
// their original discount (still clamped to the settled amount). The
// asymmetry is intentional.
func SettlementDiscount(deal *domain.Deal, originalDiscount, settlementAmount int64) int64 {
	if deal.DiscountType == domain.DiscountPercent {
		return ComputeDiscount(deal, settlementAmount)
	}
	if originalDiscount > settlementAmount {
		return settlementAmount
	}
	return originalDiscount
}
