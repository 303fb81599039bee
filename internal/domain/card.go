/**
 * @description
 * This file defines the card-side domain models: enrolled payment cards, their
 * per-partner enrollment links, and the request DTOs used by the card API.
 *
 * @notes
 * - The PAN is never stored. panToken is a partner-issued stand-in and, with
 *   the brand, forms the card's immutable identity after creation.
 * - A card carries at most one link per partner; links are added and removed
 *   as partners confirm enrollment.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Partner identifies a card-network partner.
type Partner string

const (
	PartnerAmex       Partner = "Amex"
	PartnerMasterCard Partner = "MasterCard"
	PartnerVisa       Partner = "Visa"
	PartnerFirstData  Partner = "FirstData"
)

// CardBrand is the issuing network of an enrolled card.
type CardBrand string

const (
	BrandVisa       CardBrand = "Visa"
	BrandMasterCard CardBrand = "MasterCard"
	BrandAmex       CardBrand = "AmericanExpress"
)

// ReportBrandCode returns the 2-char brand code used in the reward-network
// transaction report file. Brands outside the report's vocabulary map to "".
func (b CardBrand) ReportBrandCode() string {
	switch b {
	case BrandVisa:
		return "VI"
	case BrandMasterCard:
		return "MC"
	}
	return ""
}

// PartnerLink records one partner's enrollment of a card. Unique per
// (CardID, Partner).
type PartnerLink struct {
	Partner           Partner `json:"partner"`
	PartnerCardID     string  `json:"partner_card_id"`
	PartnerCardSuffix string  `json:"partner_card_suffix"`
}

// Card is an enrolled payment card.
type Card struct {
	ID             uuid.UUID     `json:"id"`
	GlobalUserID   uuid.UUID     `json:"global_user_id"`
	LastFourDigits string        `json:"last_four_digits"`
	Expiration     time.Time     `json:"expiration"`
	Brand          CardBrand     `json:"brand"`
	PANToken       string        `json:"pan_token"`
	PartnerLinks   []PartnerLink `json:"partner_links"`
	Active         bool          `json:"active"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// LinkFor returns the card's link for the given partner, if present.
func (c *Card) LinkFor(partner Partner) (PartnerLink, bool) {
	for _, link := range c.PartnerLinks {
		if link.Partner == partner {
			return link, true
		}
	}
	return PartnerLink{}, false
}

// AddCardRequest is the DTO for enrolling a card.
type AddCardRequest struct {
	GlobalUserID   uuid.UUID `json:"global_user_id"`
	PANToken       string    `json:"pan_token"`
	LastFourDigits string    `json:"last_four_digits"`
	Expiration     time.Time `json:"expiration"`
	Brand          CardBrand `json:"brand"`
}

// RemoveCardRequest is the DTO for unenrolling a card.
type RemoveCardRequest struct {
	GlobalUserID uuid.UUID `json:"global_user_id"`
	CardID       uuid.UUID `json:"card_id"`
	Partner      Partner   `json:"partner"`
}
