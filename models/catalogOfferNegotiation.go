package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stocklot/marketplace_backend/config"
)

// CatalogOfferNegotiation is one counter-offer event on one item.
// Append-only: rows are never mutated except to stamp responded_at.
type CatalogOfferNegotiation struct {
	ID                 int                   `gorm:"primary_key" json:"id"`
	PublicId           string                `gorm:"uniqueIndex;size:14;not null" json:"public_id"`
	CatalogOfferId     int                   `gorm:"index;not null" json:"catalog_offer_id"`
	CatalogOfferItemId int                   `gorm:"index;not null" json:"catalog_offer_item_id"`
	NegotiationRound   int                   `gorm:"not null;default:1" json:"negotiation_round"`
	ActionType         NegotiationActionType `gorm:"size:20;not null" json:"action_type"`
	OfferedByUserId    int                   `gorm:"index;not null" json:"offered_by_user_id"`
	OfferedBySeller    bool                  `gorm:"not null;default:false" json:"offered_by_seller"`
	OfferedPrice       *decimal.Decimal      `gorm:"type:decimal(20,4)" json:"offered_price"`
	OfferedQuantity    *int                  `json:"offered_quantity"`
	Currency           string                `gorm:"size:3" json:"currency"`
	Message            string                `gorm:"type:text" json:"message"`
	ValidUntil         *time.Time            `json:"valid_until"`
	RespondedAt        *time.Time            `json:"responded_at"`
	CreatedAt          time.Time             `gorm:"autoCreateTime" json:"created_at"`
}

// CurrentNegotiationSide makes the seller-over-buyer precedence rule visible
// in the type instead of implicit in call order.
type CurrentNegotiationSide string

const (
	CurrentNegotiationNone   CurrentNegotiationSide = "NONE"
	CurrentNegotiationBuyer  CurrentNegotiationSide = "BUYER"
	CurrentNegotiationSeller CurrentNegotiationSide = "SELLER"
)

// CurrentNegotiation is the flattened per-item negotiation state projected
// into the read-model. The schema allows null price/quantity/created_at; the
// read-model contract does not, so defaults are filled here.
type CurrentNegotiation struct {
	Side             CurrentNegotiationSide `json:"side"`
	PublicId         string                 `json:"public_id"`
	NegotiationRound int                    `json:"negotiation_round"`
	ActionType       NegotiationActionType  `json:"action_type"`
	OfferedPrice     float64                `json:"offered_price"`
	OfferedQuantity  int                    `json:"offered_quantity"`
	Currency         string                 `json:"currency"`
	Message          string                 `json:"message,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
}

// ResolveCurrentNegotiation collapses the two per-side records into the
// read-model shape. Seller wins the tie-break whenever a seller-side record
// exists, regardless of round ordering between the two.
func ResolveCurrentNegotiation(sellerNeg *CatalogOfferNegotiation, buyerNeg *CatalogOfferNegotiation, now time.Time) *CurrentNegotiation {
	side := CurrentNegotiationNone
	var neg *CatalogOfferNegotiation
	if sellerNeg != nil {
		side = CurrentNegotiationSeller
		neg = sellerNeg
	} else if buyerNeg != nil {
		side = CurrentNegotiationBuyer
		neg = buyerNeg
	}
	if neg == nil {
		return nil
	}

	price := 0.0
	if neg.OfferedPrice != nil {
		price, _ = neg.OfferedPrice.Float64()
	}
	qty := 0
	if neg.OfferedQuantity != nil {
		qty = *neg.OfferedQuantity
	}
	createdAt := neg.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	return &CurrentNegotiation{
		Side:             side,
		PublicId:         neg.PublicId,
		NegotiationRound: neg.NegotiationRound,
		ActionType:       neg.ActionType,
		OfferedPrice:     price,
		OfferedQuantity:  qty,
		Currency:         neg.Currency,
		Message:          neg.Message,
		CreatedAt:        createdAt,
	}
}

// GetCurrentRound is max(negotiation_round) across the offer's negotiations,
// defaulting to 1 when none exist. Derived rather than stored because rounds
// advance without an offer-row update.
func GetCurrentRound(ctx context.Context, offerId int) (int, error) {
	db := config.GetDB()
	var maxRound *int
	err := db.WithContext(ctx).Model(&CatalogOfferNegotiation{}).
		Where("catalog_offer_id = ?", offerId).
		Select("MAX(negotiation_round)").Scan(&maxRound).Error
	if err != nil {
		return 0, err
	}
	if maxRound == nil || *maxRound < 1 {
		return 1, nil
	}
	return *maxRound, nil
}

// GetLastActivity is the created_at of the most recent negotiation for the
// offer, or nil when none exist.
func GetLastActivity(ctx context.Context, offerId int) (*time.Time, error) {
	db := config.GetDB()
	var lastActivity *time.Time
	err := db.WithContext(ctx).Model(&CatalogOfferNegotiation{}).
		Where("catalog_offer_id = ?", offerId).
		Select("MAX(created_at)").Scan(&lastActivity).Error
	if err != nil {
		return nil, err
	}
	return lastActivity, nil
}

// latestNegotiationForItem returns the most recent negotiation record for one
// side of one item, or nil.
func latestNegotiationForItem(ctx context.Context, itemId int, fromSeller bool) (*CatalogOfferNegotiation, error) {
	db := config.GetDB()
	var negotiations []*CatalogOfferNegotiation
	err := db.WithContext(ctx).
		Where("catalog_offer_item_id = ? AND offered_by_seller = ?", itemId, fromSeller).
		Order("negotiation_round DESC, created_at DESC").
		Limit(1).Find(&negotiations).Error
	if err != nil {
		return nil, err
	}
	if len(negotiations) == 0 {
		return nil, nil
	}
	return negotiations[0], nil
}
