package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stocklot/marketplace_backend/config"
	"github.com/stocklot/marketplace_backend/utils"
	"gorm.io/gorm"
)

// CatalogOffer is one buyer's negotiation session against one listing.
type CatalogOffer struct {
	ID               int                `gorm:"primary_key" json:"id"`
	PublicId         string             `gorm:"uniqueIndex;size:14;not null" json:"public_id"`
	CatalogListingId int                `gorm:"index;not null" json:"catalog_listing_id"`
	SellerUserId     int                `gorm:"index;not null" json:"seller_user_id"`
	SellerProfileId  int                `gorm:"index;not null" json:"seller_profile_id"`
	BuyerUserId      int                `gorm:"index;not null" json:"buyer_user_id"`
	BuyerProfileId   int                `gorm:"index;not null" json:"buyer_profile_id"`
	Status           CatalogOfferStatus `gorm:"size:20;not null;default:'ACTIVE'" json:"status"`
	TotalOfferValue  decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"total_offer_value"`
	Currency         string             `gorm:"size:3" json:"currency"`
	ExpiresAt        *time.Time         `json:"expires_at"`
	CreatedAt        time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time          `gorm:"autoUpdateTime" json:"updated_at"`

	Listing *CatalogListing     `gorm:"foreignKey:CatalogListingId" json:"listing,omitempty"`
	Items   []*CatalogOfferItem `gorm:"foreignKey:CatalogOfferId" json:"items,omitempty"`
}

// NewCatalogOfferItem is one line of a to-be-created offer, already resolved
// against the seller's catalog.
type NewCatalogOfferItem struct {
	ProductId int
	VariantId *int
	Quantity  int
	UnitPrice decimal.Decimal
	Currency  string
}

type NewCatalogOffer struct {
	ListingId       int
	SellerUserId    int
	SellerProfileId int
	BuyerUserId     int
	BuyerProfileId  int
	Currency        string
	ExpiresAt       *time.Time
	Items           []*NewCatalogOfferItem
}

// offerByIdOrPublicId disambiguates by string length only: public ids are a
// fixed 14 characters, anything else is treated as an internal id.
func offerByIdOrPublicId(ctx context.Context, db *gorm.DB, idOrPublicId string) *gorm.DB {
	if utils.IsPublicId(idOrPublicId) {
		return db.WithContext(ctx).Where("public_id = ?", idOrPublicId)
	}
	return db.WithContext(ctx).Where("id = ?", idOrPublicId)
}

// GetOfferByPublicId returns nil (no error) when no offer matches.
func GetOfferByPublicId(ctx context.Context, publicId string) (*CatalogOffer, error) {
	db := config.GetDB()
	var offer CatalogOffer
	err := db.WithContext(ctx).Preload("Listing").Where("public_id = ?", publicId).First(&offer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &offer, nil
}

// CreateCatalogOffer persists the offer, its round-1 items, and the buyer's
// initial negotiations in one transaction. Total value is the sum over items
// of quantity times price.
func CreateCatalogOffer(ctx context.Context, input *NewCatalogOffer) (*CatalogOffer, error) {
	if len(input.Items) == 0 {
		return nil, errors.New("an offer requires at least one item")
	}

	total := decimal.Zero
	for _, line := range input.Items {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	offer := CatalogOffer{
		PublicId:         utils.GeneratePublicId(),
		CatalogListingId: input.ListingId,
		SellerUserId:     input.SellerUserId,
		SellerProfileId:  input.SellerProfileId,
		BuyerUserId:      input.BuyerUserId,
		BuyerProfileId:   input.BuyerProfileId,
		Status:           CatalogOfferStatusActive,
		TotalOfferValue:  total,
		Currency:         input.Currency,
		ExpiresAt:        input.ExpiresAt,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&offer).Error; err != nil {
			return err
		}
		for _, line := range input.Items {
			item := CatalogOfferItem{
				PublicId:                utils.GeneratePublicId(),
				CatalogOfferId:          offer.ID,
				CatalogProductId:        line.ProductId,
				CatalogProductVariantId: line.VariantId,
				RequestedQuantity:       line.Quantity,
				BuyerOfferPrice:         line.UnitPrice,
				BuyerOfferCurrency:      line.Currency,
				NegotiationStatus:       NegotiationStatusPending,
				ItemStatus:              OfferItemStatusActive,
				ItemVersion:             1,
				AddedInRound:            1,
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}

			price := line.UnitPrice
			qty := line.Quantity
			negotiation := CatalogOfferNegotiation{
				PublicId:           utils.GeneratePublicId(),
				CatalogOfferId:     offer.ID,
				CatalogOfferItemId: item.ID,
				NegotiationRound:   1,
				ActionType:         NegotiationActionOffer,
				OfferedByUserId:    input.BuyerUserId,
				OfferedBySeller:    false,
				OfferedPrice:       &price,
				OfferedQuantity:    &qty,
				Currency:           line.Currency,
			}
			if err := tx.Create(&negotiation).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

// recomputeOfferTotal re-derives total_offer_value as the sum of active
// items' effective price times quantity. Runs inside the caller's tx.
func recomputeOfferTotal(tx *gorm.DB, offerId int) error {
	var items []*CatalogOfferItem
	if err := tx.Where("catalog_offer_id = ? AND item_status = ?", offerId, OfferItemStatusActive).
		Find(&items).Error; err != nil {
		return err
	}
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.EffectivePrice().Mul(decimal.NewFromInt(int64(item.RequestedQuantity))))
	}
	return tx.Model(&CatalogOffer{}).Where("id = ?", offerId).
		Update("total_offer_value", total).Error
}

// FindActiveOfferForBuyer returns an existing ACTIVE or NEGOTIATING offer
// this buyer already holds on the listing, or nil.
func FindActiveOfferForBuyer(ctx context.Context, listingId int, buyerUserId int) (*CatalogOffer, error) {
	db := config.GetDB()
	var offer CatalogOffer
	err := db.WithContext(ctx).
		Where("catalog_listing_id = ? AND buyer_user_id = ? AND status IN ?",
			listingId, buyerUserId, ModifiableOfferStatuses).
		First(&offer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &offer, nil
}

// ExpireStaleOffers transitions ACTIVE/NEGOTIATING offers whose expiry has
// passed to EXPIRED. Returns the number of offers expired.
func ExpireStaleOffers(ctx context.Context, now time.Time) (int64, error) {
	db := config.GetDB()
	result := db.WithContext(ctx).Model(&CatalogOffer{}).
		Where("status IN ? AND expires_at IS NOT NULL AND expires_at < ?", ModifiableOfferStatuses, now).
		Update("status", CatalogOfferStatusExpired)
	return result.RowsAffected, result.Error
}
