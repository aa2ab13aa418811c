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

// CatalogOfferItem is one product-variant line within an offer. Items are
// never physically deleted: removal sets item_status=REMOVED and stamps
// removed_in_round so the audit history survives.
type CatalogOfferItem struct {
	ID                      int               `gorm:"primary_key" json:"id"`
	PublicId                string            `gorm:"uniqueIndex;size:14;not null" json:"public_id"`
	CatalogOfferId          int               `gorm:"index;not null" json:"catalog_offer_id"`
	CatalogProductId        int               `gorm:"index;not null" json:"catalog_product_id"`
	CatalogProductVariantId *int              `gorm:"index" json:"catalog_product_variant_id"`
	RequestedQuantity       int               `gorm:"not null" json:"requested_quantity"`
	BuyerOfferPrice         decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"buyer_offer_price"`
	BuyerOfferCurrency      string            `gorm:"size:3" json:"buyer_offer_currency"`
	SellerOfferPrice        *decimal.Decimal  `gorm:"type:decimal(20,4)" json:"seller_offer_price"`
	SellerOfferCurrency     string            `gorm:"size:3" json:"seller_offer_currency"`
	NegotiationStatus       NegotiationStatus `gorm:"size:20;not null;default:'PENDING'" json:"negotiation_status"`
	ItemStatus              OfferItemStatus   `gorm:"size:20;not null;default:'ACTIVE'" json:"item_status"`
	ItemVersion             int               `gorm:"not null;default:1" json:"item_version"`
	AddedInRound            int               `gorm:"not null;default:1" json:"added_in_round"`
	RemovedInRound          *int              `json:"removed_in_round"`
	CreatedAt               time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time         `gorm:"autoUpdateTime" json:"updated_at"`

	Variant *ProductVariant `gorm:"foreignKey:CatalogProductVariantId" json:"variant,omitempty"`
}

// EffectivePrice is the price that currently stands for the item: the
// seller's latest counter when present, else the buyer's offer.
func (item *CatalogOfferItem) EffectivePrice() decimal.Decimal {
	if item.SellerOfferPrice != nil {
		return *item.SellerOfferPrice
	}
	return item.BuyerOfferPrice
}

// GetOfferItemByPublicId applies the narrow two-check item gate: the item
// must belong to this specific offer, and must not be REMOVED.
func GetOfferItemByPublicId(ctx context.Context, offerId int, itemPublicId string) utils.Result[*CatalogOfferItem] {
	db := config.GetDB()
	var item CatalogOfferItem
	err := db.WithContext(ctx).
		Where("catalog_offer_id = ? AND public_id = ?", offerId, itemPublicId).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.FailCode[*CatalogOfferItem](utils.ErrCodeItemNotFound, "offer item not found in this offer")
		}
		return utils.Fail[*CatalogOfferItem](utils.NormalizeDBError(err))
	}
	if item.ItemStatus == OfferItemStatusRemoved {
		return utils.Fail[*CatalogOfferItem](utils.NewAppErrorWithDetails(
			utils.ErrCodeItemNotModifiable,
			"offer item has been removed and can no longer be modified",
			map[string]any{"item_public_id": itemPublicId},
		))
	}
	return utils.Ok(&item)
}

// CheckProductInOffer prevents duplicate lines: a variant already present and
// non-removed blocks re-addition, and a bare product (no variant specified)
// blocks re-adding the same product without a variant.
func CheckProductInOffer(ctx context.Context, offerId int, productId int, variantId *int) utils.Result[bool] {
	db := config.GetDB()
	var count int64

	dbCtx := db.WithContext(ctx).Model(&CatalogOfferItem{}).
		Where("catalog_offer_id = ? AND catalog_product_id = ? AND item_status <> ?",
			offerId, productId, OfferItemStatusRemoved)
	if variantId != nil {
		dbCtx = dbCtx.Where("catalog_product_variant_id = ?", *variantId)
	} else {
		dbCtx = dbCtx.Where("catalog_product_variant_id IS NULL")
	}
	if err := dbCtx.Count(&count).Error; err != nil {
		return utils.Fail[bool](utils.NormalizeDBError(err))
	}

	if count > 0 {
		if variantId != nil {
			return utils.FailCode[bool](utils.ErrCodeVariantAlreadyInOffer, "this variant is already part of the offer")
		}
		return utils.FailCode[bool](utils.ErrCodeProductAlreadyInOffer, "this product is already part of the offer")
	}
	return utils.Ok(false)
}
