package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stocklot/marketplace_backend/config"
	"github.com/stocklot/marketplace_backend/utils"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// OfferDetails is the denormalized read-model for one offer. Internal ids
// stay on the struct for server-side use; SanitizeOfferDetails strips them
// before anything reaches a public API consumer.
type OfferDetails struct {
	CatalogOfferId     int                `json:"catalog_offer_id"`
	PublicId           string             `json:"public_id"`
	CatalogListingId   int                `json:"catalog_listing_id"`
	ListingPublicId    string             `json:"listing_public_id"`
	ListingTitle       string             `json:"listing_title"`
	ListingDescription string             `json:"listing_description"`
	SellerUserId       int                `json:"seller_user_id"`
	SellerProfileId    int                `json:"seller_profile_id"`
	SellerDisplayName  string             `json:"seller_display_name"`
	BuyerUserId        int                `json:"buyer_user_id"`
	BuyerProfileId     int                `json:"buyer_profile_id"`
	BuyerDisplayName   string             `json:"buyer_display_name"`
	Status             CatalogOfferStatus `json:"status"`
	TotalOfferValue    float64            `json:"total_offer_value"`
	Currency           string             `json:"currency"`
	CurrentRound       int                `json:"current_round"`
	LastActivity       *time.Time         `json:"last_activity,omitempty"`
	ExpiresAt          *time.Time         `json:"expires_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
	Items              []*OfferItemDetail `json:"items"`
}

type OfferItemDetail struct {
	PublicId           string              `json:"public_id"`
	VariantPublicId    string              `json:"variant_public_id,omitempty"`
	VariantName        string              `json:"variant_name,omitempty"`
	Sku                string              `json:"sku,omitempty"`
	ProductName        string              `json:"product_name"`
	BrandName          string              `json:"brand_name,omitempty"`
	Category           string              `json:"category,omitempty"`
	RequestedQuantity  int                 `json:"requested_quantity"`
	BuyerOfferPrice    float64             `json:"buyer_offer_price"`
	BuyerOfferCurrency string              `json:"buyer_offer_currency"`
	SellerOfferPrice   *float64            `json:"seller_offer_price,omitempty"`
	NegotiationStatus  NegotiationStatus   `json:"negotiation_status"`
	ItemStatus         OfferItemStatus     `json:"item_status"`
	ItemVersion        int                 `json:"item_version"`
	AddedInRound       int                 `json:"added_in_round"`
	CurrentNegotiation *CurrentNegotiation `json:"current_negotiation,omitempty"`
}

// GetOfferDetails assembles the full read-model for one offer. The argument
// may be an internal id or a 14-character public id. Returns nil (no error)
// when no offer matches. A missing variant relation on a variant-bearing
// item is a data-integrity fault and fails the whole read.
func GetOfferDetails(ctx context.Context, idOrPublicId string) (*OfferDetails, error) {
	db := config.GetDB()

	var offer CatalogOffer
	err := offerByIdOrPublicId(ctx, db, idOrPublicId).
		Preload("Listing").
		First(&offer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var sellerUser, buyerUser User
	if err := db.WithContext(ctx).Preload("SellerProfile").Where("id = ?", offer.SellerUserId).First(&sellerUser).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Preload("BuyerProfile").Where("id = ?", offer.BuyerUserId).First(&buyerUser).Error; err != nil {
		return nil, err
	}

	var items []*CatalogOfferItem
	err = db.WithContext(ctx).
		Preload("Variant").Preload("Variant.Product").Preload("Variant.Product.Brand").
		Where("catalog_offer_id = ? AND item_status <> ?", offer.ID, OfferItemStatusRemoved).
		Order("added_in_round ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}

	currentRound, err := GetCurrentRound(ctx, offer.ID)
	if err != nil {
		return nil, err
	}
	lastActivity, err := GetLastActivity(ctx, offer.ID)
	if err != nil {
		return nil, err
	}

	itemDetails := make([]*OfferItemDetail, 0, len(items))
	now := time.Now()
	for _, item := range items {
		detail, err := buildOfferItemDetail(ctx, item, now)
		if err != nil {
			return nil, err
		}
		itemDetails = append(itemDetails, detail)
	}

	listingTitle, listingDescription, listingPublicId := "", "", ""
	if offer.Listing != nil {
		listingTitle = offer.Listing.Title
		listingDescription = offer.Listing.Description
		listingPublicId = offer.Listing.PublicId
	}

	totalValue, _ := offer.TotalOfferValue.Float64()
	return &OfferDetails{
		CatalogOfferId:     offer.ID,
		PublicId:           offer.PublicId,
		CatalogListingId:   offer.CatalogListingId,
		ListingPublicId:    listingPublicId,
		ListingTitle:       listingTitle,
		ListingDescription: listingDescription,
		SellerUserId:       offer.SellerUserId,
		SellerProfileId:    offer.SellerProfileId,
		SellerDisplayName:  sellerUser.SellerDisplayName(),
		BuyerUserId:        offer.BuyerUserId,
		BuyerProfileId:     offer.BuyerProfileId,
		BuyerDisplayName:   buyerUser.BuyerDisplayName(),
		Status:             offer.Status,
		TotalOfferValue:    totalValue,
		Currency:           offer.Currency,
		CurrentRound:       currentRound,
		LastActivity:       lastActivity,
		ExpiresAt:          offer.ExpiresAt,
		CreatedAt:          offer.CreatedAt,
		UpdatedAt:          offer.UpdatedAt,
		Items:              itemDetails,
	}, nil
}

func buildOfferItemDetail(ctx context.Context, item *CatalogOfferItem, now time.Time) (*OfferItemDetail, error) {
	if item.CatalogProductVariantId != nil && item.Variant == nil {
		return nil, fmt.Errorf("%w: offer item %s references variant %d which does not exist",
			utils.ErrorDataIntegrity, item.PublicId, *item.CatalogProductVariantId)
	}

	sellerNeg, err := latestNegotiationForItem(ctx, item.ID, true)
	if err != nil {
		return nil, err
	}
	buyerNeg, err := latestNegotiationForItem(ctx, item.ID, false)
	if err != nil {
		return nil, err
	}

	detail := &OfferItemDetail{
		PublicId:           item.PublicId,
		RequestedQuantity:  item.RequestedQuantity,
		BuyerOfferCurrency: item.BuyerOfferCurrency,
		NegotiationStatus:  item.NegotiationStatus,
		ItemStatus:         item.ItemStatus,
		ItemVersion:        item.ItemVersion,
		AddedInRound:       item.AddedInRound,
		CurrentNegotiation: ResolveCurrentNegotiation(sellerNeg, buyerNeg, now),
	}
	detail.BuyerOfferPrice, _ = item.BuyerOfferPrice.Float64()
	if item.SellerOfferPrice != nil {
		price, _ := item.SellerOfferPrice.Float64()
		detail.SellerOfferPrice = &price
	}

	if item.Variant != nil {
		detail.VariantPublicId = item.Variant.PublicId
		detail.VariantName = item.Variant.Name
		detail.Sku = item.Variant.Sku
		if item.Variant.Product != nil {
			detail.ProductName = item.Variant.Product.Name
			detail.Category = item.Variant.Product.Category
			if item.Variant.Product.Brand != nil {
				detail.BrandName = item.Variant.Product.Brand.Name
			}
		}
	} else {
		// Bare-product line (whole-product offer, no variant specified).
		product, err := utils.FetchModel[Product](ctx, item.CatalogProductId, "Brand")
		if err != nil {
			return nil, fmt.Errorf("%w: offer item %s references product %d which does not exist",
				utils.ErrorDataIntegrity, item.PublicId, item.CatalogProductId)
		}
		detail.ProductName = product.Name
		detail.Category = product.Category
		if product.Brand != nil {
			detail.BrandName = product.Brand.Name
		}
	}

	return detail, nil
}

// sanitizedOfferKeys are internal identifiers that must never reach a
// public-facing consumer.
var sanitizedOfferKeys = []string{
	"catalog_offer_id",
	"catalog_listing_id",
	"seller_user_id",
	"seller_profile_id",
	"buyer_user_id",
	"buyer_profile_id",
}

// SanitizeOfferDetails projects the read-model into a public-safe map with
// every internal identifier removed.
func SanitizeOfferDetails(details *OfferDetails) (map[string]any, error) {
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, err
	}
	var sanitized map[string]any
	if err := json.Unmarshal(raw, &sanitized); err != nil {
		return nil, err
	}
	for _, key := range sanitizedOfferKeys {
		delete(sanitized, key)
	}
	return sanitized, nil
}

// OfferFilter enumerates the supported listOffers predicates; each optional,
// AND-combined. Deterministic mapping instead of free-form where maps.
type OfferFilter struct {
	SellerUserId *int
	BuyerUserId  *int
	ListingId    *int
	Status       *CatalogOfferStatus
}

// apply maps each set filter field onto its predicate.
func (f *OfferFilter) apply(dbCtx *gorm.DB) *gorm.DB {
	if f == nil {
		return dbCtx
	}
	if f.SellerUserId != nil {
		dbCtx = dbCtx.Where("seller_user_id = ?", *f.SellerUserId)
	}
	if f.BuyerUserId != nil {
		dbCtx = dbCtx.Where("buyer_user_id = ?", *f.BuyerUserId)
	}
	if f.ListingId != nil {
		dbCtx = dbCtx.Where("catalog_listing_id = ?", *f.ListingId)
	}
	if f.Status != nil {
		dbCtx = dbCtx.Where("status = ?", *f.Status)
	}
	return dbCtx
}

// OfferSummary is one row of the paged offer list.
type OfferSummary struct {
	PublicId        string             `json:"public_id"`
	Status          CatalogOfferStatus `json:"status"`
	TotalOfferValue float64            `json:"total_offer_value"`
	Currency        string             `json:"currency"`
	CurrentRound    int                `json:"current_round"`
	LastActivity    *time.Time         `json:"last_activity,omitempty"`
	ExpiresAt       *time.Time         `json:"expires_at,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

type OfferPage struct {
	Offers     []*OfferSummary `json:"offers"`
	Pagination *Pagination     `json:"pagination"`
}

// ListOffers runs the count query and the page query concurrently; a benign
// drift between total and the returned page is accepted. Per-offer
// round/activity lookups fan out concurrently as well.
func ListOffers(ctx context.Context, filter *OfferFilter, page int, limit int) (*OfferPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}

	db := config.GetDB()

	var total int64
	var offers []*CatalogOffer

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return filter.apply(db.WithContext(groupCtx).Model(&CatalogOffer{})).Count(&total).Error
	})
	group.Go(func() error {
		return filter.apply(db.WithContext(groupCtx).Model(&CatalogOffer{})).
			Order("created_at DESC").
			Offset((page - 1) * limit).
			Limit(limit).
			Find(&offers).Error
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	summaries := make([]*OfferSummary, len(offers))
	enrich, enrichCtx := errgroup.WithContext(ctx)
	for i, offer := range offers {
		i, offer := i, offer
		enrich.Go(func() error {
			currentRound, err := GetCurrentRound(enrichCtx, offer.ID)
			if err != nil {
				return err
			}
			lastActivity, err := GetLastActivity(enrichCtx, offer.ID)
			if err != nil {
				return err
			}
			totalValue, _ := offer.TotalOfferValue.Float64()
			summaries[i] = &OfferSummary{
				PublicId:        offer.PublicId,
				Status:          offer.Status,
				TotalOfferValue: totalValue,
				Currency:        offer.Currency,
				CurrentRound:    currentRound,
				LastActivity:    lastActivity,
				ExpiresAt:       offer.ExpiresAt,
				CreatedAt:       offer.CreatedAt,
			}
			return nil
		})
	}
	if err := enrich.Wait(); err != nil {
		return nil, err
	}

	return &OfferPage{
		Offers:     summaries,
		Pagination: NewPagination(total, page, limit),
	}, nil
}
