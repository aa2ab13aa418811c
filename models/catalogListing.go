package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stocklot/marketplace_backend/config"
	"gorm.io/gorm"
)

type CatalogListing struct {
	ID                int                  `gorm:"primary_key" json:"id"`
	PublicId          string               `gorm:"uniqueIndex;size:14;not null" json:"public_id"`
	SellerUserId      int                  `gorm:"index;not null" json:"seller_user_id"`
	SellerProfileId   int                  `gorm:"index;not null" json:"seller_profile_id"`
	Title             string               `gorm:"size:255;not null" json:"title"`
	Description       string               `gorm:"type:text" json:"description"`
	Category          string               `gorm:"index;size:100" json:"category"`
	Status            CatalogListingStatus `gorm:"size:20;not null;default:'ACTIVE'" json:"status"`
	MinimumOrderValue decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"minimum_order_value"`
	CreatedAt         time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

const listingCacheTTL = 5 * time.Minute

func listingCacheKey(publicId string) string {
	return "catalogListing:" + publicId
}

// GetListingByPublicId resolves a public listing id, consulting redis first.
// Returns nil (no error) when no listing matches.
func GetListingByPublicId(ctx context.Context, publicId string) (*CatalogListing, error) {
	var cached CatalogListing
	exists, err := config.GetRedisObject(listingCacheKey(publicId), &cached)
	if err == nil && exists {
		return &cached, nil
	}

	db := config.GetDB()
	var listing CatalogListing
	if err := db.WithContext(ctx).Where("public_id = ?", publicId).First(&listing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if err := config.SetRedisObject(listingCacheKey(publicId), &listing, listingCacheTTL); err != nil {
		config.LogError(config.GetLogger(), "catalogListing.go", "GetListingByPublicId", "SetRedisObject", publicId, err)
	}
	return &listing, nil
}

// InvalidateListingCache drops the cached copy after a listing mutation.
func InvalidateListingCache(publicId string) error {
	return config.RemoveRedisKey(listingCacheKey(publicId))
}

func UpdateListingStatus(ctx context.Context, publicId string, status CatalogListingStatus) (*CatalogListing, error) {
	db := config.GetDB()
	var listing CatalogListing
	if err := db.WithContext(ctx).Where("public_id = ?", publicId).First(&listing).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(&listing).Update("status", status).Error; err != nil {
		return nil, err
	}
	if err := InvalidateListingCache(publicId); err != nil {
		return nil, fmt.Errorf("listing updated but cache invalidation failed: %w", err)
	}
	return &listing, nil
}
