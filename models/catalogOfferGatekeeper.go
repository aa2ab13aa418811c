package models

import (
	"context"

	"github.com/stocklot/marketplace_backend/config"
	"github.com/stocklot/marketplace_backend/utils"
)

// dbFailure normalizes an unexpected persistence failure during a guard
// check. The raw message travels in details, never as the message itself.
func dbFailure[T any](err error) utils.Result[T] {
	return utils.Fail[T](utils.NewAppErrorWithDetails(
		utils.ErrCodeDatabaseError,
		"unexpected database error",
		map[string]any{"cause": err.Error()},
	))
}

// ValidateOfferModifiable runs the guard sequence every seller-side mutation
// shares, in fixed order; the first failing check's error is returned and
// later checks are not evaluated. requireListingActive adds the
// parent-listing check used by the entry points that modify items.
func ValidateOfferModifiable(ctx context.Context, offerPublicId string, callerUserId int, requireListingActive bool) utils.Result[*CatalogOffer] {

	// 1. offer exists
	offer, err := GetOfferByPublicId(ctx, offerPublicId)
	if err != nil {
		return dbFailure[*CatalogOffer](err)
	}
	if offer == nil {
		return utils.FailCode[*CatalogOffer](utils.ErrCodeCatalogOfferNotFound, "catalog offer not found")
	}

	// 2. caller is the seller
	if offer.SellerUserId != callerUserId {
		return utils.FailCode[*CatalogOffer](utils.ErrCodeUnauthorizedSeller, "only the listing's seller may modify this offer")
	}

	// 3. offer is in a modifiable status
	modifiable := false
	for _, status := range ModifiableOfferStatuses {
		if offer.Status == status {
			modifiable = true
			break
		}
	}
	if !modifiable {
		return utils.Fail[*CatalogOffer](utils.NewAppErrorWithDetails(
			utils.ErrCodeInvalidOfferStatus,
			"offer is not in a modifiable status",
			map[string]any{
				"current_status":   offer.Status,
				"allowed_statuses": ModifiableOfferStatuses,
			},
		))
	}

	// 4. parent listing still active (item-modifying entry points only)
	if requireListingActive {
		if offer.Listing == nil || offer.Listing.Status != CatalogListingStatusActive {
			return utils.FailCode[*CatalogOffer](utils.ErrCodeCatalogListingNotActive, "the parent catalog listing is not active")
		}
	}

	// 5. at least one active item
	db := config.GetDB()
	var activeItems int64
	err = db.WithContext(ctx).Model(&CatalogOfferItem{}).
		Where("catalog_offer_id = ? AND item_status = ?", offer.ID, OfferItemStatusActive).
		Count(&activeItems).Error
	if err != nil {
		return dbFailure[*CatalogOffer](err)
	}
	if activeItems == 0 {
		return utils.FailCode[*CatalogOffer](utils.ErrCodeNoActiveItems, "offer has no active items")
	}

	return utils.Ok(offer)
}
