package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stocklot/marketplace_backend/config"
	"github.com/stocklot/marketplace_backend/utils"
	"gorm.io/gorm"
)

// AcceptCatalogOffer moves an offer to ACCEPTED. Status change and item
// stamping run in one transaction so a partial application cannot be
// observed.
func AcceptCatalogOffer(ctx context.Context, offerPublicId string, callerUserId int) utils.Result[*CatalogOffer] {
	check := ValidateOfferModifiable(ctx, offerPublicId, callerUserId, false)
	if !check.Success {
		return check
	}
	offer := check.Data

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&CatalogOffer{}).Where("id = ?", offer.ID).
			Update("status", CatalogOfferStatusAccepted).Error; err != nil {
			return err
		}
		if err := tx.Model(&CatalogOfferItem{}).
			Where("catalog_offer_id = ? AND item_status = ?", offer.ID, OfferItemStatusActive).
			Update("negotiation_status", NegotiationStatusAccepted).Error; err != nil {
			return err
		}
		now := time.Now()
		return tx.Model(&CatalogOfferNegotiation{}).
			Where("catalog_offer_id = ? AND responded_at IS NULL", offer.ID).
			Update("responded_at", now).Error
	})
	if err != nil {
		return dbFailure[*CatalogOffer](err)
	}

	offer.Status = CatalogOfferStatusAccepted
	return utils.Ok(offer)
}

// RejectCatalogOffer moves an offer to REJECTED.
func RejectCatalogOffer(ctx context.Context, offerPublicId string, callerUserId int) utils.Result[*CatalogOffer] {
	check := ValidateOfferModifiable(ctx, offerPublicId, callerUserId, false)
	if !check.Success {
		return check
	}
	offer := check.Data

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&CatalogOffer{}).Where("id = ?", offer.ID).
			Update("status", CatalogOfferStatusRejected).Error; err != nil {
			return err
		}
		return tx.Model(&CatalogOfferItem{}).
			Where("catalog_offer_id = ? AND item_status = ?", offer.ID, OfferItemStatusActive).
			Update("negotiation_status", NegotiationStatusRejected).Error
	})
	if err != nil {
		return dbFailure[*CatalogOffer](err)
	}

	offer.Status = CatalogOfferStatusRejected
	return utils.Ok(offer)
}

type CounterOfferInput struct {
	OfferedPrice    decimal.Decimal `json:"offered_price"`
	OfferedQuantity int             `json:"offered_quantity"`
	Message         string          `json:"message"`
	ExpectedVersion int             `json:"expected_version"`
}

// CounterOfferItem records a seller counter on one item: a new negotiation
// round is appended, the item's seller price is updated, and item_version is
// incremented. Callers detect stale writes by sending the version they last
// read.
func CounterOfferItem(ctx context.Context, offerPublicId string, itemPublicId string, callerUserId int, input *CounterOfferInput) utils.Result[*CatalogOfferItem] {
	check := ValidateOfferModifiable(ctx, offerPublicId, callerUserId, true)
	if !check.Success {
		return utils.Fail[*CatalogOfferItem](check.Error)
	}
	offer := check.Data

	itemCheck := GetOfferItemByPublicId(ctx, offer.ID, itemPublicId)
	if !itemCheck.Success {
		return itemCheck
	}
	item := itemCheck.Data

	if input.ExpectedVersion > 0 && input.ExpectedVersion != item.ItemVersion {
		return utils.Fail[*CatalogOfferItem](utils.NewAppErrorWithDetails(
			utils.ErrCodeItemNotModifiable,
			"item was modified by another request; re-read and retry",
			map[string]any{"expected_version": input.ExpectedVersion, "current_version": item.ItemVersion},
		))
	}

	currentRound, err := GetCurrentRound(ctx, offer.ID)
	if err != nil {
		return dbFailure[*CatalogOfferItem](err)
	}
	nextRound := currentRound + 1

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		price := input.OfferedPrice
		qty := input.OfferedQuantity
		negotiation := CatalogOfferNegotiation{
			PublicId:           utils.GeneratePublicId(),
			CatalogOfferId:     offer.ID,
			CatalogOfferItemId: item.ID,
			NegotiationRound:   nextRound,
			ActionType:         NegotiationActionCounterOffer,
			OfferedByUserId:    callerUserId,
			OfferedBySeller:    true,
			OfferedPrice:       &price,
			OfferedQuantity:    &qty,
			Currency:           item.BuyerOfferCurrency,
			Message:            input.Message,
		}
		if err := tx.Create(&negotiation).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"seller_offer_price":    input.OfferedPrice,
			"seller_offer_currency": item.BuyerOfferCurrency,
			"negotiation_status":    NegotiationStatusCountered,
			"item_version":          gorm.Expr("item_version + 1"),
		}
		if err := tx.Model(&CatalogOfferItem{}).Where("id = ?", item.ID).
			Updates(updates).Error; err != nil {
			return err
		}

		if err := tx.Model(&CatalogOffer{}).Where("id = ?", offer.ID).
			Update("status", CatalogOfferStatusNegotiating).Error; err != nil {
			return err
		}

		return recomputeOfferTotal(tx, offer.ID)
	})
	if err != nil {
		return dbFailure[*CatalogOfferItem](err)
	}

	refreshed, err := utils.FetchModel[CatalogOfferItem](ctx, item.ID)
	if err != nil {
		return dbFailure[*CatalogOfferItem](err)
	}
	return utils.Ok(refreshed)
}

// RemoveOfferItem soft-deletes one item: item_status becomes REMOVED and the
// round of removal is recorded. The row survives for the audit history.
func RemoveOfferItem(ctx context.Context, offerPublicId string, itemPublicId string, callerUserId int) utils.Result[*CatalogOfferItem] {
	check := ValidateOfferModifiable(ctx, offerPublicId, callerUserId, true)
	if !check.Success {
		return utils.Fail[*CatalogOfferItem](check.Error)
	}
	offer := check.Data

	itemCheck := GetOfferItemByPublicId(ctx, offer.ID, itemPublicId)
	if !itemCheck.Success {
		return itemCheck
	}
	item := itemCheck.Data

	currentRound, err := GetCurrentRound(ctx, offer.ID)
	if err != nil {
		return dbFailure[*CatalogOfferItem](err)
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"item_status":      OfferItemStatusRemoved,
			"removed_in_round": currentRound,
			"item_version":     gorm.Expr("item_version + 1"),
		}
		if err := tx.Model(&CatalogOfferItem{}).Where("id = ?", item.ID).
			Updates(updates).Error; err != nil {
			return err
		}
		return recomputeOfferTotal(tx, offer.ID)
	})
	if err != nil {
		return dbFailure[*CatalogOfferItem](err)
	}

	refreshed, err := utils.FetchModel[CatalogOfferItem](ctx, item.ID)
	if err != nil {
		return dbFailure[*CatalogOfferItem](err)
	}
	return utils.Ok(refreshed)
}
