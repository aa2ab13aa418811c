package models

import (
	"context"
	"time"

	"github.com/stocklot/marketplace_backend/config"
)

// OfferImportAudit records one spreadsheet-import attempt, success or
// failure, for support and abuse investigations.
type OfferImportAudit struct {
	ID              int               `gorm:"primary_key" json:"id"`
	BuyerUserId     int               `gorm:"index" json:"buyer_user_id"`
	ListingPublicId string            `gorm:"index;size:14" json:"listing_public_id"`
	FileKey         string            `gorm:"size:512" json:"file_key"`
	Status          ImportAuditStatus `gorm:"size:20;not null" json:"status"`
	ErrorCode       string            `gorm:"size:64" json:"error_code"`
	ExtractedRows   int               `json:"extracted_rows"`
	ValidRows       int               `json:"valid_rows"`
	OfferPublicId   string            `gorm:"size:14" json:"offer_public_id"`
	CorrelationId   string            `gorm:"size:64" json:"correlation_id"`
	CreatedAt       time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

// RecordImportAudit is best-effort: a failed audit write is logged, never
// surfaced to the caller.
func RecordImportAudit(ctx context.Context, audit *OfferImportAudit) {
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(audit).Error; err != nil {
		config.LogError(config.GetLogger(), "importAudit.go", "RecordImportAudit", "Create", audit, err)
	}
}
