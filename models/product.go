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

type Brand struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"index;size:255;not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Product struct {
	ID             int             `gorm:"primary_key" json:"id"`
	PublicId       string          `gorm:"uniqueIndex;size:14;not null" json:"public_id"`
	BrandId        int             `gorm:"index" json:"brand_id"`
	Name           string          `gorm:"size:255;not null" json:"name"`
	Category       string          `gorm:"index;size:100" json:"category"`
	Subcategory    string          `gorm:"size:100" json:"subcategory"`
	Identifier     string          `gorm:"index;size:100" json:"identifier"`
	IdentifierType string          `gorm:"size:20" json:"identifier_type"`
	Msrp           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"msrp"`
	MsrpCurrency   string          `gorm:"size:3" json:"msrp_currency"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	Brand *Brand `json:"brand,omitempty"`
}

type ProductVariant struct {
	ID         int             `gorm:"primary_key" json:"id"`
	PublicId   string          `gorm:"uniqueIndex;size:14;not null" json:"public_id"`
	ProductId  int             `gorm:"index;not null" json:"product_id"`
	Name       string          `gorm:"size:255;not null" json:"name"`
	Sku        string          `gorm:"index;size:100;not null" json:"sku"`
	Packaging  string          `gorm:"size:100" json:"packaging"`
	Condition  string          `gorm:"size:100" json:"condition"`
	OfferPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"offer_price"`
	Currency   string          `gorm:"size:3" json:"currency"`
	IsActive   *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	Product *Product `json:"product,omitempty"`
}

// FindVariantBySku resolves a spreadsheet SKU against a listing's catalog.
// Returns nil when the SKU does not exist for the seller.
func FindVariantBySku(ctx context.Context, sku string) (*ProductVariant, error) {
	db := config.GetDB()
	var variant ProductVariant
	err := db.WithContext(ctx).Preload("Product").Preload("Product.Brand").
		Where("sku = ?", sku).First(&variant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &variant, nil
}

func GetProductVariant(ctx context.Context, id int) (*ProductVariant, error) {
	return utils.FetchModel[ProductVariant](ctx, id, "Product", "Product.Brand")
}
