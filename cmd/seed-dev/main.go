package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/stocklot/marketplace_backend/config"
	"github.com/stocklot/marketplace_backend/models"
	"github.com/stocklot/marketplace_backend/utils"
	"gorm.io/gorm"
)

// seed-dev provisions a local database with a verified buyer, a seller, a
// small catalog, and an active listing so the import pipeline can be
// exercised end to end.
func main() {
	migrate := flag.Bool("migrate", true, "Run AutoMigrate before seeding")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	if *migrate {
		models.MigrateTable()
	}

	if err := seed(db); err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("seed complete")
}

func seed(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		seller := models.User{
			PublicId:   utils.GeneratePublicId(),
			CognitoSub: "dev-seller-sub",
			Username:   "dev-seller",
			Email:      "seller@dev.local",
			FirstName:  "Dev",
			LastName:   "Seller",
		}
		if err := tx.Where("cognito_sub = ?", seller.CognitoSub).FirstOrCreate(&seller).Error; err != nil {
			return err
		}
		sellerProfile := models.SellerProfile{
			PublicId:    utils.GeneratePublicId(),
			UserId:      seller.ID,
			CompanyName: "Surplus Supply Co",
		}
		if err := tx.Where("user_id = ?", seller.ID).FirstOrCreate(&sellerProfile).Error; err != nil {
			return err
		}

		buyer := models.User{
			PublicId:   utils.GeneratePublicId(),
			CognitoSub: "dev-buyer-sub",
			Username:   "dev-buyer",
			Email:      "buyer@dev.local",
			FirstName:  "Dev",
			LastName:   "Buyer",
		}
		if err := tx.Where("cognito_sub = ?", buyer.CognitoSub).FirstOrCreate(&buyer).Error; err != nil {
			return err
		}
		buyerProfile := models.BuyerProfile{
			PublicId:           utils.GeneratePublicId(),
			UserId:             buyer.ID,
			CompanyName:        "Discount Retail LLC",
			VerificationStatus: models.VerificationStatusVerified,
			AccountLocked:      utils.NewFalse(),
		}
		if err := tx.Where("user_id = ?", buyer.ID).FirstOrCreate(&buyerProfile).Error; err != nil {
			return err
		}

		brand := models.Brand{Name: "Acme"}
		if err := tx.Where("name = ?", brand.Name).FirstOrCreate(&brand).Error; err != nil {
			return err
		}

		skus := []struct {
			sku   string
			name  string
			price string
		}{
			{"ACME-MOUSE-01", "Wireless Mouse", "24.99"},
			{"ACME-KEYB-01", "Mechanical Keyboard", "89.99"},
			{"ACME-HEAD-01", "Noise Cancelling Headset", "149.99"},
		}
		for _, item := range skus {
			product := models.Product{
				PublicId:     utils.GeneratePublicId(),
				BrandId:      brand.ID,
				Name:         item.name,
				Category:     "Electronics",
				Msrp:         decimal.RequireFromString(item.price).Mul(decimal.NewFromInt(2)),
				MsrpCurrency: "USD",
			}
			if err := tx.Where("name = ?", product.Name).FirstOrCreate(&product).Error; err != nil {
				return err
			}
			variant := models.ProductVariant{
				PublicId:   utils.GeneratePublicId(),
				ProductId:  product.ID,
				Name:       item.name + " (Standard)",
				Sku:        item.sku,
				Condition:  "NEW",
				OfferPrice: decimal.RequireFromString(item.price),
				Currency:   "USD",
			}
			if err := tx.Where("sku = ?", variant.Sku).FirstOrCreate(&variant).Error; err != nil {
				return err
			}
		}

		listing := models.CatalogListing{
			PublicId:        utils.GeneratePublicId(),
			SellerUserId:    seller.ID,
			SellerProfileId: sellerProfile.ID,
			Title:           "Acme Electronics Surplus Lot",
			Description:     "Overstock electronics, all new in box.",
			Category:        "Electronics",
			Status:          models.CatalogListingStatusActive,
		}
		if err := tx.Where("seller_user_id = ? AND title = ?", seller.ID, listing.Title).
			FirstOrCreate(&listing).Error; err != nil {
			return err
		}

		fmt.Printf("listing public id: %s\n", listing.PublicId)
		fmt.Printf("buyer cognito sub: %s\n", buyer.CognitoSub)
		return nil
	})
}
