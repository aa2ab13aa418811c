package models

import (
	"log"

	"github.com/stocklot/marketplace_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&User{}, &BuyerProfile{}, &SellerProfile{},
		&Brand{}, &Product{}, &ProductVariant{},
		&CatalogListing{},
		&CatalogOffer{}, &CatalogOfferItem{}, &CatalogOfferNegotiation{},
		&OfferImportAudit{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
