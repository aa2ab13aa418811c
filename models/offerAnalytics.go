package models

import (
	"context"

	"github.com/stocklot/marketplace_backend/config"
	"golang.org/x/sync/errgroup"
)

type CategoryValue struct {
	Category   string  `json:"category"`
	TotalValue float64 `json:"total_value"`
}

type OfferAnalytics struct {
	TotalOffers          int64            `json:"total_offers"`
	StatusCounts         map[string]int64 `json:"status_counts"`
	TotalOfferValue      float64          `json:"total_offer_value"`
	AvgNegotiationRounds float64          `json:"avg_negotiation_rounds"`
	AvgResolutionDays    float64          `json:"avg_resolution_days"`
	AcceptanceRate       float64          `json:"acceptance_rate"`
	TopCategories        []*CategoryValue `json:"top_categories"`
}

type statusCountRow struct {
	Status string
	Count  int64
}

// GetOfferAnalytics computes the aggregate summary over the filtered offer
// set. The six underlying queries are independent and read-only, so they run
// concurrently.
func GetOfferAnalytics(ctx context.Context, filter *OfferFilter) (*OfferAnalytics, error) {
	db := config.GetDB()

	var (
		total         int64
		statusRows    []statusCountRow
		totalValue    *float64
		avgRounds     *float64
		avgResolution *float64
		topCategories []*CategoryValue
	)

	filteredOfferIds := func() interface{} {
		return filter.apply(db.WithContext(ctx).Model(&CatalogOffer{})).Select("id")
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return filter.apply(db.WithContext(groupCtx).Model(&CatalogOffer{})).Count(&total).Error
	})

	group.Go(func() error {
		return filter.apply(db.WithContext(groupCtx).Model(&CatalogOffer{})).
			Select("status, COUNT(*) AS count").
			Group("status").
			Scan(&statusRows).Error
	})

	group.Go(func() error {
		return filter.apply(db.WithContext(groupCtx).Model(&CatalogOffer{})).
			Select("SUM(total_offer_value)").
			Scan(&totalValue).Error
	})

	group.Go(func() error {
		// Average of each offer's max round, over offers that have
		// negotiations at all.
		sub := db.WithContext(groupCtx).Model(&CatalogOfferNegotiation{}).
			Where("catalog_offer_id IN (?)", filteredOfferIds()).
			Select("MAX(negotiation_round) AS max_round").
			Group("catalog_offer_id")
		return db.WithContext(groupCtx).Table("(?) AS offer_rounds", sub).
			Select("AVG(max_round)").
			Scan(&avgRounds).Error
	})

	group.Go(func() error {
		// updated_at falls back to created_at as the resolution timestamp.
		return filter.apply(db.WithContext(groupCtx).Model(&CatalogOffer{})).
			Where("status IN ?", []CatalogOfferStatus{CatalogOfferStatusAccepted, CatalogOfferStatusRejected}).
			Select("AVG(DATEDIFF(COALESCE(updated_at, created_at), created_at))").
			Scan(&avgResolution).Error
	})

	group.Go(func() error {
		return filter.apply(db.WithContext(groupCtx).Model(&CatalogOffer{})).
			Joins("LEFT JOIN catalog_listings ON catalog_listings.id = catalog_offers.catalog_listing_id").
			Select("COALESCE(NULLIF(catalog_listings.category, ''), 'UNKNOWN') AS category, SUM(catalog_offers.total_offer_value) AS total_value").
			Group("category").
			Order("total_value DESC").
			Limit(10).
			Scan(&topCategories).Error
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}

	statusCounts := make(map[string]int64, len(statusRows))
	var accepted int64
	for _, row := range statusRows {
		statusCounts[row.Status] = row.Count
		if row.Status == string(CatalogOfferStatusAccepted) {
			accepted = row.Count
		}
	}

	acceptanceRate := 0.0
	if total > 0 {
		acceptanceRate = float64(accepted) / float64(total)
	}

	analytics := &OfferAnalytics{
		TotalOffers:    total,
		StatusCounts:   statusCounts,
		AcceptanceRate: acceptanceRate,
		TopCategories:  topCategories,
	}
	if totalValue != nil {
		analytics.TotalOfferValue = *totalValue
	}
	if avgRounds != nil {
		analytics.AvgNegotiationRounds = *avgRounds
	}
	if avgResolution != nil {
		analytics.AvgResolutionDays = *avgResolution
	}
	return analytics, nil
}
