package workflow

import (
	"context"
	"testing"

	"github.com/stocklot/marketplace_backend/importer"
	"github.com/stocklot/marketplace_backend/utils"
)

func TestImportOfferFromFile_InputGuards(t *testing.T) {
	cases := []struct {
		name         string
		input        *ImportOfferInput
		expectedCode string
	}{
		{
			"missing identity",
			&ImportOfferInput{ListingPublicId: "abcdefgh234567", FileKey: "offers/a.xlsx"},
			utils.ErrCodeCognitoIdRequired,
		},
		{
			"missing listing id",
			&ImportOfferInput{CognitoSub: "sub-1", FileKey: "offers/a.xlsx"},
			utils.ErrCodeListingPublicIdRequired,
		},
		{
			"missing file key",
			&ImportOfferInput{CognitoSub: "sub-1", ListingPublicId: "abcdefgh234567"},
			utils.ErrCodeOfferFileS3KeyRequired,
		},
		{
			"blank identity",
			&ImportOfferInput{CognitoSub: "   ", ListingPublicId: "abcdefgh234567", FileKey: "offers/a.xlsx"},
			utils.ErrCodeCognitoIdRequired,
		},
	}
	for _, tc := range cases {
		result := ImportOfferFromFile(context.Background(), tc.input)
		if result.Success {
			t.Fatalf("%s: expected failure", tc.name)
		}
		if result.Error == nil || result.Error.Code != tc.expectedCode {
			t.Fatalf("%s: expected code %s, got %+v", tc.name, tc.expectedCode, result.Error)
		}
	}
}

func TestValidOfferItems(t *testing.T) {
	items := []*importer.ExtractedOfferItem{
		{Sku: "A", HasValidOffer: true},
		{Sku: "B", HasValidOffer: false},
		nil,
		{Sku: "C", HasValidOffer: true},
	}
	valid := validOfferItems(items)
	if len(valid) != 2 {
		t.Fatalf("expected 2 valid items, got %d", len(valid))
	}
	if valid[0].Sku != "A" || valid[1].Sku != "C" {
		t.Fatalf("unexpected items: %v %v", valid[0].Sku, valid[1].Sku)
	}
}

func TestOfferCurrency(t *testing.T) {
	parsed := &importer.ParseResult{}
	if got := offerCurrency(parsed); got != defaultOfferCurrency {
		t.Fatalf("expected %s default, got %s", defaultOfferCurrency, got)
	}
	parsed.CurrencySummary.PrimaryCurrency = "EUR"
	if got := offerCurrency(parsed); got != "EUR" {
		t.Fatalf("expected EUR, got %s", got)
	}
}
