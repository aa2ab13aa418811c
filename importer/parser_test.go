package importer

import (
	"math"
	"testing"

	"github.com/xuri/excelize/v2"
)

func workbookBytes(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cellName, &row); err != nil {
			t.Fatalf("set row %d: %v", i+1, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestParseOfferSheet_ExtractsItemsAndValidity(t *testing.T) {
	data := workbookBytes(t, [][]interface{}{
		{"Catalog Export"},
		{"SKU", "Product Name", "Brand", "Selected Qty", "Price/Unit", "MSRP"},
		{"", "", "", "", "", ""},
		{"SKU-1", "Wireless Mouse", "Logi", "10", "$12.50", "$24.99"},
		{"SKU-2", "Keyboard", "Logi", "0", "$45.00", ""},
		{"", "row without sku is skipped", "", "5", "$1.00", ""},
		{"SKU-3", "Headset", "Sony", "3", "", ""},
	})

	result := ParseOfferSheet(data)
	if !result.Success {
		t.Fatalf("expected success, errors: %v", result.Errors)
	}
	if len(result.ExtractedItems) != 3 {
		t.Fatalf("expected 3 items, got %d", len(result.ExtractedItems))
	}

	first := result.ExtractedItems[0]
	if first.Sku != "SKU-1" || first.ProductName != "Wireless Mouse" {
		t.Fatalf("unexpected first item: %+v", first)
	}
	if first.RowNumber != 4 {
		t.Fatalf("expected 1-based row 4, got %d", first.RowNumber)
	}
	if !first.HasValidOffer {
		t.Fatal("qty 10 at $12.50 must be a valid offer")
	}
	if result.ExtractedItems[1].HasValidOffer {
		t.Fatal("zero quantity must not be a valid offer")
	}
	if result.ExtractedItems[2].HasValidOffer {
		t.Fatal("missing price must not be a valid offer")
	}

	if result.CurrencySummary.PrimaryCurrency != "USD" {
		t.Fatalf("expected USD primary, got %q", result.CurrencySummary.PrimaryCurrency)
	}
	if !result.CurrencySummary.IsConsistent {
		t.Fatal("single-currency sheet must be consistent")
	}
}

func TestParseOfferSheet_MissingHeaderRow(t *testing.T) {
	data := workbookBytes(t, [][]interface{}{
		{"Just", "Some", "Cells"},
		{"1", "2", "3"},
	})

	result := ParseOfferSheet(data)
	if result.Success {
		t.Fatal("expected failure without a header row")
	}
	if len(result.Errors) == 0 {
		t.Fatal("expected a parse error")
	}
	if len(result.ExtractedItems) != 0 {
		t.Fatalf("expected no items, got %d", len(result.ExtractedItems))
	}
}

func TestParseOfferSheet_MissingRequiredColumns(t *testing.T) {
	data := workbookBytes(t, [][]interface{}{
		{"SKU", "Product Name", "Brand"},
		{""},
		{"SKU-1", "Mouse", "Logi"},
	})

	result := ParseOfferSheet(data)
	if result.Success {
		t.Fatal("expected failure with Selected Qty and Price/Unit absent")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected a single combined error, got %v", result.Errors)
	}
}

func TestParseOfferSheet_ImportantSubHeadersOverrideBanner(t *testing.T) {
	// The exporter merges a "Your Offer" banner across the negotiation
	// columns and writes the real names on the sub-header row.
	data := workbookBytes(t, [][]interface{}{
		{"SKU", "Product Name", "Your Offer", "Your Offer", "Your Offer", "Your Offer"},
		{"", "", "Selected Qty", "Price/Unit", "Total Price", "% Off"},
		{"SKU-1", "Mouse", "4", "$10.00", "$40.00", "20"},
	})

	result := ParseOfferSheet(data)
	if !result.Success {
		t.Fatalf("expected success, errors: %v", result.Errors)
	}
	if got := result.HeaderMapping[ColumnSelectedQty]; got != 2 {
		t.Fatalf("Selected Qty expected column 2, got %d", got)
	}
	if got := result.HeaderMapping[ColumnPercentOff]; got != 5 {
		t.Fatalf("%% Off expected column 5, got %d", got)
	}
	if len(result.ExtractedItems) != 1 {
		t.Fatalf("expected 1 item, got %d", len(result.ExtractedItems))
	}
	item := result.ExtractedItems[0]
	if item.SelectedQty != "4" || item.TotalPrice != "$40.00" {
		t.Fatalf("sub-header columns not wired: %+v", item)
	}
	if !item.HasValidOffer {
		t.Fatal("expected valid offer")
	}
}

func TestParseOfferSheet_NoDataRowsIsStillSuccess(t *testing.T) {
	data := workbookBytes(t, [][]interface{}{
		{"SKU", "Product Name", "Selected Qty", "Price/Unit"},
	})

	result := ParseOfferSheet(data)
	if !result.Success {
		t.Fatalf("expected success, errors: %v", result.Errors)
	}
	if len(result.ExtractedItems) != 0 {
		t.Fatalf("expected no items, got %d", len(result.ExtractedItems))
	}
}

func TestParseOfferSheet_NoCurrencySymbolsStaysConsistent(t *testing.T) {
	data := workbookBytes(t, [][]interface{}{
		{"SKU", "Product Name", "Selected Qty", "Price/Unit"},
		{"SKU-1", "Widget", "10", "2.50"},
		{"SKU-2", "Gadget", "4", "12"},
	})

	result := ParseOfferSheet(data)
	if !result.Success {
		t.Fatalf("expected success, errors: %v", result.Errors)
	}
	if !result.CurrencySummary.IsConsistent {
		t.Fatal("a sheet with no detectable currency must not be flagged inconsistent")
	}
	if result.CurrencySummary.PrimaryCurrency != "" {
		t.Fatalf("expected no primary currency, got %q", result.CurrencySummary.PrimaryCurrency)
	}
}

func TestParseOfferSheet_GarbageBytes(t *testing.T) {
	result := ParseOfferSheet([]byte("not a zip archive"))
	if result.Success {
		t.Fatal("expected failure on malformed bytes")
	}
	if len(result.Errors) == 0 {
		t.Fatal("expected an open error")
	}
}

func TestParseNumericValue(t *testing.T) {
	cases := []struct {
		in       string
		expected float64
	}{
		{"1234.5", 1234.5},
		{"$1,234.50", 1234.5},
		{"€ 99", 99},
		{"HK$500", 500},
		{"CAD 20", 20},
		{"-15", -15},
		{"$-5.00", -5},
		{"-$5.00", -5},
		{"(42)", -42},
		{"25%", 25},
	}
	for _, tc := range cases {
		got := ParseNumericValue(tc.in)
		if got != tc.expected {
			t.Fatalf("ParseNumericValue(%q) expected %v, got %v", tc.in, tc.expected, got)
		}
	}

	for _, in := range []string{"", "   ", "n/a", "$"} {
		if got := ParseNumericValue(in); !math.IsNaN(got) {
			t.Fatalf("ParseNumericValue(%q) expected NaN, got %v", in, got)
		}
	}
}

func TestIsValidOfferPair_RejectsNegativePrice(t *testing.T) {
	if IsValidOfferPair("3", "$-5.00") {
		t.Fatal("negative price must not pass the validity gate")
	}
	if !IsValidOfferPair("3", "$5.00") {
		t.Fatal("positive pair must pass the validity gate")
	}
}

func TestTotalOfferValue(t *testing.T) {
	items := []*ExtractedOfferItem{
		{SelectedQty: "10", PricePerUnit: "$2.50", HasValidOffer: true},
		{SelectedQty: "3", PricePerUnit: "$100.00", HasValidOffer: true},
		{SelectedQty: "0", PricePerUnit: "$5.00", HasValidOffer: false},
	}
	if got := TotalOfferValue(items); got != 325 {
		t.Fatalf("expected 325, got %v", got)
	}
}
