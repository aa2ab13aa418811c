// Package importer turns uploaded offer spreadsheets into structured,
// validated offer line items. It has no persistence dependencies: callers
// hand it file bytes and receive an extraction report.
package importer

// DetectionMethod says which signal produced a currency decision, in
// decreasing order of structural reliability.
type DetectionMethod string

const (
	DetectionMethodNumberFormat   DetectionMethod = "number_format"
	DetectionMethodFormattedValue DetectionMethod = "formatted_value"
	DetectionMethodRawValue       DetectionMethod = "raw_value"
	DetectionMethodNone           DetectionMethod = "no_currency_detected"
	DetectionMethodNoCell         DetectionMethod = "no_cell"
	DetectionMethodError          DetectionMethod = "error"
)

// CurrencyDetection is the result of sniffing one cell. Currency is empty
// unless a method other than the three terminal ones matched.
type CurrencyDetection struct {
	Currency string          `json:"currency,omitempty"`
	Method   DetectionMethod `json:"method"`
	Message  string          `json:"message,omitempty"`
}

// CellInfo carries everything the detector needs from a worksheet cell.
// Currency metadata lives on the cell (format code, formatted rendering),
// not on the stringified row arrays.
type CellInfo struct {
	RawValue       string
	FormattedValue string
	NumberFormat   string
	IsString       bool
}

// ExtractedOfferItem is one candidate offer line parsed from a data row.
// Ephemeral: consumed immediately by the import workflow, never persisted.
type ExtractedOfferItem struct {
	RowNumber     int    `json:"row_number"`
	Sku           string `json:"sku"`
	ProductName   string `json:"product_name"`
	Variant       string `json:"variant,omitempty"`
	Brand         string `json:"brand,omitempty"`
	Category      string `json:"category,omitempty"`
	Subcategory   string `json:"subcategory,omitempty"`
	SelectedQty   string `json:"selected_qty"`
	PricePerUnit  string `json:"price_per_unit"`
	TotalPrice    string `json:"total_price,omitempty"`
	PercentOff    string `json:"percent_off,omitempty"`
	Identifier    string `json:"identifier,omitempty"`
	IdType        string `json:"id_type,omitempty"`
	Msrp          string `json:"msrp,omitempty"`
	Packaging     string `json:"packaging,omitempty"`
	Condition     string `json:"condition,omitempty"`
	HasValidOffer bool   `json:"has_valid_offer"`

	PriceCurrency CurrencyDetection `json:"price_currency"`
	MsrpCurrency  CurrencyDetection `json:"msrp_currency"`
}

// CurrencySummary aggregates per-row price-currency detections. Divergence
// from the first-seen currency is informational only and never fails a
// parse.
type CurrencySummary struct {
	DetectedCurrencies []string `json:"detected_currencies"`
	PrimaryCurrency    string   `json:"primary_currency,omitempty"`
	IsConsistent       bool     `json:"is_consistent"`
	InconsistentRows   []int    `json:"inconsistent_rows,omitempty"`
}

type ParseResult struct {
	Success         bool                  `json:"success"`
	Headers         []string              `json:"headers"`
	SubHeaders      []string              `json:"sub_headers"`
	HeaderMapping   map[string]int        `json:"header_mapping"`
	ExtractedItems  []*ExtractedOfferItem `json:"extracted_items"`
	Errors          []string              `json:"errors"`
	CurrencySummary CurrencySummary       `json:"currency_summary"`
}

// Logical column names. Header matching is exact on the trimmed cell text.
const (
	ColumnSku          = "SKU"
	ColumnProductName  = "Product Name"
	ColumnVariant      = "Variant"
	ColumnBrand        = "Brand"
	ColumnCategory     = "Category"
	ColumnSubcategory  = "Subcategory"
	ColumnSelectedQty  = "Selected Qty"
	ColumnPricePerUnit = "Price/Unit"
	ColumnTotalPrice   = "Total Price"
	ColumnPercentOff   = "% Off"
	ColumnIdentifier   = "Identifier"
	ColumnIdType       = "ID Type"
	ColumnMsrp         = "MSRP"
	ColumnPackaging    = "Packaging"
	ColumnCondition    = "Condition"
)

// importantSubHeaders always win a column slot even when a main header
// (typically a shared "Your Offer" banner) already occupies it.
var importantSubHeaders = []string{
	ColumnSelectedQty,
	ColumnPricePerUnit,
	ColumnTotalPrice,
	ColumnPercentOff,
}

// requiredColumns must all be present after header mapping.
var requiredColumns = []string{
	ColumnSku,
	ColumnProductName,
	ColumnSelectedQty,
	ColumnPricePerUnit,
}
