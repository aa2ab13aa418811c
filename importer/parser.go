package importer

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ParseOfferSheet reads an offer workbook and extracts one candidate item
// per data row. Only the first sheet is examined. The result is never nil;
// parse failures land in Errors with Success=false.
func ParseOfferSheet(fileBytes []byte) (result *ParseResult) {
	result = &ParseResult{
		HeaderMapping:   map[string]int{},
		ExtractedItems:  []*ExtractedOfferItem{},
		Errors:          []string{},
		CurrencySummary: CurrencySummary{IsConsistent: true},
	}

	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Errors = append(result.Errors, fmt.Sprintf("unexpected error while parsing workbook: %v", r))
		}
	}()

	f, err := excelize.OpenReader(bytes.NewReader(fileBytes))
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to open Excel file: %v", err))
		return result
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		result.Errors = append(result.Errors, "workbook contains no sheets")
		return result
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("unable to read sheet %q: %v", sheet, err))
		return result
	}

	headerIdx := findHeaderRow(rows)
	if headerIdx < 0 {
		result.Errors = append(result.Errors, `header row not found: sheet must contain both "SKU" and "Product Name" columns`)
		return result
	}

	result.Headers = rows[headerIdx]
	if headerIdx+1 < len(rows) {
		result.SubHeaders = rows[headerIdx+1]
	}

	result.HeaderMapping = buildColumnMapping(result.Headers, result.SubHeaders)

	var missing []string
	for _, required := range requiredColumns {
		if _, ok := result.HeaderMapping[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")))
		return result
	}

	dataStart := headerIdx + 2
	for i := dataStart; i < len(rows); i++ {
		row := rows[i]
		sku := strings.TrimSpace(cellAt(row, result.HeaderMapping, ColumnSku))
		if sku == "" {
			continue
		}

		item := &ExtractedOfferItem{
			RowNumber:    i + 1,
			Sku:          sku,
			ProductName:  strings.TrimSpace(cellAt(row, result.HeaderMapping, ColumnProductName)),
			Variant:      strings.TrimSpace(cellAt(row, result.HeaderMapping, ColumnVariant)),
			Brand:        strings.TrimSpace(cellAt(row, result.HeaderMapping, ColumnBrand)),
			Category:     strings.TrimSpace(cellAt(row, result.HeaderMapping, ColumnCategory)),
			Subcategory:  strings.TrimSpace(cellAt(row, result.HeaderMapping, ColumnSubcategory)),
			SelectedQty:  strings.TrimSpace(cellAt(row, result.HeaderMapping, ColumnSelectedQty)),
			PricePerUnit: strings.TrimSpace(cellAt(row, result.HeaderMapping, ColumnPricePerUnit)),
			TotalPrice:   strings.TrimSpace(cellAt(row, result.HeaderMapping, ColumnTotalPrice)),
			PercentOff:   strings.TrimSpace(cellAt(row, result.HeaderMapping, ColumnPercentOff)),
			Identifier:   strings.TrimSpace(cellAt(row, result.HeaderMapping, ColumnIdentifier)),
			IdType:       strings.TrimSpace(cellAt(row, result.HeaderMapping, ColumnIdType)),
			Msrp:         strings.TrimSpace(cellAt(row, result.HeaderMapping, ColumnMsrp)),
			Packaging:    strings.TrimSpace(cellAt(row, result.HeaderMapping, ColumnPackaging)),
			Condition:    strings.TrimSpace(cellAt(row, result.HeaderMapping, ColumnCondition)),
		}
		item.HasValidOffer = IsValidOfferPair(item.SelectedQty, item.PricePerUnit)

		item.PriceCurrency = detectCellCurrency(f, sheet, result.HeaderMapping, ColumnPricePerUnit, i)
		item.MsrpCurrency = detectCellCurrency(f, sheet, result.HeaderMapping, ColumnMsrp, i)

		recordCurrency(&result.CurrencySummary, item.PriceCurrency, item.RowNumber)

		result.ExtractedItems = append(result.ExtractedItems, item)
	}

	result.Success = true
	return result
}

// findHeaderRow returns the index of the first row containing both the SKU
// and Product Name column headers, or -1.
func findHeaderRow(rows [][]string) int {
	for i, row := range rows {
		hasSku, hasName := false, false
		for _, cell := range row {
			switch strings.TrimSpace(cell) {
			case ColumnSku:
				hasSku = true
			case ColumnProductName:
				hasName = true
			}
		}
		if hasSku && hasName {
			return i
		}
	}
	return -1
}

// buildColumnMapping resolves each known column name to its zero-based
// index. Sub-header cells normally only claim columns the main header row
// left unnamed, but the negotiation columns always win: sheets exported
// with a merged "Your Offer" banner carry the real column names on the
// second row.
func buildColumnMapping(headers []string, subHeaders []string) map[string]int {
	mapping := map[string]int{}

	for idx, cell := range headers {
		name := canonicalColumnName(cell)
		if name == "" {
			continue
		}
		if _, taken := mapping[name]; !taken {
			mapping[name] = idx
		}
	}

	important := map[string]bool{}
	for _, name := range importantSubHeaders {
		important[name] = true
	}

	for idx, cell := range subHeaders {
		name := canonicalColumnName(cell)
		if name == "" {
			continue
		}
		if important[name] {
			mapping[name] = idx
			continue
		}
		mainBlank := idx >= len(headers) || strings.TrimSpace(headers[idx]) == ""
		if _, taken := mapping[name]; !taken && mainBlank {
			mapping[name] = idx
		}
	}

	return mapping
}

var canonicalColumns = []string{
	ColumnSku,
	ColumnProductName,
	ColumnVariant,
	ColumnBrand,
	ColumnCategory,
	ColumnSubcategory,
	ColumnSelectedQty,
	ColumnPricePerUnit,
	ColumnTotalPrice,
	ColumnPercentOff,
	ColumnIdentifier,
	ColumnIdType,
	ColumnMsrp,
	ColumnPackaging,
	ColumnCondition,
}

func canonicalColumnName(cell string) string {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return ""
	}
	for _, name := range canonicalColumns {
		if strings.EqualFold(trimmed, name) {
			return name
		}
	}
	return ""
}

func cellAt(row []string, mapping map[string]int, name string) string {
	idx, ok := mapping[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// detectCellCurrency inspects the native cell (raw value, formatted value,
// number format code) rather than the flattened row strings, so
// format-level currency hints survive.
func detectCellCurrency(f *excelize.File, sheet string, mapping map[string]int, column string, rowIdx int) CurrencyDetection {
	colIdx, ok := mapping[column]
	if !ok {
		return DetectCurrency(nil)
	}
	axis, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
	if err != nil {
		return DetectCurrency(nil)
	}

	cell := &CellInfo{}
	cell.RawValue, _ = f.GetCellValue(sheet, axis, excelize.Options{RawCellValue: true})
	cell.FormattedValue, _ = f.GetCellValue(sheet, axis)
	cell.NumberFormat = cellNumberFormat(f, sheet, axis)

	cellType, _ := f.GetCellType(sheet, axis)
	cell.IsString = cellType == excelize.CellTypeSharedString || cellType == excelize.CellTypeInlineString

	if cell.RawValue == "" && cell.FormattedValue == "" {
		return DetectCurrency(nil)
	}
	return DetectCurrency(cell)
}

func cellNumberFormat(f *excelize.File, sheet string, axis string) string {
	styleID, err := f.GetCellStyle(sheet, axis)
	if err != nil {
		return ""
	}
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil {
		return ""
	}
	if style.CustomNumFmt != nil {
		return *style.CustomNumFmt
	}
	return builtInNumberFormat(style.NumFmt)
}

// Built-in number format ids that carry a currency hint. Excelize only
// surfaces the id for stock formats, so map the currency ones back to a
// representative code.
func builtInNumberFormat(id int) string {
	switch id {
	case 5, 6, 7, 8, 44:
		return "$#,##0.00"
	default:
		return ""
	}
}

func recordCurrency(summary *CurrencySummary, detection CurrencyDetection, rowNumber int) {
	if detection.Currency == "" {
		return
	}
	seen := false
	for _, c := range summary.DetectedCurrencies {
		if c == detection.Currency {
			seen = true
			break
		}
	}
	if !seen {
		summary.DetectedCurrencies = append(summary.DetectedCurrencies, detection.Currency)
	}
	if summary.PrimaryCurrency == "" {
		summary.PrimaryCurrency = detection.Currency
		return
	}
	if detection.Currency != summary.PrimaryCurrency {
		summary.IsConsistent = false
		summary.InconsistentRows = append(summary.InconsistentRows, rowNumber)
	}
}

// TotalOfferValue sums quantity x price across rows that passed the
// validity gate.
func TotalOfferValue(items []*ExtractedOfferItem) float64 {
	total := 0.0
	for _, item := range items {
		if item == nil || !item.HasValidOffer {
			continue
		}
		qty := ParseNumericValue(item.SelectedQty)
		price := ParseNumericValue(item.PricePerUnit)
		if math.IsNaN(qty) || math.IsNaN(price) {
			continue
		}
		total += qty * price
	}
	return total
}
