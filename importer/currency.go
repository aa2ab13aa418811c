package importer

import (
	"fmt"
	"regexp"
	"strings"
)

// knownCurrencyFormats maps exact spreadsheet number-format strings to ISO
// codes. Checked before any substring heuristic.
var knownCurrencyFormats = map[string]string{
	`$#,##0.00`:          "USD",
	`$#,##0`:             "USD",
	`[$-409]$#,##0.00`:   "USD",
	`[$$-409]#,##0.00`:   "USD",
	`€#,##0.00`:          "EUR",
	`#,##0.00 €`:         "EUR",
	`[$€-2] #,##0.00`:    "EUR",
	`£#,##0.00`:          "GBP",
	`[$£-809]#,##0.00`:   "GBP",
	`¥#,##0`:             "JPY",
	`[$¥-411]#,##0`:      "JPY",
	`C$#,##0.00`:         "CAD",
	`[$C$-1009]#,##0.00`: "CAD",
	`MX$#,##0.00`:        "MXN",
	`HK$#,##0.00`:        "HKD",
	`S$#,##0.00`:         "SGD",
	`A$#,##0.00`:         "AUD",
	`NZ$#,##0.00`:        "NZD",
	`CN¥#,##0.00`:        "CNY",
	`₹#,##0.00`:          "INR",
	`₩#,##0`:             "KRW",
	`₪#,##0.00`:          "ILS",
	`₺#,##0.00`:          "TRY",
	`₽#,##0.00`:          "RUB",
	`CHF #,##0.00`:       "CHF",
	`kr #,##0.00`:        "DKK",
	`Kč #,##0.00`:        "CZK",
}

type symbolMapping struct {
	symbol   string
	currency string
}

// orderedCurrencySymbols: regional dollar variants are checked before the
// generic "$" fallback, and "CN¥" before the generic "¥" fallback. Order is
// load-bearing.
var orderedCurrencySymbols = []symbolMapping{
	{"C$", "CAD"},
	{"MX$", "MXN"},
	{"HK$", "HKD"},
	{"S$", "SGD"},
	{"A$", "AUD"},
	{"NZ$", "NZD"},
	{"CN¥", "CNY"},
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"₹", "INR"},
	{"₩", "KRW"},
	{"₪", "ILS"},
	{"₺", "TRY"},
	{"₽", "RUB"},
	{"Kč", "CZK"},
}

// isoCurrencyCodes is the fixed whole-word code list, matched
// case-insensitively.
var isoCurrencyCodes = []string{
	"USD", "CAD", "MXN", "EUR", "GBP", "JPY", "CHF", "DKK", "CZK", "RUB",
	"TRY", "INR", "CNY", "HKD", "ILS", "KRW", "SGD", "AUD", "NZD",
}

var isoCodePatterns = func() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(isoCurrencyCodes))
	for _, code := range isoCurrencyCodes {
		patterns[code] = regexp.MustCompile(`(?i)\b` + code + `\b`)
	}
	return patterns
}()

// DetectCurrency determines the currency of a monetary cell using three
// prioritized heuristics: explicit number format, formatted display string,
// raw string value. Never panics out; an internal failure comes back as
// method "error".
func DetectCurrency(cell *CellInfo) (detection CurrencyDetection) {
	defer func() {
		if r := recover(); r != nil {
			detection = CurrencyDetection{
				Method:  DetectionMethodError,
				Message: fmt.Sprintf("currency detection failed: %v", r),
			}
		}
	}()

	if cell == nil {
		return CurrencyDetection{Method: DetectionMethodNoCell}
	}

	if format := strings.TrimSpace(cell.NumberFormat); format != "" {
		if currency, ok := matchNumberFormat(format); ok {
			return CurrencyDetection{Currency: currency, Method: DetectionMethodNumberFormat}
		}
	}

	if formatted := strings.TrimSpace(cell.FormattedValue); formatted != "" {
		if currency, ok := matchCurrencyString(formatted); ok {
			return CurrencyDetection{Currency: currency, Method: DetectionMethodFormattedValue}
		}
	}

	// Only a cell that is itself a string (not a parsed number) qualifies
	// for the raw-value pass.
	if cell.IsString {
		if raw := strings.TrimSpace(cell.RawValue); raw != "" {
			if currency, ok := matchCurrencyString(raw); ok {
				return CurrencyDetection{Currency: currency, Method: DetectionMethodRawValue}
			}
		}
	}

	return CurrencyDetection{Method: DetectionMethodNone}
}

func matchNumberFormat(format string) (string, bool) {
	if currency, ok := knownCurrencyFormats[format]; ok {
		return currency, true
	}
	// Substring fallback over the format string, regional variants first.
	for _, mapping := range orderedCurrencySymbols {
		if strings.Contains(format, mapping.symbol) {
			return mapping.currency, true
		}
	}
	// Word-like symbols that collide with format letters are matched only
	// when clearly delimited.
	if strings.Contains(format, "CHF") {
		return "CHF", true
	}
	if strings.Contains(format, "kr") {
		return "DKK", true
	}
	return "", false
}

// matchCurrencyString applies symbol checks (start, end, then anywhere) with
// the regional-before-generic ordering, and finally whole-word ISO codes.
func matchCurrencyString(value string) (string, bool) {
	for _, mapping := range orderedCurrencySymbols {
		if strings.HasPrefix(value, mapping.symbol) {
			return mapping.currency, true
		}
	}
	for _, mapping := range orderedCurrencySymbols {
		if strings.HasSuffix(value, mapping.symbol) {
			return mapping.currency, true
		}
	}
	for _, mapping := range orderedCurrencySymbols {
		if strings.Contains(value, mapping.symbol) {
			return mapping.currency, true
		}
	}
	for _, code := range isoCurrencyCodes {
		if isoCodePatterns[code].MatchString(value) {
			return code, true
		}
	}
	return "", false
}
