package importer

import (
	"math"
	"strconv"
	"strings"
)

// ParseNumericValue strips currency noise (symbols, codes, commas, spaces)
// from a cell string and returns its numeric value, or NaN when nothing
// numeric remains. Accepts forms like "$1,234.50", "EUR 99", "HK$500".
func ParseNumericValue(value string) float64 {
	s := strings.TrimSpace(value)
	if s == "" {
		return math.NaN()
	}

	// ISO codes first so "CAD 20" doesn't leave stray letters behind.
	upper := strings.ToUpper(s)
	for _, code := range isoCurrencyCodes {
		upper = strings.ReplaceAll(upper, code, "")
	}
	s = upper

	// A minus anywhere before the first digit negates ("-5", "$-5.00").
	neg := false
	for _, r := range s {
		if r >= '0' && r <= '9' {
			break
		}
		if r == '-' {
			neg = true
			break
		}
	}
	// Parenthesized negatives, accounting style.
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
	}

	var b strings.Builder
	b.Grow(len(s) + 1)
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if clean == "" {
		return math.NaN()
	}
	if neg {
		clean = "-" + clean
	}

	parsed, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return math.NaN()
	}
	return parsed
}

// IsValidOfferPair applies the line-validity rule: quantity and price must
// both parse numeric after symbol stripping and be strictly greater than
// zero.
func IsValidOfferPair(quantity string, price string) bool {
	qty := ParseNumericValue(quantity)
	prc := ParseNumericValue(price)
	if math.IsNaN(qty) || math.IsNaN(prc) {
		return false
	}
	return qty > 0 && prc > 0
}
