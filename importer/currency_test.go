package importer

import "testing"

func TestDetectCurrency_NumberFormatTakesPriority(t *testing.T) {
	cell := &CellInfo{
		NumberFormat:   "€#,##0.00",
		FormattedValue: "$100.00",
		RawValue:       "100",
	}
	d := DetectCurrency(cell)
	if d.Currency != "EUR" {
		t.Fatalf("expected EUR from number format, got %q", d.Currency)
	}
	if d.Method != DetectionMethodNumberFormat {
		t.Fatalf("expected method %s, got %s", DetectionMethodNumberFormat, d.Method)
	}
}

func TestDetectCurrency_RegionalDollarsBeforeGeneric(t *testing.T) {
	cases := []struct {
		formatted string
		expected  string
	}{
		{"C$1,234.00", "CAD"},
		{"MX$50", "MXN"},
		{"HK$9.99", "HKD"},
		{"S$120", "SGD"},
		{"A$75.50", "AUD"},
		{"NZ$10", "NZD"},
		{"CN¥100", "CNY"},
		{"$19.99", "USD"},
		{"¥1,000", "JPY"},
		{"120 Kč", "CZK"},
	}
	for _, tc := range cases {
		d := DetectCurrency(&CellInfo{FormattedValue: tc.formatted})
		if d.Currency != tc.expected {
			t.Fatalf("DetectCurrency(%q) expected %s, got %s (method %s)", tc.formatted, tc.expected, d.Currency, d.Method)
		}
		if d.Method != DetectionMethodFormattedValue {
			t.Fatalf("DetectCurrency(%q) expected method %s, got %s", tc.formatted, DetectionMethodFormattedValue, d.Method)
		}
	}
}

func TestDetectCurrency_KnownFormatCodes(t *testing.T) {
	cases := []struct {
		format   string
		expected string
	}{
		{"[$-409]$#,##0.00", "USD"},
		{"C$#,##0.00", "CAD"},
		{"#,##0.00 \"CHF\"", "CHF"},
		{"#,##0.00 kr", "DKK"},
	}
	for _, tc := range cases {
		d := DetectCurrency(&CellInfo{NumberFormat: tc.format})
		if d.Currency != tc.expected {
			t.Fatalf("DetectCurrency(format %q) expected %s, got %s", tc.format, tc.expected, d.Currency)
		}
	}
}

func TestDetectCurrency_RawValueOnlyForStringCells(t *testing.T) {
	str := DetectCurrency(&CellInfo{RawValue: "usd 100", IsString: true})
	if str.Currency != "USD" || str.Method != DetectionMethodRawValue {
		t.Fatalf("string cell: expected USD/raw_value, got %s/%s", str.Currency, str.Method)
	}

	num := DetectCurrency(&CellInfo{RawValue: "usd 100", IsString: false})
	if num.Method != DetectionMethodNone {
		t.Fatalf("numeric cell raw value must not be sniffed, got %s/%s", num.Currency, num.Method)
	}
}

func TestDetectCurrency_TerminalMethods(t *testing.T) {
	if d := DetectCurrency(nil); d.Method != DetectionMethodNoCell || d.Currency != "" {
		t.Fatalf("nil cell: expected %s with empty currency, got %s/%q", DetectionMethodNoCell, d.Method, d.Currency)
	}
	if d := DetectCurrency(&CellInfo{RawValue: "123.45"}); d.Method != DetectionMethodNone {
		t.Fatalf("plain number: expected %s, got %s", DetectionMethodNone, d.Method)
	}
}

func TestDetectCurrency_IsoCodeWholeWordOnly(t *testing.T) {
	d := DetectCurrency(&CellInfo{FormattedValue: "100 CAD"})
	if d.Currency != "CAD" {
		t.Fatalf("expected CAD, got %q", d.Currency)
	}
	// "AUDIT" contains AUD but not as a whole word.
	d = DetectCurrency(&CellInfo{FormattedValue: "AUDIT 100"})
	if d.Currency != "" {
		t.Fatalf("embedded code must not match, got %q", d.Currency)
	}
}
