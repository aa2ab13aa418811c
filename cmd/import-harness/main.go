package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/stocklot/marketplace_backend/importer"
)

// import-harness parses a local offer spreadsheet and prints the extraction
// report, without touching the database or object storage. Useful for
// debugging customer sheets that fail in production.
func main() {
	filePath := flag.String("file", "", "Required: path to a .xlsx/.xls offer file")
	asJSON := flag.Bool("json", false, "Print the full parse result as JSON")
	flag.Parse()

	if strings.TrimSpace(*filePath) == "" {
		fmt.Fprintln(os.Stderr, "--file is required")
		os.Exit(1)
	}

	fileBytes, err := os.ReadFile(*filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read file: %v\n", err)
		os.Exit(1)
	}

	result := importer.ParseOfferSheet(fileBytes)

	if *asJSON {
		encoded, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "encode result: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(encoded))
		if !result.Success {
			os.Exit(1)
		}
		return
	}

	fmt.Printf("success: %v\n", result.Success)
	for _, parseErr := range result.Errors {
		fmt.Printf("error: %s\n", parseErr)
	}

	valid := 0
	for _, item := range result.ExtractedItems {
		if item.HasValidOffer {
			valid++
		}
	}
	fmt.Printf("extracted rows: %d (valid offers: %d)\n", len(result.ExtractedItems), valid)
	fmt.Printf("total offer value: %.2f\n", importer.TotalOfferValue(result.ExtractedItems))

	summary := result.CurrencySummary
	fmt.Printf("primary currency: %s (consistent: %v)\n", summary.PrimaryCurrency, summary.IsConsistent)
	if len(summary.InconsistentRows) > 0 {
		fmt.Printf("inconsistent rows: %v\n", summary.InconsistentRows)
	}

	for _, item := range result.ExtractedItems {
		marker := " "
		if !item.HasValidOffer {
			marker = "!"
		}
		fmt.Printf("%s row %3d  %-20s qty=%-8s price=%-10s currency=%s (%s)\n",
			marker, item.RowNumber, item.Sku, item.SelectedQty, item.PricePerUnit,
			item.PriceCurrency.Currency, item.PriceCurrency.Method)
	}

	if !result.Success {
		os.Exit(1)
	}
}
