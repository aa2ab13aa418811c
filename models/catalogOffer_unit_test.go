package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDeriveDisplayName(t *testing.T) {
	cases := []struct {
		company  string
		first    string
		last     string
		username string
		expected string
	}{
		{"Acme Corp", "Jo", "Smith", "jsmith", "Acme Corp"},
		{"", "Jo", "Smith", "jsmith", "Jo Smith"},
		{"   ", "Jo", "", "jsmith", "Jo"},
		{"", "", "Smith", "jsmith", "Smith"},
		{"", "", "", "jsmith", "jsmith"},
	}
	for _, tc := range cases {
		got := DeriveDisplayName(tc.company, tc.first, tc.last, tc.username)
		if got != tc.expected {
			t.Fatalf("DeriveDisplayName(%q, %q, %q, %q) expected %q, got %q",
				tc.company, tc.first, tc.last, tc.username, tc.expected, got)
		}
	}
}

func TestResolveCurrentNegotiation_SellerPrecedence(t *testing.T) {
	now := time.Now()
	price := decimal.NewFromFloat(12.5)
	qty := 4

	buyerNeg := &CatalogOfferNegotiation{
		PublicId:         "buyerneg234567",
		NegotiationRound: 3,
		ActionType:       NegotiationActionOffer,
		OfferedPrice:     &price,
		OfferedQuantity:  &qty,
		CreatedAt:        now,
	}
	sellerNeg := &CatalogOfferNegotiation{
		PublicId:         "sellerneg23456",
		NegotiationRound: 2,
		ActionType:       NegotiationActionCounterOffer,
		OfferedPrice:     &price,
		OfferedQuantity:  &qty,
		CreatedAt:        now,
	}

	// Seller wins even when the buyer record is from a later round.
	resolved := ResolveCurrentNegotiation(sellerNeg, buyerNeg, now)
	if resolved == nil || resolved.Side != CurrentNegotiationSeller {
		t.Fatalf("expected seller side, got %+v", resolved)
	}
	if resolved.PublicId != sellerNeg.PublicId {
		t.Fatalf("expected seller negotiation, got %s", resolved.PublicId)
	}

	resolved = ResolveCurrentNegotiation(nil, buyerNeg, now)
	if resolved == nil || resolved.Side != CurrentNegotiationBuyer {
		t.Fatalf("expected buyer side, got %+v", resolved)
	}

	if resolved := ResolveCurrentNegotiation(nil, nil, now); resolved != nil {
		t.Fatalf("expected nil with no negotiations, got %+v", resolved)
	}
}

func TestResolveCurrentNegotiation_FillsDefaults(t *testing.T) {
	now := time.Now()
	neg := &CatalogOfferNegotiation{PublicId: "sellerneg23456"}

	resolved := ResolveCurrentNegotiation(neg, nil, now)
	if resolved.OfferedPrice != 0 || resolved.OfferedQuantity != 0 {
		t.Fatalf("expected zero defaults, got price=%v qty=%v", resolved.OfferedPrice, resolved.OfferedQuantity)
	}
	if !resolved.CreatedAt.Equal(now) {
		t.Fatalf("expected zero created_at replaced with now, got %v", resolved.CreatedAt)
	}
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(45, 3, 20)
	if p.TotalPages != 3 {
		t.Fatalf("45 records at limit 20 expected 3 pages, got %d", p.TotalPages)
	}
	if p.Total != 45 || p.Page != 3 || p.Limit != 20 {
		t.Fatalf("unexpected pagination: %+v", p)
	}

	if p := NewPagination(0, 1, 20); p.TotalPages != 0 {
		t.Fatalf("no records expected 0 pages, got %d", p.TotalPages)
	}
	if p := NewPagination(40, 1, 20); p.TotalPages != 2 {
		t.Fatalf("exact multiple expected 2 pages, got %d", p.TotalPages)
	}
}

func TestSanitizeOfferDetails_StripsInternalIds(t *testing.T) {
	details := &OfferDetails{
		CatalogOfferId:   42,
		PublicId:         "offerpub234567",
		CatalogListingId: 7,
		SellerUserId:     1,
		SellerProfileId:  2,
		BuyerUserId:      3,
		BuyerProfileId:   4,
		Status:           CatalogOfferStatusActive,
		Items:            []*OfferItemDetail{},
	}

	sanitized, err := SanitizeOfferDetails(details)
	if err != nil {
		t.Fatalf("SanitizeOfferDetails error: %v", err)
	}

	for _, key := range []string{
		"catalog_offer_id", "catalog_listing_id",
		"seller_user_id", "seller_profile_id",
		"buyer_user_id", "buyer_profile_id",
	} {
		if _, present := sanitized[key]; present {
			t.Fatalf("sanitized output still contains %q", key)
		}
	}
	if sanitized["public_id"] != "offerpub234567" {
		t.Fatalf("public_id must survive sanitizing, got %v", sanitized["public_id"])
	}
}

func TestCatalogOfferStatusUnmarshal(t *testing.T) {
	var status CatalogOfferStatus
	if err := json.Unmarshal([]byte(`"NEGOTIATING"`), &status); err != nil {
		t.Fatalf("valid status rejected: %v", err)
	}
	if status != CatalogOfferStatusNegotiating {
		t.Fatalf("expected NEGOTIATING, got %s", status)
	}

	if err := json.Unmarshal([]byte(`"CANCELLED"`), &status); err == nil {
		t.Fatal("invalid status accepted")
	}
	if err := json.Unmarshal([]byte(`42`), &status); err == nil {
		t.Fatal("non-string status accepted")
	}
}

func TestCatalogOfferStatusIsTerminal(t *testing.T) {
	for _, status := range ModifiableOfferStatuses {
		if status.IsTerminal() {
			t.Fatalf("%s must not be terminal", status)
		}
	}
	for _, status := range []CatalogOfferStatus{
		CatalogOfferStatusAccepted, CatalogOfferStatusRejected, CatalogOfferStatusExpired,
	} {
		if !status.IsTerminal() {
			t.Fatalf("%s must be terminal", status)
		}
	}
}
