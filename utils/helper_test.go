package utils

import (
	"errors"
	"strings"
	"testing"
)

func TestGeneratePublicId(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := GeneratePublicId()
		if len(id) != PublicIdLength {
			t.Fatalf("expected length %d, got %d (%q)", PublicIdLength, len(id), id)
		}
		for _, r := range id {
			if !strings.ContainsRune(publicIdAlphabet, r) {
				t.Fatalf("id %q contains %q outside the alphabet", id, r)
			}
		}
		if seen[id] {
			t.Fatalf("duplicate id generated: %q", id)
		}
		seen[id] = true
	}
}

func TestIsPublicId(t *testing.T) {
	if !IsPublicId("abcdefgh234567") {
		t.Fatal("14-char id must be public")
	}
	if IsPublicId("123") || IsPublicId("") || IsPublicId("abcdefgh2345678") {
		t.Fatal("only exactly 14 chars is public")
	}
}

func TestNormalizeDBError(t *testing.T) {
	cases := []struct {
		err          error
		expectedCode string
	}{
		{errors.New("Error 1062: Duplicate entry 'x' for key 'uniq'"), ErrCodeDuplicateEntry},
		{errors.New("violates unique constraint offers_public_id"), ErrCodeDuplicateEntry},
		{errors.New("Error 1452: a foreign key constraint fails"), ErrCodeInvalidReference},
		{errors.New("Record to update not found"), ErrCodeRecordNotFound},
		{ErrorRecordNotFound, ErrCodeRecordNotFound},
		{errors.New("Transaction deadlock detected"), ErrCodeTransactionFailed},
		{errors.New("s3 object unreadable"), ErrCodeFileProcessingError},
		{errors.New("xlsx: zip archive corrupt"), ErrCodeFileFormatError},
		{errors.New("something else entirely"), ErrCodeInternalError},
	}
	for _, tc := range cases {
		appErr := NormalizeDBError(tc.err)
		if appErr.Code != tc.expectedCode {
			t.Fatalf("NormalizeDBError(%q) expected %s, got %s", tc.err, tc.expectedCode, appErr.Code)
		}
	}
}

func TestResultShapes(t *testing.T) {
	ok := Ok(42)
	if !ok.Success || ok.Data != 42 || ok.Error != nil {
		t.Fatalf("unexpected ok result: %+v", ok)
	}

	fail := FailCode[int](ErrCodeItemNotFound, "nope")
	if fail.Success || fail.Error == nil || fail.Error.Code != ErrCodeItemNotFound {
		t.Fatalf("unexpected fail result: %+v", fail)
	}
}

func TestDereferencePtr(t *testing.T) {
	v := 7
	if got := DereferencePtr(&v); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
	if got := DereferencePtr[int](nil); got != 0 {
		t.Fatalf("expected zero value, got %d", got)
	}
	if got := DereferencePtr(nil, 9); got != 9 {
		t.Fatalf("expected default 9, got %d", got)
	}

	locked := true
	if !DereferencePtr(&locked) {
		t.Fatal("expected true")
	}
}

func TestValidateOfferFile(t *testing.T) {
	if err := ValidateOfferFile("offers/a.xlsx", 1024); err != nil {
		t.Fatalf("xlsx under limit rejected: %v", err)
	}
	if err := ValidateOfferFile("offers/a.xls", MaxOfferFileSizeBytes); err != nil {
		t.Fatalf("xls at the limit rejected: %v", err)
	}
	if err := ValidateOfferFile("offers/a.csv", 1024); err == nil {
		t.Fatal("csv must be rejected")
	}
	if err := ValidateOfferFile("offers/a.xlsx", MaxOfferFileSizeBytes+1); err == nil {
		t.Fatal("oversized file must be rejected")
	}
}
