package utils

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ttacon/libphonenumber"
)

var CountryCode = "US"

// PublicIdLength is the fixed length of every externally visible identifier.
// Anything shorter or longer is treated as an internal id.
const PublicIdLength = 14

const publicIdAlphabet = "23456789abcdefghjkmnpqrstuvwxyz"

// GeneratePublicId returns a 14-character URL-safe identifier. The alphabet
// omits lookalike characters (0/O, 1/l/i).
func GeneratePublicId() string {
	buf := make([]byte, PublicIdLength)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	for i, b := range buf {
		buf[i] = publicIdAlphabet[int(b)%len(publicIdAlphabet)]
	}
	return string(buf)
}

// IsPublicId reports whether an externally supplied identifier string has the
// public-id shape.
func IsPublicId(id string) bool {
	return len(id) == PublicIdLength
}

func IsValidEmail(email string) bool {
	pattern := `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	regex := regexp.MustCompile(pattern)
	return regex.MatchString(email)
}

func ValidatePhoneNumber(phoneNumber, countryCode string) error {
	p, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return err
	}
	if !libphonenumber.IsValidNumber(p) {
		return fmt.Errorf("phone number is not valid")
	}
	return nil
}

func ProcessValidationErrors(err error) map[string]string {
	validationErrors := err.(validator.ValidationErrors)
	errorResponse := make(map[string]string)
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func DereferencePtr[T any](ptr *T, def ...T) T {
	if ptr != nil {
		return *ptr
	}
	if len(def) > 0 {
		return def[0]
	}
	var zero T
	return zero
}

func UniqueSlice[T comparable](values []T) []T {
	seen := make(map[T]struct{}, len(values))
	out := make([]T, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// BlankString reports whether s is empty after trimming.
func BlankString(s string) bool {
	return strings.TrimSpace(s) == ""
}
