package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrorDataIntegrity marks a broken relation (e.g. an offer item without its
// variant). It is deliberately surfaced as a plain error, never converted to
// an AppError: callers must treat it as a bug, not a user-facing failure.
var ErrorDataIntegrity = errors.New("data integrity violation")

// Error codes are part of the public API contract; consuming UIs match on
// them verbatim.
const (
	// validation
	ErrCodeCognitoIdRequired       = "COGNITO_ID_REQUIRED"
	ErrCodeListingPublicIdRequired = "OFFER_LISTING_PUBLIC_ID_REQUIRED"
	ErrCodeOfferFileS3KeyRequired  = "OFFER_FILE_S3_KEY_REQUIRED"

	// caller eligibility
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeBuyerProfileNotFound = "BUYER_PROFILE_NOT_FOUND"
	ErrCodeBuyerNotVerified     = "BUYER_NOT_VERIFIED"
	ErrCodeAccountLocked        = "ACCOUNT_LOCKED"
	ErrCodeHighRiskAccount      = "HIGH_RISK_ACCOUNT"

	// listing / offer state
	ErrCodeCatalogListingNotFound  = "CATALOG_LISTING_NOT_FOUND"
	ErrCodeCatalogListingNotActive = "CATALOG_LISTING_NOT_ACTIVE"
	ErrCodeSelfOfferNotAllowed     = "SELF_OFFER_NOT_ALLOWED"
	ErrCodeExistingActiveOffer     = "EXISTING_ACTIVE_OFFER"
	ErrCodeCatalogOfferNotFound    = "CATALOG_OFFER_NOT_FOUND"
	ErrCodeUnauthorizedSeller      = "UNAUTHORIZED_SELLER"
	ErrCodeInvalidOfferStatus      = "INVALID_OFFER_STATUS"
	ErrCodeNoActiveItems           = "NO_ACTIVE_ITEMS"
	ErrCodeItemNotModifiable       = "ITEM_NOT_MODIFIABLE"
	ErrCodeItemNotFound            = "ITEM_NOT_FOUND"
	ErrCodeVariantAlreadyInOffer   = "VARIANT_ALREADY_IN_OFFER"
	ErrCodeProductAlreadyInOffer   = "PRODUCT_ALREADY_IN_OFFER"

	// files
	ErrCodeFileReadError       = "FILE_READ_ERROR"
	ErrCodeFileProcessingError = "FILE_PROCESSING_ERROR"
	ErrCodeFileFormatError     = "FILE_FORMAT_ERROR"
	ErrCodeParseError          = "PARSE_ERROR"
	ErrCodeNoValidOfferItems   = "NO_VALID_OFFER_ITEMS"

	// persistence
	ErrCodeDatabaseError     = "DATABASE_ERROR"
	ErrCodeDuplicateEntry    = "DUPLICATE_ENTRY"
	ErrCodeInvalidReference  = "INVALID_REFERENCE"
	ErrCodeRecordNotFound    = "RECORD_NOT_FOUND"
	ErrCodeTransactionFailed = "TRANSACTION_FAILED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// AppError is the single user-visible failure shape. Details is whitelisted
// per call site; never put stack traces or internal ids in it.
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAppError(code string, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func NewAppErrorWithDetails(code string, message string, details map[string]any) *AppError {
	return &AppError{Code: code, Message: message, Details: details}
}

// Result is the discriminated success/failure envelope every public
// operation returns instead of raising.
type Result[T any] struct {
	Success bool      `json:"success"`
	Data    T         `json:"data,omitempty"`
	Error   *AppError `json:"error,omitempty"`
}

func Ok[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

func Fail[T any](appErr *AppError) Result[T] {
	return Result[T]{Success: false, Error: appErr}
}

func FailCode[T any](code string, message string) Result[T] {
	return Fail[T](NewAppError(code, message))
}

// NormalizeDBError maps an unexpected error from the data layer (or the file
// pipeline) onto a stable code. Raw driver messages never cross the API
// boundary on their own.
func NormalizeDBError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}

	msg := err.Error()

	// Typed driver errors first; message matching is the fallback for
	// wrapped errors that lose the concrete type.
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1062:
			return NewAppErrorWithDetails(ErrCodeDuplicateEntry, "a record with the same unique value already exists", map[string]any{"cause": msg})
		case 1451, 1452:
			return NewAppErrorWithDetails(ErrCodeInvalidReference, "a referenced record does not exist", map[string]any{"cause": msg})
		}
	}

	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "unique constraint") || strings.Contains(lower, "duplicate entry"):
		return NewAppErrorWithDetails(ErrCodeDuplicateEntry, "a record with the same unique value already exists", map[string]any{"cause": msg})
	case strings.Contains(lower, "foreign key"):
		return NewAppErrorWithDetails(ErrCodeInvalidReference, "a referenced record does not exist", map[string]any{"cause": msg})
	case strings.Contains(msg, "Record to update not found") || errors.Is(err, ErrorRecordNotFound):
		return NewAppErrorWithDetails(ErrCodeRecordNotFound, "record to update not found", map[string]any{"cause": msg})
	case strings.Contains(msg, "Transaction") || strings.Contains(lower, "transaction"):
		return NewAppErrorWithDetails(ErrCodeTransactionFailed, "database transaction failed", map[string]any{"cause": msg})
	case strings.Contains(lower, "storage") || strings.Contains(lower, "s3") || strings.Contains(lower, "file"):
		return NewAppErrorWithDetails(ErrCodeFileProcessingError, "file processing failed", map[string]any{"cause": msg})
	case strings.Contains(lower, "excel") || strings.Contains(lower, "xlsx"):
		return NewAppErrorWithDetails(ErrCodeFileFormatError, "spreadsheet format error", map[string]any{"cause": msg})
	default:
		return NewAppErrorWithDetails(ErrCodeInternalError, "internal error", map[string]any{"cause": msg})
	}
}

func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
