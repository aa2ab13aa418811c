package workflow

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stocklot/marketplace_backend/config"
	"github.com/stocklot/marketplace_backend/importer"
	"github.com/stocklot/marketplace_backend/models"
	"github.com/stocklot/marketplace_backend/utils"
)

// Imported offers stay open for counter-offers this long before the expiry
// sweep closes them.
const offerValidityDays = 7

const defaultOfferCurrency = "USD"

type ImportOfferInput struct {
	CognitoSub      string `json:"cognito_sub"`
	ListingPublicId string `json:"offer_listing_public_id"`
	FileKey         string `json:"offer_file_s3_key"`
}

// ImportOfferOutput summarizes a successful import for the caller.
type ImportOfferOutput struct {
	CatalogOfferPublicId string                    `json:"catalog_offer_id"`
	ListingPublicId      string                    `json:"listing_public_id"`
	ItemCount            int                       `json:"item_count"`
	TotalOfferValue      string                    `json:"total_offer_value"`
	Currency             string                    `json:"currency"`
	SkippedSkus          []string                  `json:"skipped_skus,omitempty"`
	CurrencySummary      *importer.CurrencySummary `json:"currency_summary,omitempty"`
}

// ImportOfferFromFile runs the ingestion pipeline for one uploaded offer
// spreadsheet: caller and listing eligibility, duplicate-offer check, file
// download and parse, catalog resolution, offer creation, notifications.
// Guards are evaluated in order and short-circuit on the first failure.
func ImportOfferFromFile(ctx context.Context, input *ImportOfferInput) (result utils.Result[*ImportOfferOutput]) {
	logger := config.GetLogger()

	defer func() {
		if r := recover(); r != nil {
			config.LogError(logger, "offerImportWorkflow.go", "ImportOfferFromFile", "panic recovered", input, fmt.Errorf("%v", r))
			result = utils.Fail[*ImportOfferOutput](utils.NormalizeDBError(fmt.Errorf("%v", r)))
		}
	}()

	if strings.TrimSpace(input.CognitoSub) == "" {
		return utils.FailCode[*ImportOfferOutput](utils.ErrCodeCognitoIdRequired, "caller identity is required")
	}
	if strings.TrimSpace(input.ListingPublicId) == "" {
		return utils.FailCode[*ImportOfferOutput](utils.ErrCodeListingPublicIdRequired, "offerListingPublicId is required")
	}
	if strings.TrimSpace(input.FileKey) == "" {
		return utils.FailCode[*ImportOfferOutput](utils.ErrCodeOfferFileS3KeyRequired, "offerFileS3Key is required")
	}

	user, err := models.GetUserByCognitoSub(ctx, input.CognitoSub)
	if err != nil {
		return utils.Fail[*ImportOfferOutput](utils.NormalizeDBError(err))
	}
	if user == nil {
		return utils.FailCode[*ImportOfferOutput](utils.ErrCodeUserNotFound, "no user for the supplied identity")
	}
	buyer := user.BuyerProfile
	if buyer == nil {
		return utils.FailCode[*ImportOfferOutput](utils.ErrCodeBuyerProfileNotFound, "caller has no buyer profile")
	}
	if buyer.VerificationStatus != models.VerificationStatusVerified {
		return utils.FailCode[*ImportOfferOutput](utils.ErrCodeBuyerNotVerified, "buyer profile is not verified")
	}
	if utils.DereferencePtr(buyer.AccountLocked) {
		return utils.FailCode[*ImportOfferOutput](utils.ErrCodeAccountLocked, "buyer account is locked")
	}
	if buyer.RiskScore != nil && *buyer.RiskScore > models.MaxImportRiskScore {
		return utils.FailCode[*ImportOfferOutput](utils.ErrCodeHighRiskAccount, "buyer risk score is too high to submit offers")
	}

	listing, err := models.GetListingByPublicId(ctx, input.ListingPublicId)
	if err != nil {
		return utils.Fail[*ImportOfferOutput](utils.NormalizeDBError(err))
	}
	if listing == nil {
		return utils.FailCode[*ImportOfferOutput](utils.ErrCodeCatalogListingNotFound, "listing not found")
	}
	if listing.Status != models.CatalogListingStatusActive {
		return utils.FailCode[*ImportOfferOutput](utils.ErrCodeCatalogListingNotActive, "listing is not accepting offers")
	}
	if listing.SellerUserId == user.ID {
		return utils.FailCode[*ImportOfferOutput](utils.ErrCodeSelfOfferNotAllowed, "sellers cannot submit offers on their own listings")
	}

	release := AcquireImportLock(ctx, user.ID, listing.PublicId)
	defer release()

	existing, err := models.FindActiveOfferForBuyer(ctx, listing.ID, user.ID)
	if err != nil {
		return utils.Fail[*ImportOfferOutput](utils.NormalizeDBError(err))
	}
	if existing != nil {
		return utils.Fail[*ImportOfferOutput](utils.NewAppErrorWithDetails(
			utils.ErrCodeExistingActiveOffer,
			"an active offer already exists for this listing",
			map[string]any{
				"existing_offer_public_id": existing.PublicId,
				"existing_offer_status":    existing.Status,
				"suggested_actions":        []string{"CANCEL_EXISTING_OFFER", "WAIT_FOR_SELLER_RESPONSE", "MODIFY_EXISTING_OFFER"},
			}))
	}

	fileBytes, err := fetchOfferFile(ctx, input.FileKey)
	if err != nil {
		return failWithAudit(ctx, logger, input, user.ID, "",
			utils.NewAppErrorWithDetails(utils.ErrCodeFileReadError,
				"offer file could not be read",
				map[string]any{"cause": err.Error()}), 0, 0)
	}

	parsed := importer.ParseOfferSheet(fileBytes)
	if !parsed.Success {
		return failWithAudit(ctx, logger, input, user.ID, "",
			utils.NewAppErrorWithDetails(utils.ErrCodeParseError,
				"offer file could not be parsed",
				map[string]any{"errors": parsed.Errors}),
			len(parsed.ExtractedItems), 0)
	}

	validItems := validOfferItems(parsed.ExtractedItems)
	if len(validItems) == 0 {
		return failWithAudit(ctx, logger, input, user.ID, utils.ErrCodeNoValidOfferItems,
			utils.NewAppError(utils.ErrCodeNoValidOfferItems,
				"no rows contain both a quantity and a price greater than zero"),
			len(parsed.ExtractedItems), 0)
	}

	lines, skippedSkus, err := resolveOfferLines(ctx, validItems, offerCurrency(parsed))
	if err != nil {
		return utils.Fail[*ImportOfferOutput](utils.NormalizeDBError(err))
	}
	if len(lines) == 0 {
		return failWithAudit(ctx, logger, input, user.ID, utils.ErrCodeNoValidOfferItems,
			utils.NewAppErrorWithDetails(utils.ErrCodeNoValidOfferItems,
				"no rows matched a product in the seller's catalog",
				map[string]any{"skipped_skus": skippedSkus}),
			len(parsed.ExtractedItems), len(validItems))
	}

	expiresAt := time.Now().UTC().AddDate(0, 0, offerValidityDays)
	offer, err := models.CreateCatalogOffer(ctx, &models.NewCatalogOffer{
		ListingId:       listing.ID,
		SellerUserId:    listing.SellerUserId,
		SellerProfileId: listing.SellerProfileId,
		BuyerUserId:     user.ID,
		BuyerProfileId:  buyer.ID,
		Currency:        offerCurrency(parsed),
		ExpiresAt:       &expiresAt,
		Items:           lines,
	})
	if err != nil {
		appErr := utils.NormalizeDBError(err)
		recordAudit(ctx, input, user.ID, models.ImportAuditStatusFailed, appErr.Code, "",
			len(parsed.ExtractedItems), len(validItems))
		return utils.Fail[*ImportOfferOutput](appErr)
	}

	notifyOfferCreated(ctx, logger, user, listing, offer)
	recordAudit(ctx, input, user.ID, models.ImportAuditStatusSucceeded, "", offer.PublicId,
		len(parsed.ExtractedItems), len(validItems))

	return utils.Ok(&ImportOfferOutput{
		CatalogOfferPublicId: offer.PublicId,
		ListingPublicId:      listing.PublicId,
		ItemCount:            len(lines),
		TotalOfferValue:      offer.TotalOfferValue.String(),
		Currency:             offer.Currency,
		SkippedSkus:          skippedSkus,
		CurrencySummary:      &parsed.CurrencySummary,
	})
}

// fetchOfferFile gates on extension and stored size before downloading, so a
// 11MB object is rejected without ever buffering it.
func fetchOfferFile(ctx context.Context, fileKey string) ([]byte, error) {
	size, err := utils.ObjectSize(ctx, fileKey)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateOfferFile(fileKey, size); err != nil {
		return nil, err
	}
	return utils.DownloadObject(ctx, fileKey)
}

func validOfferItems(items []*importer.ExtractedOfferItem) []*importer.ExtractedOfferItem {
	valid := make([]*importer.ExtractedOfferItem, 0, len(items))
	for _, item := range items {
		if item != nil && item.HasValidOffer {
			valid = append(valid, item)
		}
	}
	return valid
}

func offerCurrency(parsed *importer.ParseResult) string {
	if parsed.CurrencySummary.PrimaryCurrency != "" {
		return parsed.CurrencySummary.PrimaryCurrency
	}
	return defaultOfferCurrency
}

// resolveOfferLines matches extracted rows against the catalog by SKU.
// Unmatched and duplicate SKUs are skipped, never fatal: the buyer gets the
// offer for whatever did resolve, plus the skipped list.
func resolveOfferLines(ctx context.Context, items []*importer.ExtractedOfferItem, currency string) ([]*models.NewCatalogOfferItem, []string, error) {
	lines := make([]*models.NewCatalogOfferItem, 0, len(items))
	var skipped []string
	seenSkus := map[string]bool{}

	for _, item := range items {
		if seenSkus[item.Sku] {
			skipped = append(skipped, item.Sku)
			continue
		}
		seenSkus[item.Sku] = true

		variant, err := models.FindVariantBySku(ctx, item.Sku)
		if err != nil {
			return nil, nil, err
		}
		if variant == nil {
			skipped = append(skipped, item.Sku)
			continue
		}

		qty := int(math.Round(importer.ParseNumericValue(item.SelectedQty)))
		price := importer.ParseNumericValue(item.PricePerUnit)
		if qty <= 0 || math.IsNaN(price) || price <= 0 {
			skipped = append(skipped, item.Sku)
			continue
		}

		variantId := variant.ID
		lines = append(lines, &models.NewCatalogOfferItem{
			ProductId: variant.ProductId,
			VariantId: &variantId,
			Quantity:  qty,
			UnitPrice: decimal.NewFromFloat(price),
			Currency:  currency,
		})
	}
	return lines, skipped, nil
}

// notifyOfferCreated publishes buyer and seller notifications. Failures are
// logged and swallowed: a lost notification never fails an import.
func notifyOfferCreated(ctx context.Context, logger *logrus.Logger, buyer *models.User, listing *models.CatalogListing, offer *models.CatalogOffer) {
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)

	buyerMsg := &config.NotificationMessage{
		RecipientUserPublicId: buyer.PublicId,
		EventType:             config.NotificationEventOfferCreated,
		OfferPublicId:         offer.PublicId,
		ListingPublicId:       listing.PublicId,
		OccurredAt:            time.Now().UTC(),
		CorrelationId:         correlationId,
	}
	if err := config.PublishNotification(ctx, buyerMsg); err != nil {
		config.LogError(logger, "offerImportWorkflow.go", "notifyOfferCreated", "buyer notification", buyerMsg, err)
	}

	seller, err := utils.FetchModel[models.User](ctx, listing.SellerUserId)
	if err != nil {
		config.LogError(logger, "offerImportWorkflow.go", "notifyOfferCreated", "FetchModel seller", listing.SellerUserId, err)
		return
	}
	sellerMsg := &config.NotificationMessage{
		RecipientUserPublicId: seller.PublicId,
		EventType:             config.NotificationEventOfferReceived,
		OfferPublicId:         offer.PublicId,
		ListingPublicId:       listing.PublicId,
		OccurredAt:            time.Now().UTC(),
		CorrelationId:         correlationId,
	}
	if err := config.PublishNotification(ctx, sellerMsg); err != nil {
		config.LogError(logger, "offerImportWorkflow.go", "notifyOfferCreated", "seller notification", sellerMsg, err)
	}
}

func recordAudit(ctx context.Context, input *ImportOfferInput, buyerUserId int, status models.ImportAuditStatus, errorCode string, offerPublicId string, extractedRows int, validRows int) {
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	models.RecordImportAudit(ctx, &models.OfferImportAudit{
		BuyerUserId:     buyerUserId,
		ListingPublicId: input.ListingPublicId,
		FileKey:         input.FileKey,
		Status:          status,
		ErrorCode:       errorCode,
		OfferPublicId:   offerPublicId,
		ExtractedRows:   extractedRows,
		ValidRows:       validRows,
		CorrelationId:   correlationId,
	})
}

func failWithAudit(ctx context.Context, logger *logrus.Logger, input *ImportOfferInput, buyerUserId int, errorCode string, appErr *utils.AppError, extractedRows int, validRows int) utils.Result[*ImportOfferOutput] {
	code := errorCode
	if code == "" {
		code = appErr.Code
	}
	config.LogError(logger, "offerImportWorkflow.go", "ImportOfferFromFile", code, input, appErr)
	recordAudit(ctx, input, buyerUserId, models.ImportAuditStatusFailed, code, "", extractedRows, validRows)
	return utils.Fail[*ImportOfferOutput](appErr)
}
