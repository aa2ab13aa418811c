package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stocklot/marketplace_backend/config"
	"github.com/stocklot/marketplace_backend/models"
	"github.com/stocklot/marketplace_backend/utils"
	"github.com/stocklot/marketplace_backend/workflow"
	"github.com/xuri/excelize/v2"
)

func TestOfferLifecycle(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "marketplace_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}

	// Seed seller, buyer, catalog, listing.
	seller := models.User{PublicId: utils.GeneratePublicId(), CognitoSub: "it-seller", Username: "it-seller", Email: "seller@it.local"}
	if err := db.Create(&seller).Error; err != nil {
		t.Fatalf("create seller: %v", err)
	}
	sellerProfile := models.SellerProfile{PublicId: utils.GeneratePublicId(), UserId: seller.ID, CompanyName: "IT Surplus"}
	if err := db.Create(&sellerProfile).Error; err != nil {
		t.Fatalf("create seller profile: %v", err)
	}

	buyer := models.User{PublicId: utils.GeneratePublicId(), CognitoSub: "it-buyer", Username: "it-buyer", Email: "buyer@it.local"}
	if err := db.Create(&buyer).Error; err != nil {
		t.Fatalf("create buyer: %v", err)
	}
	buyerProfile := models.BuyerProfile{
		PublicId:           utils.GeneratePublicId(),
		UserId:             buyer.ID,
		VerificationStatus: models.VerificationStatusVerified,
		AccountLocked:      utils.NewFalse(),
	}
	if err := db.Create(&buyerProfile).Error; err != nil {
		t.Fatalf("create buyer profile: %v", err)
	}

	brand := models.Brand{Name: "IT Brand"}
	if err := db.Create(&brand).Error; err != nil {
		t.Fatalf("create brand: %v", err)
	}
	product := models.Product{PublicId: utils.GeneratePublicId(), BrandId: brand.ID, Name: "Widget", Category: "Hardware"}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	variant := models.ProductVariant{
		PublicId:   utils.GeneratePublicId(),
		ProductId:  product.ID,
		Name:       "Widget Standard",
		Sku:        "WIDGET-001",
		OfferPrice: decimal.NewFromInt(20),
		Currency:   "USD",
	}
	if err := db.Create(&variant).Error; err != nil {
		t.Fatalf("create variant: %v", err)
	}

	listing := models.CatalogListing{
		PublicId:        utils.GeneratePublicId(),
		SellerUserId:    seller.ID,
		SellerProfileId: sellerProfile.ID,
		Title:           "IT Lot",
		Status:          models.CatalogListingStatusActive,
	}
	if err := db.Create(&listing).Error; err != nil {
		t.Fatalf("create listing: %v", err)
	}

	newOffer := func() *models.CatalogOffer {
		variantId := variant.ID
		offer, err := models.CreateCatalogOffer(ctx, &models.NewCatalogOffer{
			ListingId:       listing.ID,
			SellerUserId:    seller.ID,
			SellerProfileId: sellerProfile.ID,
			BuyerUserId:     buyer.ID,
			BuyerProfileId:  buyerProfile.ID,
			Currency:        "USD",
			Items: []*models.NewCatalogOfferItem{
				{ProductId: product.ID, VariantId: &variantId, Quantity: 10, UnitPrice: decimal.NewFromInt(15), Currency: "USD"},
			},
		})
		if err != nil {
			t.Fatalf("CreateCatalogOffer: %v", err)
		}
		return offer
	}
	offer := newOffer()

	if !offer.TotalOfferValue.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected total 150, got %s", offer.TotalOfferValue)
	}

	// Round defaults to 1 with only the initial buyer negotiations.
	round, err := models.GetCurrentRound(ctx, offer.ID)
	if err != nil || round != 1 {
		t.Fatalf("expected round 1, got %d (%v)", round, err)
	}

	// Authorization is checked before status.
	check := models.ValidateOfferModifiable(ctx, offer.PublicId, buyer.ID, true)
	if check.Success || check.Error.Code != utils.ErrCodeUnauthorizedSeller {
		t.Fatalf("expected UNAUTHORIZED_SELLER, got %+v", check.Error)
	}
	check = models.ValidateOfferModifiable(ctx, offer.PublicId, seller.ID, true)
	if !check.Success {
		t.Fatalf("seller must pass the gate: %+v", check.Error)
	}

	var item models.CatalogOfferItem
	if err := db.Where("catalog_offer_id = ?", offer.ID).First(&item).Error; err != nil {
		t.Fatalf("fetch item: %v", err)
	}

	// Seller counters: new round, version bump, offer moves to NEGOTIATING.
	counter := models.CounterOfferItem(ctx, offer.PublicId, item.PublicId, seller.ID, &models.CounterOfferInput{
		OfferedPrice:    decimal.NewFromInt(18),
		OfferedQuantity: 8,
		Message:         "can do 18 at 8 units",
		ExpectedVersion: item.ItemVersion,
	})
	if !counter.Success {
		t.Fatalf("CounterOfferItem: %+v", counter.Error)
	}
	if counter.Data.ItemVersion != item.ItemVersion+1 {
		t.Fatalf("expected version bump to %d, got %d", item.ItemVersion+1, counter.Data.ItemVersion)
	}
	round, _ = models.GetCurrentRound(ctx, offer.ID)
	if round != 2 {
		t.Fatalf("expected round 2 after a counter, got %d", round)
	}

	// Stale version is rejected.
	stale := models.CounterOfferItem(ctx, offer.PublicId, item.PublicId, seller.ID, &models.CounterOfferInput{
		OfferedPrice:    decimal.NewFromInt(17),
		OfferedQuantity: 8,
		ExpectedVersion: item.ItemVersion,
	})
	if stale.Success {
		t.Fatal("stale expected_version must be rejected")
	}

	// Read-model surfaces the seller-side negotiation with precedence.
	details, err := models.GetOfferDetails(ctx, offer.PublicId)
	if err != nil {
		t.Fatalf("GetOfferDetails: %v", err)
	}
	if details.Status != models.CatalogOfferStatusNegotiating {
		t.Fatalf("expected NEGOTIATING, got %s", details.Status)
	}
	if len(details.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(details.Items))
	}
	current := details.Items[0].CurrentNegotiation
	if current == nil || current.Side != models.CurrentNegotiationSeller {
		t.Fatalf("expected seller-side current negotiation, got %+v", current)
	}
	if current.OfferedPrice != 18 {
		t.Fatalf("expected countered price 18, got %v", current.OfferedPrice)
	}

	// Pagination across several offers.
	newOffer()
	newOffer()
	page, err := models.ListOffers(ctx, &models.OfferFilter{BuyerUserId: &buyer.ID}, 2, 2)
	if err != nil {
		t.Fatalf("ListOffers: %v", err)
	}
	if page.Pagination.TotalPages != 2 || len(page.Offers) != 1 {
		t.Fatalf("3 offers at limit 2: expected page 2 to hold 1 offer over 2 pages, got %d offers, %d pages",
			len(page.Offers), page.Pagination.TotalPages)
	}

	// Accept transitions to a terminal state; a second accept is refused.
	accept := models.AcceptCatalogOffer(ctx, offer.PublicId, seller.ID)
	if !accept.Success {
		t.Fatalf("AcceptCatalogOffer: %+v", accept.Error)
	}
	if accept.Data.Status != models.CatalogOfferStatusAccepted {
		t.Fatalf("expected ACCEPTED, got %s", accept.Data.Status)
	}
	again := models.AcceptCatalogOffer(ctx, offer.PublicId, seller.ID)
	if again.Success || again.Error.Code != utils.ErrCodeInvalidOfferStatus {
		t.Fatalf("expected INVALID_OFFER_STATUS on re-accept, got %+v", again.Error)
	}

	// A variant-bearing item without its variant row is a data-integrity
	// fault and fails the whole read.
	broken := newOffer()
	missingVariantId := variant.ID + 100000
	if err := db.Model(&models.CatalogOfferItem{}).
		Where("catalog_offer_id = ?", broken.ID).
		Update("catalog_product_variant_id", missingVariantId).Error; err != nil {
		t.Fatalf("break item: %v", err)
	}
	if _, err := models.GetOfferDetails(ctx, broken.PublicId); err == nil {
		t.Fatal("expected integrity error for missing variant relation")
	} else if !errors.Is(err, utils.ErrorDataIntegrity) {
		t.Fatalf("expected ErrorDataIntegrity, got %v", err)
	}

	// Import pipeline end to end through the local storage provider: the
	// size gate, the parse/validity split, and a successful create. A fresh
	// buyer keeps the duplicate-offer guard out of the way.
	importBuyer := models.User{PublicId: utils.GeneratePublicId(), CognitoSub: "it-import-buyer", Username: "it-import-buyer", Email: "import-buyer@it.local"}
	if err := db.Create(&importBuyer).Error; err != nil {
		t.Fatalf("create import buyer: %v", err)
	}
	importBuyerProfile := models.BuyerProfile{
		PublicId:           utils.GeneratePublicId(),
		UserId:             importBuyer.ID,
		VerificationStatus: models.VerificationStatusVerified,
		AccountLocked:      utils.NewFalse(),
	}
	if err := db.Create(&importBuyerProfile).Error; err != nil {
		t.Fatalf("create import buyer profile: %v", err)
	}

	fileDir := t.TempDir()
	t.Setenv("STORAGE_PROVIDER", "local")
	t.Setenv("OFFER_FILES_DIR", fileDir)

	writeOfferFile := func(name string, data []byte) string {
		t.Helper()
		if err := os.WriteFile(filepath.Join(fileDir, name), data, 0o644); err != nil {
			t.Fatalf("write offer file %s: %v", name, err)
		}
		return name
	}
	runImport := func(fileKey string) utils.Result[*workflow.ImportOfferOutput] {
		return workflow.ImportOfferFromFile(ctx, &workflow.ImportOfferInput{
			CognitoSub:      importBuyer.CognitoSub,
			ListingPublicId: listing.PublicId,
			FileKey:         fileKey,
		})
	}

	// Oversized object is rejected on its stored size, before any parsing.
	oversized := writeOfferFile("oversized.xlsx", make([]byte, utils.MaxOfferFileSizeBytes+1))
	res := runImport(oversized)
	if res.Success || res.Error.Code != utils.ErrCodeFileReadError {
		t.Fatalf("oversized file: expected FILE_READ_ERROR, got %+v", res.Error)
	}

	// Structurally unreadable bytes are a parse failure.
	garbage := writeOfferFile("garbage.xlsx", []byte("not a workbook"))
	res = runImport(garbage)
	if res.Success || res.Error.Code != utils.ErrCodeParseError {
		t.Fatalf("garbage bytes: expected PARSE_ERROR, got %+v", res.Error)
	}

	// A well-formed sheet where no row passes the validity gate is a
	// distinct failure from a parse error.
	allInvalid := writeOfferFile("all-invalid.xlsx", offerWorkbookBytes(t, [][]interface{}{
		{"SKU", "Product Name", "Selected Qty", "Price/Unit"},
		{"WIDGET-001", "Widget", "0", "$5.00"},
		{"WIDGET-001", "Widget", "2", ""},
	}))
	res = runImport(allInvalid)
	if res.Success || res.Error.Code != utils.ErrCodeNoValidOfferItems {
		t.Fatalf("all-invalid sheet: expected NO_VALID_OFFER_ITEMS, got %+v", res.Error)
	}
	var auditCount int64
	if err := db.Model(&models.OfferImportAudit{}).
		Where("buyer_user_id = ? AND error_code = ?", importBuyer.ID, utils.ErrCodeNoValidOfferItems).
		Count(&auditCount).Error; err != nil || auditCount != 1 {
		t.Fatalf("expected 1 audit row for the invalid sheet, got %d (%v)", auditCount, err)
	}

	// A valid sheet creates the offer.
	valid := writeOfferFile("valid.xlsx", offerWorkbookBytes(t, [][]interface{}{
		{"SKU", "Product Name", "Selected Qty", "Price/Unit"},
		{"WIDGET-001", "Widget", "5", "$12.50"},
	}))
	res = runImport(valid)
	if !res.Success {
		t.Fatalf("valid sheet: %+v", res.Error)
	}
	if !utils.IsPublicId(res.Data.CatalogOfferPublicId) {
		t.Fatalf("expected a public offer id, got %q", res.Data.CatalogOfferPublicId)
	}
	if res.Data.ItemCount != 1 || res.Data.TotalOfferValue != "62.5" || res.Data.Currency != "USD" {
		t.Fatalf("unexpected import output: %+v", res.Data)
	}
}

func offerWorkbookBytes(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("marketplace-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("marketplace-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=marketplace_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
