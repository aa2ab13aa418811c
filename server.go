package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stocklot/marketplace_backend/config"
	"github.com/stocklot/marketplace_backend/middlewares"
	"github.com/stocklot/marketplace_backend/models"
	"github.com/stocklot/marketplace_backend/utils"
	"github.com/stocklot/marketplace_backend/workflow"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("marketplace-backend")

type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// rpcEnvelope is the serverless-style request shape for the import RPC:
// identity from the gateway, arguments from the caller.
type rpcEnvelope struct {
	Identity struct {
		Sub string `json:"sub"`
	} `json:"identity"`
	Arguments struct {
		OfferListingPublicId string `json:"offerListingPublicId"`
		OfferFileS3Key       string `json:"offerFileS3Key"`
	} `json:"arguments"`
}

func getRedisClient(redisAddress string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
}

// httpStatusForCode maps the stable error codes onto HTTP statuses for the
// REST surface. The RPC import endpoint ignores this and always returns 200
// with the success flag.
func httpStatusForCode(code string) int {
	switch code {
	case utils.ErrCodeUserNotFound, utils.ErrCodeCatalogListingNotFound,
		utils.ErrCodeCatalogOfferNotFound, utils.ErrCodeItemNotFound,
		utils.ErrCodeRecordNotFound:
		return http.StatusNotFound
	case utils.ErrCodeUnauthorizedSeller:
		return http.StatusForbidden
	case utils.ErrCodeInvalidOfferStatus, utils.ErrCodeNoActiveItems,
		utils.ErrCodeExistingActiveOffer, utils.ErrCodeSelfOfferNotAllowed,
		utils.ErrCodeCatalogListingNotActive, utils.ErrCodeItemNotModifiable,
		utils.ErrCodeVariantAlreadyInOffer, utils.ErrCodeProductAlreadyInOffer,
		utils.ErrCodeDuplicateEntry:
		return http.StatusConflict
	case utils.ErrCodeDatabaseError, utils.ErrCodeTransactionFailed,
		utils.ErrCodeInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func respondError(c *gin.Context, appErr *utils.AppError) {
	c.JSON(httpStatusForCode(appErr.Code), gin.H{
		"success": false,
		"error":   appErr,
	})
}

// resolveCaller loads the authenticated user for REST handlers.
func resolveCaller(c *gin.Context) (*models.User, *utils.AppError) {
	sub, ok := utils.GetCognitoSubFromContext(c.Request.Context())
	if !ok || strings.TrimSpace(sub) == "" {
		return nil, utils.NewAppError(utils.ErrCodeCognitoIdRequired, "caller identity is required")
	}
	user, err := models.GetUserByCognitoSub(c.Request.Context(), sub)
	if err != nil {
		return nil, utils.NormalizeDBError(err)
	}
	if user == nil {
		return nil, utils.NewAppError(utils.ErrCodeUserNotFound, "no user for the supplied identity")
	}
	return user, nil
}

// importCatalogOfferHandler is the ingestion entry point. It mirrors the
// serverless contract: the response is always JSON with a success flag,
// never a transport-level error, so the returned status is 200 for both
// outcomes.
func importCatalogOfferHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "importCatalogOffer")
		defer span.End()

		var envelope rpcEnvelope
		if err := c.ShouldBindJSON(&envelope); err != nil {
			c.JSON(http.StatusOK, gin.H{
				"success": false,
				"error":   utils.NewAppError(utils.ErrCodeInternalError, "malformed request body"),
			})
			return
		}

		sub := envelope.Identity.Sub
		if sub == "" {
			// Fall back to the authenticated session when the gateway
			// didn't inline the identity.
			sub, _ = utils.GetCognitoSubFromContext(ctx)
		}

		result := workflow.ImportOfferFromFile(ctx, &workflow.ImportOfferInput{
			CognitoSub:      sub,
			ListingPublicId: envelope.Arguments.OfferListingPublicId,
			FileKey:         envelope.Arguments.OfferFileS3Key,
		})
		if !result.Success {
			c.JSON(http.StatusOK, gin.H{
				"success": false,
				"error":   result.Error,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":          true,
			"catalog_offer_id": result.Data.CatalogOfferPublicId,
			"data":             result.Data,
			"message":          fmt.Sprintf("offer created with %d items", result.Data.ItemCount),
		})
	}
}

func getOfferDetailsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		user, appErr := resolveCaller(c)
		if appErr != nil {
			respondError(c, appErr)
			return
		}

		details, err := models.GetOfferDetails(ctx, c.Param("publicId"))
		if err != nil {
			config.LogError(config.GetLogger(), "server.go", "getOfferDetailsHandler", "GetOfferDetails", c.Param("publicId"), err)
			respondError(c, utils.NormalizeDBError(err))
			return
		}
		if details == nil {
			respondError(c, utils.NewAppError(utils.ErrCodeCatalogOfferNotFound, "offer not found"))
			return
		}

		isAdmin, _ := utils.GetIsAdminFromContext(ctx)
		if !isAdmin && details.SellerUserId != user.ID && details.BuyerUserId != user.ID {
			respondError(c, utils.NewAppError(utils.ErrCodeCatalogOfferNotFound, "offer not found"))
			return
		}

		sanitized, err := models.SanitizeOfferDetails(details)
		if err != nil {
			respondError(c, utils.NormalizeDBError(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": sanitized})
	}
}

// buildOfferFilter scopes a listing query to the caller: sellers see offers
// received, buyers see offers submitted.
func buildOfferFilter(c *gin.Context, user *models.User) (*models.OfferFilter, *utils.AppError) {
	filter := &models.OfferFilter{}

	if c.Query("role") == "seller" {
		filter.SellerUserId = &user.ID
	} else {
		filter.BuyerUserId = &user.ID
	}

	if status := strings.TrimSpace(c.Query("status")); status != "" {
		offerStatus := models.CatalogOfferStatus(strings.ToUpper(status))
		filter.Status = &offerStatus
	}

	if listingPublicId := strings.TrimSpace(c.Query("listing_id")); listingPublicId != "" {
		listing, err := models.GetListingByPublicId(c.Request.Context(), listingPublicId)
		if err != nil {
			return nil, utils.NormalizeDBError(err)
		}
		if listing == nil {
			return nil, utils.NewAppError(utils.ErrCodeCatalogListingNotFound, "listing not found")
		}
		filter.ListingId = &listing.ID
	}
	return filter, nil
}

func listOffersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, appErr := resolveCaller(c)
		if appErr != nil {
			respondError(c, appErr)
			return
		}

		filter, appErr := buildOfferFilter(c, user)
		if appErr != nil {
			respondError(c, appErr)
			return
		}

		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

		offers, err := models.ListOffers(c.Request.Context(), filter, page, limit)
		if err != nil {
			config.LogError(config.GetLogger(), "server.go", "listOffersHandler", "ListOffers", filter, err)
			respondError(c, utils.NormalizeDBError(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": offers})
	}
}

func offerAnalyticsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, appErr := resolveCaller(c)
		if appErr != nil {
			respondError(c, appErr)
			return
		}

		filter, appErr := buildOfferFilter(c, user)
		if appErr != nil {
			respondError(c, appErr)
			return
		}

		analytics, err := models.GetOfferAnalytics(c.Request.Context(), filter)
		if err != nil {
			config.LogError(config.GetLogger(), "server.go", "offerAnalyticsHandler", "GetOfferAnalytics", filter, err)
			respondError(c, utils.NormalizeDBError(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": analytics})
	}
}

func acceptOfferHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, appErr := resolveCaller(c)
		if appErr != nil {
			respondError(c, appErr)
			return
		}
		result := models.AcceptCatalogOffer(c.Request.Context(), c.Param("publicId"), user.ID)
		if !result.Success {
			respondError(c, result.Error)
			return
		}
		notifyOfferDecision(c, result.Data, config.NotificationEventOfferAccepted)
		c.JSON(http.StatusOK, gin.H{"success": true, "data": result.Data})
	}
}

func rejectOfferHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, appErr := resolveCaller(c)
		if appErr != nil {
			respondError(c, appErr)
			return
		}
		result := models.RejectCatalogOffer(c.Request.Context(), c.Param("publicId"), user.ID)
		if !result.Success {
			respondError(c, result.Error)
			return
		}
		notifyOfferDecision(c, result.Data, config.NotificationEventOfferRejected)
		c.JSON(http.StatusOK, gin.H{"success": true, "data": result.Data})
	}
}

// notifyOfferDecision tells the buyer about an accept/reject. Best-effort.
func notifyOfferDecision(c *gin.Context, offer *models.CatalogOffer, eventType string) {
	ctx := c.Request.Context()
	buyer, err := utils.FetchModel[models.User](ctx, offer.BuyerUserId)
	if err != nil {
		config.LogError(config.GetLogger(), "server.go", "notifyOfferDecision", "FetchModel buyer", offer.BuyerUserId, err)
		return
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	listingPublicId := ""
	if offer.Listing != nil {
		listingPublicId = offer.Listing.PublicId
	}
	msg := &config.NotificationMessage{
		RecipientUserPublicId: buyer.PublicId,
		EventType:             eventType,
		OfferPublicId:         offer.PublicId,
		ListingPublicId:       listingPublicId,
		OccurredAt:            time.Now().UTC(),
		CorrelationId:         correlationId,
	}
	if err := config.PublishNotification(ctx, msg); err != nil {
		config.LogError(config.GetLogger(), "server.go", "notifyOfferDecision", eventType, msg, err)
	}
}

func counterOfferItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, appErr := resolveCaller(c)
		if appErr != nil {
			respondError(c, appErr)
			return
		}

		var input models.CounterOfferInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, utils.NewAppError(utils.ErrCodeInternalError, "malformed request body"))
			return
		}

		result := models.CounterOfferItem(c.Request.Context(), c.Param("publicId"), c.Param("itemPublicId"), user.ID, &input)
		if !result.Success {
			respondError(c, result.Error)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": result.Data})
	}
}

func removeOfferItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, appErr := resolveCaller(c)
		if appErr != nil {
			respondError(c, appErr)
			return
		}
		result := models.RemoveOfferItem(c.Request.Context(), c.Param("publicId"), c.Param("itemPublicId"), user.ID)
		if !result.Success {
			respondError(c, result.Error)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": result.Data})
	}
}

// expireOffersHandler runs the expiry sweep on demand. Admin only; the
// periodic sweeper covers the steady state.
func expireOffersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		isAdmin, _ := utils.GetIsAdminFromContext(c.Request.Context())
		if !isAdmin {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		expired, err := models.ExpireStaleOffers(c.Request.Context(), time.Now().UTC())
		if err != nil {
			respondError(c, utils.NormalizeDBError(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "expired": expired})
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until the DB is ready, app endpoints return 503.
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(func(c *gin.Context) {
		// Always allow the startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production, require an explicit allowlist via CORS_ALLOWED_ORIGINS.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", "X-Correlation-Id")
	corsConfig.AddExposeHeaders("Content-Length", "X-Correlation-Id")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	// Optional rate limiting.
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := getRedisClient(os.Getenv("REDIS_ADDRESS"))
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/rpc/import-catalog-offer", importCatalogOfferHandler())
	r.GET("/catalog-offers", listOffersHandler())
	r.GET("/catalog-offers/analytics", offerAnalyticsHandler())
	r.GET("/catalog-offers/:publicId", getOfferDetailsHandler())
	r.POST("/catalog-offers/:publicId/accept", acceptOfferHandler())
	r.POST("/catalog-offers/:publicId/reject", rejectOfferHandler())
	r.POST("/catalog-offers/:publicId/items/:itemPublicId/counter", counterOfferItemHandler())
	r.POST("/catalog-offers/:publicId/items/:itemPublicId/remove", removeOfferItemHandler())
	r.POST("/internal/ops/expire-offers", expireOffersHandler())
	r.NoRoute(customNotFoundHandler)

	// Start listening immediately (the startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow disabling migrations
	// on startup and running them as a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	sweeperCtx, cancelSweeper := context.WithCancel(context.Background())
	defer cancelSweeper()
	go workflow.NewExpirySweeper(db, logger).Run(sweeperCtx)

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop the sweeper first so it doesn't start new work while draining.
	cancelSweeper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger logs only requests that accumulated gin errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	key := c.ClientIP()

	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if exists == 0 {
		err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
