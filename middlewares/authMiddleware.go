package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stocklot/marketplace_backend/utils"
)

// AuthMiddleware validates a bearer token when one is present and stashes
// the caller identity in the request context. Requests without a token pass
// through; handlers that need an identity reject on the missing sub.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")

		if auth == "" {
			c.Next()
			return
		}

		const bearer = "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		auth = auth[len(bearer):]

		validate, err := utils.JwtValidate(auth)
		if err != nil || !validate.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		claim, _ := validate.Claims.(*utils.JwtCustomClaim)

		ctx := c.Request.Context()
		ctx = utils.SetTokenInContext(ctx, auth)
		ctx = utils.SetCognitoSubInContext(ctx, claim.Sub)
		ctx = utils.SetIsAdminInContext(ctx, claim.IsAdmin)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
