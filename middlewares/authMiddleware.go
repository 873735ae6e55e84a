package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/sellerdash_backend/utils"
)

// AuthMiddleware reads an optional bearer session token. A request without
// one continues anonymously; an invalid one is rejected.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")
		if auth == "" {
			c.Next()
			return
		}

		bearer := "Bearer "
		if len(auth) <= len(bearer) || !strings.EqualFold(auth[:len(bearer)], bearer) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		token := strings.TrimSpace(auth[len(bearer):])

		claim, err := utils.JwtValidate(secret, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUserIdInContext(ctx, claim.Subject)
		ctx = utils.SetUserNameInContext(ctx, claim.Name)
		ctx = utils.SetUserEmailInContext(ctx, claim.Email)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
