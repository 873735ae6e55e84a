package middlewares

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/sellerdash_backend/models"
	"github.com/mmdatafocus/sellerdash_backend/utils"
)

// RequireSession rejects requests that AuthMiddleware did not attach a
// seller to.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetUserIdFromContext(c.Request.Context()); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// CtxUser is the signed-in seller on ctx.
func CtxUser(ctx context.Context) (models.User, bool) {
	id, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return models.User{}, false
	}
	name, _ := utils.GetUserNameFromContext(ctx)
	email, _ := utils.GetUserEmailFromContext(ctx)
	return models.User{Id: id, Name: name, Email: email}, true
}
