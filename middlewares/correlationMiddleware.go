package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/sellerdash_backend/utils"
)

const CorrelationHeader = "X-Correlation-ID"

// CorrelationId propagates the caller's correlation id or mints one.
func CorrelationId() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Request.Header.Get(CorrelationHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), id))
		c.Header(CorrelationHeader, id)
		c.Next()
	}
}
