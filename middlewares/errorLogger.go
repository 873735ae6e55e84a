package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/sellerdash_backend/utils"
	"github.com/sirupsen/logrus"
)

// CustomErrorLogger logs the errors handlers attached to the context, and
// nothing for clean requests.
func CustomErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
			logger.WithFields(logrus.Fields{
				"path":           c.FullPath(),
				"status":         c.Writer.Status(),
				"correlation_id": cid,
			}).Error(c.Errors.String())
		}
	}
}
