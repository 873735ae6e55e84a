package middlewares

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// PushTokenQuery is the query parameter carrying the shared verification
// token configured on the Pub/Sub push subscription URL.
const PushTokenQuery = "token"

// RequirePushToken admits push deliveries whose ?token= matches the
// configured token. An empty configured token admits nothing.
func RequirePushToken(token string) gin.HandlerFunc {
	want := []byte(token)
	return func(c *gin.Context) {
		got := []byte(c.Query(PushTokenQuery))
		if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
