package middlewares

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/sellerdash_backend/utils"
	"github.com/redis/go-redis/v9"
)

// hitCounter counts requests for a key within a fixed window.
type hitCounter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
}

type redisCounter struct {
	client redis.UniversalClient
}

func (r redisCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// RateLimiter is a fixed-window limiter keyed by seller, or by client IP
// for anonymous requests.
type RateLimiter struct {
	counter hitCounter
	limit   int64
	window  time.Duration
}

func NewRateLimiter(client redis.UniversalClient, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{counter: redisCounter{client: client}, limit: limit, window: window}
}

func (rl *RateLimiter) key(c *gin.Context) string {
	if userId, ok := utils.GetUserIdFromContext(c.Request.Context()); ok {
		return "ratelimit:user:" + userId
	}
	return "ratelimit:ip:" + c.ClientIP()
}

func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	count, err := rl.counter.Hit(c.Request.Context(), rl.key(c), rl.window)
	if err != nil {
		// fail open
		_ = c.Error(fmt.Errorf("rate limiter: %w", err))
		c.Next()
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
