package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/sellerdash_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/me", func(c *gin.Context) {
		user, ok := CtxUser(c.Request.Context())
		if !ok {
			c.JSON(http.StatusOK, gin.H{"anonymous": true})
			return
		}
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"id": user.Id, "name": user.Name, "correlation": cid})
	})
	return r
}

func do(r http.Handler, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func bearer(t *testing.T, secret []byte, userId string) http.Header {
	t.Helper()
	token, err := utils.JwtGenerate(secret, userId, "Asha Rao", "asha@example.com", time.Hour)
	require.NoError(t, err)
	return http.Header{"Authorization": {"Bearer " + token}}
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter(AuthMiddleware(testSecret))

	w := do(r, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "anonymous")

	w = do(r, bearer(t, testSecret, "u-1"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"u-1"`)

	w = do(r, bearer(t, []byte("other"), "u-1"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.Header{"Authorization": {"Basic abc"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireSession(t *testing.T) {
	r := newRouter(AuthMiddleware(testSecret), RequireSession())

	assert.Equal(t, http.StatusUnauthorized, do(r, nil).Code)
	assert.Equal(t, http.StatusOK, do(r, bearer(t, testSecret, "u-1")).Code)
}

func TestCorrelationId(t *testing.T) {
	r := newRouter(CorrelationId(), AuthMiddleware(testSecret))

	h := bearer(t, testSecret, "u-1")
	h.Set(CorrelationHeader, "abc-123")
	w := do(r, h)
	assert.Equal(t, "abc-123", w.Header().Get(CorrelationHeader))
	assert.Contains(t, w.Body.String(), `"correlation":"abc-123"`)

	w = do(r, nil)
	assert.Len(t, w.Header().Get(CorrelationHeader), 36)
}

type memCounter struct {
	mu   sync.Mutex
	hits map[string]int64
	err  error
}

func (m *memCounter) Hit(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	if m.hits == nil {
		m.hits = map[string]int64{}
	}
	m.hits[key]++
	return m.hits[key], nil
}

func TestRateLimiter(t *testing.T) {
	counter := &memCounter{}
	rl := &RateLimiter{counter: counter, limit: 2, window: time.Minute}
	r := newRouter(AuthMiddleware(testSecret), rl.RateLimitMiddleware)

	seller := bearer(t, testSecret, "u-1")
	assert.Equal(t, http.StatusOK, do(r, seller).Code)
	assert.Equal(t, http.StatusOK, do(r, seller).Code)
	w := do(r, seller)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Try again in 60 seconds")

	// a different seller has its own window
	assert.Equal(t, http.StatusOK, do(r, bearer(t, testSecret, "u-2")).Code)
	assert.EqualValues(t, 1, counter.hits["ratelimit:user:u-2"])
}

func TestRateLimiterFailsOpen(t *testing.T) {
	rl := &RateLimiter{counter: &memCounter{err: errors.New("redis down")}, limit: 1, window: time.Minute}
	r := newRouter(rl.RateLimitMiddleware)

	assert.Equal(t, http.StatusOK, do(r, nil).Code)
	assert.Equal(t, http.StatusOK, do(r, nil).Code)
}

func TestRequirePushToken(t *testing.T) {
	push := func(token, query string) int {
		r := gin.New()
		r.POST("/push", RequirePushToken(token), func(c *gin.Context) { c.Status(http.StatusNoContent) })
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/push"+query, nil))
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, push("push-secret", "?token=push-secret"))
	assert.Equal(t, http.StatusUnauthorized, push("push-secret", "?token=wrong"))
	assert.Equal(t, http.StatusUnauthorized, push("push-secret", ""))
	assert.Equal(t, http.StatusUnauthorized, push("", ""))
	assert.Equal(t, http.StatusUnauthorized, push("", "?token="))
}
