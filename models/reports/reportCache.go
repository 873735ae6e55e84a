package reports

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/sellerdash_backend/config"
	"github.com/mmdatafocus/sellerdash_backend/models"
)

const summaryLockTTL = 90 * time.Second

// SummaryCacheKey identifies one AI summary: the same seller, pincode and
// inventory produce the same key.
func SummaryCacheKey(userId, pincode string, products []models.Product) string {
	parts := make([]string, 0, len(products))
	for _, p := range products {
		parts = append(parts, p.DocumentId+":"+p.Name+":"+p.Category+":"+strconv.Itoa(p.Stock))
	}
	sort.Strings(parts)
	h := sha256.New()
	h.Write([]byte(pincode))
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return fmt.Sprintf("sellerdash:summary:%s:%s", userId, hex.EncodeToString(h.Sum(nil))[:16])
}

func ReturnsCacheKey(userId string) string {
	return "sellerdash:returns:" + userId
}

func cacheGet[T any](ctx context.Context, cache *config.Cache, key string, dest *T) (bool, error) {
	return cache.GetObject(ctx, key, dest)
}

func cacheSet(ctx context.Context, cache *config.Cache, key string, obj any, ttl time.Duration) error {
	return cache.SetObject(ctx, key, obj, ttl)
}

// SummaryCache stores generated dashboard summaries and serialises their
// generation per seller across replicas.
type SummaryCache struct {
	cache   *config.Cache
	enabled bool
	ttl     time.Duration
}

func NewSummaryCache(cache *config.Cache, cfg config.ReportCacheConfig) *SummaryCache {
	return &SummaryCache{cache: cache, enabled: cfg.Enabled && cache != nil, ttl: cfg.TTL}
}

func (s *SummaryCache) Get(ctx context.Context, key string) (*models.DashboardSummary, bool) {
	if s == nil || !s.enabled {
		return nil, false
	}
	var summary models.DashboardSummary
	found, err := cacheGet(ctx, s.cache, key, &summary)
	if err != nil {
		config.GetLogger().WithField("key", key).Warnf("summary cache read failed: %v", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	return &summary, true
}

func (s *SummaryCache) Set(ctx context.Context, key string, summary *models.DashboardSummary) {
	if s == nil || !s.enabled || summary == nil {
		return
	}
	if err := cacheSet(ctx, s.cache, key, summary, s.ttl); err != nil {
		config.GetLogger().WithField("key", key).Warnf("summary cache write failed: %v", err)
	}
}

// Lock takes the per-seller generation lock. When another replica holds it
// past the retry window the caller proceeds unlocked. The returned release
// func is always safe to call.
func (s *SummaryCache) Lock(ctx context.Context, userId string) func() {
	noop := func() {}
	if s == nil || !s.enabled || s.cache.Locker() == nil {
		return noop
	}
	lock, err := s.cache.Locker().Obtain(ctx, "sellerdash:summary-lock:"+userId, summaryLockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(250*time.Millisecond), 20),
	})
	if err != nil {
		if !errors.Is(err, redislock.ErrNotObtained) {
			config.GetLogger().WithField("user_id", userId).Warnf("summary lock failed: %v", err)
		}
		return noop
	}
	return func() {
		_ = lock.Release(context.WithoutCancel(ctx))
	}
}

// ReturnsCache keeps each seller's last fetched order records so a fresh
// controller can render before its first load completes.
type ReturnsCache struct {
	cache   *config.Cache
	enabled bool
	ttl     time.Duration
}

func NewReturnsCache(cache *config.Cache, cfg config.ReportCacheConfig) *ReturnsCache {
	return &ReturnsCache{cache: cache, enabled: cfg.Enabled && cache != nil, ttl: cfg.TTL}
}

func (r *ReturnsCache) Get(ctx context.Context, userId string) ([]models.OrderRecord, bool) {
	if r == nil || !r.enabled {
		return nil, false
	}
	var records []models.OrderRecord
	found, err := cacheGet(ctx, r.cache, ReturnsCacheKey(userId), &records)
	if err != nil || !found {
		return nil, false
	}
	return records, true
}

func (r *ReturnsCache) Set(ctx context.Context, userId string, records []models.OrderRecord) {
	if r == nil || !r.enabled {
		return
	}
	if err := cacheSet(ctx, r.cache, ReturnsCacheKey(userId), records, r.ttl); err != nil {
		config.GetLogger().WithField("user_id", userId).Warnf("returns cache write failed: %v", err)
	}
}

func (r *ReturnsCache) Invalidate(ctx context.Context, userId string) {
	if r == nil || !r.enabled {
		return
	}
	_ = r.cache.RemoveKey(ctx, ReturnsCacheKey(userId))
}
