package config

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Cache wraps the Redis client and lock client. A nil *Cache, or one built
// without an address, behaves as an always-miss cache so callers never
// branch on whether Redis is configured.
type Cache struct {
	rdb    *redis.Client
	locker *redislock.Client
}

func NewCache(rdb *redis.Client) *Cache {
	if rdb == nil {
		return nil
	}
	return &Cache{rdb: rdb, locker: redislock.New(rdb)}
}

func (c *Cache) Client() *redis.Client {
	if c == nil {
		return nil
	}
	return c.rdb
}

func (c *Cache) Locker() *redislock.Client {
	if c == nil {
		return nil
	}
	return c.locker
}

func (c *Cache) GetObject(ctx context.Context, key string, dest interface{}) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, nil
	}
	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err = json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) SetObject(ctx context.Context, key string, obj interface{}, exp time.Duration) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	objInByte, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, objInByte, exp).Err()
}

func (c *Cache) RemoveKey(ctx context.Context, keys ...string) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	_, err := c.rdb.Del(ctx, keys...).Result()
	return err
}

func (c *Cache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

// ConnectRedisWithRetry dials until Redis answers PING or ctx ends. An empty
// address disables caching and returns a nil *Cache.
func ConnectRedisWithRetry(ctx context.Context, redisAddr string) (*Cache, error) {
	if redisAddr == "" {
		logg.Warn("REDIS_ADDRESS not set; report cache and rate limiting disabled")
		return nil, nil
	}

	var attempt int
	for {
		attempt++
		rdb := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: "",
			DB:       0, // use default DB
			PoolSize: 100,
		})
		err := rdb.Ping(ctx).Err()
		if err == nil {
			logg.WithFields(logrus.Fields{"attempt": attempt, "addr": redisAddr}).Info("connected to redis")
			return NewCache(rdb), nil
		}
		_ = rdb.Close()

		sleep := backoff(attempt)
		logg.WithFields(logrus.Fields{"attempt": attempt, "addr": redisAddr, "retry_in": sleep.String()}).
			Warnf("failed to connect redis: %v", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
}

func backoff(attempt int) time.Duration {
	sleep := time.Second * time.Duration(1<<min(attempt, 5))
	if sleep > 30*time.Second {
		sleep = 30 * time.Second
	}
	return sleep
}
