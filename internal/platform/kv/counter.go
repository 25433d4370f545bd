package kv

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// WindowCounter counts hits per key inside fixed windows. Incr returns the
// count after this hit and the time left until the window resets.
type WindowCounter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

type RedisWindowCounter struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisWindowCounter(rdb *redis.Client, prefix string) *RedisWindowCounter {
	return &RedisWindowCounter{rdb: rdb, prefix: prefix}
}

func (c *RedisWindowCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	k := c.prefix + key
	n, err := c.rdb.Incr(ctx, k).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis incr: %w", err)
	}
	if n == 1 {
		if err := c.rdb.Expire(ctx, k, window).Err(); err != nil {
			return n, window, fmt.Errorf("redis expire: %w", err)
		}
		return n, window, nil
	}
	ttl, err := c.rdb.TTL(ctx, k).Result()
	if err != nil {
		return n, window, fmt.Errorf("redis ttl: %w", err)
	}
	if ttl < 0 {
		// the key lost its expiry (e.g. crash between INCR and EXPIRE)
		c.rdb.Expire(ctx, k, window)
		ttl = window
	}
	return n, ttl, nil
}

type memWindow struct {
	count   int64
	resetAt time.Time
}

type MemoryWindowCounter struct {
	mu      sync.Mutex
	windows map[string]*memWindow
	now     func() time.Time
}

func NewMemoryWindowCounter() *MemoryWindowCounter {
	return &MemoryWindowCounter{windows: make(map[string]*memWindow), now: time.Now}
}

func (c *MemoryWindowCounter) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	w, ok := c.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &memWindow{resetAt: now.Add(window)}
		c.windows[key] = w
		c.sweep(now)
	}
	w.count++
	return w.count, w.resetAt.Sub(now), nil
}

// sweep drops finished windows once the map grows, keeping memory bounded
// by the number of clients seen in one window.
func (c *MemoryWindowCounter) sweep(now time.Time) {
	if len(c.windows) < 10000 {
		return
	}
	for k, w := range c.windows {
		if !now.Before(w.resetAt) {
			delete(c.windows, k)
		}
	}
}
