package template

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "tmpl:keys:"

// DefaultCacheTTL bounds how long a resolved template code may be served
// without re-running the key-matching query. Kept short so publishing a new
// template takes effect quickly.
const DefaultCacheTTL = 5 * time.Minute

// Cache is a best-effort Redis cache of resolved template codes keyed by
// classification. Failures are reported to the caller, which logs and falls
// back to the store; the cache never blocks resolution.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) Get(ctx context.Context, productKey, gradeKey, periodKey string) (string, bool, error) {
	code, err := c.client.Get(ctx, cacheKey(productKey, gradeKey, periodKey)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return code, true, nil
}

func (c *Cache) Set(ctx context.Context, productKey, gradeKey, periodKey, code string) error {
	return c.client.Set(ctx, cacheKey(productKey, gradeKey, periodKey), code, c.ttl).Err()
}

func cacheKey(parts ...string) string {
	return cacheKeyPrefix + strings.Join(parts, ":")
}
