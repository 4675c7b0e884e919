package quiz

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// RedisCache is a read-through cache for quiz definitions. Quizzes are read
// on every attempt start and every student fetch but change rarely, so the
// full definition (answer keys included, callers still sanitize) is cached
// as JSON under quiz:{id} with a jittered TTL. Writers must Invalidate.
type RedisCache struct {
	client *redis.Client
	loader Loader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewRedisCache(client *redis.Client, loader Loader, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *RedisCache) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	key := cacheKey(id)
	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var q Quiz
		if err := json.Unmarshal(raw, &q); err == nil {
			return q, nil
		}
	}

	v, err, _ := c.sf.Do(id, func() (interface{}, error) {
		// Re-check in case another goroutine filled the key.
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
			var q Quiz
			if err := json.Unmarshal(raw, &q); err == nil {
				return q, nil
			}
		}
		q, err := c.loader.GetQuiz(ctx, id)
		if err != nil {
			return Quiz{}, err
		}
		if raw, err := json.Marshal(q); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
		return q, nil
	})
	if err != nil {
		return Quiz{}, err
	}
	return v.(Quiz), nil
}

// Invalidate drops the cached definition after a quiz or its settings change.
func (c *RedisCache) Invalidate(ctx context.Context, id string) {
	_ = c.client.Del(ctx, cacheKey(id)).Err()
}

func cacheKey(id string) string { return "quiz:" + id }

func (c *RedisCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
