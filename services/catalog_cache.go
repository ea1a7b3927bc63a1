package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// catalogCache keeps the student projection of published tests in Redis.
// A nil client turns every call into a miss.
type catalogCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// cachedTest pairs a student view with the updated_at of the test row it
// was built from.
type cachedTest struct {
	Version time.Time    `json:"version"`
	Test    *StudentTest `json:"test"`
}

func testCacheKey(testID uint) string {
	return fmt.Sprintf("catalog:test:%d", testID)
}

func (c *catalogCache) enabled() bool {
	return c != nil && c.redis != nil && c.ttl > 0
}

func (c *catalogCache) get(ctx context.Context, testID uint) *cachedTest {
	if !c.enabled() {
		return nil
	}
	data, err := c.redis.Get(ctx, testCacheKey(testID)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[Catalog] redis error reading test %d: %v", testID, err)
		}
		return nil
	}

	var entry cachedTest
	if err := json.Unmarshal([]byte(data), &entry); err != nil || entry.Test == nil {
		log.Printf("[Catalog] failed to unmarshal cached test %d: %v", testID, err)
		return nil
	}
	return &entry
}

func (c *catalogCache) put(ctx context.Context, test *StudentTest, version time.Time) {
	if !c.enabled() {
		return
	}
	data, err := json.Marshal(cachedTest{Version: version, Test: test})
	if err != nil {
		log.Printf("[Catalog] failed to marshal test %d: %v", test.ID, err)
		return
	}
	if err := c.redis.Set(ctx, testCacheKey(test.ID), data, c.ttl).Err(); err != nil {
		log.Printf("[Catalog] failed to cache test %d: %v", test.ID, err)
	}
}

func (c *catalogCache) invalidate(ctx context.Context, testID uint) {
	if c == nil || c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, testCacheKey(testID)).Err(); err != nil {
		log.Printf("[Catalog] failed to invalidate test %d: %v", testID, err)
	}
}
