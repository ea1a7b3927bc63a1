package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// submitLock serializes submissions of one student against one test.
// It is inert without Redis or with a zero TTL.
type submitLock struct {
	redis *redis.Client
	ttl   time.Duration
}

func submitLockKey(testID, studentID uint) string {
	return fmt.Sprintf("submit:%d:%d", testID, studentID)
}

// acquire returns a release func, or ErrConflict when another submission
// for the same pair is in flight.
func (l *submitLock) acquire(ctx context.Context, testID, studentID uint) (func(), error) {
	if l == nil || l.redis == nil || l.ttl <= 0 {
		return func() {}, nil
	}

	key := submitLockKey(testID, studentID)
	token := uuid.NewString()
	ok, err := l.redis.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		// Redis outage must not block submissions.
		log.Printf("[AttemptEngine] submit lock unavailable for %s: %v", key, err)
		return func() {}, nil
	}
	if !ok {
		return nil, newError(ErrConflict, "a submission for this test is already in progress")
	}

	return func() {
		if err := releaseScript.Run(context.Background(), l.redis, []string{key}, token).Err(); err != nil {
			log.Printf("[AttemptEngine] failed to release %s: %v", key, err)
		}
	}, nil
}
