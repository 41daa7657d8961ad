package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrementScript bumps the counter and pins the window end on first use so
// every instance shares the same reset time.
var incrementScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 or redis.call("PTTL", KEYS[1]) < 0 then
  redis.call("PEXPIREAT", KEYS[1], ARGV[1])
end
return count
`)

type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "ledgersite:"}
}

func (s *RedisStore) key(key string) string {
	return s.prefix + key
}

func (s *RedisStore) Get(ctx context.Context, key string) (int, time.Time, bool, error) {
	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, s.key(key))
	ttlCmd := pipe.PTTL(ctx, s.key(key))

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, time.Time{}, false, fmt.Errorf("failed to read rate limit counter: %w", err)
	}

	count, err := getCmd.Int()
	if errors.Is(err, redis.Nil) {
		return 0, time.Time{}, false, nil
	}
	if err != nil {
		return 0, time.Time{}, false, fmt.Errorf("failed to parse rate limit counter: %w", err)
	}

	ttl := ttlCmd.Val()
	if ttl <= 0 {
		return 0, time.Time{}, false, nil
	}
	return count, time.Now().Add(ttl), true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, count int, resetTime time.Time) error {
	ttl := time.Until(resetTime)
	if ttl <= 0 {
		return s.Reset(ctx, key)
	}
	if err := s.client.Set(ctx, s.key(key), count, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set rate limit counter: %w", err)
	}
	return nil
}

func (s *RedisStore) Increment(ctx context.Context, key string, resetTime time.Time) (int, error) {
	count, err := incrementScript.Run(ctx, s.client, []string{s.key(key)}, resetTime.UnixMilli()).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	return count, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to reset rate limit counter: %w", err)
	}
	return nil
}
