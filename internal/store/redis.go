package store

import (
    "context"
    "errors"
    "time"

    "github.com/redis/go-redis/v9"
)

// RedisStore implements Store on top of a shared Redis instance.  TTL
// handling is delegated to Redis itself.
type RedisStore struct {
    client *redis.Client
}

// NewRedisStore wraps an already-connected Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
    return &RedisStore{client: client}
}

var errNonPositiveTTL = errors.New("store: ttl must be positive")

// SetWithTTL stores key=value with the given expiry.
func (s *RedisStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
    if ttl <= 0 {
        return errNonPositiveTTL
    }
    return s.client.Set(ctx, key, value, ttl).Err()
}

// Get returns the stored value, or ok=false when the key is absent or expired.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
    v, err := s.client.Get(ctx, key).Result()
    if err == redis.Nil {
        return "", false, nil
    }
    if err != nil {
        return "", false, err
    }
    return v, true, nil
}

// Exists reports whether key has a live entry.
func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
    n, err := s.client.Exists(ctx, key).Result()
    if err != nil {
        return false, err
    }
    return n > 0, nil
}

// Delete removes key.  Absent keys are not an error.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
    err := s.client.Del(ctx, key).Err()
    if err == redis.Nil {
        return nil
    }
    return err
}
