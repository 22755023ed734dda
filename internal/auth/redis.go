package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRefreshStore persists refresh tokens in Redis, one list per user in
// insertion order. It carries the same cap/eviction semantics as the memory
// store and survives restarts, making it the choice for multi-instance
// deployments.
type RedisRefreshStore struct {
	client *redis.Client
	cap    int64
	ttl    time.Duration
}

// NewRedisRefreshStore wraps a connected client. ttl should match the
// refresh-token lifetime so abandoned sets expire on their own.
func NewRedisRefreshStore(client *redis.Client, maxPerUser int, ttl time.Duration) *RedisRefreshStore {
	if maxPerUser <= 0 {
		maxPerUser = 5
	}
	return &RedisRefreshStore{client: client, cap: int64(maxPerUser), ttl: ttl}
}

func (s *RedisRefreshStore) key(userID string) string {
	return "auth:refresh:" + userID
}

// Add appends the token and trims the list to the cap, evicting from the
// head (oldest first).
func (s *RedisRefreshStore) Add(ctx context.Context, userID, token string) error {
	key := s.key(userID)
	pipe := s.client.TxPipeline()
	pipe.LRem(ctx, key, 0, token)
	pipe.RPush(ctx, key, token)
	pipe.LTrim(ctx, key, -s.cap, -1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Remove deletes exactly the given token. Redis drops empty lists itself, so
// no dangling keys remain.
func (s *RedisRefreshStore) Remove(ctx context.Context, userID, token string) error {
	return s.client.LRem(ctx, s.key(userID), 0, token).Err()
}

// Contains reports membership.
func (s *RedisRefreshStore) Contains(ctx context.Context, userID, token string) (bool, error) {
	_, err := s.client.LPos(ctx, s.key(userID), token, redis.LPosArgs{}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RevokeAll drops the whole set for the user.
func (s *RedisRefreshStore) RevokeAll(ctx context.Context, userID string) error {
	return s.client.Del(ctx, s.key(userID)).Err()
}
