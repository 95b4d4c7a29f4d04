package blocklist

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis hash holding blocked fingerprints mapped to the time they were
// blocked. A single hash keeps membership checks O(1) and List one round trip.
const redisBlockHashKey = "qcall:blocklist"

// RedisStore backs the registry with Redis for deployments where several
// bridge instances share one block list.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a Redis-backed block registry.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) IsBlocked(ctx context.Context, fingerprint string) (bool, error) {
	if fingerprint == "" {
		return false, nil
	}
	blocked, err := s.client.HExists(ctx, redisBlockHashKey, fingerprint).Result()
	if err != nil {
		return false, fmt.Errorf("check block entry: %w", err)
	}
	return blocked, nil
}

func (s *RedisStore) SetBlocked(ctx context.Context, fingerprint string, blocked bool) error {
	if fingerprint == "" {
		return nil
	}
	var err error
	if blocked {
		err = s.client.HSet(ctx, redisBlockHashKey, fingerprint, time.Now().UTC().Format(time.RFC3339)).Err()
	} else {
		err = s.client.HDel(ctx, redisBlockHashKey, fingerprint).Err()
	}
	if err != nil {
		return fmt.Errorf("write block entry: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]Entry, error) {
	fields, err := s.client.HGetAll(ctx, redisBlockHashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list block entries: %w", err)
	}
	entries := make([]Entry, 0, len(fields))
	for fp, val := range fields {
		entry := Entry{Fingerprint: fp}
		if at, err := time.Parse(time.RFC3339, val); err == nil {
			entry.CreatedAt = at
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
