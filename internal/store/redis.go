package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/i474232898/solar-yield-forecast/internal/solar"
)

// DefaultRedisKey holds the snapshot when no key is configured.
const DefaultRedisKey = "solcast:snapshot"

// RedisStore keeps the last snapshot under a single Redis key, encoded the
// same way as the cache file.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(addr string, db int, password, key string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		DB:       db,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}, nil
}

func (s *RedisStore) Load(ctx context.Context) (solar.CacheSnapshot, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return solar.CacheSnapshot{}, solar.ErrCacheMiss
	}
	if err != nil {
		return solar.CacheSnapshot{}, err
	}
	return decodeSnapshot(data)
}

func (s *RedisStore) Save(ctx context.Context, snap solar.CacheSnapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return s.client.Set(ctx, s.key, data, 0).Err()
}

func (s *RedisStore) Invalidate(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
