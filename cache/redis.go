package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisClient wraps redis.Client with JSON values and tag-based invalidation.
// Tags group related keys (e.g. every alerts page for one room) so a single
// mutation can drop the whole group.
type RedisClient struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewRedisClient creates a new Redis client. Returns nil when the server is
// unreachable; callers treat a nil client as "caching disabled".
func NewRedisClient(host, port, password string, log zerolog.Logger) *RedisClient {
	addr := fmt.Sprintf("%s:%s", host, port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0, // use default DB
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Str("addr", addr).Err(err).Msg("⚠️  Redis unreachable, caching disabled")
		return nil
	}

	log.Info().Str("addr", addr).Msg("✅ Connected to Redis")
	return &RedisClient{client: client, log: log}
}

// Set stores a value in Redis with expiration
func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if r == nil || r.client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	jsonBytes, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, key, jsonBytes, expiration).Err()
}

// SetTagged stores a value and registers its key under each tag set so the
// key can be invalidated in bulk later.
func (r *RedisClient) SetTagged(ctx context.Context, key string, value interface{}, expiration time.Duration, tags ...string) error {
	if err := r.Set(ctx, key, value, expiration); err != nil {
		return err
	}

	for _, tag := range tags {
		tagKey := "tag:" + tag
		if err := r.client.SAdd(ctx, tagKey, key).Err(); err != nil {
			return err
		}
		// Tag sets outlive their members slightly so sweeps stay cheap.
		r.client.Expire(ctx, tagKey, expiration+time.Minute)
	}
	return nil
}

// Get retrieves a value from Redis
func (r *RedisClient) Get(ctx context.Context, key string, dest interface{}) error {
	if r == nil || r.client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(val), dest)
}

// InvalidateTag removes every key registered under the tag.
func (r *RedisClient) InvalidateTag(ctx context.Context, tag string) error {
	if r == nil || r.client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	tagKey := "tag:" + tag
	keys, err := r.client.SMembers(ctx, tagKey).Result()
	if err != nil {
		return err
	}

	if len(keys) > 0 {
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return err
		}
	}
	return r.client.Del(ctx, tagKey).Err()
}

// Delete removes a key from Redis
func (r *RedisClient) Delete(ctx context.Context, key string) error {
	if r == nil || r.client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	return r.client.Del(ctx, key).Err()
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	if r != nil && r.client != nil {
		return r.client.Close()
	}
	return nil
}
