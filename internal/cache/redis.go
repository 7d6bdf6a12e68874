package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis initializes and returns a Redis client instance.
// Returns (nil, nil) when addr is empty: Redis-backed features are then disabled.
func ConnectRedis(addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	fmt.Println("Successfully connected to Redis!")
	return rdb, nil
}

// DisconnectRedis closes the Redis client connection.
func DisconnectRedis(client *redis.Client) error {
	if client == nil {
		return nil
	}
	if err := client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis connection: %w", err)
	}
	fmt.Println("Redis connection closed.")
	return nil
}

// localCacheEntries bounds the in-process cache used when Redis is not configured.
const localCacheEntries = 10000

// NewListingCache picks the Redis cache when a client is available and falls
// back to an in-process cache otherwise. A non-positive ttl disables caching.
func NewListingCache(rdb *redis.Client, ttl time.Duration) (ListingCache, error) {
	if ttl <= 0 {
		return NopListingCache{}, nil
	}
	if rdb == nil {
		return NewLocalListingCache(localCacheEntries, ttl)
	}
	return NewRedisListingCache(rdb, ttl), nil
}
