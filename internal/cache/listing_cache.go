package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/RenukaPawar658/marketplace/internal/models"
)

// ErrCacheMiss is returned by Get when the listing is not cached.
var ErrCacheMiss = errors.New("listing cache miss")

// ListingCache is a read-through cache in front of the listing store.
type ListingCache interface {
	Get(ctx context.Context, id uint64) (*models.Listing, error)
	Set(ctx context.Context, listing *models.Listing) error
	Invalidate(ctx context.Context, id uint64) error
}

const listingKeyPrefix = "listing:"

func listingKey(id uint64) string {
	return listingKeyPrefix + strconv.FormatUint(id, 10)
}

// RedisListingCache stores listings as JSON under listing:<id>.
type RedisListingCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisListingCache creates a cache with the given entry TTL.
func NewRedisListingCache(rdb *redis.Client, ttl time.Duration) *RedisListingCache {
	return &RedisListingCache{rdb: rdb, ttl: ttl}
}

func (c *RedisListingCache) Get(ctx context.Context, id uint64) (*models.Listing, error) {
	data, err := c.rdb.Get(ctx, listingKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read listing %d from cache: %w", id, err)
	}
	var listing models.Listing
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, fmt.Errorf("failed to decode cached listing %d: %w", id, err)
	}
	return &listing, nil
}

func (c *RedisListingCache) Set(ctx context.Context, listing *models.Listing) error {
	data, err := json.Marshal(listing)
	if err != nil {
		return fmt.Errorf("failed to encode listing %d: %w", listing.ID, err)
	}
	if err := c.rdb.Set(ctx, listingKey(listing.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache listing %d: %w", listing.ID, err)
	}
	return nil
}

func (c *RedisListingCache) Invalidate(ctx context.Context, id uint64) error {
	if err := c.rdb.Del(ctx, listingKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate listing %d: %w", id, err)
	}
	return nil
}

// NopListingCache never stores anything. Used when Redis is not configured.
type NopListingCache struct{}

func (NopListingCache) Get(context.Context, uint64) (*models.Listing, error) {
	return nil, ErrCacheMiss
}
func (NopListingCache) Set(context.Context, *models.Listing) error { return nil }
func (NopListingCache) Invalidate(context.Context, uint64) error   { return nil }
