package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/RenukaPawar658/marketplace/internal/models"
)

// LocalListingCache keeps listings in process memory. Each entry costs 1, so
// maxEntries bounds the number of cached listings.
type LocalListingCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewLocalListingCache creates an in-process cache holding up to maxEntries listings.
func NewLocalListingCache(maxEntries int64, ttl time.Duration) (*LocalListingCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
		// cost is the entry count alone
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create local listing cache: %w", err)
	}
	return &LocalListingCache{cache: c, ttl: ttl}, nil
}

func (c *LocalListingCache) Get(_ context.Context, id uint64) (*models.Listing, error) {
	v, found := c.cache.Get(id)
	if !found {
		return nil, ErrCacheMiss
	}
	listing, ok := v.(*models.Listing)
	if !ok {
		return nil, fmt.Errorf("unexpected cached value for listing %d: %T", id, v)
	}
	return listing.Clone(), nil
}

func (c *LocalListingCache) Set(_ context.Context, listing *models.Listing) error {
	c.cache.SetWithTTL(listing.ID, listing.Clone(), 1, c.ttl)
	// Sets are buffered; make the entry visible to the next Get.
	c.cache.Wait()
	return nil
}

func (c *LocalListingCache) Invalidate(_ context.Context, id uint64) error {
	c.cache.Del(id)
	return nil
}

// Close stops the cache's background goroutines.
func (c *LocalListingCache) Close() {
	c.cache.Close()
}
