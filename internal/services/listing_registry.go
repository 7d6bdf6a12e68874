package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/RenukaPawar658/marketplace/internal/cache"
	"github.com/RenukaPawar658/marketplace/internal/config"
	"github.com/RenukaPawar658/marketplace/internal/ledger"
	"github.com/RenukaPawar658/marketplace/internal/models"
	"github.com/RenukaPawar658/marketplace/internal/store"
)

// IListingRegistry defines the listing registry operations.
type IListingRegistry interface {
	ListItem(ctx context.Context, caller, assetContract models.Address, assetID string, price *big.Int) (uint64, error)
	UnlistItem(ctx context.Context, assetID string, listingID uint64, caller models.Address) error
	GetListing(ctx context.Context, listingID uint64) (*models.Listing, error)
	Address() models.Address
}

// CustodyAuditor schedules an out-of-band check that a listing's custody matches
// the asset ledger.
type CustodyAuditor interface {
	EnqueueAudit(ctx context.Context, listingID uint64) error
}

// listingRegistry implements IListingRegistry.
type listingRegistry struct {
	// mu serializes ListItem and UnlistItem; cache misses take it for reading so
	// a stale active record is never written back after a removal.
	mu      sync.RWMutex
	address models.Address
	store   store.ListingStore
	assets  ledger.AssetLedger
	cache   cache.ListingCache
	auditor CustodyAuditor
	nowFunc func() time.Time
}

// NewListingRegistry creates the registry. listingCache and auditor may be nil.
func NewListingRegistry(cfg *config.Config, listingStore store.ListingStore, assets ledger.AssetLedger, listingCache cache.ListingCache, auditor CustodyAuditor) IListingRegistry {
	if listingCache == nil {
		listingCache = cache.NopListingCache{}
	}
	return &listingRegistry{
		address: models.NewAddress(cfg.RegistryAddress),
		store:   listingStore,
		assets:  assets,
		cache:   listingCache,
		auditor: auditor,
		nowFunc: func() time.Time { return time.Now().UTC() },
	}
}

func (r *listingRegistry) Address() models.Address {
	return r.address
}

// ListItem puts an asset up for sale and takes custody of it.
// Checks run in a fixed order: duplicate, price, ownership, approval.
func (r *listingRegistry) ListItem(ctx context.Context, caller, assetContract models.Address, assetID string, price *big.Int) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	asset := models.AssetKey{Contract: assetContract, AssetID: assetID}

	existing, err := r.store.FindActiveByAsset(ctx, asset)
	if err == nil {
		return 0, fmt.Errorf("%w: %s is listed as %d", ErrDuplicateListing, asset, existing.ID)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return 0, fmt.Errorf("failed to check active listing for %s: %w", asset, err)
	}

	if price == nil || price.Sign() <= 0 {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidPrice, price)
	}

	owner, err := r.assets.OwnerOf(ctx, assetContract, assetID)
	if err != nil {
		if errors.Is(err, ledger.ErrUnknownAsset) {
			return 0, fmt.Errorf("%w: %v", ErrNotOwner, err)
		}
		return 0, fmt.Errorf("failed to look up owner of %s: %w", asset, err)
	}
	if owner != caller {
		return 0, fmt.Errorf("%w: %s does not own %s", ErrNotOwner, caller, asset)
	}

	approved, err := r.assets.IsApproved(ctx, assetContract, assetID, r.address)
	if err != nil {
		return 0, fmt.Errorf("failed to check approval for %s: %w", asset, err)
	}
	if !approved {
		return 0, fmt.Errorf("%w: %s", ErrNotApproved, asset)
	}

	listing := &models.Listing{
		AssetContract: assetContract,
		AssetID:       assetID,
		Seller:        caller,
		Price:         new(big.Int).Set(price),
		Status:        models.ListingStatusActive,
		CreatedAt:     r.nowFunc(),
	}

	inCustody := false
	err = r.store.WithTx(ctx, func(ctx context.Context, tx store.ListingTx) error {
		id, err := tx.NextID(ctx)
		if err != nil {
			return err
		}
		listing.ID = id
		if err := tx.Insert(ctx, listing); err != nil {
			return err
		}
		if err := r.assets.TransferFrom(ctx, assetContract, r.address, caller, r.address, assetID); err != nil {
			return fmt.Errorf("failed to take custody of %s: %w", asset, err)
		}
		inCustody = true
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrActiveListingExists) {
			err = fmt.Errorf("%w: %v", ErrDuplicateListing, err)
		}
		if inCustody {
			err = r.moveBack(ctx, asset, r.address, caller, err)
		}
		return 0, err
	}

	log.Printf("Listing %d created: %s by %s for %s", listing.ID, asset, caller, listing.Price)
	r.afterMutation(ctx, listing.ID)
	return listing.ID, nil
}

// UnlistItem removes an active listing and returns the asset to its seller.
// assetID must match the listing, otherwise the listing is reported as not found.
func (r *listingRegistry) UnlistItem(ctx context.Context, assetID string, listingID uint64, caller models.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	listing, err := r.store.FindByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrNotFound, listingID)
		}
		return fmt.Errorf("failed to load listing %d: %w", listingID, err)
	}
	if !listing.IsActive() {
		return fmt.Errorf("%w: %d was removed", ErrNotFound, listingID)
	}
	if listing.AssetID != assetID {
		return fmt.Errorf("%w: %d does not list asset %s", ErrNotFound, listingID, assetID)
	}
	if listing.Seller != caller {
		return fmt.Errorf("%w: %s on listing %d", ErrNotSeller, caller, listingID)
	}

	asset := listing.Asset()
	err = r.store.WithTx(ctx, func(ctx context.Context, tx store.ListingTx) error {
		return tx.Clear(ctx, listingID)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return err
	}

	// The registry owns the asset here, so returning it needs no approval.
	if err := r.assets.TransferFrom(ctx, asset.Contract, r.address, r.address, caller, asset.AssetID); err != nil {
		return r.restore(ctx, listing, fmt.Errorf("failed to return %s to %s: %w", asset, caller, err))
	}

	log.Printf("Listing %d removed: %s returned to %s", listingID, asset, caller)
	r.afterMutation(ctx, listingID)
	return nil
}

// GetListing returns an active listing. Never-created and removed ids are ErrNotFound.
func (r *listingRegistry) GetListing(ctx context.Context, listingID uint64) (*models.Listing, error) {
	cached, err := r.cache.Get(ctx, listingID)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		log.Printf("Listing cache read failed for %d: %v", listingID, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	listing, err := r.store.FindByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, listingID)
		}
		return nil, fmt.Errorf("failed to load listing %d: %w", listingID, err)
	}
	if !listing.IsActive() {
		return nil, fmt.Errorf("%w: %d was removed", ErrNotFound, listingID)
	}

	if err := r.cache.Set(ctx, listing); err != nil {
		log.Printf("Listing cache write failed for %d: %v", listingID, err)
	}
	return listing, nil
}

// moveBack undoes a custody transfer whose store commit failed.
func (r *listingRegistry) moveBack(ctx context.Context, asset models.AssetKey, from, to models.Address, cause error) error {
	ctx = context.WithoutCancel(ctx)
	if err := r.assets.TransferFrom(ctx, asset.Contract, r.address, from, to, asset.AssetID); err != nil {
		log.Printf("CRITICAL: custody of %s left with %s after failed commit (%v); compensation failed: %v", asset, from, cause, err)
		return fmt.Errorf("%w; moving %s back to %s also failed: %v", cause, asset, to, err)
	}
	log.Printf("Commit failed for %s, custody moved back to %s: %v", asset, to, cause)
	return cause
}

// restore reinstates a cleared listing whose asset could not be handed back.
func (r *listingRegistry) restore(ctx context.Context, listing *models.Listing, cause error) error {
	ctx = context.WithoutCancel(ctx)
	err := r.store.WithTx(ctx, func(ctx context.Context, tx store.ListingTx) error {
		return tx.Restore(ctx, listing)
	})
	if err != nil {
		log.Printf("CRITICAL: listing %d cleared while the registry still holds %s (%v); restore failed: %v", listing.ID, listing.Asset(), cause, err)
		r.afterMutation(ctx, listing.ID)
		return fmt.Errorf("%w; restoring listing %d also failed: %v", cause, listing.ID, err)
	}
	log.Printf("Listing %d restored after failed return of %s: %v", listing.ID, listing.Asset(), cause)
	return cause
}

func (r *listingRegistry) afterMutation(ctx context.Context, listingID uint64) {
	if err := r.cache.Invalidate(ctx, listingID); err != nil {
		log.Printf("Listing cache invalidation failed for %d: %v", listingID, err)
	}
	if r.auditor == nil {
		return
	}
	if err := r.auditor.EnqueueAudit(ctx, listingID); err != nil {
		log.Printf("Failed to enqueue custody audit for listing %d: %v", listingID, err)
	}
}
