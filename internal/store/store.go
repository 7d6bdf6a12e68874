package store

import (
	"context"
	"errors"

	"github.com/RenukaPawar658/marketplace/internal/models"
)

var (
	// ErrNotFound is returned when no record matches.
	ErrNotFound = errors.New("listing not found")
	// ErrActiveListingExists is returned when a write would create a second active
	// listing for the same asset.
	ErrActiveListingExists = errors.New("active listing already exists for asset")
)

// ListingStore owns the listing table. Reads observe committed state only;
// all writes go through WithTx.
type ListingStore interface {
	// FindByID returns the record stored under id, including cleared (removed) records.
	FindByID(ctx context.Context, id uint64) (*models.Listing, error)
	// FindActiveByAsset returns the active listing for the asset, if any.
	FindActiveByAsset(ctx context.Context, asset models.AssetKey) (*models.Listing, error)
	// ListActive returns every active listing ordered by id.
	ListActive(ctx context.Context) ([]*models.Listing, error)
	// WithTx runs fn against a staged transaction. Staged writes are committed only
	// if fn returns nil; otherwise they are discarded and fn's error is returned.
	// A non-nil error after fn succeeded means the commit itself failed.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx ListingTx) error) error
}

// ListingTx stages writes inside WithTx.
type ListingTx interface {
	// NextID reserves the next sequential listing id. The reservation is released
	// when the transaction is discarded.
	NextID(ctx context.Context) (uint64, error)
	Insert(ctx context.Context, listing *models.Listing) error
	// Clear resets an active listing to its cleared form.
	Clear(ctx context.Context, id uint64) error
	// Restore puts a cleared listing back under its original id.
	Restore(ctx context.Context, listing *models.Listing) error
}
