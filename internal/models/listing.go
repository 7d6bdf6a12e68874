package models

import (
	"math/big"
	"time"
)

// ListingStatus is the lifecycle state of a listing.
type ListingStatus string

const (
	ListingStatusActive  ListingStatus = "active"
	ListingStatusRemoved ListingStatus = "removed"
)

// AssetKey identifies one non-fungible asset: a collection and an item inside it.
type AssetKey struct {
	Contract Address `json:"asset_contract"`
	AssetID  string  `json:"asset_id"`
}

func (k AssetKey) String() string {
	return k.Contract.String() + "/" + k.AssetID
}

// Listing represents one asset offered by its seller for a fixed price.
// While Status is active the registry holds custody of the asset.
type Listing struct {
	ID            uint64        `json:"id"`
	AssetContract Address       `json:"asset_contract"`
	AssetID       string        `json:"asset_id"`
	Seller        Address       `json:"seller"`
	Price         *big.Int      `json:"price"`
	Status        ListingStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Asset returns the key of the listed asset.
func (l *Listing) Asset() AssetKey {
	return AssetKey{Contract: l.AssetContract, AssetID: l.AssetID}
}

// IsActive reports whether the listing currently holds its asset in custody.
func (l *Listing) IsActive() bool {
	return l != nil && l.Status == ListingStatusActive
}

// Clone returns a deep copy so callers never share the price pointer.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	c := *l
	if l.Price != nil {
		c.Price = new(big.Int).Set(l.Price)
	}
	return &c
}

// ClearedListing is what a removed listing id is reset to: everything zeroed
// except the id, which stays reserved.
func ClearedListing(id uint64) *Listing {
	return &Listing{
		ID:            id,
		AssetContract: ZeroAddress,
		Seller:        ZeroAddress,
		Price:         new(big.Int),
		Status:        ListingStatusRemoved,
	}
}
