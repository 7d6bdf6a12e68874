package services

import "errors"

// Rejections reported by the listing registry. Every one of them leaves the
// registry and both ledgers exactly as they were before the call.
var (
	ErrDuplicateListing = errors.New("asset already has an active listing")
	ErrInvalidPrice     = errors.New("price must be above zero")
	ErrNotOwner         = errors.New("caller does not own the asset")
	ErrNotApproved      = errors.New("registry is not approved for the asset")
	ErrNotFound         = errors.New("listing not found")
	ErrNotSeller        = errors.New("caller is not the seller of the listing")
)
