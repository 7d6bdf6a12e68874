package handlers_test

import (
	"context"
	"math/big"

	"github.com/stretchr/testify/mock"

	"github.com/RenukaPawar658/marketplace/internal/models"
)

// --- Mocks ---

// MockListingRegistry
type MockListingRegistry struct {
	mock.Mock
}

func (m *MockListingRegistry) ListItem(ctx context.Context, caller, assetContract models.Address, assetID string, price *big.Int) (uint64, error) {
	args := m.Called(ctx, caller, assetContract, assetID, price)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockListingRegistry) UnlistItem(ctx context.Context, assetID string, listingID uint64, caller models.Address) error {
	args := m.Called(ctx, assetID, listingID, caller)
	return args.Error(0)
}

func (m *MockListingRegistry) GetListing(ctx context.Context, listingID uint64) (*models.Listing, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingRegistry) Address() models.Address {
	args := m.Called()
	return args.Get(0).(models.Address)
}

// MockValueLedger
type MockValueLedger struct {
	mock.Mock
}

func (m *MockValueLedger) BalanceOf(ctx context.Context, owner models.Address) (*big.Int, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *MockValueLedger) TransferFrom(ctx context.Context, spender, from, to models.Address, amount *big.Int) error {
	args := m.Called(ctx, spender, from, to, amount)
	return args.Error(0)
}

// bigEq matches a *big.Int argument by value.
func bigEq(want int64) interface{} {
	return mock.MatchedBy(func(v *big.Int) bool {
		return v != nil && v.Cmp(big.NewInt(want)) == 0
	})
}
