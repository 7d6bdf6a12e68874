package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/RenukaPawar658/marketplace/internal/ledger"
	"github.com/RenukaPawar658/marketplace/internal/models"
	"github.com/RenukaPawar658/marketplace/internal/store"
)

// MockListingStore
type MockListingStore struct {
	mock.Mock
}

func (m *MockListingStore) FindByID(ctx context.Context, id uint64) (*models.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingStore) FindActiveByAsset(ctx context.Context, asset models.AssetKey) (*models.Listing, error) {
	args := m.Called(ctx, asset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingStore) ListActive(ctx context.Context) ([]*models.Listing, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Listing), args.Error(1)
}

// WithTx runs fn against tx (when set) and then returns the configured commit error.
func (m *MockListingStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.ListingTx) error) error {
	args := m.Called(ctx, fn)
	if tx, ok := args.Get(0).(store.ListingTx); ok {
		if err := fn(ctx, tx); err != nil {
			return err
		}
	}
	return args.Error(1)
}

// stubTx hands out ids from next and records staged writes.
type stubTx struct {
	next     uint64
	inserted []*models.Listing
	cleared  []uint64
	restored []*models.Listing
}

func (tx *stubTx) NextID(context.Context) (uint64, error) {
	tx.next++
	return tx.next, nil
}

func (tx *stubTx) Insert(_ context.Context, l *models.Listing) error {
	tx.inserted = append(tx.inserted, l)
	return nil
}

func (tx *stubTx) Clear(_ context.Context, id uint64) error {
	tx.cleared = append(tx.cleared, id)
	return nil
}

func (tx *stubTx) Restore(_ context.Context, l *models.Listing) error {
	tx.restored = append(tx.restored, l)
	return nil
}

// MockListingCache
type MockListingCache struct {
	mock.Mock
}

func (m *MockListingCache) Get(ctx context.Context, id uint64) (*models.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingCache) Set(ctx context.Context, listing *models.Listing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}

func (m *MockListingCache) Invalidate(ctx context.Context, id uint64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockCustodyAuditor
type MockCustodyAuditor struct {
	mock.Mock
}

func (m *MockCustodyAuditor) EnqueueAudit(ctx context.Context, listingID uint64) error {
	args := m.Called(ctx, listingID)
	return args.Error(0)
}

// flakyAssetLedger fails TransferFrom calls whose from matches failFrom.
type flakyAssetLedger struct {
	*ledger.MemoryAssetLedger
	failFrom models.Address
	err      error
}

func (l *flakyAssetLedger) TransferFrom(ctx context.Context, contract, operator, from, to models.Address, assetID string) error {
	if from == l.failFrom {
		return l.err
	}
	return l.MemoryAssetLedger.TransferFrom(ctx, contract, operator, from, to, assetID)
}
