package services

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/RenukaPawar658/marketplace/internal/cache"
	"github.com/RenukaPawar658/marketplace/internal/config"
	"github.com/RenukaPawar658/marketplace/internal/ledger"
	"github.com/RenukaPawar658/marketplace/internal/models"
	"github.com/RenukaPawar658/marketplace/internal/store"
)

var (
	registryAddr = models.NewAddress("0x00000000000000000000000000000000006d6b74")
	collection   = models.NewAddress("0xC011EC7104")
	seller       = models.NewAddress("0x5E11E7")
	stranger     = models.NewAddress("0x57AA9E7")
)

type registryFixture struct {
	registry IListingRegistry
	store    *store.MemoryStore
	assets   *ledger.MemoryAssetLedger
}

func newRegistryFixture(t *testing.T) *registryFixture {
	t.Helper()
	cfg := &config.Config{RegistryAddress: registryAddr.String()}
	st := store.NewMemoryStore()
	assets := ledger.NewMemoryAssetLedger()
	return &registryFixture{
		registry: NewListingRegistry(cfg, st, assets, nil, nil),
		store:    st,
		assets:   assets,
	}
}

// mintApproved mints assetID to owner and approves the registry for it.
func (f *registryFixture) mintApproved(t *testing.T, assetID string, owner models.Address) {
	t.Helper()
	require.NoError(t, f.assets.Mint(collection, assetID, owner))
	require.NoError(t, f.assets.Approve(collection, assetID, owner, registryAddr))
}

func (f *registryFixture) ownerOf(t *testing.T, assetID string) models.Address {
	t.Helper()
	owner, err := f.assets.OwnerOf(context.Background(), collection, assetID)
	require.NoError(t, err)
	return owner
}

func TestListingRegistry_ListDuplicateUnlistScenario(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	f.mintApproved(t, "7", seller)

	id, err := f.registry.ListItem(ctx, seller, collection, "7", big.NewInt(10))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
	assert.Equal(t, registryAddr, f.ownerOf(t, "7"))

	_, err = f.registry.ListItem(ctx, seller, collection, "7", big.NewInt(5))
	assert.ErrorIs(t, err, ErrDuplicateListing)

	require.NoError(t, f.registry.UnlistItem(ctx, "7", 1, seller))
	assert.Equal(t, seller, f.ownerOf(t, "7"))

	_, err = f.registry.GetListing(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	record, err := f.store.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.ZeroAddress, record.Seller, "removed record reports the zero address")
}

func TestListingRegistry_UnlistByStrangerScenario(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	f.mintApproved(t, "7", seller)

	id, err := f.registry.ListItem(ctx, seller, collection, "7", big.NewInt(10))
	require.NoError(t, err)

	err = f.registry.UnlistItem(ctx, "7", id, stranger)
	assert.ErrorIs(t, err, ErrNotSeller)
	assert.Equal(t, registryAddr, f.ownerOf(t, "7"))

	listing, err := f.registry.GetListing(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusActive, listing.Status)
	assert.Equal(t, seller, listing.Seller)
	assert.Equal(t, int64(10), listing.Price.Int64())
}

func TestListingRegistry_InvalidPrice(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	f.mintApproved(t, "7", seller)

	for _, price := range []*big.Int{nil, big.NewInt(0), big.NewInt(-3)} {
		_, err := f.registry.ListItem(ctx, seller, collection, "7", price)
		assert.ErrorIs(t, err, ErrInvalidPrice, "price %v", price)
	}
	assert.Equal(t, seller, f.ownerOf(t, "7"))

	_, err := f.registry.ListItem(ctx, seller, collection, "7", big.NewInt(1))
	assert.NoError(t, err)
}

func TestListingRegistry_NotOwnerRegardlessOfApproval(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	f.mintApproved(t, "7", seller)
	require.NoError(t, f.assets.Mint(collection, "8", seller))

	_, err := f.registry.ListItem(ctx, stranger, collection, "7", big.NewInt(10))
	assert.ErrorIs(t, err, ErrNotOwner, "approved asset")

	_, err = f.registry.ListItem(ctx, stranger, collection, "8", big.NewInt(10))
	assert.ErrorIs(t, err, ErrNotOwner, "unapproved asset")

	_, err = f.registry.ListItem(ctx, stranger, collection, "404", big.NewInt(10))
	assert.ErrorIs(t, err, ErrNotOwner, "asset that was never minted")
}

func TestListingRegistry_NotApproved(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	require.NoError(t, f.assets.Mint(collection, "7", seller))

	_, err := f.registry.ListItem(ctx, seller, collection, "7", big.NewInt(10))
	assert.ErrorIs(t, err, ErrNotApproved)
	assert.Equal(t, seller, f.ownerOf(t, "7"))

	// approving for everything the seller owns works too
	f.assets.SetApprovalForAll(collection, seller, registryAddr, true)
	id, err := f.registry.ListItem(ctx, seller, collection, "7", big.NewInt(10))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
}

func TestListingRegistry_CheckOrder(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	f.mintApproved(t, "7", seller)
	require.NoError(t, f.assets.Mint(collection, "8", seller))

	_, err := f.registry.ListItem(ctx, seller, collection, "7", big.NewInt(10))
	require.NoError(t, err)

	// duplicate is reported before price and ownership
	_, err = f.registry.ListItem(ctx, stranger, collection, "7", big.NewInt(0))
	assert.ErrorIs(t, err, ErrDuplicateListing)

	// price is reported before ownership
	_, err = f.registry.ListItem(ctx, stranger, collection, "8", big.NewInt(0))
	assert.ErrorIs(t, err, ErrInvalidPrice)

	// ownership is reported before approval
	_, err = f.registry.ListItem(ctx, stranger, collection, "8", big.NewInt(1))
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestListingRegistry_UnlistNotFound(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	f.mintApproved(t, "7", seller)

	err := f.registry.UnlistItem(ctx, "7", 1, seller)
	assert.ErrorIs(t, err, ErrNotFound, "never created")

	id, err := f.registry.ListItem(ctx, seller, collection, "7", big.NewInt(10))
	require.NoError(t, err)

	err = f.registry.UnlistItem(ctx, "8", id, seller)
	assert.ErrorIs(t, err, ErrNotFound, "asset id does not match the listing")
	assert.Equal(t, registryAddr, f.ownerOf(t, "7"))

	require.NoError(t, f.registry.UnlistItem(ctx, "7", id, seller))
	err = f.registry.UnlistItem(ctx, "7", id, seller)
	assert.ErrorIs(t, err, ErrNotFound, "already removed")
}

func TestListingRegistry_RelistGetsFreshID(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	f.mintApproved(t, "7", seller)

	first, err := f.registry.ListItem(ctx, seller, collection, "7", big.NewInt(10))
	require.NoError(t, err)
	require.NoError(t, f.registry.UnlistItem(ctx, "7", first, seller))

	// approval was consumed by the custody transfer
	_, err = f.registry.ListItem(ctx, seller, collection, "7", big.NewInt(12))
	assert.ErrorIs(t, err, ErrNotApproved)

	require.NoError(t, f.assets.Approve(collection, "7", seller, registryAddr))
	second, err := f.registry.ListItem(ctx, seller, collection, "7", big.NewInt(12))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second)

	_, err = f.registry.GetListing(ctx, first)
	assert.ErrorIs(t, err, ErrNotFound)
	listing, err := f.registry.GetListing(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, int64(12), listing.Price.Int64())
}

func TestListingRegistry_PriceIsCopied(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	f.mintApproved(t, "7", seller)

	price := big.NewInt(10)
	id, err := f.registry.ListItem(ctx, seller, collection, "7", price)
	require.NoError(t, err)
	price.SetInt64(1)

	listing, err := f.registry.GetListing(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(10), listing.Price.Int64())
}

func TestListingRegistry_FailedTransferConsumesNoID(t *testing.T) {
	cfg := &config.Config{RegistryAddress: registryAddr.String()}
	st := store.NewMemoryStore()
	mem := ledger.NewMemoryAssetLedger()
	transferErr := errors.New("ledger unavailable")
	assets := &flakyAssetLedger{MemoryAssetLedger: mem, failFrom: seller, err: transferErr}
	registry := NewListingRegistry(cfg, st, assets, nil, nil)
	ctx := context.Background()

	require.NoError(t, mem.Mint(collection, "7", seller))
	require.NoError(t, mem.Approve(collection, "7", seller, registryAddr))

	_, err := registry.ListItem(ctx, seller, collection, "7", big.NewInt(10))
	assert.ErrorIs(t, err, transferErr)

	_, err = st.FindByID(ctx, 1)
	assert.ErrorIs(t, err, store.ErrNotFound, "no record is left behind")

	assets.failFrom = ""
	id, err := registry.ListItem(ctx, seller, collection, "7", big.NewInt(10))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id, "the id of the failed attempt is reused")
}

func TestListingRegistry_CommitFailureReturnsCustody(t *testing.T) {
	cfg := &config.Config{RegistryAddress: registryAddr.String()}
	assets := ledger.NewMemoryAssetLedger()
	require.NoError(t, assets.Mint(collection, "7", seller))
	require.NoError(t, assets.Approve(collection, "7", seller, registryAddr))

	commitErr := errors.New("commit failed")
	mockStore := new(MockListingStore)
	mockStore.On("FindActiveByAsset", mock.Anything, models.AssetKey{Contract: collection, AssetID: "7"}).Return(nil, store.ErrNotFound)
	mockStore.On("WithTx", mock.Anything, mock.Anything).Return(&stubTx{}, commitErr)

	registry := NewListingRegistry(cfg, mockStore, assets, nil, nil)
	_, err := registry.ListItem(context.Background(), seller, collection, "7", big.NewInt(10))
	assert.ErrorIs(t, err, commitErr)

	owner, err := assets.OwnerOf(context.Background(), collection, "7")
	require.NoError(t, err)
	assert.Equal(t, seller, owner, "custody goes back to the seller")
	mockStore.AssertExpectations(t)
}

func TestListingRegistry_UnlistCommitFailureKeepsCustody(t *testing.T) {
	cfg := &config.Config{RegistryAddress: registryAddr.String()}
	assets := ledger.NewMemoryAssetLedger()
	require.NoError(t, assets.Mint(collection, "7", registryAddr))

	active := &models.Listing{
		ID: 3, AssetContract: collection, AssetID: "7", Seller: seller,
		Price: big.NewInt(10), Status: models.ListingStatusActive,
	}
	commitErr := errors.New("commit failed")
	mockStore := new(MockListingStore)
	mockStore.On("FindByID", mock.Anything, uint64(3)).Return(active, nil)
	tx := &stubTx{}
	mockStore.On("WithTx", mock.Anything, mock.Anything).Return(tx, commitErr).Once()

	registry := NewListingRegistry(cfg, mockStore, assets, nil, nil)
	err := registry.UnlistItem(context.Background(), "7", 3, seller)
	assert.ErrorIs(t, err, commitErr)
	assert.Equal(t, []uint64{3}, tx.cleared)

	owner, _ := assets.OwnerOf(context.Background(), collection, "7")
	assert.Equal(t, registryAddr, owner, "nothing moves before the removal is committed")
	mockStore.AssertExpectations(t)
}

func TestListingRegistry_UnlistReturnFailureRestoresListing(t *testing.T) {
	cfg := &config.Config{RegistryAddress: registryAddr.String()}
	st := store.NewMemoryStore()
	mem := ledger.NewMemoryAssetLedger()
	transferErr := errors.New("ledger unavailable")
	assets := &flakyAssetLedger{MemoryAssetLedger: mem}
	registry := NewListingRegistry(cfg, st, assets, nil, nil)
	ctx := context.Background()

	// single-asset approval only: it is consumed when custody is taken
	require.NoError(t, mem.Mint(collection, "7", seller))
	require.NoError(t, mem.Approve(collection, "7", seller, registryAddr))
	id, err := registry.ListItem(ctx, seller, collection, "7", big.NewInt(10))
	require.NoError(t, err)

	assets.failFrom, assets.err = registryAddr, transferErr
	err = registry.UnlistItem(ctx, "7", id, seller)
	assert.ErrorIs(t, err, transferErr)
	assert.NotContains(t, err.Error(), "also failed")

	listing, err := registry.GetListing(ctx, id)
	require.NoError(t, err, "the listing is active again under the same id")
	assert.Equal(t, seller, listing.Seller)
	assert.Equal(t, int64(10), listing.Price.Int64())
	owner, _ := mem.OwnerOf(ctx, collection, "7")
	assert.Equal(t, registryAddr, owner)

	assets.failFrom = ""
	require.NoError(t, registry.UnlistItem(ctx, "7", id, seller))
	owner, _ = mem.OwnerOf(ctx, collection, "7")
	assert.Equal(t, seller, owner)
}

func TestListingRegistry_UnlistRestoreFailure(t *testing.T) {
	cfg := &config.Config{RegistryAddress: registryAddr.String()}
	mem := ledger.NewMemoryAssetLedger()
	require.NoError(t, mem.Mint(collection, "7", registryAddr))
	transferErr := errors.New("ledger unavailable")
	assets := &flakyAssetLedger{MemoryAssetLedger: mem, failFrom: registryAddr, err: transferErr}

	active := &models.Listing{
		ID: 3, AssetContract: collection, AssetID: "7", Seller: seller,
		Price: big.NewInt(10), Status: models.ListingStatusActive,
	}
	restoreErr := errors.New("restore commit failed")
	tx := &stubTx{}
	mockStore := new(MockListingStore)
	mockStore.On("FindByID", mock.Anything, uint64(3)).Return(active, nil)
	mockStore.On("WithTx", mock.Anything, mock.Anything).Return(tx, nil).Once()
	mockStore.On("WithTx", mock.Anything, mock.Anything).Return(tx, restoreErr).Once()
	mockCache := new(MockListingCache)
	mockCache.On("Invalidate", mock.Anything, uint64(3)).Return(nil)

	registry := NewListingRegistry(cfg, mockStore, assets, mockCache, nil)
	err := registry.UnlistItem(context.Background(), "7", 3, seller)
	assert.ErrorIs(t, err, transferErr)
	assert.ErrorContains(t, err, "also failed")
	assert.Equal(t, []uint64{3}, tx.cleared)
	require.Len(t, tx.restored, 1)
	assert.Equal(t, uint64(3), tx.restored[0].ID)
	mockCache.AssertCalled(t, "Invalidate", mock.Anything, uint64(3))
	mockStore.AssertExpectations(t)
}

func TestListingRegistry_StoreErrorsPropagate(t *testing.T) {
	cfg := &config.Config{RegistryAddress: registryAddr.String()}
	dbErr := errors.New("connection reset")
	mockStore := new(MockListingStore)
	mockStore.On("FindActiveByAsset", mock.Anything, mock.Anything).Return(nil, dbErr)
	mockStore.On("FindByID", mock.Anything, uint64(9)).Return(nil, dbErr)

	registry := NewListingRegistry(cfg, mockStore, ledger.NewMemoryAssetLedger(), nil, nil)
	ctx := context.Background()

	_, err := registry.ListItem(ctx, seller, collection, "7", big.NewInt(10))
	assert.ErrorIs(t, err, dbErr)
	assert.NotErrorIs(t, err, ErrDuplicateListing)

	err = registry.UnlistItem(ctx, "7", 9, seller)
	assert.ErrorIs(t, err, dbErr)

	_, err = registry.GetListing(ctx, 9)
	assert.ErrorIs(t, err, dbErr)
	mockStore.AssertNotCalled(t, "WithTx", mock.Anything, mock.Anything)
}

func TestListingRegistry_CacheAndAudit(t *testing.T) {
	cfg := &config.Config{RegistryAddress: registryAddr.String()}
	st := store.NewMemoryStore()
	assets := ledger.NewMemoryAssetLedger()
	require.NoError(t, assets.Mint(collection, "7", seller))
	require.NoError(t, assets.Approve(collection, "7", seller, registryAddr))

	mockCache := new(MockListingCache)
	mockAuditor := new(MockCustodyAuditor)
	registry := NewListingRegistry(cfg, st, assets, mockCache, mockAuditor)
	ctx := context.Background()

	mockCache.On("Invalidate", mock.Anything, uint64(1)).Return(nil)
	mockAuditor.On("EnqueueAudit", mock.Anything, uint64(1)).Return(nil)

	id, err := registry.ListItem(ctx, seller, collection, "7", big.NewInt(10))
	require.NoError(t, err)

	// miss, then served from the store and written back
	mockCache.On("Get", mock.Anything, id).Return(nil, cache.ErrCacheMiss).Once()
	mockCache.On("Set", mock.Anything, mock.MatchedBy(func(l *models.Listing) bool { return l.ID == id })).Return(nil).Once()
	listing, err := registry.GetListing(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, seller, listing.Seller)

	// hit
	mockCache.On("Get", mock.Anything, id).Return(listing, nil).Once()
	_, err = registry.GetListing(ctx, id)
	require.NoError(t, err)

	require.NoError(t, registry.UnlistItem(ctx, "7", id, seller))

	mockCache.AssertNumberOfCalls(t, "Invalidate", 2)
	mockAuditor.AssertNumberOfCalls(t, "EnqueueAudit", 2)
	mockCache.AssertExpectations(t)
}

func TestListingRegistry_RejectionsSkipSideEffects(t *testing.T) {
	cfg := &config.Config{RegistryAddress: registryAddr.String()}
	mockCache := new(MockListingCache)
	mockAuditor := new(MockCustodyAuditor)
	registry := NewListingRegistry(cfg, store.NewMemoryStore(), ledger.NewMemoryAssetLedger(), mockCache, mockAuditor)

	_, err := registry.ListItem(context.Background(), seller, collection, "7", big.NewInt(0))
	assert.ErrorIs(t, err, ErrInvalidPrice)

	mockCache.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
	mockAuditor.AssertNotCalled(t, "EnqueueAudit", mock.Anything, mock.Anything)
}
