package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/RenukaPawar658/marketplace/internal/models"
)

// MemoryStore keeps the listing table in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	listings map[uint64]*models.Listing
	active   map[models.AssetKey]uint64
	lastID   uint64
}

// NewMemoryStore creates an empty store. The first id handed out is 1.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		listings: make(map[uint64]*models.Listing),
		active:   make(map[models.AssetKey]uint64),
	}
}

func (s *MemoryStore) FindByID(_ context.Context, id uint64) (*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.listings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return l.Clone(), nil
}

func (s *MemoryStore) FindActiveByAsset(_ context.Context, asset models.AssetKey) (*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.active[asset]
	if !ok {
		return nil, ErrNotFound
	}
	return s.listings[id].Clone(), nil
}

func (s *MemoryStore) ListActive(_ context.Context) ([]*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Listing, 0, len(s.active))
	for _, id := range s.active {
		out = append(out, s.listings[id].Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx ListingTx) error) error {
	s.mu.RLock()
	tx := &memoryTx{store: s, baseID: s.lastID, nextID: s.lastID}
	s.mu.RUnlock()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *MemoryStore) commit(tx *memoryTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastID != tx.baseID {
		return fmt.Errorf("listing table changed during transaction (id %d, expected %d)", s.lastID, tx.baseID)
	}
	// validate everything before touching the table
	for _, l := range tx.inserts {
		if _, exists := s.active[l.Asset()]; exists {
			return fmt.Errorf("%w: %s", ErrActiveListingExists, l.Asset())
		}
	}
	for _, id := range tx.clears {
		if !s.listings[id].IsActive() {
			return fmt.Errorf("%w: listing %d is no longer active", ErrNotFound, id)
		}
	}
	for _, l := range tx.restores {
		if cur, ok := s.listings[l.ID]; !ok || cur.IsActive() {
			return fmt.Errorf("%w: listing %d is not cleared", ErrNotFound, l.ID)
		}
		if _, exists := s.active[l.Asset()]; exists {
			return fmt.Errorf("%w: %s", ErrActiveListingExists, l.Asset())
		}
	}

	for _, id := range tx.clears {
		delete(s.active, s.listings[id].Asset())
		s.listings[id] = models.ClearedListing(id)
	}
	for _, l := range tx.inserts {
		s.listings[l.ID] = l
		s.active[l.Asset()] = l.ID
	}
	for _, l := range tx.restores {
		s.listings[l.ID] = l
		s.active[l.Asset()] = l.ID
	}
	s.lastID = tx.nextID
	return nil
}

type memoryTx struct {
	store    *MemoryStore
	baseID   uint64
	nextID   uint64
	inserts  []*models.Listing
	clears   []uint64
	restores []*models.Listing
}

func (tx *memoryTx) NextID(_ context.Context) (uint64, error) {
	tx.nextID++
	return tx.nextID, nil
}

func (tx *memoryTx) Insert(_ context.Context, listing *models.Listing) error {
	if listing.ID == 0 || listing.ID <= tx.baseID || listing.ID > tx.nextID {
		return fmt.Errorf("listing id %d was not reserved in this transaction", listing.ID)
	}
	if tx.staged(listing.Asset()) {
		return fmt.Errorf("%w: %s", ErrActiveListingExists, listing.Asset())
	}
	tx.store.mu.RLock()
	_, exists := tx.store.active[listing.Asset()]
	tx.store.mu.RUnlock()
	if exists {
		return fmt.Errorf("%w: %s", ErrActiveListingExists, listing.Asset())
	}
	tx.inserts = append(tx.inserts, listing.Clone())
	return nil
}

func (tx *memoryTx) Clear(_ context.Context, id uint64) error {
	tx.store.mu.RLock()
	l, ok := tx.store.listings[id]
	tx.store.mu.RUnlock()
	if !ok || !l.IsActive() {
		return fmt.Errorf("%w: listing %d", ErrNotFound, id)
	}
	tx.clears = append(tx.clears, id)
	return nil
}

func (tx *memoryTx) Restore(_ context.Context, listing *models.Listing) error {
	if !listing.IsActive() {
		return fmt.Errorf("listing %d must be restored as active", listing.ID)
	}
	tx.store.mu.RLock()
	cur, ok := tx.store.listings[listing.ID]
	_, exists := tx.store.active[listing.Asset()]
	tx.store.mu.RUnlock()
	if !ok || cur.IsActive() {
		return fmt.Errorf("%w: listing %d is not cleared", ErrNotFound, listing.ID)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrActiveListingExists, listing.Asset())
	}
	if tx.staged(listing.Asset()) {
		return fmt.Errorf("%w: %s", ErrActiveListingExists, listing.Asset())
	}
	tx.restores = append(tx.restores, listing.Clone())
	return nil
}

func (tx *memoryTx) staged(asset models.AssetKey) bool {
	for _, l := range tx.inserts {
		if l.Asset() == asset {
			return true
		}
	}
	for _, l := range tx.restores {
		if l.Asset() == asset {
			return true
		}
	}
	return false
}
