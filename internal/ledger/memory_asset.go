package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/RenukaPawar658/marketplace/internal/models"
)

type assetState struct {
	owner    models.Address
	approved models.Address
}

// MemoryAssetLedger is an in-process asset ledger with ERC-721 semantics:
// per-asset approval that is cleared on transfer, plus owner-wide operators.
type MemoryAssetLedger struct {
	mu        sync.RWMutex
	assets    map[models.AssetKey]*assetState
	operators map[models.Address]map[models.Address]map[models.Address]bool // contract -> owner -> operator
}

// NewMemoryAssetLedger creates an empty ledger.
func NewMemoryAssetLedger() *MemoryAssetLedger {
	return &MemoryAssetLedger{
		assets:    make(map[models.AssetKey]*assetState),
		operators: make(map[models.Address]map[models.Address]map[models.Address]bool),
	}
}

// Mint creates a new asset owned by owner.
func (l *MemoryAssetLedger) Mint(contract models.Address, assetID string, owner models.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := models.AssetKey{Contract: contract, AssetID: assetID}
	if _, exists := l.assets[key]; exists {
		return fmt.Errorf("asset %s already minted", key)
	}
	if owner.IsZero() {
		return fmt.Errorf("cannot mint asset %s to the zero address", key)
	}
	l.assets[key] = &assetState{owner: owner}
	return nil
}

// Approve grants operator the right to transfer one asset. Only the owner may approve.
func (l *MemoryAssetLedger) Approve(contract models.Address, assetID string, caller, operator models.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := models.AssetKey{Contract: contract, AssetID: assetID}
	st, ok := l.assets[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, key)
	}
	if st.owner != caller && !l.isOperatorLocked(contract, st.owner, caller) {
		return fmt.Errorf("%w: %s may not approve %s", ErrNotAuthorized, caller, key)
	}
	st.approved = operator
	return nil
}

// SetApprovalForAll toggles operator for every asset owner holds in contract.
func (l *MemoryAssetLedger) SetApprovalForAll(contract models.Address, owner, operator models.Address, approved bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	byOwner, ok := l.operators[contract]
	if !ok {
		byOwner = make(map[models.Address]map[models.Address]bool)
		l.operators[contract] = byOwner
	}
	ops, ok := byOwner[owner]
	if !ok {
		ops = make(map[models.Address]bool)
		byOwner[owner] = ops
	}
	if approved {
		ops[operator] = true
	} else {
		delete(ops, operator)
	}
}

func (l *MemoryAssetLedger) OwnerOf(_ context.Context, contract models.Address, assetID string) (models.Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	st, ok := l.assets[models.AssetKey{Contract: contract, AssetID: assetID}]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrUnknownAsset, contract, assetID)
	}
	return st.owner, nil
}

func (l *MemoryAssetLedger) IsApproved(_ context.Context, contract models.Address, assetID string, operator models.Address) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	st, ok := l.assets[models.AssetKey{Contract: contract, AssetID: assetID}]
	if !ok {
		return false, fmt.Errorf("%w: %s/%s", ErrUnknownAsset, contract, assetID)
	}
	if operator.IsZero() {
		return false, nil
	}
	return st.approved == operator || l.isOperatorLocked(contract, st.owner, operator), nil
}

func (l *MemoryAssetLedger) TransferFrom(_ context.Context, contract models.Address, operator, from, to models.Address, assetID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := models.AssetKey{Contract: contract, AssetID: assetID}
	st, ok := l.assets[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, key)
	}
	if st.owner != from {
		return fmt.Errorf("%w: %s does not own %s", ErrNotAssetOwner, from, key)
	}
	if operator.IsZero() || (operator != from && st.approved != operator && !l.isOperatorLocked(contract, from, operator)) {
		return fmt.Errorf("%w: %s for %s", ErrNotAuthorized, operator, key)
	}
	if to.IsZero() {
		return fmt.Errorf("cannot transfer %s to the zero address", key)
	}
	st.owner = to
	st.approved = ""
	return nil
}

func (l *MemoryAssetLedger) isOperatorLocked(contract, owner, operator models.Address) bool {
	return l.operators[contract][owner][operator]
}
