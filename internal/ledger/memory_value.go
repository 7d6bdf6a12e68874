package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/RenukaPawar658/marketplace/internal/models"
)

// MemoryValueLedger is an in-process fungible token ledger with ERC-20 style
// allowances.
type MemoryValueLedger struct {
	mu         sync.RWMutex
	balances   map[models.Address]*big.Int
	allowances map[models.Address]map[models.Address]*big.Int // owner -> spender
}

// NewMemoryValueLedger creates an empty ledger.
func NewMemoryValueLedger() *MemoryValueLedger {
	return &MemoryValueLedger{
		balances:   make(map[models.Address]*big.Int),
		allowances: make(map[models.Address]map[models.Address]*big.Int),
	}
}

// Credit issues amount new tokens to owner.
func (l *MemoryValueLedger) Credit(owner models.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.balanceLocked(owner)
	b.Add(b, amount)
	return nil
}

// Approve sets the amount spender may move out of owner's balance.
func (l *MemoryValueLedger) Approve(owner, spender models.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	byOwner, ok := l.allowances[owner]
	if !ok {
		byOwner = make(map[models.Address]*big.Int)
		l.allowances[owner] = byOwner
	}
	byOwner[spender] = new(big.Int).Set(amount)
	return nil
}

func (l *MemoryValueLedger) BalanceOf(_ context.Context, owner models.Address) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if b, ok := l.balances[owner]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (l *MemoryValueLedger) TransferFrom(_ context.Context, spender, from, to models.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	fromBal := l.balanceLocked(from)
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from, fromBal, amount)
	}
	var allowance *big.Int
	if spender != from {
		allowance = l.allowances[from][spender]
		if allowance == nil || allowance.Cmp(amount) < 0 {
			return fmt.Errorf("%w: %s on behalf of %s", ErrInsufficientAllowance, spender, from)
		}
	}

	fromBal.Sub(fromBal, amount)
	toBal := l.balanceLocked(to)
	toBal.Add(toBal, amount)
	if allowance != nil {
		allowance.Sub(allowance, amount)
	}
	return nil
}

func (l *MemoryValueLedger) balanceLocked(owner models.Address) *big.Int {
	b, ok := l.balances[owner]
	if !ok {
		b = new(big.Int)
		l.balances[owner] = b
	}
	return b
}
