package ledger

import (
	"context"
	"errors"
	"math/big"

	"github.com/RenukaPawar658/marketplace/internal/models"
)

var (
	// ErrUnknownAsset is returned for an asset that was never minted.
	ErrUnknownAsset = errors.New("unknown asset")
	// ErrNotAssetOwner is returned when a transfer names a from that does not own the asset.
	ErrNotAssetOwner = errors.New("transfer from non-owner")
	// ErrNotAuthorized is returned when the moving operator holds no approval.
	ErrNotAuthorized = errors.New("operator not approved")
	// ErrInsufficientBalance is returned by the value ledger when from cannot cover the amount.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInsufficientAllowance is returned when the spender is not allowed to move the amount.
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	// ErrInvalidAmount is returned for nil or negative amounts.
	ErrInvalidAmount = errors.New("invalid amount")
)

// AssetLedger is the ownership and transfer-authorization ledger for non-fungible
// assets. Every call is scoped to one asset collection (contract).
type AssetLedger interface {
	OwnerOf(ctx context.Context, contract models.Address, assetID string) (models.Address, error)
	IsApproved(ctx context.Context, contract models.Address, assetID string, operator models.Address) (bool, error)
	// TransferFrom moves the asset on behalf of operator. It fails if from is not the
	// current owner, or operator is neither from nor approved for the asset.
	TransferFrom(ctx context.Context, contract models.Address, operator, from, to models.Address, assetID string) error
}

// ValueLedger is the fungible token ledger used for settlement.
type ValueLedger interface {
	BalanceOf(ctx context.Context, owner models.Address) (*big.Int, error)
	TransferFrom(ctx context.Context, spender, from, to models.Address, amount *big.Int) error
}
