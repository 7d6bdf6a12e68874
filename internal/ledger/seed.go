package ledger

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/RenukaPawar658/marketplace/internal/models"
	"github.com/RenukaPawar658/marketplace/internal/utils"
)

// Seed describes the initial state of the in-memory ledgers.
type Seed struct {
	Assets   []SeedAsset   `yaml:"assets"`
	Balances []SeedBalance `yaml:"balances"`
}

// SeedAsset mints one asset. ApproveRegistry grants the registry a single-asset
// approval, ApproveAll an operator-wide one for the owner's whole collection.
type SeedAsset struct {
	Contract        string `yaml:"contract"`
	AssetID         string `yaml:"asset_id"`
	Owner           string `yaml:"owner"`
	ApproveRegistry bool   `yaml:"approve_registry"`
	ApproveAll      bool   `yaml:"approve_all"`
}

// SeedBalance credits a decimal token amount.
type SeedBalance struct {
	Identity string `yaml:"identity"`
	Amount   string `yaml:"amount"`
}

// LoadSeed reads a YAML seed file, expanding ${VAR} references first.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &seed); err != nil {
		return nil, fmt.Errorf("parse seed yaml: %w", err)
	}
	return &seed, nil
}

// Apply mints and credits everything in the seed. registry is the operator the
// approvals are granted to.
func (s *Seed) Apply(assets *MemoryAssetLedger, values *MemoryValueLedger, registry models.Address, decimals int32) error {
	for i, a := range s.Assets {
		contract := models.NewAddress(a.Contract)
		owner := models.NewAddress(a.Owner)
		assetID := strings.TrimSpace(a.AssetID)
		if contract == "" || assetID == "" {
			return fmt.Errorf("seed asset %d: contract and asset_id are required", i)
		}
		if err := assets.Mint(contract, assetID, owner); err != nil {
			return fmt.Errorf("seed asset %d: %w", i, err)
		}
		if a.ApproveRegistry {
			if err := assets.Approve(contract, assetID, owner, registry); err != nil {
				return fmt.Errorf("seed asset %d: %w", i, err)
			}
		}
		if a.ApproveAll {
			assets.SetApprovalForAll(contract, owner, registry, true)
		}
	}

	for i, b := range s.Balances {
		amount, err := utils.ParseTokenAmount(b.Amount, decimals)
		if err != nil {
			return fmt.Errorf("seed balance %d: %w", i, err)
		}
		if err := values.Credit(models.NewAddress(b.Identity), amount); err != nil {
			return fmt.Errorf("seed balance %d: %w", i, err)
		}
	}
	return nil
}
