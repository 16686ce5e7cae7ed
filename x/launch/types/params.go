package types

import (
	"fmt"
	"strings"

	sdkmath "cosmossdk.io/math"
)

// Params bound what listing configs the protocol accepts. They protect
// backers from configs that are technically valid but economically abusive.
type Params struct {
	MaxRaiseFeeBps         int64       `json:"max_raise_fee_bps"`
	MaxInitialReleaseBps   int64       `json:"max_initial_release_bps"`
	MaxTrancheCount        uint32      `json:"max_tranche_count"`
	MinTrancheIntervalSecs int64       `json:"min_tranche_interval_secs"`
	DefaultDenom           string      `json:"default_denom"`
	MinDepositFloor        sdkmath.Int `json:"min_deposit_floor"`
}

// DefaultParams returns default module parameters
func DefaultParams() Params {
	return Params{
		MaxRaiseFeeBps:         1000,  // 10%
		MaxInitialReleaseBps:   5000,  // 50%
		MaxTrancheCount:        60,    // five years of monthly tranches
		MinTrancheIntervalSecs: 86400, // 1 day
		DefaultDenom:           "utide",
		MinDepositFloor:        sdkmath.NewInt(1000),
	}
}

// Validate performs basic parameter validation
func (p Params) Validate() error {
	if p.MaxRaiseFeeBps < 0 || p.MaxRaiseFeeBps > BpsBase {
		return fmt.Errorf("max_raise_fee_bps must be between 0 and %d, got %d", BpsBase, p.MaxRaiseFeeBps)
	}
	if p.MaxInitialReleaseBps < 0 || p.MaxInitialReleaseBps > BpsBase {
		return fmt.Errorf("max_initial_release_bps must be between 0 and %d, got %d", BpsBase, p.MaxInitialReleaseBps)
	}
	if p.MaxTrancheCount == 0 {
		return fmt.Errorf("max_tranche_count must be positive")
	}
	if p.MinTrancheIntervalSecs <= 0 {
		return fmt.Errorf("min_tranche_interval_secs must be positive")
	}
	if strings.TrimSpace(p.DefaultDenom) == "" {
		return fmt.Errorf("default_denom cannot be empty")
	}
	if p.MinDepositFloor.IsNil() || p.MinDepositFloor.IsNegative() {
		return fmt.Errorf("min_deposit_floor must be non-negative")
	}
	return nil
}

// CheckConfig enforces the protocol bounds on a listing config.
func (p Params) CheckConfig(c ListingConfig) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.RaiseFeeBps > p.MaxRaiseFeeBps {
		return fmt.Errorf("raise fee %d bps exceeds protocol maximum %d", c.RaiseFeeBps, p.MaxRaiseFeeBps)
	}
	if c.InitialReleaseBps > p.MaxInitialReleaseBps {
		return fmt.Errorf("initial release %d bps exceeds protocol maximum %d", c.InitialReleaseBps, p.MaxInitialReleaseBps)
	}
	if c.TrancheCount > p.MaxTrancheCount {
		return fmt.Errorf("tranche count %d exceeds protocol maximum %d", c.TrancheCount, p.MaxTrancheCount)
	}
	if c.TrancheIntervalSecs < p.MinTrancheIntervalSecs {
		return fmt.Errorf("tranche interval %ds below protocol minimum %ds", c.TrancheIntervalSecs, p.MinTrancheIntervalSecs)
	}
	return nil
}
