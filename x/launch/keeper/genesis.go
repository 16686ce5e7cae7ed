package keeper

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tide-protocol/tidechain/x/launch/types"
)

// InitGenesis initializes the module's state from genesis
func (k Keeper) InitGenesis(ctx context.Context, gs *types.GenesisState) error {
	if gs == nil {
		gs = types.DefaultGenesis()
	}
	if err := gs.Params.Validate(); err != nil {
		return fmt.Errorf("invalid genesis params: %w", err)
	}
	raw, err := json.Marshal(gs.Params)
	if err != nil {
		return err
	}
	if err := k.Params.Set(ctx, string(raw)); err != nil {
		return err
	}

	for _, listing := range gs.Listings {
		if err := k.setListing(ctx, listing); err != nil {
			return err
		}
	}
	for _, vault := range gs.CapitalVaults {
		if err := k.setCapitalVault(ctx, vault); err != nil {
			return err
		}
	}
	for _, vault := range gs.RewardVaults {
		if err := k.setRewardVault(ctx, vault); err != nil {
			return err
		}
	}
	for _, pass := range gs.Passes {
		if err := k.setPass(ctx, pass); err != nil {
			return err
		}
	}
	for _, position := range gs.YieldPositions {
		if err := k.setYieldPosition(ctx, position); err != nil {
			return err
		}
	}
	for _, grant := range gs.RouteGrants {
		if err := k.RouteGrants.Set(ctx, grant); err != nil {
			return err
		}
	}
	for _, backer := range gs.Backers {
		if err := k.Backers.Set(ctx, backer); err != nil {
			return err
		}
	}

	if err := k.ListingCount.Set(ctx, gs.ListingCount); err != nil {
		return err
	}
	if err := k.PassCount.Set(ctx, gs.PassCount); err != nil {
		return err
	}

	return nil
}

// ExportGenesis exports the module's state
func (k Keeper) ExportGenesis(ctx context.Context) (*types.GenesisState, error) {
	gs := types.DefaultGenesis()
	gs.Params = k.GetParams(ctx)

	var walkErr error
	_ = k.Listings.Walk(ctx, nil, func(id string, raw string) (bool, error) {
		listing, err := decodeListing(raw)
		if err != nil {
			walkErr = fmt.Errorf("listing %s: %w", id, err)
			return true, nil
		}
		gs.Listings = append(gs.Listings, listing)
		return false, nil
	})
	_ = k.CapitalVaults.Walk(ctx, nil, func(id string, raw string) (bool, error) {
		vault, err := decodeCapitalVault(raw)
		if err != nil {
			walkErr = fmt.Errorf("capital vault %s: %w", id, err)
			return true, nil
		}
		gs.CapitalVaults = append(gs.CapitalVaults, vault)
		return false, nil
	})
	_ = k.RewardVaults.Walk(ctx, nil, func(id string, raw string) (bool, error) {
		vault, err := decodeRewardVault(raw)
		if err != nil {
			walkErr = fmt.Errorf("reward vault %s: %w", id, err)
			return true, nil
		}
		gs.RewardVaults = append(gs.RewardVaults, vault)
		return false, nil
	})
	_ = k.Passes.Walk(ctx, nil, func(id string, raw string) (bool, error) {
		pass, err := decodePass(raw)
		if err != nil {
			walkErr = fmt.Errorf("pass %s: %w", id, err)
			return true, nil
		}
		gs.Passes = append(gs.Passes, pass)
		return false, nil
	})
	_ = k.YieldPositions.Walk(ctx, nil, func(id string, raw string) (bool, error) {
		position, err := decodeYieldPosition(raw)
		if err != nil {
			walkErr = fmt.Errorf("yield position %s: %w", id, err)
			return true, nil
		}
		gs.YieldPositions = append(gs.YieldPositions, position)
		return false, nil
	})
	_ = k.RouteGrants.Walk(ctx, nil, func(pair string) (bool, error) {
		gs.RouteGrants = append(gs.RouteGrants, pair)
		return false, nil
	})
	_ = k.Backers.Walk(ctx, nil, func(pair string) (bool, error) {
		gs.Backers = append(gs.Backers, pair)
		return false, nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	if count, err := k.ListingCount.Get(ctx); err == nil {
		gs.ListingCount = count
	}
	if count, err := k.PassCount.Get(ctx); err == nil {
		gs.PassCount = count
	}

	return gs, nil
}
