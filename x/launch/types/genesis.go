package types

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// GenesisState holds the full launch module state for export and import.
type GenesisState struct {
	Params         Params          `json:"params"`
	Listings       []Listing       `json:"listings"`
	CapitalVaults  []CapitalVault  `json:"capital_vaults"`
	RewardVaults   []RewardVault   `json:"reward_vaults"`
	Passes         []SupporterPass `json:"passes"`
	YieldPositions []YieldPosition `json:"yield_positions"`
	RouteGrants    []string        `json:"route_grants"` // "<listing-id>|<grantee>"
	Backers        []string        `json:"backers"`      // "<listing-id>|<backer>"
	ListingCount   uint64          `json:"listing_count"`
	PassCount      uint64          `json:"pass_count"`
}

// DefaultGenesis returns the default genesis state
func DefaultGenesis() *GenesisState {
	return &GenesisState{
		Params:         DefaultParams(),
		Listings:       []Listing{},
		CapitalVaults:  []CapitalVault{},
		RewardVaults:   []RewardVault{},
		Passes:         []SupporterPass{},
		YieldPositions: []YieldPosition{},
		RouteGrants:    []string{},
		Backers:        []string{},
	}
}

// Validate performs genesis state validation: record soundness, one vault
// pair per listing, and share conservation between passes and vaults.
func (gs GenesisState) Validate() error {
	if err := gs.Params.Validate(); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}

	listings := make(map[string]Listing, len(gs.Listings))
	for i, listing := range gs.Listings {
		if listing.ID == "" {
			return fmt.Errorf("listing at index %d missing id", i)
		}
		if _, ok := listings[listing.ID]; ok {
			return fmt.Errorf("duplicate listing id %q", listing.ID)
		}
		if err := listing.Config.Validate(); err != nil {
			return fmt.Errorf("listing %s has invalid config: %w", listing.ID, err)
		}
		if listing.ConfigHash != listing.Config.Hash() {
			return fmt.Errorf("listing %s config hash mismatch", listing.ID)
		}
		switch listing.Status {
		case ListingStatusDraft, ListingStatusActive, ListingStatusFinalized,
			ListingStatusCompleted, ListingStatusCancelled:
		default:
			return fmt.Errorf("listing %s has unknown status %q", listing.ID, listing.Status)
		}
		listings[listing.ID] = listing
	}

	capitalShares := make(map[string]sdkmath.Int, len(gs.CapitalVaults))
	for i, vault := range gs.CapitalVaults {
		if vault.ListingID == "" {
			return fmt.Errorf("capital vault at index %d missing listing id", i)
		}
		if _, ok := listings[vault.ListingID]; !ok {
			return fmt.Errorf("capital vault references unknown listing %q", vault.ListingID)
		}
		if _, ok := capitalShares[vault.ListingID]; ok {
			return fmt.Errorf("duplicate capital vault for listing %q", vault.ListingID)
		}
		if vault.Balance.IsNil() || vault.Balance.IsNegative() {
			return fmt.Errorf("capital vault %s balance must be non-negative", vault.ListingID)
		}
		if vault.TotalPrincipal.IsNil() || vault.TotalPrincipal.IsNegative() {
			return fmt.Errorf("capital vault %s total principal must be non-negative", vault.ListingID)
		}
		if vault.TotalShares.IsNil() || vault.TotalShares.IsNegative() {
			return fmt.Errorf("capital vault %s total shares must be non-negative", vault.ListingID)
		}
		if vault.ScheduleFinalized && vault.FeeAmount.IsNil() {
			return fmt.Errorf("capital vault %s finalized without a fee amount", vault.ListingID)
		}
		if vault.ScheduleFinalized {
			total := sdkmath.ZeroInt()
			for _, tranche := range vault.Tranches {
				if tranche.Amount.IsNil() || tranche.Amount.IsNegative() {
					return fmt.Errorf("capital vault %s has negative tranche amount", vault.ListingID)
				}
				total = total.Add(tranche.Amount)
			}
			expected := vault.TotalPrincipal.Sub(vault.FeeAmount)
			if !total.Equal(expected) {
				return fmt.Errorf("capital vault %s tranche amounts sum to %s, want %s", vault.ListingID, total, expected)
			}
		}
		capitalShares[vault.ListingID] = vault.TotalShares
	}

	rewardShares := make(map[string]sdkmath.Int, len(gs.RewardVaults))
	for i, vault := range gs.RewardVaults {
		if vault.ListingID == "" {
			return fmt.Errorf("reward vault at index %d missing listing id", i)
		}
		if _, ok := listings[vault.ListingID]; !ok {
			return fmt.Errorf("reward vault references unknown listing %q", vault.ListingID)
		}
		if _, ok := rewardShares[vault.ListingID]; ok {
			return fmt.Errorf("duplicate reward vault for listing %q", vault.ListingID)
		}
		if vault.GlobalIndex.IsNil() || vault.GlobalIndex.IsNegative() {
			return fmt.Errorf("reward vault %s global index must be non-negative", vault.ListingID)
		}
		if vault.Balance.IsNil() || vault.Balance.IsNegative() {
			return fmt.Errorf("reward vault %s balance must be non-negative", vault.ListingID)
		}
		if vault.TotalDeposited.IsNil() || vault.TotalDistributed.IsNil() ||
			vault.TotalDistributed.GT(vault.TotalDeposited) {
			return fmt.Errorf("reward vault %s distributed more than deposited", vault.ListingID)
		}
		rewardShares[vault.ListingID] = vault.TotalShares
	}

	for id, shares := range capitalShares {
		mirror, ok := rewardShares[id]
		if !ok {
			return fmt.Errorf("listing %q has a capital vault but no reward vault", id)
		}
		if !shares.Equal(mirror) {
			return fmt.Errorf("listing %q share mirror out of sync: capital %s, reward %s", id, shares, mirror)
		}
	}

	liveShares := make(map[string]sdkmath.Int, len(listings))
	passIDs := make(map[string]struct{}, len(gs.Passes))
	for i, pass := range gs.Passes {
		if pass.ID == "" {
			return fmt.Errorf("pass at index %d missing id", i)
		}
		if _, ok := passIDs[pass.ID]; ok {
			return fmt.Errorf("duplicate pass id %q", pass.ID)
		}
		passIDs[pass.ID] = struct{}{}
		if _, ok := listings[pass.ListingID]; !ok {
			return fmt.Errorf("pass %s references unknown listing %q", pass.ID, pass.ListingID)
		}
		if pass.Shares.IsNil() || !pass.Shares.IsPositive() {
			return fmt.Errorf("pass %s shares must be positive", pass.ID)
		}
		if pass.ClaimIndex.IsNil() || pass.ClaimIndex.IsNegative() {
			return fmt.Errorf("pass %s claim index must be non-negative", pass.ID)
		}
		if vaultIndex, ok := findRewardVault(gs.RewardVaults, pass.ListingID); ok {
			if pass.ClaimIndex.GT(gs.RewardVaults[vaultIndex].GlobalIndex) {
				return fmt.Errorf("pass %s claim index ahead of global index", pass.ID)
			}
		}
		if pass.Redeemed {
			continue
		}
		sum, ok := liveShares[pass.ListingID]
		if !ok {
			sum = sdkmath.ZeroInt()
		}
		liveShares[pass.ListingID] = sum.Add(pass.Shares)
	}

	for id, shares := range capitalShares {
		sum, ok := liveShares[id]
		if !ok {
			sum = sdkmath.ZeroInt()
		}
		if !sum.Equal(shares) {
			return fmt.Errorf("listing %q pass shares sum to %s, vault records %s", id, sum, shares)
		}
	}

	for i, position := range gs.YieldPositions {
		if position.ListingID == "" {
			return fmt.Errorf("yield position at index %d missing listing id", i)
		}
		if _, ok := listings[position.ListingID]; !ok {
			return fmt.Errorf("yield position references unknown listing %q", position.ListingID)
		}
		staked := sdkmath.ZeroInt()
		for _, lot := range position.Stakes {
			if lot.Principal.IsNil() || !lot.Principal.IsPositive() {
				return fmt.Errorf("yield position %s has non-positive stake lot", position.ListingID)
			}
			staked = staked.Add(lot.Principal)
		}
		if !staked.Equal(position.StakedPrincipal) {
			return fmt.Errorf("yield position %s stake lots sum to %s, recorded %s", position.ListingID, staked, position.StakedPrincipal)
		}
	}

	return nil
}

func findRewardVault(vaults []RewardVault, listingID string) (int, bool) {
	for i := range vaults {
		if vaults[i].ListingID == listingID {
			return i, true
		}
	}
	return -1, false
}
