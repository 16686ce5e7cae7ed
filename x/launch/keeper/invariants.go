package keeper

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/tide-protocol/tidechain/x/launch/types"
)

// RegisterInvariants registers all module invariants with the invariant registry.
func RegisterInvariants(ir sdk.InvariantRegistry, k Keeper) {
	ir.RegisterRoute(types.ModuleName, "listing-state", ListingStateInvariant(k))
	ir.RegisterRoute(types.ModuleName, "share-conservation", ShareConservationInvariant(k))
	ir.RegisterRoute(types.ModuleName, "schedule-conservation", ScheduleConservationInvariant(k))
	ir.RegisterRoute(types.ModuleName, "reward-accounting", RewardAccountingInvariant(k))
	ir.RegisterRoute(types.ModuleName, "vault-non-negative", VaultNonNegativeInvariant(k))
	ir.RegisterRoute(types.ModuleName, "yield-position", YieldPositionInvariant(k))
	ir.RegisterRoute(types.ModuleName, "count-consistency", CountConsistencyInvariant(k))
}

// AllInvariants runs all invariants of the launch module.
func AllInvariants(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		invariants := []sdk.Invariant{
			ListingStateInvariant(k),
			ShareConservationInvariant(k),
			ScheduleConservationInvariant(k),
			RewardAccountingInvariant(k),
			VaultNonNegativeInvariant(k),
			YieldPositionInvariant(k),
			CountConsistencyInvariant(k),
		}

		for _, inv := range invariants {
			if msg, broken := inv(ctx); broken {
				return msg, broken
			}
		}
		return "", false
	}
}

// ListingStateInvariant checks that every listing is in a recognized state,
// that its config still matches the hash recorded at creation, and that
// lifecycle timestamps agree with the state.
func ListingStateInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		var msg string
		broken := false

		_ = k.Listings.Walk(ctx, nil, func(id string, raw string) (bool, error) {
			listing, err := decodeListing(raw)
			if err != nil {
				msg += fmt.Sprintf("INVARIANT BROKEN: listing %s cannot be decoded: %v\n", id, err)
				broken = true
				return false, nil
			}

			switch listing.Status {
			case types.ListingStatusDraft, types.ListingStatusActive,
				types.ListingStatusFinalized, types.ListingStatusCompleted,
				types.ListingStatusCancelled:
				// valid
			default:
				msg += fmt.Sprintf("INVARIANT BROKEN: listing %s has unknown status %s\n", id, listing.Status)
				broken = true
				return false, nil
			}

			if listing.Config.Hash() != listing.ConfigHash {
				msg += fmt.Sprintf("INVARIANT BROKEN: listing %s config no longer matches recorded hash\n", id)
				broken = true
			}

			if listing.Status.IsTerminal() && listing.ClosedAtUnix == 0 {
				msg += fmt.Sprintf("INVARIANT BROKEN: terminal listing %s has no closed timestamp\n", id)
				broken = true
			}
			if (listing.Status == types.ListingStatusFinalized || listing.Status == types.ListingStatusCompleted) &&
				listing.FinalizedAtUnix == 0 {
				msg += fmt.Sprintf("INVARIANT BROKEN: listing %s is %s but has no finalized timestamp\n", id, listing.Status)
				broken = true
			}

			return false, nil
		})

		if broken {
			return sdk.FormatInvariant(types.ModuleName, "listing-state", msg), true
		}
		return "", false
	}
}

// ShareConservationInvariant checks that for every listing the sum of
// non-redeemed pass shares equals the capital vault's share total, and that
// the reward vault mirrors it exactly.
func ShareConservationInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		var msg string
		broken := false

		// Sum live pass shares per listing.
		liveShares := make(map[string]sdkmath.Int)
		_ = k.Passes.Walk(ctx, nil, func(id string, raw string) (bool, error) {
			pass, err := decodePass(raw)
			if err != nil {
				msg += fmt.Sprintf("INVARIANT BROKEN: pass %s cannot be decoded: %v\n", id, err)
				broken = true
				return false, nil
			}
			if pass.Redeemed {
				return false, nil
			}
			sum, ok := liveShares[pass.ListingID]
			if !ok {
				sum = sdkmath.ZeroInt()
			}
			liveShares[pass.ListingID] = sum.Add(pass.Shares)
			return false, nil
		})

		_ = k.CapitalVaults.Walk(ctx, nil, func(id string, raw string) (bool, error) {
			vault, err := decodeCapitalVault(raw)
			if err != nil {
				msg += fmt.Sprintf("INVARIANT BROKEN: capital vault %s cannot be decoded: %v\n", id, err)
				broken = true
				return false, nil
			}
			sum, ok := liveShares[id]
			if !ok {
				sum = sdkmath.ZeroInt()
			}
			if !vault.TotalShares.Equal(sum) {
				msg += fmt.Sprintf("INVARIANT BROKEN: listing %s vault shares %s != live pass shares %s\n",
					id, vault.TotalShares, sum)
				broken = true
			}

			rewardVault, err := k.GetRewardVault(ctx, id)
			if err != nil {
				msg += fmt.Sprintf("INVARIANT BROKEN: listing %s has a capital vault but no reward vault\n", id)
				broken = true
				return false, nil
			}
			if !rewardVault.TotalShares.Equal(vault.TotalShares) {
				msg += fmt.Sprintf("INVARIANT BROKEN: listing %s reward shares %s != capital shares %s\n",
					id, rewardVault.TotalShares, vault.TotalShares)
				broken = true
			}
			return false, nil
		})

		if broken {
			return sdk.FormatInvariant(types.ModuleName, "share-conservation", msg), true
		}
		return "", false
	}
}

// ScheduleConservationInvariant checks that a finalized schedule accounts
// for exactly the raised principal: tranche amounts sum to principal minus
// fee, released tranches decompose into paid plus shortfall, and the
// released counter matches the tranche flags.
func ScheduleConservationInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		var msg string
		broken := false

		_ = k.CapitalVaults.Walk(ctx, nil, func(id string, raw string) (bool, error) {
			vault, err := decodeCapitalVault(raw)
			if err != nil {
				return false, nil
			}
			if !vault.ScheduleFinalized {
				if len(vault.Tranches) != 0 {
					msg += fmt.Sprintf("INVARIANT BROKEN: listing %s has tranches before finalization\n", id)
					broken = true
				}
				return false, nil
			}

			total := sdkmath.ZeroInt()
			releasedCount := uint32(0)
			for i, tranche := range vault.Tranches {
				total = total.Add(tranche.Amount)
				if tranche.Released {
					releasedCount++
					if !tranche.ReleasedAmount.Add(tranche.ShortfallAmount).Equal(tranche.Amount) {
						msg += fmt.Sprintf("INVARIANT BROKEN: listing %s tranche %d paid %s + shortfall %s != amount %s\n",
							id, i, tranche.ReleasedAmount, tranche.ShortfallAmount, tranche.Amount)
						broken = true
					}
				} else if !tranche.ReleasedAmount.IsZero() {
					msg += fmt.Sprintf("INVARIANT BROKEN: listing %s tranche %d unreleased but paid %s\n",
						id, i, tranche.ReleasedAmount)
					broken = true
				}
			}

			expected := vault.TotalPrincipal.Sub(vault.FeeAmount)
			if !total.Equal(expected) {
				msg += fmt.Sprintf("INVARIANT BROKEN: listing %s tranche sum %s != principal %s - fee %s\n",
					id, total, vault.TotalPrincipal, vault.FeeAmount)
				broken = true
			}
			if releasedCount != vault.TranchesReleased {
				msg += fmt.Sprintf("INVARIANT BROKEN: listing %s released counter %d != flagged tranches %d\n",
					id, vault.TranchesReleased, releasedCount)
				broken = true
			}
			return false, nil
		})

		if broken {
			return sdk.FormatInvariant(types.ModuleName, "schedule-conservation", msg), true
		}
		return "", false
	}
}

// RewardAccountingInvariant checks the reward vault ledger: the balance is
// exactly deposits minus distributions, the index never went negative, and
// no pass cursor has run ahead of the index.
func RewardAccountingInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		var msg string
		broken := false

		indexes := make(map[string]sdkmath.Int)
		_ = k.RewardVaults.Walk(ctx, nil, func(id string, raw string) (bool, error) {
			vault, err := decodeRewardVault(raw)
			if err != nil {
				msg += fmt.Sprintf("INVARIANT BROKEN: reward vault %s cannot be decoded: %v\n", id, err)
				broken = true
				return false, nil
			}
			indexes[id] = vault.GlobalIndex

			if vault.GlobalIndex.IsNegative() {
				msg += fmt.Sprintf("INVARIANT BROKEN: listing %s has negative global index %s\n", id, vault.GlobalIndex)
				broken = true
			}
			expected := vault.TotalDeposited.Sub(vault.TotalDistributed)
			if !vault.Balance.Equal(expected) {
				msg += fmt.Sprintf("INVARIANT BROKEN: listing %s reward balance %s != deposited %s - distributed %s\n",
					id, vault.Balance, vault.TotalDeposited, vault.TotalDistributed)
				broken = true
			}
			if vault.PendingUndistributed.IsNegative() {
				msg += fmt.Sprintf("INVARIANT BROKEN: listing %s has negative pending pool %s\n", id, vault.PendingUndistributed)
				broken = true
			}
			return false, nil
		})

		_ = k.Passes.Walk(ctx, nil, func(id string, raw string) (bool, error) {
			pass, err := decodePass(raw)
			if err != nil {
				return false, nil
			}
			index, ok := indexes[pass.ListingID]
			if !ok {
				msg += fmt.Sprintf("INVARIANT BROKEN: pass %s references listing %s with no reward vault\n", id, pass.ListingID)
				broken = true
				return false, nil
			}
			if pass.ClaimIndex.GT(index) {
				msg += fmt.Sprintf("INVARIANT BROKEN: pass %s cursor %s ahead of global index %s\n",
					id, pass.ClaimIndex, index)
				broken = true
			}
			if !pass.Shares.IsPositive() {
				msg += fmt.Sprintf("INVARIANT BROKEN: pass %s has non-positive shares %s\n", id, pass.Shares)
				broken = true
			}
			return false, nil
		})

		if broken {
			return sdk.FormatInvariant(types.ModuleName, "reward-accounting", msg), true
		}
		return "", false
	}
}

// VaultNonNegativeInvariant checks that no vault amount has gone negative.
func VaultNonNegativeInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		var msg string
		broken := false

		_ = k.CapitalVaults.Walk(ctx, nil, func(id string, raw string) (bool, error) {
			vault, err := decodeCapitalVault(raw)
			if err != nil {
				return false, nil
			}
			for name, value := range map[string]sdkmath.Int{
				"balance":         vault.Balance,
				"total_principal": vault.TotalPrincipal,
				"total_shares":    vault.TotalShares,
				"fee_amount":      vault.FeeAmount,
				"refunded_shares": vault.RefundedShares,
				"refunded_amount": vault.RefundedAmount,
			} {
				if value.IsNil() || value.IsNegative() {
					msg += fmt.Sprintf("INVARIANT BROKEN: listing %s capital vault %s is %s\n", id, name, value)
					broken = true
				}
			}
			return false, nil
		})

		_ = k.RewardVaults.Walk(ctx, nil, func(id string, raw string) (bool, error) {
			vault, err := decodeRewardVault(raw)
			if err != nil {
				return false, nil
			}
			for name, value := range map[string]sdkmath.Int{
				"balance":           vault.Balance,
				"total_shares":      vault.TotalShares,
				"total_deposited":   vault.TotalDeposited,
				"total_distributed": vault.TotalDistributed,
			} {
				if value.IsNil() || value.IsNegative() {
					msg += fmt.Sprintf("INVARIANT BROKEN: listing %s reward vault %s is %s\n", id, name, value)
					broken = true
				}
			}
			return false, nil
		})

		if broken {
			return sdk.FormatInvariant(types.ModuleName, "vault-non-negative", msg), true
		}
		return "", false
	}
}

// YieldPositionInvariant checks that tracked stake lots sum to the recorded
// staked principal on every yield position.
func YieldPositionInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		var msg string
		broken := false

		_ = k.YieldPositions.Walk(ctx, nil, func(id string, raw string) (bool, error) {
			position, err := decodeYieldPosition(raw)
			if err != nil {
				msg += fmt.Sprintf("INVARIANT BROKEN: yield position %s cannot be decoded: %v\n", id, err)
				broken = true
				return false, nil
			}
			sum := sdkmath.ZeroInt()
			seen := make(map[string]bool)
			for _, lot := range position.Stakes {
				if seen[lot.Handle] {
					msg += fmt.Sprintf("INVARIANT BROKEN: listing %s has duplicate stake handle %s\n", id, lot.Handle)
					broken = true
				}
				seen[lot.Handle] = true
				if !lot.Principal.IsPositive() {
					msg += fmt.Sprintf("INVARIANT BROKEN: listing %s stake lot %s has non-positive principal %s\n",
						id, lot.Handle, lot.Principal)
					broken = true
				}
				sum = sum.Add(lot.Principal)
			}
			if !position.StakedPrincipal.Equal(sum) {
				msg += fmt.Sprintf("INVARIANT BROKEN: listing %s staked principal %s != lot sum %s\n",
					id, position.StakedPrincipal, sum)
				broken = true
			}
			return false, nil
		})

		if broken {
			return sdk.FormatInvariant(types.ModuleName, "yield-position", msg), true
		}
		return "", false
	}
}

// CountConsistencyInvariant checks that the stored listing and pass counters
// match the actual number of records. Records are never deleted, so the
// counters must agree exactly.
func CountConsistencyInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		storedListings, err := k.ListingCount.Get(ctx)
		if err != nil {
			storedListings = 0
		}
		storedPasses, err := k.PassCount.Get(ctx)
		if err != nil {
			storedPasses = 0
		}

		actualListings := uint64(0)
		_ = k.Listings.Walk(ctx, nil, func(string, string) (bool, error) {
			actualListings++
			return false, nil
		})
		actualPasses := uint64(0)
		_ = k.Passes.Walk(ctx, nil, func(string, string) (bool, error) {
			actualPasses++
			return false, nil
		})

		if storedListings != actualListings {
			msg := fmt.Sprintf("INVARIANT BROKEN: stored listing count %d != actual %d\n", storedListings, actualListings)
			return sdk.FormatInvariant(types.ModuleName, "count-consistency", msg), true
		}
		if storedPasses != actualPasses {
			msg := fmt.Sprintf("INVARIANT BROKEN: stored pass count %d != actual %d\n", storedPasses, actualPasses)
			return sdk.FormatInvariant(types.ModuleName, "count-consistency", msg), true
		}

		return "", false
	}
}
