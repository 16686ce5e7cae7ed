package keeper

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/tide-protocol/tidechain/x/launch/types"
)

// DepositRewards routes revenue into a listing's reward vault and advances
// the global reward-per-share index. It is the only operation that moves
// the index. The source must present the listing's route capability and
// hold a route grant.
//
// Revenue that arrives while no shares exist parks in the pending pool and
// folds into the index on the next deposit that finds shares outstanding.
func (k Keeper) DepositRewards(ctx context.Context, cap types.RouteCap, msg types.MsgDepositRewards) (sdkmath.Int, error) {
	if err := msg.ValidateBasic(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if cap.ListingID != msg.ListingID {
		return sdkmath.ZeroInt(), types.ErrWrongListing.Wrapf("capability is scoped to %s", cap.ListingID)
	}
	listing, err := k.GetListing(ctx, msg.ListingID)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if !k.HasRouteGrant(ctx, msg.ListingID, msg.Source) {
		return sdkmath.ZeroInt(), types.ErrNotAuthorized.Wrapf("source %s holds no revenue route for %s", msg.Source, msg.ListingID)
	}

	source, err := sdk.AccAddressFromBech32(msg.Source)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("invalid source address: %w", err)
	}
	coins := sdk.NewCoins(sdk.NewCoin(listing.Config.Denom, msg.Amount))
	if err := k.bankKeeper.SendCoinsFromAccountToModule(ctx, source, types.RewardPoolName, coins); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("reward transfer failed: %w", err)
	}

	vault, err := k.GetRewardVault(ctx, msg.ListingID)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := applyRewardDeposit(&vault, msg.Amount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := k.setRewardVault(ctx, vault); err != nil {
		return sdkmath.ZeroInt(), err
	}

	sdkCtx, _ := contextNow(ctx)
	k.metrics.RewardDeposits.Inc()
	k.auditLogger.AuditRewardsDeposited(sdkCtx, msg.ListingID, msg.Source, msg.Amount.String(), vault.GlobalIndex.String())
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"launch_rewards_deposited",
		sdk.NewAttribute("listing_id", msg.ListingID),
		sdk.NewAttribute("source", msg.Source),
		sdk.NewAttribute("amount", msg.Amount.String()),
		sdk.NewAttribute("global_index", vault.GlobalIndex.String()),
	))
	return vault.GlobalIndex, nil
}

// applyRewardDeposit folds amount plus any pending pool into the vault's
// index when shares exist, or parks it as pending when none do. The index
// never decreases.
func applyRewardDeposit(vault *types.RewardVault, amount sdkmath.Int) error {
	effective := amount.Add(vault.PendingUndistributed)
	if vault.TotalShares.IsPositive() {
		next, err := types.NextIndex(vault.GlobalIndex, effective, vault.TotalShares)
		if err != nil {
			return err
		}
		vault.GlobalIndex = next
		vault.PendingUndistributed = sdkmath.ZeroInt()
	} else {
		vault.PendingUndistributed = effective
	}
	vault.Balance = vault.Balance.Add(amount)
	vault.TotalDeposited = vault.TotalDeposited.Add(amount)
	return nil
}

// ClaimRewards withdraws everything a pass has accrued since its cursor and
// advances the cursor to the current index. Claims stay open in every
// non-cancelled listing state and under every pause; after cancellation the
// refund path settles accrued rewards instead. A zero-value claim reports
// ErrNothingToClaim rather than writing anything.
func (k Keeper) ClaimRewards(ctx context.Context, msg types.MsgClaimRewards) (sdkmath.Int, error) {
	if err := msg.ValidateBasic(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	pass, err := k.GetPass(ctx, msg.PassID)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if pass.ListingID != msg.ListingID {
		return sdkmath.ZeroInt(), types.ErrWrongListing.Wrapf("pass %s belongs to %s", msg.PassID, pass.ListingID)
	}
	if pass.Owner != msg.Holder {
		return sdkmath.ZeroInt(), types.ErrNotAuthorized.Wrapf("pass %s is not held by %s", msg.PassID, msg.Holder)
	}
	if pass.Redeemed {
		return sdkmath.ZeroInt(), types.ErrInvalidState.Wrapf("pass %s already redeemed", msg.PassID)
	}
	listing, err := k.GetListing(ctx, msg.ListingID)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if listing.Status == types.ListingStatusCancelled {
		return sdkmath.ZeroInt(), types.ErrInvalidState.Wrapf("listing %s is cancelled, use refund", msg.ListingID)
	}
	vault, err := k.GetRewardVault(ctx, msg.ListingID)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	claimable, err := types.Claimable(pass.Shares, vault.GlobalIndex, pass.ClaimIndex)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if !claimable.IsPositive() {
		return sdkmath.ZeroInt(), types.ErrNothingToClaim.Wrapf("pass %s is up to date with index %s", msg.PassID, vault.GlobalIndex)
	}
	if vault.Balance.LT(claimable) {
		return sdkmath.ZeroInt(), types.ErrInsufficientBalance.Wrapf("reward vault balance %s cannot cover claim %s", vault.Balance, claimable)
	}

	holder, err := sdk.AccAddressFromBech32(msg.Holder)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("invalid holder address: %w", err)
	}
	coins := sdk.NewCoins(sdk.NewCoin(listing.Config.Denom, claimable))
	if err := k.bankKeeper.SendCoinsFromModuleToAccount(ctx, types.RewardPoolName, holder, coins); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("claim transfer failed: %w", err)
	}

	vault.Balance = vault.Balance.Sub(claimable)
	vault.TotalDistributed = vault.TotalDistributed.Add(claimable)
	if err := k.setRewardVault(ctx, vault); err != nil {
		return sdkmath.ZeroInt(), err
	}

	pass.ClaimIndex = vault.GlobalIndex
	pass.TotalClaimed = pass.TotalClaimed.Add(claimable)
	if err := k.setPass(ctx, pass); err != nil {
		return sdkmath.ZeroInt(), err
	}

	sdkCtx, _ := contextNow(ctx)
	k.metrics.RewardsClaimed.Inc()
	k.auditLogger.AuditRewardsClaimed(sdkCtx, msg.ListingID, msg.Holder, msg.PassID, claimable.String())
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"launch_rewards_claimed",
		sdk.NewAttribute("listing_id", msg.ListingID),
		sdk.NewAttribute("pass_id", msg.PassID),
		sdk.NewAttribute("holder", msg.Holder),
		sdk.NewAttribute("amount", claimable.String()),
	))
	return claimable, nil
}
