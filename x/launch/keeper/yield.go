package keeper

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/tide-protocol/tidechain/x/launch/types"
)

// EnableYield opts a listing into the external yield source and pins the
// validator idle capital will be placed with.
func (k Keeper) EnableYield(ctx context.Context, cap types.AdminCap, listingID, requester, validator string) error {
	listing, err := k.authorizeAdmin(ctx, cap, listingID, requester)
	if err != nil {
		return err
	}
	if listing.Status.IsTerminal() {
		return types.ErrInvalidState.Wrapf("listing %s is %s", listingID, listing.Status)
	}
	if strings.TrimSpace(validator) == "" {
		return fmt.Errorf("validator cannot be empty")
	}

	position, err := k.GetYieldPosition(ctx, listingID)
	if err != nil {
		return err
	}
	position.Enabled = true
	position.Validator = validator
	if err := k.setYieldPosition(ctx, position); err != nil {
		return err
	}

	sdkCtx, _ := contextNow(ctx)
	k.auditLogger.AuditYieldEnabled(sdkCtx, listingID, requester, validator)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"launch_yield_enabled",
		sdk.NewAttribute("listing_id", listingID),
		sdk.NewAttribute("validator", validator),
	))
	return nil
}

// StakeIdleCapital places part of the vault balance with the yield source.
// Only the issuer may move capital out, and only while the listing is
// raising or releasing. The source returns an opaque handle the keeper
// tracks as a stake lot until harvest.
func (k Keeper) StakeIdleCapital(ctx context.Context, cap types.AdminCap, listingID, requester string, amount sdkmath.Int) (types.StakeLot, error) {
	listing, err := k.authorizeAdmin(ctx, cap, listingID, requester)
	if err != nil {
		return types.StakeLot{}, err
	}
	if listing.Status != types.ListingStatusActive && listing.Status != types.ListingStatusFinalized {
		return types.StakeLot{}, types.ErrInvalidState.Wrapf("listing %s is %s", listingID, listing.Status)
	}
	if amount.IsNil() || !amount.IsPositive() {
		return types.StakeLot{}, types.ErrInvalidAmount.Wrap("stake amount must be positive")
	}

	position, err := k.GetYieldPosition(ctx, listingID)
	if err != nil {
		return types.StakeLot{}, err
	}
	if !position.Enabled {
		return types.StakeLot{}, types.ErrInvalidState.Wrapf("yield not enabled for %s", listingID)
	}
	if k.yieldSource == nil {
		return types.StakeLot{}, fmt.Errorf("yield source not configured")
	}
	if !k.yieldBreaker.Allow() {
		return types.StakeLot{}, fmt.Errorf("yield source unavailable: circuit open")
	}

	vault, err := k.GetCapitalVault(ctx, listingID)
	if err != nil {
		return types.StakeLot{}, err
	}
	if vault.Balance.LT(amount) {
		return types.StakeLot{}, types.ErrInsufficientBalance.Wrapf("vault balance %s cannot cover stake %s", vault.Balance, amount)
	}

	handle, err := k.yieldSource.Stake(ctx, position.Validator, sdk.NewCoin(listing.Config.Denom, amount))
	if err != nil {
		k.yieldBreaker.RecordFailure()
		k.metrics.YieldFailures.Inc()
		return types.StakeLot{}, fmt.Errorf("yield stake failed: %w", err)
	}
	k.yieldBreaker.RecordSuccess()

	sdkCtx, now := contextNow(ctx)
	vault.Balance = vault.Balance.Sub(amount)
	if err := k.setCapitalVault(ctx, vault); err != nil {
		return types.StakeLot{}, err
	}

	lot := types.StakeLot{
		Handle:       handle,
		Principal:    amount,
		StakedAtUnix: now.Unix(),
	}
	position.Stakes = append(position.Stakes, lot)
	position.StakedPrincipal = position.StakedPrincipal.Add(amount)
	if err := k.setYieldPosition(ctx, position); err != nil {
		return types.StakeLot{}, err
	}

	k.metrics.YieldStakes.Inc()
	k.auditLogger.AuditYieldStaked(sdkCtx, listingID, requester, handle, amount.String())
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"launch_yield_staked",
		sdk.NewAttribute("listing_id", listingID),
		sdk.NewAttribute("handle", handle),
		sdk.NewAttribute("amount", amount.String()),
	))
	return lot, nil
}

// Harvest redeems one stake lot. Whatever the source returns above the lot
// principal is yield: the backer share feeds the reward index through the
// module's own route grant and the rest goes to the treasury. Returns below
// principal record a loss. Harvest is permissionless since it only brings
// capital back into the vault.
func (k Keeper) Harvest(ctx context.Context, listingID, handle string) (types.HarvestReceipt, error) {
	start := time.Now()
	listing, err := k.GetListing(ctx, listingID)
	if err != nil {
		return types.HarvestReceipt{}, err
	}
	if k.yieldSource == nil {
		return types.HarvestReceipt{}, fmt.Errorf("yield source not configured")
	}
	if !k.yieldBreaker.Allow() {
		return types.HarvestReceipt{}, fmt.Errorf("yield source unavailable: circuit open")
	}

	position, err := k.GetYieldPosition(ctx, listingID)
	if err != nil {
		return types.HarvestReceipt{}, err
	}
	lotIndex := -1
	for i, lot := range position.Stakes {
		if lot.Handle == handle {
			lotIndex = i
			break
		}
	}
	if lotIndex < 0 {
		return types.HarvestReceipt{}, types.ErrNotFound.Wrapf("stake lot %s", handle)
	}
	lot := position.Stakes[lotIndex]

	withdrawnCoin, err := k.yieldSource.Unstake(ctx, handle)
	if err != nil {
		k.yieldBreaker.RecordFailure()
		k.metrics.YieldFailures.Inc()
		return types.HarvestReceipt{}, fmt.Errorf("yield unstake failed: %w", err)
	}
	k.yieldBreaker.RecordSuccess()
	if withdrawnCoin.Denom != listing.Config.Denom {
		return types.HarvestReceipt{}, fmt.Errorf("yield source returned %s, expected %s", withdrawnCoin.Denom, listing.Config.Denom)
	}

	withdrawn := withdrawnCoin.Amount
	principalReturned := sdkmath.MinInt(withdrawn, lot.Principal)
	loss := lot.Principal.Sub(principalReturned)
	reward := types.RewardFromWithdrawal(withdrawn, lot.Principal)
	backerCut, treasuryCut, err := types.SplitByBps(reward, listing.Config.YieldBackerBps)
	if err != nil {
		return types.HarvestReceipt{}, err
	}

	vault, err := k.GetCapitalVault(ctx, listingID)
	if err != nil {
		return types.HarvestReceipt{}, err
	}
	vault.Balance = vault.Balance.Add(principalReturned)
	if err := k.setCapitalVault(ctx, vault); err != nil {
		return types.HarvestReceipt{}, err
	}

	sdkCtx, _ := contextNow(ctx)
	if backerCut.IsPositive() {
		coins := sdk.NewCoins(sdk.NewCoin(listing.Config.Denom, backerCut))
		if err := k.bankKeeper.SendCoinsFromModuleToModule(ctx, types.ModuleName, types.RewardPoolName, coins); err != nil {
			return types.HarvestReceipt{}, fmt.Errorf("reward routing failed: %w", err)
		}
		rewardVault, err := k.GetRewardVault(ctx, listingID)
		if err != nil {
			return types.HarvestReceipt{}, err
		}
		if err := applyRewardDeposit(&rewardVault, backerCut); err != nil {
			return types.HarvestReceipt{}, err
		}
		if err := k.setRewardVault(ctx, rewardVault); err != nil {
			return types.HarvestReceipt{}, err
		}
		k.metrics.RewardDeposits.Inc()
		emitEventIfPossible(sdkCtx, sdk.NewEvent(
			"launch_rewards_deposited",
			sdk.NewAttribute("listing_id", listingID),
			sdk.NewAttribute("source", k.moduleAddress),
			sdk.NewAttribute("amount", backerCut.String()),
			sdk.NewAttribute("global_index", rewardVault.GlobalIndex.String()),
		))
	}
	if treasuryCut.IsPositive() {
		treasury, err := sdk.AccAddressFromBech32(k.protocolKeeper.TreasuryAddress(ctx))
		if err != nil {
			return types.HarvestReceipt{}, fmt.Errorf("invalid treasury address: %w", err)
		}
		coins := sdk.NewCoins(sdk.NewCoin(listing.Config.Denom, treasuryCut))
		if err := k.bankKeeper.SendCoinsFromModuleToAccount(ctx, types.ModuleName, treasury, coins); err != nil {
			return types.HarvestReceipt{}, fmt.Errorf("treasury routing failed: %w", err)
		}
	}

	position.Stakes = append(position.Stakes[:lotIndex], position.Stakes[lotIndex+1:]...)
	position.StakedPrincipal = position.StakedPrincipal.Sub(lot.Principal)
	position.HarvestCount++
	position.LifetimeRewards = position.LifetimeRewards.Add(reward)
	position.LifetimeTreasuryCut = position.LifetimeTreasuryCut.Add(treasuryCut)
	position.RecordedLoss = position.RecordedLoss.Add(loss)
	if err := k.setYieldPosition(ctx, position); err != nil {
		return types.HarvestReceipt{}, err
	}

	k.metrics.YieldHarvests.Inc()
	k.metrics.HarvestDuration.Record(time.Since(start))
	k.auditLogger.AuditYieldHarvested(sdkCtx, listingID, handle, withdrawn.String(), reward.String(), loss.String())
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"launch_yield_harvested",
		sdk.NewAttribute("listing_id", listingID),
		sdk.NewAttribute("handle", handle),
		sdk.NewAttribute("withdrawn", withdrawn.String()),
		sdk.NewAttribute("reward", reward.String()),
		sdk.NewAttribute("backer_cut", backerCut.String()),
		sdk.NewAttribute("treasury_cut", treasuryCut.String()),
		sdk.NewAttribute("loss", loss.String()),
	))
	return types.HarvestReceipt{
		ListingID:         listingID,
		Handle:            handle,
		Principal:         lot.Principal,
		Withdrawn:         withdrawn,
		PrincipalReturned: principalReturned,
		Reward:            reward,
		BackerCut:         backerCut,
		TreasuryCut:       treasuryCut,
		Loss:              loss,
	}, nil
}
