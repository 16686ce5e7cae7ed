package keeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/tide-protocol/tidechain/x/launch/types"
)

// Deposit commits backer funds to an active listing. Principal moves into
// the module account, the backer is minted a supporter pass carrying its
// pro-rata share of the pool, and the reward vault's share total is kept in
// lockstep with the capital vault's.
func (k Keeper) Deposit(ctx context.Context, msg types.MsgDeposit) (types.SupporterPass, error) {
	if err := msg.ValidateBasic(); err != nil {
		return types.SupporterPass{}, err
	}
	listing, err := k.GetListing(ctx, msg.ListingID)
	if err != nil {
		return types.SupporterPass{}, err
	}
	if listing.Status != types.ListingStatusActive {
		return types.SupporterPass{}, types.ErrInvalidState.Wrapf("listing %s is %s, deposits require %s", msg.ListingID, listing.Status, types.ListingStatusActive)
	}
	if listing.Paused {
		return types.SupporterPass{}, types.ErrPaused.Wrapf("listing %s is paused", msg.ListingID)
	}
	if k.protocolKeeper != nil && k.protocolKeeper.IsPaused(ctx) {
		return types.SupporterPass{}, types.ErrPaused.Wrap("protocol is paused")
	}

	minDeposit := listing.Config.MinDeposit
	if floor := k.GetParams(ctx).MinDepositFloor; floor.GT(minDeposit) {
		minDeposit = floor
	}
	if msg.Amount.LT(minDeposit) {
		return types.SupporterPass{}, types.ErrInvalidAmount.Wrapf("deposit %s below minimum %s", msg.Amount, minDeposit)
	}

	vault, err := k.GetCapitalVault(ctx, msg.ListingID)
	if err != nil {
		return types.SupporterPass{}, err
	}
	shares, err := types.SharesForDeposit(msg.Amount, vault.TotalShares, vault.TotalPrincipal)
	if err != nil {
		return types.SupporterPass{}, err
	}
	if !shares.IsPositive() {
		return types.SupporterPass{}, types.ErrInvalidAmount.Wrapf("deposit %s mints zero shares", msg.Amount)
	}

	backerAddr, err := sdk.AccAddressFromBech32(msg.Backer)
	if err != nil {
		return types.SupporterPass{}, fmt.Errorf("invalid backer address: %w", err)
	}
	coins := sdk.NewCoins(sdk.NewCoin(listing.Config.Denom, msg.Amount))
	if err := k.bankKeeper.SendCoinsFromAccountToModule(ctx, backerAddr, types.ModuleName, coins); err != nil {
		return types.SupporterPass{}, fmt.Errorf("deposit transfer failed: %w", err)
	}

	vault.Balance = vault.Balance.Add(msg.Amount)
	vault.TotalPrincipal = vault.TotalPrincipal.Add(msg.Amount)
	vault.TotalShares = vault.TotalShares.Add(shares)
	if err := k.setCapitalVault(ctx, vault); err != nil {
		return types.SupporterPass{}, err
	}

	rewardVault, err := k.GetRewardVault(ctx, msg.ListingID)
	if err != nil {
		return types.SupporterPass{}, err
	}
	rewardVault.TotalShares = vault.TotalShares
	if err := k.setRewardVault(ctx, rewardVault); err != nil {
		return types.SupporterPass{}, err
	}

	sdkCtx, now := contextNow(ctx)
	passID, passNumber, err := k.nextPassID(ctx)
	if err != nil {
		return types.SupporterPass{}, err
	}
	pass := types.SupporterPass{
		ID:             passID,
		ListingID:      msg.ListingID,
		Owner:          msg.Backer,
		Shares:         shares,
		ClaimIndex:     rewardVault.GlobalIndex,
		TotalClaimed:   sdkmath.ZeroInt(),
		PassNumber:     passNumber,
		OriginalMinter: msg.Backer,
		MintedAtUnix:   now.Unix(),
	}
	if err := k.setPass(ctx, pass); err != nil {
		return types.SupporterPass{}, err
	}

	pair := types.PairKey(msg.ListingID, msg.Backer)
	alreadyBacker, err := k.Backers.Has(ctx, pair)
	if err == nil && !alreadyBacker {
		if err := k.Backers.Set(ctx, pair); err != nil {
			return types.SupporterPass{}, err
		}
		listing.BackerCount++
		if err := k.setListing(ctx, listing); err != nil {
			return types.SupporterPass{}, err
		}
	}

	k.metrics.DepositsAccepted.Inc()
	k.metrics.PassesMinted.Inc()
	k.auditLogger.AuditDepositAccepted(sdkCtx, msg.ListingID, msg.Backer, msg.Amount.String(), shares.String(), passID)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"launch_deposit_accepted",
		sdk.NewAttribute("listing_id", msg.ListingID),
		sdk.NewAttribute("backer", msg.Backer),
		sdk.NewAttribute("amount", msg.Amount.String()),
		sdk.NewAttribute("shares", shares.String()),
		sdk.NewAttribute("pass_id", passID),
	))
	return pass, nil
}

// FinalizeListing closes the raise and computes the release schedule from
// the total principal on hand. The schedule is computed exactly once; the
// presented config must hash-match the one recorded at creation.
func (k Keeper) FinalizeListing(ctx context.Context, cap types.AdminCap, msg types.MsgFinalizeListing) (types.Listing, types.ScheduleBreakdown, error) {
	if err := msg.ValidateBasic(); err != nil {
		return types.Listing{}, types.ScheduleBreakdown{}, err
	}
	listing, err := k.authorizeAdmin(ctx, cap, msg.ListingID, msg.Requester)
	if err != nil {
		return types.Listing{}, types.ScheduleBreakdown{}, err
	}
	if listing.Status != types.ListingStatusActive {
		return types.Listing{}, types.ScheduleBreakdown{}, types.ErrInvalidState.Wrapf("listing %s is %s, expected %s", msg.ListingID, listing.Status, types.ListingStatusActive)
	}
	if msg.Config.Hash() != listing.ConfigHash {
		return types.Listing{}, types.ScheduleBreakdown{}, types.ErrConfigMismatch.Wrapf("listing %s", msg.ListingID)
	}
	vault, err := k.GetCapitalVault(ctx, msg.ListingID)
	if err != nil {
		return types.Listing{}, types.ScheduleBreakdown{}, err
	}
	if vault.ScheduleFinalized {
		return types.Listing{}, types.ScheduleBreakdown{}, types.ErrAlreadyFinalized.Wrapf("listing %s", msg.ListingID)
	}
	if !vault.TotalPrincipal.IsPositive() {
		return types.Listing{}, types.ScheduleBreakdown{}, types.ErrInvalidAmount.Wrapf("listing %s raised nothing, cancel it instead", msg.ListingID)
	}

	sdkCtx, now := contextNow(ctx)
	breakdown, err := types.ComputeSchedule(vault.TotalPrincipal, listing.Config, now.Unix())
	if err != nil {
		return types.Listing{}, types.ScheduleBreakdown{}, err
	}

	vault.Tranches = breakdown.Tranches
	vault.ScheduleFinalized = true
	vault.FeeAmount = breakdown.Fee
	if err := k.setCapitalVault(ctx, vault); err != nil {
		return types.Listing{}, types.ScheduleBreakdown{}, err
	}

	listing.Status = types.ListingStatusFinalized
	listing.FinalizedAtUnix = now.Unix()
	if err := k.setListing(ctx, listing); err != nil {
		return types.Listing{}, types.ScheduleBreakdown{}, err
	}

	k.metrics.ListingsFinalized.Inc()
	k.auditLogger.AuditScheduleFinalized(sdkCtx, msg.ListingID, msg.Requester, vault.TotalPrincipal.String(), breakdown.Fee.String(), breakdown.Net.String(), len(breakdown.Tranches))
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"launch_schedule_finalized",
		sdk.NewAttribute("listing_id", msg.ListingID),
		sdk.NewAttribute("total_principal", vault.TotalPrincipal.String()),
		sdk.NewAttribute("fee", breakdown.Fee.String()),
		sdk.NewAttribute("net", breakdown.Net.String()),
		sdk.NewAttribute("tranche_count", fmt.Sprintf("%d", len(breakdown.Tranches))),
	))
	return listing, breakdown, nil
}

// CollectRaiseFee pays the protocol's raise fee to the treasury. It runs at
// most once per listing, must happen before any tranche release, and pays
// at most what the vault holds. Anyone may trigger it.
func (k Keeper) CollectRaiseFee(ctx context.Context, listingID string) (sdkmath.Int, error) {
	listing, err := k.GetListing(ctx, listingID)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if listing.Status != types.ListingStatusFinalized {
		return sdkmath.ZeroInt(), types.ErrInvalidState.Wrapf("listing %s is %s, expected %s", listingID, listing.Status, types.ListingStatusFinalized)
	}
	vault, err := k.GetCapitalVault(ctx, listingID)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if vault.FeeCollected {
		return sdkmath.ZeroInt(), types.ErrAlreadyCollected.Wrapf("listing %s", listingID)
	}
	if vault.TranchesReleased > 0 {
		return sdkmath.ZeroInt(), types.ErrInvalidState.Wrap("fee collection must precede tranche releases")
	}

	fee, _, err := types.SplitByBps(vault.TotalPrincipal, vault.RaiseFeeBps)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	paid := sdkmath.MinInt(fee, vault.Balance)

	if paid.IsPositive() {
		treasury, err := sdk.AccAddressFromBech32(k.protocolKeeper.TreasuryAddress(ctx))
		if err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("invalid treasury address: %w", err)
		}
		coins := sdk.NewCoins(sdk.NewCoin(listing.Config.Denom, paid))
		if err := k.bankKeeper.SendCoinsFromModuleToAccount(ctx, types.ModuleName, treasury, coins); err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("fee transfer failed: %w", err)
		}
	}

	vault.Balance = vault.Balance.Sub(paid)
	vault.FeeCollected = true
	if err := k.setCapitalVault(ctx, vault); err != nil {
		return sdkmath.ZeroInt(), err
	}

	sdkCtx, _ := contextNow(ctx)
	k.metrics.FeesCollected.Inc()
	k.auditLogger.AuditFeeCollected(sdkCtx, listingID, fee.String(), paid.String(), paid.LT(fee))
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"launch_fee_collected",
		sdk.NewAttribute("listing_id", listingID),
		sdk.NewAttribute("fee", fee.String()),
		sdk.NewAttribute("paid", paid.String()),
	))
	return paid, nil
}

// ReleaseTrancheAt pays one scheduled tranche to the beneficiary. Releases
// are pull-based and time-gated; when the vault cannot cover the full
// amount the shortfall is recorded on the tranche and flagged loudly rather
// than blocking the release.
func (k Keeper) ReleaseTrancheAt(ctx context.Context, listingID string, index int) (types.Tranche, error) {
	listing, err := k.GetListing(ctx, listingID)
	if err != nil {
		return types.Tranche{}, err
	}
	if listing.Status != types.ListingStatusFinalized {
		return types.Tranche{}, types.ErrInvalidState.Wrapf("listing %s is %s, expected %s", listingID, listing.Status, types.ListingStatusFinalized)
	}
	vault, err := k.GetCapitalVault(ctx, listingID)
	if err != nil {
		return types.Tranche{}, err
	}
	if !vault.ScheduleFinalized {
		return types.Tranche{}, types.ErrInvalidState.Wrap("schedule not finalized")
	}
	if !vault.FeeCollected {
		return types.Tranche{}, types.ErrInvalidState.Wrap("raise fee must be collected before releases")
	}
	if index < 0 || index >= len(vault.Tranches) {
		return types.Tranche{}, types.ErrNotFound.Wrapf("tranche %d of %d", index, len(vault.Tranches))
	}
	tranche := vault.Tranches[index]
	if tranche.Released {
		return types.Tranche{}, types.ErrAlreadyReleased.Wrapf("tranche %d", index)
	}

	sdkCtx, now := contextNow(ctx)
	if now.Unix() < tranche.ReleaseAtUnix {
		return types.Tranche{}, types.ErrTrancheNotReady.Wrapf("tranche %d releases at %d, now %d", index, tranche.ReleaseAtUnix, now.Unix())
	}

	paid := sdkmath.MinInt(tranche.Amount, vault.Balance)
	shortfall := tranche.Amount.Sub(paid)

	if paid.IsPositive() {
		beneficiary, err := sdk.AccAddressFromBech32(listing.Beneficiary)
		if err != nil {
			return types.Tranche{}, fmt.Errorf("invalid beneficiary address: %w", err)
		}
		coins := sdk.NewCoins(sdk.NewCoin(listing.Config.Denom, paid))
		if err := k.bankKeeper.SendCoinsFromModuleToAccount(ctx, types.ModuleName, beneficiary, coins); err != nil {
			return types.Tranche{}, fmt.Errorf("tranche transfer failed: %w", err)
		}
	}

	tranche.Released = true
	tranche.ReleasedAmount = paid
	tranche.ShortfallAmount = shortfall
	tranche.ReleasedAtUnix = now.Unix()
	vault.Tranches[index] = tranche
	vault.Balance = vault.Balance.Sub(paid)
	vault.TranchesReleased++
	if err := k.setCapitalVault(ctx, vault); err != nil {
		return types.Tranche{}, err
	}

	k.metrics.TranchesReleased.Inc()
	if shortfall.IsPositive() {
		k.metrics.TrancheShortfalls.Inc()
	}
	k.auditLogger.AuditTrancheReleased(sdkCtx, listingID, index, tranche.Amount.String(), paid.String(), shortfall.String())
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"launch_tranche_released",
		sdk.NewAttribute("listing_id", listingID),
		sdk.NewAttribute("index", fmt.Sprintf("%d", index)),
		sdk.NewAttribute("amount", tranche.Amount.String()),
		sdk.NewAttribute("paid", paid.String()),
		sdk.NewAttribute("shortfall", shortfall.String()),
	))
	return tranche, nil
}

// ReleaseNextReady releases the earliest unreleased tranche if its time has
// come. Tranche times are monotone, so if the earliest one is not ready
// none are.
func (k Keeper) ReleaseNextReady(ctx context.Context, listingID string) (int, types.Tranche, error) {
	vault, err := k.GetCapitalVault(ctx, listingID)
	if err != nil {
		return 0, types.Tranche{}, err
	}
	for i, tranche := range vault.Tranches {
		if tranche.Released {
			continue
		}
		released, err := k.ReleaseTrancheAt(ctx, listingID, i)
		if err != nil {
			return 0, types.Tranche{}, err
		}
		return i, released, nil
	}
	return 0, types.Tranche{}, types.ErrTrancheNotReady.Wrap("no unreleased tranches remain")
}

// ReleaseAllReady sweeps every tranche whose release time has passed,
// returning how many released and the total paid out. Errors if nothing
// was eligible.
func (k Keeper) ReleaseAllReady(ctx context.Context, listingID string) (int, sdkmath.Int, error) {
	start := time.Now()
	count := 0
	totalPaid := sdkmath.ZeroInt()
	for {
		_, tranche, err := k.ReleaseNextReady(ctx, listingID)
		if err != nil {
			if count > 0 && errors.Is(err, types.ErrTrancheNotReady) {
				break
			}
			if count > 0 {
				return count, totalPaid, err
			}
			return 0, sdkmath.ZeroInt(), err
		}
		count++
		totalPaid = totalPaid.Add(tranche.ReleasedAmount)
	}
	k.metrics.ReleaseSweepDuration.Record(time.Since(start))
	return count, totalPaid, nil
}

// RefundDeposit returns a backer's pro-rata principal after cancellation
// and retires the pass. Accrued rewards pay out in the same call so no
// value strands on the retired pass. The share pools shrink with each
// refund, which keeps the remaining holders' pro-rata arithmetic exact.
func (k Keeper) RefundDeposit(ctx context.Context, msg types.MsgRefundDeposit) (sdkmath.Int, sdkmath.Int, error) {
	if err := msg.ValidateBasic(); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	listing, err := k.GetListing(ctx, msg.ListingID)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	if listing.Status != types.ListingStatusCancelled {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), types.ErrInvalidState.Wrapf("listing %s is %s, refunds require %s", msg.ListingID, listing.Status, types.ListingStatusCancelled)
	}
	pass, err := k.GetPass(ctx, msg.PassID)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	if pass.ListingID != msg.ListingID {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), types.ErrWrongListing.Wrapf("pass %s belongs to %s", msg.PassID, pass.ListingID)
	}
	if pass.Owner != msg.Holder {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), types.ErrNotAuthorized.Wrapf("pass %s is not held by %s", msg.PassID, msg.Holder)
	}
	if pass.Redeemed {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), types.ErrInvalidState.Wrapf("pass %s already redeemed", msg.PassID)
	}

	vault, err := k.GetCapitalVault(ctx, msg.ListingID)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	rewardVault, err := k.GetRewardVault(ctx, msg.ListingID)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	refund, err := types.MulDiv(pass.Shares, vault.TotalPrincipal, vault.TotalShares)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	if vault.Balance.LT(refund) {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), types.ErrInsufficientBalance.Wrapf("vault balance %s cannot cover refund %s, unstake yield capital first", vault.Balance, refund)
	}
	rewards, err := types.Claimable(pass.Shares, rewardVault.GlobalIndex, pass.ClaimIndex)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	if rewardVault.Balance.LT(rewards) {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), types.ErrInsufficientBalance.Wrapf("reward vault balance %s cannot cover accrued %s", rewardVault.Balance, rewards)
	}

	holder, err := sdk.AccAddressFromBech32(msg.Holder)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("invalid holder address: %w", err)
	}
	if rewards.IsPositive() {
		coins := sdk.NewCoins(sdk.NewCoin(listing.Config.Denom, rewards))
		if err := k.bankKeeper.SendCoinsFromModuleToAccount(ctx, types.RewardPoolName, holder, coins); err != nil {
			return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("reward transfer failed: %w", err)
		}
		rewardVault.Balance = rewardVault.Balance.Sub(rewards)
		rewardVault.TotalDistributed = rewardVault.TotalDistributed.Add(rewards)
	}
	if refund.IsPositive() {
		coins := sdk.NewCoins(sdk.NewCoin(listing.Config.Denom, refund))
		if err := k.bankKeeper.SendCoinsFromModuleToAccount(ctx, types.ModuleName, holder, coins); err != nil {
			return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("refund transfer failed: %w", err)
		}
		vault.Balance = vault.Balance.Sub(refund)
	}

	vault.TotalPrincipal = vault.TotalPrincipal.Sub(refund)
	vault.TotalShares = vault.TotalShares.Sub(pass.Shares)
	vault.RefundedShares = vault.RefundedShares.Add(pass.Shares)
	vault.RefundedAmount = vault.RefundedAmount.Add(refund)
	if err := k.setCapitalVault(ctx, vault); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	rewardVault.TotalShares = vault.TotalShares
	if err := k.setRewardVault(ctx, rewardVault); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	sdkCtx, _ := contextNow(ctx)
	pass.Redeemed = true
	pass.ClaimIndex = rewardVault.GlobalIndex
	pass.TotalClaimed = pass.TotalClaimed.Add(rewards)
	if err := k.setPass(ctx, pass); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	k.metrics.RefundsIssued.Inc()
	k.auditLogger.AuditRefundIssued(sdkCtx, msg.ListingID, msg.Holder, msg.PassID, refund.String(), rewards.String())
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"launch_refund_issued",
		sdk.NewAttribute("listing_id", msg.ListingID),
		sdk.NewAttribute("pass_id", msg.PassID),
		sdk.NewAttribute("holder", msg.Holder),
		sdk.NewAttribute("principal", refund.String()),
		sdk.NewAttribute("rewards", rewards.String()),
	))
	return refund, rewards, nil
}
