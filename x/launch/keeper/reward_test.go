package keeper_test

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/tide-protocol/tidechain/x/launch/types"
)

func TestRewardsSplitByShares(t *testing.T) {
	env := newTestEnv(t)

	listing, _, routeCap := env.activeListing(t, defaultConfig())
	passA := env.deposit(t, listing.ID, backerAddr, 1_000)
	passB := env.deposit(t, listing.ID, secondBacker, 9_000)

	index := env.depositRewards(t, routeCap, listing.ID, issuerAddr, 100)

	// 100 over 10,000 shares scaled by 1e18.
	expected, err := types.MulDiv(sdkmath.NewInt(100), types.IndexPrecision, sdkmath.NewInt(10_000))
	require.NoError(t, err)
	require.Equal(t, expected, index)

	claimedA, err := env.keeper.ClaimRewards(env.ctx, types.MsgClaimRewards{
		ListingID: listing.ID, PassID: passA.ID, Holder: backerAddr,
	})
	require.NoError(t, err)
	require.Equal(t, int64(10), claimedA.Int64())

	claimedB, err := env.keeper.ClaimRewards(env.ctx, types.MsgClaimRewards{
		ListingID: listing.ID, PassID: passB.ID, Holder: secondBacker,
	})
	require.NoError(t, err)
	require.Equal(t, int64(90), claimedB.Int64())

	vault, err := env.keeper.GetRewardVault(env.ctx, listing.ID)
	require.NoError(t, err)
	require.True(t, vault.Balance.IsZero())
	require.Equal(t, int64(100), vault.TotalDistributed.Int64())
}

func TestLateMinterAccruesOnlyForward(t *testing.T) {
	env := newTestEnv(t)

	listing, _, routeCap := env.activeListing(t, defaultConfig())
	passA := env.deposit(t, listing.ID, backerAddr, 1_000)

	// First round lands entirely on A.
	env.depositRewards(t, routeCap, listing.ID, issuerAddr, 10)

	// B mints after the first round; its cursor starts at the live index.
	passB := env.deposit(t, listing.ID, secondBacker, 1_000)
	vault, err := env.keeper.GetRewardVault(env.ctx, listing.ID)
	require.NoError(t, err)
	require.Equal(t, vault.GlobalIndex, passB.ClaimIndex)

	// Second round splits evenly between the two.
	env.depositRewards(t, routeCap, listing.ID, issuerAddr, 20)

	claimedA, err := env.keeper.ClaimRewards(env.ctx, types.MsgClaimRewards{
		ListingID: listing.ID, PassID: passA.ID, Holder: backerAddr,
	})
	require.NoError(t, err)
	require.Equal(t, int64(20), claimedA.Int64())

	claimedB, err := env.keeper.ClaimRewards(env.ctx, types.MsgClaimRewards{
		ListingID: listing.ID, PassID: passB.ID, Holder: secondBacker,
	})
	require.NoError(t, err)
	require.Equal(t, int64(10), claimedB.Int64())
}

func TestRewardsBeforeSharesParkAsPending(t *testing.T) {
	env := newTestEnv(t)

	listing, _, routeCap := env.activeListing(t, defaultConfig())

	// Revenue arrives before anyone has deposited.
	index := env.depositRewards(t, routeCap, listing.ID, issuerAddr, 50)
	require.True(t, index.IsZero())

	vault, err := env.keeper.GetRewardVault(env.ctx, listing.ID)
	require.NoError(t, err)
	require.Equal(t, int64(50), vault.PendingUndistributed.Int64())
	require.Equal(t, int64(50), vault.Balance.Int64())

	// The parked pool folds into the index on the next deposit that finds
	// shares outstanding.
	pass := env.deposit(t, listing.ID, backerAddr, 1_000)
	env.depositRewards(t, routeCap, listing.ID, issuerAddr, 50)

	vault, err = env.keeper.GetRewardVault(env.ctx, listing.ID)
	require.NoError(t, err)
	require.True(t, vault.PendingUndistributed.IsZero())

	claimed, err := env.keeper.ClaimRewards(env.ctx, types.MsgClaimRewards{
		ListingID: listing.ID, PassID: pass.ID, Holder: backerAddr,
	})
	require.NoError(t, err)
	require.Equal(t, int64(100), claimed.Int64())
}

func TestClaimWithNothingAccrued(t *testing.T) {
	env := newTestEnv(t)

	listing, _, routeCap := env.activeListing(t, defaultConfig())
	pass := env.deposit(t, listing.ID, backerAddr, 1_000)

	_, err := env.keeper.ClaimRewards(env.ctx, types.MsgClaimRewards{
		ListingID: listing.ID, PassID: pass.ID, Holder: backerAddr,
	})
	require.ErrorIs(t, err, types.ErrNothingToClaim)

	env.depositRewards(t, routeCap, listing.ID, issuerAddr, 100)

	_, err = env.keeper.ClaimRewards(env.ctx, types.MsgClaimRewards{
		ListingID: listing.ID, PassID: pass.ID, Holder: backerAddr,
	})
	require.NoError(t, err)

	// The cursor caught up, a second claim finds nothing.
	_, err = env.keeper.ClaimRewards(env.ctx, types.MsgClaimRewards{
		ListingID: listing.ID, PassID: pass.ID, Holder: backerAddr,
	})
	require.ErrorIs(t, err, types.ErrNothingToClaim)
}

func TestClaimAdvancesCursorAndTotals(t *testing.T) {
	env := newTestEnv(t)

	listing, _, routeCap := env.activeListing(t, defaultConfig())
	pass := env.deposit(t, listing.ID, backerAddr, 1_000)
	env.depositRewards(t, routeCap, listing.ID, issuerAddr, 60)

	claimed, err := env.keeper.ClaimRewards(env.ctx, types.MsgClaimRewards{
		ListingID: listing.ID, PassID: pass.ID, Holder: backerAddr,
	})
	require.NoError(t, err)
	require.Equal(t, int64(60), claimed.Int64())
	require.Equal(t, int64(60), env.bank.paidTo(types.RewardPoolName, backerAddr).Int64())

	vault, err := env.keeper.GetRewardVault(env.ctx, listing.ID)
	require.NoError(t, err)
	updated, err := env.keeper.GetPass(env.ctx, pass.ID)
	require.NoError(t, err)
	require.Equal(t, vault.GlobalIndex, updated.ClaimIndex)
	require.Equal(t, int64(60), updated.TotalClaimed.Int64())
}

func TestClaimableAmountQuery(t *testing.T) {
	env := newTestEnv(t)

	listing, _, routeCap := env.activeListing(t, defaultConfig())
	pass := env.deposit(t, listing.ID, backerAddr, 1_000)

	claimable, err := env.keeper.ClaimableAmount(env.ctx, listing.ID, pass.ID)
	require.NoError(t, err)
	require.True(t, claimable.IsZero())

	env.depositRewards(t, routeCap, listing.ID, issuerAddr, 75)

	claimable, err = env.keeper.ClaimableAmount(env.ctx, listing.ID, pass.ID)
	require.NoError(t, err)
	require.Equal(t, int64(75), claimable.Int64())
}

func TestClaimChecksOwnerAndListing(t *testing.T) {
	env := newTestEnv(t)
	config := defaultConfig()

	listing, _, routeCap := env.activeListing(t, config)
	pass := env.deposit(t, listing.ID, backerAddr, 1_000)
	env.depositRewards(t, routeCap, listing.ID, issuerAddr, 100)
	other, _, _ := env.activeListing(t, config)

	_, err := env.keeper.ClaimRewards(env.ctx, types.MsgClaimRewards{
		ListingID: listing.ID, PassID: pass.ID, Holder: strangerAddr,
	})
	require.ErrorIs(t, err, types.ErrNotAuthorized)

	_, err = env.keeper.ClaimRewards(env.ctx, types.MsgClaimRewards{
		ListingID: other.ID, PassID: pass.ID, Holder: backerAddr,
	})
	require.ErrorIs(t, err, types.ErrWrongListing)
}

func TestRewardDepositScopedByRouteCap(t *testing.T) {
	env := newTestEnv(t)
	config := defaultConfig()

	listing, _, _ := env.activeListing(t, config)
	env.deposit(t, listing.ID, backerAddr, 1_000)
	_, _, otherRoute := env.activeListing(t, config)

	_, err := env.keeper.DepositRewards(env.ctx, otherRoute, types.MsgDepositRewards{
		ListingID: listing.ID,
		Source:    issuerAddr,
		Amount:    sdkmath.NewInt(100),
	})
	require.ErrorIs(t, err, types.ErrWrongListing)
}

func TestIndexNeverDecreases(t *testing.T) {
	env := newTestEnv(t)

	listing, _, routeCap := env.activeListing(t, defaultConfig())
	pass := env.deposit(t, listing.ID, backerAddr, 1_000)

	last := sdkmath.ZeroInt()
	for i := 0; i < 5; i++ {
		index := env.depositRewards(t, routeCap, listing.ID, issuerAddr, 7)
		require.True(t, index.GTE(last))
		last = index

		if i == 2 {
			// A claim in the middle moves the cursor, never the index.
			_, err := env.keeper.ClaimRewards(env.ctx, types.MsgClaimRewards{
				ListingID: listing.ID, PassID: pass.ID, Holder: backerAddr,
			})
			require.NoError(t, err)
			vault, err := env.keeper.GetRewardVault(env.ctx, listing.ID)
			require.NoError(t, err)
			require.Equal(t, last, vault.GlobalIndex)
		}
	}
}

func TestRewardDustStaysInVault(t *testing.T) {
	env := newTestEnv(t)

	listing, _, routeCap := env.activeListing(t, defaultConfig())
	passes := []types.SupporterPass{
		env.deposit(t, listing.ID, backerAddr, 1_000),
		env.deposit(t, listing.ID, secondBacker, 1_000),
		env.deposit(t, listing.ID, thirdBacker, 1_000),
	}
	holders := []string{backerAddr, secondBacker, thirdBacker}

	env.depositRewards(t, routeCap, listing.ID, issuerAddr, 100)

	// 100 over three equal holders floors to 33 each; the dust token
	// stays in the vault rather than over-paying anyone.
	for i, pass := range passes {
		claimed, err := env.keeper.ClaimRewards(env.ctx, types.MsgClaimRewards{
			ListingID: listing.ID, PassID: pass.ID, Holder: holders[i],
		})
		require.NoError(t, err)
		require.Equal(t, int64(33), claimed.Int64())
	}

	vault, err := env.keeper.GetRewardVault(env.ctx, listing.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), vault.Balance.Int64())
	require.Equal(t, int64(99), vault.TotalDistributed.Int64())
}

func TestClaimsSurviveNonCancelledStates(t *testing.T) {
	env := newTestEnv(t)
	config := defaultConfig()

	listing, adminCap, routeCap := env.activeListing(t, config)
	pass := env.deposit(t, listing.ID, backerAddr, 1_000)
	env.depositRewards(t, routeCap, listing.ID, issuerAddr, 30)

	env.finalize(t, adminCap, listing.ID, config)

	// Claims keep working after finalization and under a global pause.
	env.protocol.paused = true
	claimed, err := env.keeper.ClaimRewards(env.ctx, types.MsgClaimRewards{
		ListingID: listing.ID, PassID: pass.ID, Holder: backerAddr,
	})
	require.NoError(t, err)
	require.Equal(t, int64(30), claimed.Int64())
	env.protocol.paused = false
}

func TestCancelledListingClaimsGoThroughRefund(t *testing.T) {
	env := newTestEnv(t)
	config := defaultConfig()

	listing, adminCap, routeCap := env.activeListing(t, config)
	pass := env.deposit(t, listing.ID, secondBacker, 1_000)
	env.depositRewards(t, routeCap, listing.ID, issuerAddr, 40)
	_, err := env.keeper.CancelListing(env.ctx, adminCap, listing.ID, issuerAddr, "wound down")
	require.NoError(t, err)

	// Cancellation closes the claim path; nothing strands because the
	// refund settles accrued rewards alongside principal.
	_, err = env.keeper.ClaimRewards(env.ctx, types.MsgClaimRewards{
		ListingID: listing.ID, PassID: pass.ID, Holder: secondBacker,
	})
	require.ErrorIs(t, err, types.ErrInvalidState)

	principal, rewards, err := env.keeper.RefundDeposit(env.ctx, types.MsgRefundDeposit{
		ListingID: listing.ID, PassID: pass.ID, Holder: secondBacker,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1_000), principal.Int64())
	require.Equal(t, int64(40), rewards.Int64())
}
