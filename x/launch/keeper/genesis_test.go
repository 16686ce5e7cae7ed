package keeper_test

import (
	"encoding/json"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/tide-protocol/tidechain/x/launch/types"
)

// populate drives the keeper through a representative mix of states: one
// finalized listing mid-release with staked capital, one active listing
// with pending rewards, one cancelled listing with a redeemed pass.
func populate(t *testing.T, env *testEnv) {
	t.Helper()
	config := defaultConfig()

	first, firstAdmin, firstRoute := env.activeListing(t, config)
	env.deposit(t, first.ID, backerAddr, 10_000)
	env.deposit(t, first.ID, secondBacker, 5_000)
	env.depositRewards(t, firstRoute, first.ID, issuerAddr, 300)
	require.NoError(t, env.keeper.EnableYield(env.ctx, firstAdmin, first.ID, issuerAddr, testValidator))
	_, err := env.keeper.StakeIdleCapital(env.ctx, firstAdmin, first.ID, issuerAddr, sdkmath.NewInt(2_000))
	require.NoError(t, err)
	env.finalize(t, firstAdmin, first.ID, config)
	_, err = env.keeper.CollectRaiseFee(env.ctx, first.ID)
	require.NoError(t, err)
	_, _, err = env.keeper.ReleaseNextReady(env.ctx, first.ID)
	require.NoError(t, err)

	second, _, secondRoute := env.activeListing(t, config)
	env.deposit(t, second.ID, thirdBacker, 3_000)
	env.depositRewards(t, secondRoute, second.ID, issuerAddr, 120)

	third, thirdAdmin, _ := env.activeListing(t, config)
	pass := env.deposit(t, third.ID, backerAddr, 1_500)
	_, err = env.keeper.CancelListing(env.ctx, thirdAdmin, third.ID, issuerAddr, "wound down")
	require.NoError(t, err)
	_, _, err = env.keeper.RefundDeposit(env.ctx, types.MsgRefundDeposit{
		ListingID: third.ID, PassID: pass.ID, Holder: backerAddr,
	})
	require.NoError(t, err)
}

func TestGenesisRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	populate(t, env)

	exported, err := env.keeper.ExportGenesis(env.ctx)
	require.NoError(t, err)
	require.NoError(t, exported.Validate())
	require.Len(t, exported.Listings, 3)
	require.Len(t, exported.CapitalVaults, 3)
	require.Len(t, exported.RewardVaults, 3)
	require.Len(t, exported.Passes, 4)
	require.Equal(t, uint64(3), exported.ListingCount)
	require.Equal(t, uint64(4), exported.PassCount)

	// A fresh keeper fed the export reproduces the state byte for byte.
	fresh := newTestEnv(t)
	require.NoError(t, fresh.keeper.InitGenesis(fresh.ctx, exported))

	reexported, err := fresh.keeper.ExportGenesis(fresh.ctx)
	require.NoError(t, err)

	want, err := json.Marshal(exported)
	require.NoError(t, err)
	got, err := json.Marshal(reexported)
	require.NoError(t, err)
	require.JSONEq(t, string(want), string(got))
}

func TestGenesisImportResumesOperation(t *testing.T) {
	env := newTestEnv(t)
	populate(t, env)

	exported, err := env.keeper.ExportGenesis(env.ctx)
	require.NoError(t, err)

	fresh := newTestEnv(t)
	require.NoError(t, fresh.keeper.InitGenesis(fresh.ctx, exported))

	// ID counters carried over: no collision with imported records.
	listing, _, _ := fresh.createListing(t, defaultConfig())
	require.Equal(t, "listing-4", listing.ID)

	// Imported passes keep their claim cursors: the third backer can still
	// claim the rewards accrued before export.
	claimed, err := fresh.keeper.ClaimRewards(fresh.ctx, types.MsgClaimRewards{
		ListingID: "listing-2", PassID: "pass-3", Holder: thirdBacker,
	})
	require.NoError(t, err)
	require.Equal(t, int64(120), claimed.Int64())

	// A redeemed pass stays redeemed across the restart.
	redeemed, err := fresh.keeper.GetPass(fresh.ctx, "pass-4")
	require.NoError(t, err)
	require.True(t, redeemed.Redeemed)

	// The finalized listing keeps releasing on its original schedule.
	_, _, err = fresh.keeper.ReleaseNextReady(fresh.ctx, "listing-1")
	require.ErrorIs(t, err, types.ErrTrancheNotReady)
}

func TestInitGenesisNilUsesDefaults(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.keeper.InitGenesis(env.ctx, nil))
	require.Equal(t, types.DefaultParams(), env.keeper.GetParams(env.ctx))

	all, err := env.keeper.ListListings(env.ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestInitGenesisRejectsInvalidParams(t *testing.T) {
	env := newTestEnv(t)

	gs := types.DefaultGenesis()
	gs.Params.MaxTrancheCount = 0
	require.Error(t, env.keeper.InitGenesis(env.ctx, gs))
}

func TestGenesisValidateCatchesCorruption(t *testing.T) {
	env := newTestEnv(t)
	populate(t, env)

	exported, err := env.keeper.ExportGenesis(env.ctx)
	require.NoError(t, err)

	// Tampered config breaks the recorded hash.
	tampered := *exported
	tampered.Listings = append([]types.Listing{}, exported.Listings...)
	tampered.Listings[0].Config.RaiseFeeBps = 999
	require.ErrorContains(t, tampered.Validate(), "config hash mismatch")

	// A missing pass breaks share conservation.
	short := *exported
	short.Passes = exported.Passes[:len(exported.Passes)-2]
	require.Error(t, short.Validate())
}
