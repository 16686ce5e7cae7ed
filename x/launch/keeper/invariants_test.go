package keeper_test

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/tide-protocol/tidechain/x/launch/keeper"
	"github.com/tide-protocol/tidechain/x/launch/types"
)

type fakeInvariantRegistry struct {
	routes []string
}

func (r *fakeInvariantRegistry) RegisterRoute(moduleName, route string, _ sdk.Invariant) {
	r.routes = append(r.routes, moduleName+"/"+route)
}

func TestRegisterInvariantsRoutes(t *testing.T) {
	env := newTestEnv(t)

	registry := &fakeInvariantRegistry{}
	keeper.RegisterInvariants(registry, env.keeper)
	require.Len(t, registry.routes, 7)
	require.Contains(t, registry.routes, "launch/share-conservation")
	require.Contains(t, registry.routes, "launch/reward-accounting")
}

func TestInvariantsHoldThroughLifecycle(t *testing.T) {
	env := newTestEnv(t)

	checks := map[string]sdk.Invariant{
		"listing-state":         keeper.ListingStateInvariant(env.keeper),
		"share-conservation":    keeper.ShareConservationInvariant(env.keeper),
		"schedule-conservation": keeper.ScheduleConservationInvariant(env.keeper),
		"reward-accounting":     keeper.RewardAccountingInvariant(env.keeper),
		"vault-non-negative":    keeper.VaultNonNegativeInvariant(env.keeper),
		"yield-position":        keeper.YieldPositionInvariant(env.keeper),
		"count-consistency":     keeper.CountConsistencyInvariant(env.keeper),
	}
	assertClean := func(stage string) {
		t.Helper()
		for name, invariant := range checks {
			msg, broken := invariant(env.ctx)
			require.False(t, broken, "%s broken after %s.\n%s", name, stage, msg)
		}
	}

	assertClean("empty state")

	populate(t, env)
	assertClean("mixed lifecycle states")

	// Claims on the finalized listing.
	claimed, err := env.keeper.ClaimRewards(env.ctx, types.MsgClaimRewards{
		ListingID: "listing-1", PassID: "pass-1", Holder: backerAddr,
	})
	require.NoError(t, err)
	require.True(t, claimed.IsPositive())
	assertClean("claims")

	// Harvest the outstanding lot with a gain.
	env.yield.setPayout("lot-1", 2_400)
	_, err = env.keeper.Harvest(env.ctx, "listing-1", "lot-1")
	require.NoError(t, err)
	assertClean("harvest")
}

func TestAllInvariantsAggregates(t *testing.T) {
	env := newTestEnv(t)
	populate(t, env)

	msg, broken := keeper.AllInvariants(env.keeper)(env.ctx)
	require.False(t, broken, msg)
}

// corruptibleGenesis builds a minimal consistent state around one active
// listing with a single 1,000-share pass, ready to be skewed.
func corruptibleGenesis() *types.GenesisState {
	config := types.ListingConfig{
		Denom:               testDenom,
		MinDeposit:          sdkmath.NewInt(1000),
		RaiseFeeBps:         100,
		InitialReleaseBps:   2000,
		TrancheCount:        12,
		TrancheIntervalSecs: 86400,
		YieldBackerBps:      7500,
	}
	listing := types.Listing{
		ID:            "listing-1",
		ListingNumber: 1,
		Issuer:        issuerAddr,
		Beneficiary:   beneficiaryAddr,
		Status:        types.ListingStatusActive,
		Config:        config,
		ConfigHash:    config.Hash(),
		CreatedAtUnix: testBlockTime.Unix(),
	}
	capital := types.NewCapitalVault("listing-1", config.RaiseFeeBps)
	capital.Balance = sdkmath.NewInt(1_000)
	capital.TotalPrincipal = sdkmath.NewInt(1_000)
	capital.TotalShares = sdkmath.NewInt(1_000)
	rewards := types.NewRewardVault("listing-1")
	rewards.TotalShares = sdkmath.NewInt(1_000)
	pass := types.SupporterPass{
		ID:             "pass-1",
		ListingID:      "listing-1",
		Owner:          backerAddr,
		Shares:         sdkmath.NewInt(1_000),
		ClaimIndex:     sdkmath.ZeroInt(),
		TotalClaimed:   sdkmath.ZeroInt(),
		PassNumber:     1,
		OriginalMinter: backerAddr,
		MintedAtUnix:   testBlockTime.Unix(),
	}

	gs := types.DefaultGenesis()
	gs.Listings = append(gs.Listings, listing)
	gs.CapitalVaults = append(gs.CapitalVaults, capital)
	gs.RewardVaults = append(gs.RewardVaults, rewards)
	gs.Passes = append(gs.Passes, pass)
	gs.YieldPositions = append(gs.YieldPositions, types.NewYieldPosition("listing-1"))
	gs.ListingCount = 1
	gs.PassCount = 1
	return gs
}

func TestShareConservationDetectsDrift(t *testing.T) {
	env := newTestEnv(t)

	gs := corruptibleGenesis()
	gs.Passes[0].Shares = sdkmath.NewInt(800)
	require.NoError(t, env.keeper.InitGenesis(env.ctx, gs))

	msg, broken := keeper.ShareConservationInvariant(env.keeper)(env.ctx)
	require.True(t, broken)
	require.Contains(t, msg, "share-conservation")
}

func TestRewardAccountingDetectsLeak(t *testing.T) {
	env := newTestEnv(t)

	gs := corruptibleGenesis()
	gs.RewardVaults[0].Balance = sdkmath.NewInt(500)
	gs.RewardVaults[0].TotalDeposited = sdkmath.NewInt(400)
	require.NoError(t, env.keeper.InitGenesis(env.ctx, gs))

	msg, broken := keeper.RewardAccountingInvariant(env.keeper)(env.ctx)
	require.True(t, broken)
	require.Contains(t, msg, "reward-accounting")
}

func TestScheduleConservationDetectsMismatch(t *testing.T) {
	env := newTestEnv(t)

	gs := corruptibleGenesis()
	gs.Listings[0].Status = types.ListingStatusFinalized
	gs.Listings[0].FinalizedAtUnix = testBlockTime.Unix()
	breakdown, err := types.ComputeSchedule(sdkmath.NewInt(1_000), gs.Listings[0].Config, testBlockTime.Unix())
	require.NoError(t, err)
	breakdown.Tranches[3].Amount = breakdown.Tranches[3].Amount.AddRaw(7)
	gs.CapitalVaults[0].Tranches = breakdown.Tranches
	gs.CapitalVaults[0].ScheduleFinalized = true
	gs.CapitalVaults[0].FeeAmount = breakdown.Fee
	require.NoError(t, env.keeper.InitGenesis(env.ctx, gs))

	msg, broken := keeper.ScheduleConservationInvariant(env.keeper)(env.ctx)
	require.True(t, broken)
	require.Contains(t, msg, "schedule-conservation")
}

func TestVaultNonNegativeDetectsUnderflow(t *testing.T) {
	env := newTestEnv(t)

	gs := corruptibleGenesis()
	gs.CapitalVaults[0].Balance = sdkmath.NewInt(-1)
	require.NoError(t, env.keeper.InitGenesis(env.ctx, gs))

	msg, broken := keeper.VaultNonNegativeInvariant(env.keeper)(env.ctx)
	require.True(t, broken)
	require.Contains(t, msg, "vault-non-negative")
}

func TestYieldPositionDetectsLotDrift(t *testing.T) {
	env := newTestEnv(t)

	gs := corruptibleGenesis()
	gs.YieldPositions[0].Enabled = true
	gs.YieldPositions[0].Validator = testValidator
	gs.YieldPositions[0].Stakes = []types.StakeLot{{
		Handle:       "lot-1",
		Principal:    sdkmath.NewInt(500),
		StakedAtUnix: testBlockTime.Unix(),
	}}
	gs.YieldPositions[0].StakedPrincipal = sdkmath.NewInt(600)
	require.NoError(t, env.keeper.InitGenesis(env.ctx, gs))

	msg, broken := keeper.YieldPositionInvariant(env.keeper)(env.ctx)
	require.True(t, broken)
	require.Contains(t, msg, "yield-position")
}

func TestCountConsistencyDetectsSkew(t *testing.T) {
	env := newTestEnv(t)

	gs := corruptibleGenesis()
	gs.ListingCount = 0
	require.NoError(t, env.keeper.InitGenesis(env.ctx, gs))

	msg, broken := keeper.CountConsistencyInvariant(env.keeper)(env.ctx)
	require.True(t, broken)
	require.Contains(t, msg, "count-consistency")
}

func TestListingStateDetectsHashTamper(t *testing.T) {
	env := newTestEnv(t)

	gs := corruptibleGenesis()
	gs.Listings[0].ConfigHash = "deadbeef"
	require.NoError(t, env.keeper.InitGenesis(env.ctx, gs))

	msg, broken := keeper.ListingStateInvariant(env.keeper)(env.ctx)
	require.True(t, broken)
	require.Contains(t, msg, "listing-state")

	all, brokenAll := keeper.AllInvariants(env.keeper)(env.ctx)
	require.True(t, brokenAll)
	require.NotEmpty(t, all)
}
